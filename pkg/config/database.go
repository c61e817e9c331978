package config

import (
	"fmt"
	"net/url"
	"time"
)

// DatabaseConfig holds PostgreSQL database configuration
type DatabaseConfig struct {
	Host            string        `env:"PG_HOST" env-default:"localhost"`
	Port            uint16        `env:"PG_PORT" env-default:"5432"`
	Database        string        `env:"PG_DATABASE" env-default:"verification_db"`
	User            string        `env:"PG_USER" env-default:"verification"`
	Password        string        `env:"PG_PASSWORD" env-default:"pwd"`
	Schema          string        `env:"PG_SCHEMA" env-default:"public"`
	SSLMode         string        `env:"PG_SSLMODE" env-default:"disable"`
	MaxConns        int32         `env:"PG_MAX_CONNS" env-default:"10"`
	MaxConnIdleTime time.Duration `env:"PG_MAX_CONN_IDLE_TIME" env-default:"5m"`
}

// ToDatabaseURL converts the config to a PostgreSQL connection URL
func (d DatabaseConfig) ToDatabaseURL() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   "/" + d.Database,
	}
	q := url.Values{}
	q.Set("sslmode", d.SSLMode)
	q.Set("search_path", d.Schema+",public")
	q.Set("pool_max_conns", fmt.Sprintf("%d", d.MaxConns))
	q.Set("pool_max_conn_idle_time", d.MaxConnIdleTime.String())
	u.RawQuery = q.Encode()
	return u.String()
}

// Validate checks the database configuration
func (d DatabaseConfig) Validate() ValidationErrors {
	return CollectErrors(
		RequireNonEmpty("PG_HOST", d.Host),
		RequireValidPort("PG_PORT", d.Port),
		RequireNonEmpty("PG_DATABASE", d.Database),
		RequireNonEmpty("PG_USER", d.User),
		RequireOneOf("PG_SSLMODE", d.SSLMode, []string{"disable", "allow", "prefer", "require", "verify-ca", "verify-full"}),
		RequirePositive("PG_MAX_CONNS", int(d.MaxConns)),
	)
}
