package config

import "strings"

// Environment represents different deployment environments
type Environment string

const (
	Development Environment = "development"
	Staging     Environment = "staging"
	Production  Environment = "production"
	Test        Environment = "test"
)

// ParseEnvironment maps the common spellings of an environment name
func ParseEnvironment(env string) Environment {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "production", "prod":
		return Production
	case "staging", "stage":
		return Staging
	case "test", "testing":
		return Test
	default:
		return Development
	}
}

// PersistenceType selects the repository backend
type PersistenceType string

const (
	PersistencePostgres PersistenceType = "postgres"
	PersistenceMemory   PersistenceType = "memory"
)
