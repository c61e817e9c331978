package config

import "fmt"

// PrefixConfig holds the mount points of the three route groups.
//
// Example environment variables:
//
//	API_PREFIX_VERIFICATION=/api/v1/verification
//	API_PREFIX_ADMIN_VERIFICATION=/api/v1/admin/verification
//	API_PREFIX_ADMIN_CLEANUP=/api/v1/admin/cleanup
type PrefixConfig struct {
	Verification      string `env:"API_PREFIX_VERIFICATION" env-default:"/api/v1/verification"`             // public email verification
	AdminVerification string `env:"API_PREFIX_ADMIN_VERIFICATION" env-default:"/api/v1/admin/verification"` // identity verification (admin)
	AdminCleanup      string `env:"API_PREFIX_ADMIN_CLEANUP" env-default:"/api/v1/admin/cleanup"`           // cleanup engine (admin)
}

// DefaultV1Prefixes returns the default v1 prefix configuration
func DefaultV1Prefixes() PrefixConfig {
	return BuildPrefixesFromBase("/api/v1")
}

// BuildPrefixesFromBase builds prefix configuration from a base path.
//
//	BuildPrefixesFromBase("/api/v2")
//	// PrefixConfig{
//	//   Verification:      "/api/v2/verification",
//	//   AdminVerification: "/api/v2/admin/verification",
//	//   AdminCleanup:      "/api/v2/admin/cleanup",
//	// }
func BuildPrefixesFromBase(basePath string) PrefixConfig {
	if len(basePath) > 0 && basePath[len(basePath)-1] == '/' {
		basePath = basePath[:len(basePath)-1]
	}

	return PrefixConfig{
		Verification:      basePath + "/verification",
		AdminVerification: basePath + "/admin/verification",
		AdminCleanup:      basePath + "/admin/cleanup",
	}
}

// Validate checks that all prefix paths are valid (non-empty and start with /)
func (p PrefixConfig) Validate() ValidationErrors {
	prefixes := []struct{ name, value string }{
		{"API_PREFIX_VERIFICATION", p.Verification},
		{"API_PREFIX_ADMIN_VERIFICATION", p.AdminVerification},
		{"API_PREFIX_ADMIN_CLEANUP", p.AdminCleanup},
	}

	var errs ValidationErrors
	for _, pr := range prefixes {
		if pr.value == "" {
			errs = append(errs, ValidationError{Field: pr.name, Message: "is required"})
			continue
		}
		if pr.value[0] != '/' {
			errs = append(errs, ValidationError{Field: pr.name, Message: fmt.Sprintf("must start with '/', got %q", pr.value)})
		}
	}
	return errs
}
