package config

import "fmt"

// ValidationError reports one configuration problem. Level "error"
// fails loading; "warning" is surfaced but non-fatal.
type ValidationError struct {
	Field   string
	Message string
	Level   string
}

// ValidateConfiguration checks cfg for the problems Load cares about
// before handing it to the daemon or CLI.
func ValidateConfiguration(cfg *Config) []ValidationError {
	var errs []ValidationError

	if cfg.Agent.ID == "" {
		errs = append(errs, ValidationError{
			Field: "agent.id", Message: "agent id is required", Level: "error",
		})
	}
	if cfg.Network.Transport != "tcp" && cfg.Network.Transport != "ws" {
		errs = append(errs, ValidationError{
			Field:   "network.transport",
			Message: fmt.Sprintf("unsupported transport %q, want tcp or ws", cfg.Network.Transport),
			Level:   "error",
		})
	}
	if cfg.Policy.Path == "" {
		errs = append(errs, ValidationError{
			Field: "policy.path", Message: "no policy engine configured; every session will end at the KNOCK policy check",
			Level: "warning",
		})
	}
	if cfg.Network.TLSCertPath != "" && cfg.Network.TLSKeyPath == "" {
		errs = append(errs, ValidationError{
			Field: "network.tls_key_path", Message: "tls_cert_path set without tls_key_path", Level: "error",
		})
	}

	return errs
}
