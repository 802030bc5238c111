// Package config handles loading and validating the iT600 bridge configuration.
//
// This package manages:
//   - Loading KEY=VALUE env files (.env) into the environment
//   - Loading configuration from YAML files
//   - Overriding with IT600_* environment variables
//   - Validation of required fields
//
// Security Considerations:
//   - The gateway EUID is the encryption key seed; treat it like a password
//   - Broker and database credentials should come from the environment
//
// Usage:
//
//	_ = config.LoadEnvFiles(".env")
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Gateway.Host)
package config
