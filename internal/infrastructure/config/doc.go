// Package config handles loading and validating gatekeep configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - Sensitive values (the session token secret) should be set via
//     environment variables, not committed in the config file
//   - The config file should have restricted permissions (0600)
//   - The session token secret must be changed from any sample value
//     before production use
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.API.Port)
package config
