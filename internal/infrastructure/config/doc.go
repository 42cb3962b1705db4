// Package config handles loading and validating the Alice bridge configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with ALICEBRIDGE_* environment variables
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - Skill tokens, client secrets and the JWT secret should be set via environment variables
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Skill.ID)
package config
