// Package config provides configuration loading and validation for the
// constellation CLI.
//
// The package handles YAML configuration files, connection profiles,
// environment variables and CLI flags with automatic merging and validation
// using go-playground/validator.
//
// # Configuration Precedence
//
// Values are loaded in this order (later sources override earlier ones):
//
//  1. Default values
//  2. Configuration file(s), merged left-to-right
//  3. The selected profile from profiles.yaml
//  4. Environment variables (CONSTELLATION_ prefix)
//  5. CLI flags the user actually set
//
// # Usage
//
//	cfg, err := config.Load(config.LoadOptions{
//	    ConfigFiles: []string{"config.yaml"},
//	    Profile:     profile,
//	    Flags:       cmd.Flags(),
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	ctx = config.WithContext(ctx, cfg)
//
// # Environment Variables
//
// All config keys map to environment variables with the CONSTELLATION_ prefix:
//   - api.url → CONSTELLATION_API_URL
//   - api.key → CONSTELLATION_API_KEY
//   - username → CONSTELLATION_USERNAME
//   - password → CONSTELLATION_PASSWORD
//   - history.dsn → CONSTELLATION_HISTORY_DSN
//
// # Validation
//
//   - api.url and gateway.url must be absolute URLs
//   - history.type must be sqlite or postgres when history is enabled
//   - transport timeouts must not be negative
//   - log level must be debug, info, warn, or error; format text or json
package config
