// Package config provides a type-safe, generic and cached way to load
// application configuration from environment variables.
//
// It wraps `github.com/joho/godotenv` and `github.com/caarlos0/env/v11` to
// deliver a convenient API that:
//
//   - Loads values from one or multiple `.env` files (falling back to the
//     default `.env` in the current working directory).
//   - Parses the environment into any Go struct using field tags.
//   - Caches each successfully loaded configuration type so it is only parsed
//     once for the lifetime of the process.
//   - Exposes helpers that panic on failure (`MustLoadEnv`, `MustLoad`) for
//     configuration that is required for startup.
//   - Allows explicit cache reset, which is handy in tests.
//
// # Usage
//
//	type EmailConfig struct {
//	    SenderEmail  string `env:"SENDER_EMAIL,required"`
//	    SupportEmail string `env:"SUPPORT_EMAIL,required"`
//	}
//
//	var cfg EmailConfig
//	config.MustLoad(&cfg)
package config
