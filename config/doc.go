// Package config loads gateway configuration from YAML files and the
// environment.
//
// It uses Viper for file parsing and env binding and godotenv for .env
// files. Files are resolved relative to the working directory with a small
// set of search paths, and every environment variable is bound under its
// lowercase dotted variants so UNIAI_SERVER_PORT reaches server.port.
//
// # Usage
//
//	var cfg gatewayConfig
//	err := config.Load("uniai-gateway", &cfg)
//
// Explicit file paths can be forced with WithConfigFile and WithEnvFile,
// and the filesystem can be faked in tests with WithFileSystem.
package config
