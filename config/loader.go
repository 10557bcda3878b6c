package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// FileSystem abstracts the file operations the loader performs so tests can
// run against a fake tree.
type FileSystem interface {
	Exists(path string) bool
	LoadEnv(path string) error
}

// RealFileSystem implements FileSystem against the OS.
type RealFileSystem struct{}

func (RealFileSystem) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func (RealFileSystem) LoadEnv(path string) error {
	return godotenv.Load(path)
}

// Loader holds resolved dependencies and optional explicit file paths.
type Loader struct {
	FileSystem FileSystem
	ConfigFile string
	EnvFile    string
}

// Option customizes a Load call.
type Option func(*Loader)

// WithFileSystem substitutes the filesystem used for resolution.
func WithFileSystem(fs FileSystem) Option {
	return func(l *Loader) { l.FileSystem = fs }
}

// WithConfigFile forces an explicit config file path, skipping the search.
func WithConfigFile(path string) Option {
	return func(l *Loader) { l.ConfigFile = path }
}

// WithEnvFile forces an explicit .env file path, skipping the search.
func WithEnvFile(path string) Option {
	return func(l *Loader) { l.EnvFile = path }
}

// Load fills cfg for the named service. Precedence, lowest to highest:
// YAML config file, process environment, .env file. Missing files are not
// an error; the environment alone can configure a service.
func Load(serviceName string, cfg interface{}, opts ...Option) error {
	l := Loader{}
	for _, opt := range opts {
		opt(&l)
	}
	if l.FileSystem == nil {
		l.FileSystem = RealFileSystem{}
	}
	if l.ConfigFile == "" {
		l.ConfigFile = findConfigFile(l.FileSystem, serviceName)
	}
	if l.EnvFile == "" {
		l.EnvFile = findEnvFile(l.FileSystem, serviceName)
	}

	v := viper.New()

	if l.ConfigFile != "" && l.FileSystem.Exists(l.ConfigFile) {
		v.SetConfigFile(l.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("config: reading %s: %w", l.ConfigFile, err)
		}
	}

	v.AutomaticEnv()
	bindEnvVariants(v)

	if l.EnvFile != "" && l.FileSystem.Exists(l.EnvFile) {
		if err := l.FileSystem.LoadEnv(l.EnvFile); err != nil {
			fmt.Fprintf(os.Stderr, "config: warning: loading %s: %v\n", l.EnvFile, err)
		} else {
			// Re-bind so variables introduced by the .env file are visible.
			bindEnvVariants(v)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("config: unmarshal for %s: %w", serviceName, err)
	}
	return nil
}

// findConfigFile probes the standard config.yml locations for a service.
func findConfigFile(fs FileSystem, serviceName string) string {
	candidates := []string{
		fmt.Sprintf("./cmd/%s/config.yml", serviceName),
		fmt.Sprintf("../cmd/%s/config.yml", serviceName),
		fmt.Sprintf("./config/%s.yml", serviceName),
		"./config.yml",
	}
	for _, path := range candidates {
		if fs.Exists(path) {
			return path
		}
	}
	return ""
}

// findEnvFile probes for .env.<service> first, then plain .env, walking up
// two directories so `go run ./cmd/...` finds the repo root copy.
func findEnvFile(fs FileSystem, serviceName string) string {
	for _, name := range []string{".env." + serviceName, ".env"} {
		for _, dir := range []string{".", "..", "../.."} {
			path := dir + "/" + name
			if fs.Exists(path) {
				return path
			}
		}
	}
	return ""
}

// bindEnvVariants makes every environment variable reachable under the
// nested keys Viper uses after unmarshalling. UNIAI_SERVER_PORT becomes
// uniai_server_port, uniai.server.port, uniai.server_port and so on, since
// the loader cannot know which underscores separate nesting levels and
// which belong to a field name.
func bindEnvVariants(v *viper.Viper) {
	for _, kv := range os.Environ() {
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		for _, variant := range envKeyVariants(key) {
			v.Set(variant, value)
		}
	}
}

// envKeyVariants lowercases an env key and expands each prefix split into a
// dotted variant, deduplicated in first-seen order.
func envKeyVariants(envKey string) []string {
	lower := strings.ToLower(envKey)
	parts := strings.Split(lower, "_")
	if len(parts) == 1 {
		return []string{lower}
	}

	variants := []string{lower, strings.ReplaceAll(lower, "_", ".")}
	for i := 1; i < len(parts); i++ {
		variants = append(variants, strings.Join(parts[:i], ".")+"."+strings.Join(parts[i:], "_"))
	}

	seen := make(map[string]bool, len(variants))
	out := variants[:0]
	for _, variant := range variants {
		if !seen[variant] {
			seen[variant] = true
			out = append(out, variant)
		}
	}
	return out
}
