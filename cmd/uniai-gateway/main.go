// The uniai-gateway binary serves the uniai client over HTTP: REST chat,
// SSE streaming, provider switching and history management, one
// conversation per session id.
//
// Configuration is loaded from config.yml (see Load for the search
// paths), overridable through UNIAI_* environment variables and an
// optional .env file. The default provider's API key comes from
// <PROVIDER>_API_KEY or UNIAI_API_KEY when the file leaves it empty.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kbukum/uniai/config"
	"github.com/kbukum/uniai/llm"
	"github.com/kbukum/uniai/llm/claude"
	"github.com/kbukum/uniai/llm/deepseek"
	"github.com/kbukum/uniai/llm/gemini"
	"github.com/kbukum/uniai/llm/openai"
	"github.com/kbukum/uniai/logger"
	"github.com/kbukum/uniai/observability"
	"github.com/kbukum/uniai/server"
	"github.com/kbukum/uniai/version"
)

const serviceName = "uniai-gateway"

type gatewayConfig struct {
	config.ServiceConfig `yaml:",inline" mapstructure:",squash"`

	Server    server.Config        `yaml:"server" mapstructure:"server"`
	Telemetry observability.Config `yaml:"telemetry" mapstructure:"telemetry"`
	Sessions  server.SessionConfig `yaml:"sessions" mapstructure:"sessions"`
}

func (c *gatewayConfig) applyDefaults() {
	if c.Name == "" {
		c.Name = serviceName
	}
	c.ServiceConfig.ApplyDefaults()
	c.Server.ApplyDefaults()
	c.Telemetry.ApplyDefaults()
	c.Telemetry.ServiceName = c.Name
	c.Telemetry.ServiceVersion = version.Get().Version
	c.Telemetry.Environment = c.Environment

	// The default provider falls back to the environment for anything the
	// file leaves unset, so a bare UNIAI_API_KEY is enough to start.
	d := &c.Sessions.Defaults
	if d.Provider == "" {
		d.Provider = openai.ProviderName
	}
	env := llm.ConfigFromEnv(d.Provider)
	if d.APIKey == "" {
		d.APIKey = env.APIKey
	}
	if d.Model == "" {
		d.Model = env.Model
	}
	if d.Model == "" {
		d.Model = defaultModel(d.Provider)
	}
	if d.BaseURL == "" {
		d.BaseURL = env.BaseURL
	}
	if d.SystemPrompt == "" {
		d.SystemPrompt = env.SystemPrompt
	}
}

// defaultModel maps a provider to its vendor default. Importing the
// backends here is also what registers them.
func defaultModel(provider string) string {
	switch provider {
	case openai.ProviderName:
		return openai.DefaultModel
	case deepseek.ProviderName:
		return deepseek.DefaultModel
	case gemini.ProviderName:
		return gemini.DefaultModel
	case claude.ProviderName:
		return claude.DefaultModel
	}
	return ""
}

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()
	if *showVersion {
		fmt.Println(serviceName, version.Short())
		return
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", serviceName, err)
		os.Exit(1)
	}
}

func run() error {
	var cfg gatewayConfig
	if err := config.Load(serviceName, &cfg); err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if err := cfg.Server.Validate(); err != nil {
		return err
	}

	logger.Init(cfg.Logging)
	log := logger.New(&cfg.Logging, cfg.Name)
	log.Info("starting", logger.Fields(
		"version", version.Short(),
		"environment", cfg.Environment,
		"providers", llm.Providers(),
	))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	telemetry, err := observability.Init(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			log.Error("telemetry shutdown failed", logger.Fields("error", err.Error()))
		}
	}()

	var metrics *observability.ChatMetrics
	if cfg.Telemetry.Enabled {
		metrics, err = observability.NewChatMetrics(observability.Meter(cfg.Name))
		if err != nil {
			return fmt.Errorf("creating chat metrics: %w", err)
		}
	}

	sessions, err := server.NewSessions(cfg.Sessions, log)
	if err != nil {
		return fmt.Errorf("initializing sessions: %w", err)
	}
	defer func() {
		if err := sessions.Close(); err != nil {
			log.Error("closing session store failed", logger.Fields("error", err.Error()))
		}
	}()

	srv := server.New(cfg.Server, log)
	srv.ApplyMiddleware(cfg.Name)
	srv.RegisterDefaultEndpoints(cfg.Name, sessions.CheckHealth)
	server.NewAPI(sessions, metrics, log).RegisterRoutes(srv.GinEngine())

	if err := srv.Start(ctx); err != nil {
		return err
	}
	log.Info("gateway ready", logger.Fields(
		"addr", srv.Addr(),
		"default_provider", cfg.Sessions.Defaults.Provider,
		"default_model", cfg.Sessions.Defaults.Model,
	))

	<-ctx.Done()
	log.Info("shutdown signal received")
	return srv.Stop(context.Background())
}
