package server

import (
	"context"
	"sync"

	"github.com/kbukum/uniai"
	"github.com/kbukum/uniai/encryption"
	apperrors "github.com/kbukum/uniai/errors"
	"github.com/kbukum/uniai/llm"
	"github.com/kbukum/uniai/logger"
	"github.com/kbukum/uniai/memory/sqlitestore"
	"github.com/kbukum/uniai/server/endpoint"
)

// SessionConfig configures the session registry.
type SessionConfig struct {
	// Defaults is the provider config new sessions start with.
	Defaults llm.Config `yaml:"defaults" mapstructure:"defaults"`
	// StorePath is the SQLite file backing session history. Empty keeps
	// sessions in process memory only.
	StorePath string `yaml:"store_path" mapstructure:"store_path"`
	// EncryptionKey, when set, encrypts stored message content at rest.
	// Only meaningful together with StorePath.
	EncryptionKey string `yaml:"encryption_key" mapstructure:"encryption_key"`
}

// session serializes access to one conversation. Concurrent requests for
// the same session id queue up rather than interleave turns.
type session struct {
	mu     sync.Mutex
	client *uniai.Client
}

// Sessions maps session ids to live clients, restoring history from the
// store when one is configured.
type Sessions struct {
	mu       sync.Mutex
	sessions map[string]*session
	defaults llm.Config
	store    *sqlitestore.Store
	log      *logger.Logger
}

// NewSessions creates the registry and opens the history store when a path
// is configured. The default config is validated eagerly so a bad gateway
// config fails at startup, not on the first request.
func NewSessions(cfg SessionConfig, log *logger.Logger) (*Sessions, error) {
	probe := cfg.Defaults
	probe.ApplyDefaults()
	if err := probe.Validate(); err != nil {
		return nil, err
	}

	var store *sqlitestore.Store
	if cfg.StorePath != "" {
		var storeOpts []sqlitestore.Option
		if cfg.EncryptionKey != "" {
			cipher, err := encryption.New(cfg.EncryptionKey)
			if err != nil {
				return nil, apperrors.Configuration("session store encryption: " + err.Error())
			}
			storeOpts = append(storeOpts, sqlitestore.WithCipher(cipher))
		}

		var err error
		store, err = sqlitestore.Open(cfg.StorePath, storeOpts...)
		if err != nil {
			return nil, err
		}
		log.Info("session store opened", logger.Fields(
			"path", cfg.StorePath,
			"encrypted", cfg.EncryptionKey != "",
		))
	}

	return &Sessions{
		sessions: make(map[string]*session),
		defaults: cfg.Defaults,
		store:    store,
		log:      log.WithComponent("sessions"),
	}, nil
}

// Acquire returns the session's client with its lock held, creating the
// session on first use. The returned release function must be called when
// the request is done with the client.
func (m *Sessions) Acquire(ctx context.Context, id string) (*uniai.Client, func(), error) {
	s, err := m.lookup(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	s.mu.Lock()
	return s.client, s.mu.Unlock, nil
}

func (m *Sessions) lookup(ctx context.Context, id string) (*session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[id]; ok {
		return s, nil
	}

	client, err := uniai.New(m.defaults)
	if err != nil {
		return nil, err
	}

	if m.store != nil {
		msgs, err := m.store.Load(ctx, id)
		if err != nil {
			return nil, apperrors.Internal(err).WithDetail("session_id", id)
		}
		if len(msgs) > 0 {
			client.RestoreHistory(msgs)
			m.log.Debug("session restored", logger.Fields("session_id", id, "messages", len(msgs)))
		}
	}

	s := &session{client: client}
	m.sessions[id] = s
	return s, nil
}

// Persist writes the session's history to the store, when one is
// configured. Persistence failures are logged, not surfaced: the
// conversation already succeeded in memory.
func (m *Sessions) Persist(ctx context.Context, id string, client *uniai.Client) {
	if m.store == nil {
		return
	}
	if err := m.store.Save(ctx, id, client.History()); err != nil {
		m.log.Error("persisting session failed", logger.Fields("session_id", id, "error", err.Error()))
	}
}

// Drop forgets a session and deletes its stored history.
func (m *Sessions) Drop(ctx context.Context, id string) error {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()

	if m.store == nil {
		return nil
	}
	if err := m.store.Delete(ctx, id); err != nil {
		return apperrors.Internal(err).WithDetail("session_id", id)
	}
	return nil
}

// Close releases the history store.
func (m *Sessions) Close() error {
	if m.store == nil {
		return nil
	}
	return m.store.Close()
}

// CheckHealth reports the health of the session store and the provider
// registry, for the /health endpoint.
func (m *Sessions) CheckHealth(ctx context.Context) []endpoint.ComponentHealth {
	components := []endpoint.ComponentHealth{{
		Name:   "provider_registry",
		Status: endpoint.StatusHealthy,
	}}
	if len(llm.Providers()) == 0 {
		components[0].Status = endpoint.StatusUnhealthy
		components[0].Message = "no provider backends registered"
	}

	if m.store != nil {
		storeHealth := endpoint.ComponentHealth{Name: "session_store", Status: endpoint.StatusHealthy}
		if _, err := m.store.Sessions(ctx); err != nil {
			storeHealth.Status = endpoint.StatusUnhealthy
			storeHealth.Message = err.Error()
		}
		components = append(components, storeHealth)
	}
	return components
}
