package llm

import (
	"fmt"
	"sort"
	"sync"

	apperrors "github.com/kbukum/uniai/errors"
	"github.com/kbukum/uniai/util"
)

var (
	providersMu sync.RWMutex
	providers   = map[string]Factory{}
)

// Register adds a provider factory to the global registry. Typically called
// from init() in backend packages:
//
//	func init() {
//	    llm.Register("openai", New)
//	}
//
// Importing the backend package registers the provider as a side-effect:
//
//	import _ "github.com/kbukum/uniai/llm/openai"
//
// Registering a second factory under the same name replaces the first.
func Register(name string, factory Factory) {
	providersMu.Lock()
	defer providersMu.Unlock()
	providers[name] = factory
}

// New resolves cfg.Provider in the registry, applies defaults, validates the
// config, and constructs the provider. An unresolvable provider name or an
// invalid config fails with a configuration error before any network call.
func New(cfg Config) (Provider, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	providersMu.RLock()
	factory, ok := providers[cfg.Provider]
	providersMu.RUnlock()
	if !ok {
		return nil, apperrors.Configuration(
			fmt.Sprintf("unknown provider %q (forgot to import the backend package?); registered: %v",
				cfg.Provider, Providers()))
	}

	return factory(cfg)
}

// Providers returns the names of all registered providers, sorted.
func Providers() []string {
	providersMu.RLock()
	defer providersMu.RUnlock()
	names := util.Keys(providers)
	sort.Strings(names)
	return names
}
