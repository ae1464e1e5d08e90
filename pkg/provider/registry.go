package provider

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// registry is the process-wide, lazily-initialized provider registry
// backing Resolve. Construction is idempotent: repeated calls to
// ensureDefaults never overwrite a provider a caller registered earlier
// in the process lifetime (including a test's RegisterProvider call).
var (
	registryMu sync.Mutex
	registry   map[ProviderID]Provider
)

func ensureDefaults() {
	if registry != nil {
		return
	}
	registry = map[ProviderID]Provider{
		OpenAI:    NewOpenAIAdapter(),
		Anthropic: NewAnthropicAdapter(),
		Gemini:    NewGeminiAdapter(),
	}
}

// Resolve returns the registered Provider for id, constructing the
// default registry on first use.
func Resolve(id ProviderID) (Provider, error) {
	registryMu.Lock()
	defer registryMu.Unlock()
	ensureDefaults()

	p, ok := registry[id]
	if !ok {
		return nil, &UnknownProviderError{ID: id}
	}
	return p, nil
}

// RegisterProvider overrides (or installs) the provider used for id.
// It exists for tests that need to substitute a fake Provider without
// reaching out to a real API.
func RegisterProvider(id ProviderID, p Provider) {
	registryMu.Lock()
	defer registryMu.Unlock()
	ensureDefaults()
	if _, exists := registry[id]; exists {
		log.Warn().Str("provider", string(id)).Msg("overriding already-registered provider")
	}
	registry[id] = p
}

// UnknownProviderError reports a ProviderID outside the closed set this
// core supports.
type UnknownProviderError struct {
	ID ProviderID
}

func (e *UnknownProviderError) Error() string {
	return "unknown provider: " + string(e.ID)
}
