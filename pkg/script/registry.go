package script

import (
	"strings"
	"sync"
)

// Registry maps language identifiers to runner implementations. Unknown
// identifiers are a typed error, not a runtime fault.
type Registry struct {
	mu      sync.RWMutex
	runners map[string]Runner
}

func NewRegistry(runners ...Runner) *Registry {
	r := &Registry{
		runners: make(map[string]Runner),
	}
	for _, runner := range runners {
		r.Register(runner)
	}
	return r
}

func (r *Registry) Register(runner Runner) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runners[normalizeLanguage(runner.Language())] = runner
}

// RunnerFor returns the runner registered for the language, or a
// LanguageNotSupportedError.
func (r *Registry) RunnerFor(language string) (Runner, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	runner, ok := r.runners[normalizeLanguage(language)]
	if !ok {
		return nil, &LanguageNotSupportedError{Language: language}
	}
	return runner, nil
}

// Languages returns the registered language identifiers.
func (r *Registry) Languages() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	langs := make([]string, 0, len(r.runners))
	for lang := range r.runners {
		langs = append(langs, lang)
	}
	return langs
}

func normalizeLanguage(language string) string {
	return strings.ToLower(strings.TrimSpace(language))
}
