package provider

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Status is the detection outcome of one provider
type Status struct {
	Kind      Kind   `json:"type"`
	Name      string `json:"name"`
	Available bool   `json:"available"`
	Path      string `json:"path,omitempty"`
	Version   string `json:"version,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Registry holds the providers found on this machine
type Registry struct {
	mu        sync.RWMutex
	providers map[Kind]Provider
	status    map[Kind]Status
}

// NewRegistry returns an empty registry
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[Kind]Provider),
		status:    make(map[Kind]Status),
	}
}

// Register adds a provider as available with the given version
func (r *Registry) Register(p Provider, version string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Kind()] = p
	r.status[p.Kind()] = Status{
		Kind:      p.Kind(),
		Name:      p.Kind().DisplayName(),
		Available: true,
		Path:      p.CLIPath(),
		Version:   version,
	}
}

// markUnavailable records why a provider could not be used
func (r *Registry) markUnavailable(kind Kind, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.providers, kind)
	r.status[kind] = Status{Kind: kind, Name: kind.DisplayName(), Error: err.Error()}
}

// DetectAll probes every provider concurrently. paths overrides the binary
// location per kind.
func DetectAll(ctx context.Context, paths map[Kind]string, log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	r := NewRegistry()

	var g errgroup.Group
	for _, kind := range AllKinds {
		g.Go(func() error {
			d, err := Detect(ctx, kind, paths[kind])
			if err != nil {
				log.Debug("Provider not available", zap.String("provider", string(kind)), zap.Error(err))
				r.markUnavailable(kind, err)
				return nil
			}
			p, err := New(kind, d.Path)
			if err != nil {
				r.markUnavailable(kind, err)
				return nil
			}
			log.Info("Detected provider",
				zap.String("provider", string(kind)),
				zap.String("path", d.Path),
				zap.String("version", d.Version))
			r.Register(p, d.Version)
			return nil
		})
	}
	_ = g.Wait()
	return r
}

// Get returns the provider of the given kind if it is available
func (r *Registry) Get(kind Kind) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[kind]
	return p, ok
}

// Default returns preferred if available, else the first available provider
func (r *Registry) Default(preferred Kind) (Provider, error) {
	if p, ok := r.Get(preferred); ok {
		return p, nil
	}
	for _, kind := range AllKinds {
		if p, ok := r.Get(kind); ok {
			return p, nil
		}
	}
	return nil, &ExecutorError{Kind: CLINotFound, Detail: "no assistant CLI detected"}
}

// Statuses returns the detection outcome of every provider in preference
// order
func (r *Registry) Statuses() []Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Status, 0, len(AllKinds))
	for _, kind := range AllKinds {
		s, ok := r.status[kind]
		if !ok {
			s = Status{Kind: kind, Name: kind.DisplayName()}
		}
		out = append(out, s)
	}
	return out
}
