package costmodel

import "context"

// Placeholder statistics used by DefaultProvider when no live engine
// statistics are available.
const (
	DefaultTotalTriples      = 1_000_000
	DefaultMaxPredicate      = 1000
	DefaultMaxObject         = 10000
	DefaultSelectivity       = 0.1
	DefaultObjectCardinality = 100
)

// Provider supplies the cost model for an optimization. Implementations
// build the model from whatever statistics source they front.
type Provider interface {
	Model(ctx context.Context) (*Model, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context) (*Model, error)

// Model implements Provider.
func (f ProviderFunc) Model(ctx context.Context) (*Model, error) {
	return f(ctx)
}

// Static returns a Provider that always yields m.
func Static(m *Model) Provider {
	return ProviderFunc(func(context.Context) (*Model, error) {
		return m, nil
	})
}

// DefaultProvider fills every table entry with fixed placeholder
// statistics. It stands in for a live engine until one is wired.
type DefaultProvider struct{}

// Model implements Provider.
func (DefaultProvider) Model(context.Context) (*Model, error) {
	m, err := NewModel(DefaultTotalTriples, DefaultMaxPredicate, DefaultMaxObject)
	if err != nil {
		return nil, err
	}
	for i := range m.predicateSelectivity {
		m.predicateSelectivity[i] = DefaultSelectivity
	}
	for i := range m.objectCardinality {
		m.objectCardinality[i] = DefaultObjectCardinality
	}
	return m, nil
}
