package validators

import (
	"github.com/mesh-intelligence/params/pkg/types"
)

// Pipeline runs a parameter's validators in attachment order.
type Pipeline struct {
	registry *Registry
}

// NewPipeline creates a pipeline resolving names through reg.
func NewPipeline(reg *Registry) *Pipeline {
	return &Pipeline{registry: reg}
}

// Registry returns the registry the pipeline resolves names through.
func (p *Pipeline) Registry() *Registry {
	return p.registry
}

// Run validates value against each entry in order and stops at the first
// rejection, which is returned as a *types.ValidationError. Later validators
// are not evaluated. Resolution and instantiation errors are returned as-is.
func (p *Pipeline) Run(value any, list []types.Validator) error {
	for _, spec := range list {
		v, err := p.registry.Build(spec)
		if err != nil {
			return err
		}
		if err := v.Validate(value); err != nil {
			return &types.ValidationError{Validator: spec.Type, Message: err.Error()}
		}
	}
	return nil
}

// Check resolves and instantiates every entry without running it. It is used
// before a validator set is attached.
func (p *Pipeline) Check(list []types.Validator) error {
	for _, spec := range list {
		if _, err := p.registry.Build(spec); err != nil {
			return err
		}
	}
	return nil
}
