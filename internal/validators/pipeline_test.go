package validators

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/params/pkg/types"
)

func TestPipelineFailFast(t *testing.T) {
	reg := NewRegistry(nil)
	var calls []string
	track := func(name string, fail bool) Func {
		return func(any) error {
			calls = append(calls, name)
			if fail {
				return errors.New(name + " rejected")
			}
			return nil
		}
	}
	require.NoError(t, reg.RegisterFunc("first", track("first", false)))
	require.NoError(t, reg.RegisterFunc("second", track("second", true)))
	require.NoError(t, reg.RegisterFunc("third", track("third", true)))

	err := NewPipeline(reg).Run("value", []types.Validator{
		{Type: "first"}, {Type: "second"}, {Type: "third"},
	})

	var ve *types.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "second", ve.Validator)
	assert.Equal(t, "second rejected", ve.Message)
	assert.Equal(t, []string{"first", "second"}, calls, "third never evaluated")
}

func TestPipelineOrderMatters(t *testing.T) {
	p := NewPipeline(NewRegistry(nil))
	atLeast10 := types.Validator{Type: MinValue, Params: map[string]any{"limit_value": 10.0}}
	atMost5 := types.Validator{Type: MaxValue, Params: map[string]any{"limit_value": 5.0}}

	// 7 violates both; the first attached one is reported.
	var ve *types.ValidationError
	require.ErrorAs(t, p.Run(int64(7), []types.Validator{atLeast10, atMost5}), &ve)
	assert.Equal(t, MinValue, ve.Validator)

	require.ErrorAs(t, p.Run(int64(7), []types.Validator{atMost5, atLeast10}), &ve)
	assert.Equal(t, MaxValue, ve.Validator)
}

func TestPipelineEmptyAndPassing(t *testing.T) {
	p := NewPipeline(NewRegistry(nil))
	assert.NoError(t, p.Run(int64(1), nil))
	assert.NoError(t, p.Run(int64(5), []types.Validator{
		{Type: MinValue, Params: map[string]any{"limit_value": 1.0}},
		{Type: MaxValue, Params: map[string]any{"limit_value": 10.0}},
	}))
}

func TestPipelineUnknownValidator(t *testing.T) {
	p := NewPipeline(NewRegistry(nil))
	err := p.Run("x", []types.Validator{{Type: "Missing"}})
	assert.ErrorIs(t, err, types.ErrUnknownValidator)
	assert.NotErrorIs(t, err, types.ErrValidation)
}

func TestPipelineCheck(t *testing.T) {
	p := NewPipeline(NewRegistry(nil))
	assert.NoError(t, p.Check([]types.Validator{{Type: Email}}))
	assert.ErrorIs(t, p.Check([]types.Validator{{Type: Email}, {Type: "Missing"}}), types.ErrUnknownValidator)
	assert.ErrorIs(t, p.Check([]types.Validator{{Type: MinValue}}), types.ErrInvalidValidatorParams)
}
