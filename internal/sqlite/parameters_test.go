package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/params/pkg/types"
)

func TestSetAndGet(t *testing.T) {
	b, _ := newTestBackend(t)
	ctx := context.Background()

	p := &types.Parameter{
		Name:        "Site Name",
		Slug:        "SITE_NAME",
		ValueType:   types.ValueTypeString,
		Value:       "Acme",
		Description: "Shown in the header",
		IsGlobal:    true,
	}
	require.NoError(t, b.Set(ctx, p, nil))

	got, err := b.Get(ctx, "SITE_NAME")
	require.NoError(t, err)
	assert.Equal(t, "Site Name", got.Name)
	assert.Equal(t, types.ValueTypeString, got.ValueType)
	assert.Equal(t, "Acme", got.Value)
	assert.Equal(t, "Shown in the header", got.Description)
	assert.True(t, got.IsGlobal)
	assert.False(t, got.EnableCypher)
	assert.Empty(t, got.Validators)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestGetNotFound(t *testing.T) {
	b, _ := newTestBackend(t)
	_, err := b.Get(context.Background(), "MISSING")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestSetRequiresSlug(t *testing.T) {
	b, _ := newTestBackend(t)
	ctx := context.Background()
	assert.ErrorIs(t, b.Set(ctx, nil, nil), types.ErrInvalidName)
	assert.ErrorIs(t, b.Set(ctx, &types.Parameter{Name: "x"}, nil), types.ErrInvalidName)
}

func TestSetKeepsCreatedAt(t *testing.T) {
	b, _ := newTestBackend(t)
	ctx := context.Background()

	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	p := &types.Parameter{Name: "A", Slug: "A", ValueType: types.ValueTypeInt, Value: "1",
		CreatedAt: created, UpdatedAt: created}
	require.NoError(t, b.Set(ctx, p, nil))

	later := created.Add(time.Hour)
	p2 := &types.Parameter{Name: "A", Slug: "A", ValueType: types.ValueTypeInt, Value: "2",
		CreatedAt: later, UpdatedAt: later}
	require.NoError(t, b.Set(ctx, p2, nil))

	got, err := b.Get(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, "2", got.Value)
	assert.True(t, got.CreatedAt.Equal(created))
	assert.True(t, got.UpdatedAt.Equal(later))
}

func TestSetReplacesValidators(t *testing.T) {
	b, _ := newTestBackend(t)
	ctx := context.Background()

	p := &types.Parameter{Name: "Code", Slug: "CODE", ValueType: types.ValueTypeString, Value: "ab",
		Validators: []types.Validator{
			{Type: "MinLengthValidator", Params: map[string]any{"limit_value": float64(2)}},
			{Type: "RegexValidator", Params: map[string]any{"regex": "^[a-z]+$"}},
		}}
	require.NoError(t, b.Set(ctx, p, nil))

	p.Validators = []types.Validator{{Type: "validate_slug"}}
	require.NoError(t, b.Set(ctx, p, nil))

	got, err := b.Get(ctx, "CODE")
	require.NoError(t, err)
	require.Len(t, got.Validators, 1)
	assert.Equal(t, "validate_slug", got.Validators[0].Type)
	assert.Nil(t, got.Validators[0].Params)
}

func TestHistoryNewestFirst(t *testing.T) {
	b, _ := newTestBackend(t)
	ctx := context.Background()

	p := &types.Parameter{Name: "Rate", Slug: "RATE", ValueType: types.ValueTypeFloat, Value: "1", EnableHistory: true}
	require.NoError(t, b.Set(ctx, p, nil))

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, prev := range []string{"1", "2", "3"} {
		p.Value = string(rune('2' + i))
		entry := &types.HistoryEntry{PreviousValue: prev, Timestamp: base.Add(time.Duration(i) * time.Second)}
		require.NoError(t, b.Set(ctx, p, entry))
		assert.NotEmpty(t, entry.ID)
		assert.Equal(t, "RATE", entry.Slug)
	}

	hist, err := b.History(ctx, "RATE")
	require.NoError(t, err)
	require.Len(t, hist, 3)
	assert.Equal(t, "3", hist[0].PreviousValue)
	assert.Equal(t, "2", hist[1].PreviousValue)
	assert.Equal(t, "1", hist[2].PreviousValue)
	assert.True(t, hist[2].Timestamp.Equal(base))

	empty, err := b.History(ctx, "OTHER")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestDeleteCascades(t *testing.T) {
	b, dir := newTestBackend(t)
	ctx := context.Background()

	p := &types.Parameter{Name: "Gone", Slug: "GONE", ValueType: types.ValueTypeString, Value: "a",
		Validators: []types.Validator{{Type: "validate_slug"}}}
	require.NoError(t, b.Set(ctx, p, nil))
	p.Value = "b"
	require.NoError(t, b.Set(ctx, p, &types.HistoryEntry{PreviousValue: "a"}))

	require.NoError(t, b.Delete(ctx, "GONE"))

	_, err := b.Get(ctx, "GONE")
	assert.ErrorIs(t, err, types.ErrNotFound)
	hist, err := b.History(ctx, "GONE")
	require.NoError(t, err)
	assert.Empty(t, hist)

	for _, name := range jsonlFiles {
		data, err := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, err)
		assert.NotContains(t, string(data), "GONE", name)
	}

	assert.ErrorIs(t, b.Delete(ctx, "GONE"), types.ErrNotFound)
}

func TestFetchFilters(t *testing.T) {
	b, _ := newTestBackend(t)
	ctx := context.Background()

	for _, p := range []*types.Parameter{
		{Name: "B", Slug: "B", ValueType: types.ValueTypeInt, Value: "1", IsGlobal: true},
		{Name: "A", Slug: "A", ValueType: types.ValueTypeString, Value: "x", IsGlobal: true,
			Validators: []types.Validator{{Type: "validate_slug"}}},
		{Name: "C", Slug: "C", ValueType: types.ValueTypeString, Value: "tok", EnableCypher: true},
	} {
		require.NoError(t, b.Set(ctx, p, nil))
	}

	tests := []struct {
		name   string
		filter types.Filter
		want   []string
	}{
		{"all", types.Filter{}, []string{"A", "B", "C"}},
		{"global", types.Filter{IsGlobal: types.Bool(true)}, []string{"A", "B"}},
		{"not global", types.Filter{IsGlobal: types.Bool(false)}, []string{"C"}},
		{"cypher", types.Filter{EnableCypher: types.Bool(true)}, []string{"C"}},
		{"by type", types.Filter{ValueType: types.ValueTypeString}, []string{"A", "C"}},
		{"combined", types.Filter{IsGlobal: types.Bool(true), ValueType: types.ValueTypeString}, []string{"A"}},
		{"none", types.Filter{ValueType: types.ValueTypeDate}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := b.Fetch(ctx, tt.filter)
			require.NoError(t, err)
			slugs := make([]string, 0, len(got))
			for _, p := range got {
				slugs = append(slugs, p.Slug)
			}
			assert.Equal(t, tt.want, slugs)
		})
	}

	all, err := b.Fetch(ctx, types.Filter{})
	require.NoError(t, err)
	require.Len(t, all[0].Validators, 1, "validators hydrated on fetch")
}

func TestSetAll(t *testing.T) {
	b, dir := newTestBackend(t)
	ctx := context.Background()

	params := []*types.Parameter{
		{Name: "X", Slug: "X", ValueType: types.ValueTypeString, Value: "1", EnableCypher: true},
		{Name: "Y", Slug: "Y", ValueType: types.ValueTypeString, Value: "2", EnableCypher: true},
	}
	require.NoError(t, b.SetAll(ctx, params))
	require.NoError(t, b.SetAll(ctx, nil))

	got, err := b.Fetch(ctx, types.Filter{EnableCypher: types.Bool(true)})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	data, err := os.ReadFile(filepath.Join(dir, parametersJSONL))
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(data), "\n"))

	err = b.SetAll(ctx, []*types.Parameter{{Name: "Z", Slug: "Z"}, {Name: "no slug"}})
	assert.ErrorIs(t, err, types.ErrInvalidName)
	_, err = b.Get(ctx, "Z")
	assert.ErrorIs(t, err, types.ErrNotFound, "nothing written when one entry is invalid")
}
