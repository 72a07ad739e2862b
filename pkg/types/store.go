package types

import "context"

// Store persists parameters, their validators, and the history ledger.
// Implementations must make every method atomic with respect to the records
// it touches.
type Store interface {
	// Get retrieves the parameter with the given slug, validators included.
	// Returns ErrNotFound if no parameter has that slug.
	Get(ctx context.Context, slug string) (*Parameter, error)

	// Set creates or replaces the parameter keyed by p.Slug, replacing its
	// validator set. When entry is non-nil it is appended to the history
	// ledger in the same transaction.
	Set(ctx context.Context, p *Parameter, entry *HistoryEntry) error

	// SetAll replaces every given parameter in one transaction. Either all
	// writes land or none do.
	SetAll(ctx context.Context, params []*Parameter) error

	// Delete removes the parameter with the given slug together with its
	// validators and history.
	// Returns ErrNotFound if no parameter has that slug.
	Delete(ctx context.Context, slug string) error

	// Fetch returns all parameters matching the filter, ordered by slug. A
	// zero Filter returns every parameter.
	Fetch(ctx context.Context, filter Filter) ([]*Parameter, error)

	// History returns the ledger of the given parameter, newest first.
	History(ctx context.Context, slug string) ([]HistoryEntry, error)
}

// Filter narrows Store.Fetch. Nil fields do not constrain the result.
type Filter struct {
	IsGlobal     *bool
	EnableCypher *bool
	ValueType    ValueType
}

// Bool returns a pointer to b, for building filters.
func Bool(b bool) *bool {
	return &b
}
