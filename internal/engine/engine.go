// Package engine is the read and write path for parameters. It ties the
// value codec, the validator pipeline and the key ring to a Store.
//
// A write checks the Go type of the new value against the declared type,
// runs the parameter's validators, encodes the value to text, enforces the
// length limit, seals the text when the parameter is encrypted and stores it
// together with a history entry when one is due. A read reverses the last
// steps. A failed write leaves the stored parameter untouched.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/mesh-intelligence/params/internal/cryptobox"
	"github.com/mesh-intelligence/params/internal/logging"
	"github.com/mesh-intelligence/params/internal/metrics"
	"github.com/mesh-intelligence/params/internal/validators"
	"github.com/mesh-intelligence/params/internal/values"
	"github.com/mesh-intelligence/params/pkg/types"
)

// Engine reads and writes parameters. It is safe for concurrent use; writes
// are serialized so each read-modify-write of a record is atomic.
type Engine struct {
	mu       sync.Mutex
	store    types.Store
	keys     *cryptobox.KeyRing
	pipeline *validators.Pipeline
	logger   *slog.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithMetrics sets the metrics sink. The default records nothing.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithClock replaces time.Now for timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// New creates an engine over store. keys may be nil when no parameter is
// encrypted; encrypted reads and writes then fail with types.ErrMissingKey.
func New(store types.Store, keys *cryptobox.KeyRing, pipeline *validators.Pipeline, opts ...Option) *Engine {
	e := &Engine{
		store:    store,
		keys:     keys,
		pipeline: pipeline,
		logger:   logging.Discard(),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Store returns the store the engine writes to.
func (e *Engine) Store() types.Store {
	return e.store
}

// Pipeline returns the validator pipeline.
func (e *Engine) Pipeline() *validators.Pipeline {
	return e.pipeline
}

// Get returns the stored parameter. Its Value is ciphertext when the
// parameter is encrypted; use Plaintext or Text to read it.
func (e *Engine) Get(ctx context.Context, slug string) (*types.Parameter, error) {
	return e.store.Get(ctx, slug)
}

// Create adds a new parameter from spec. The slug is spec.Slug when set and
// derived from spec.Name otherwise; an empty ValueType means STR.
// Returns ErrDuplicateSlug if the slug is taken.
func (e *Engine) Create(ctx context.Context, spec types.ParameterSpec) (*types.Parameter, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, err := e.create(ctx, spec)
	e.metrics.RecordWrite("create", err)
	return p, err
}

func (e *Engine) create(ctx context.Context, spec types.ParameterSpec) (*types.Parameter, error) {
	name := strings.TrimSpace(spec.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", types.ErrInvalidName)
	}
	vt := spec.ValueType
	if vt == "" {
		vt = types.ValueTypeString
	}
	if !vt.IsValid() {
		return nil, fmt.Errorf("%w: %q", types.ErrInvalidValueType, vt)
	}
	slug := spec.ResolvedSlug()
	if slug == "" {
		return nil, fmt.Errorf("%w: %q yields an empty slug", types.ErrInvalidName, spec.Name)
	}

	_, err := e.store.Get(ctx, slug)
	if err == nil {
		return nil, fmt.Errorf("%s: %w", slug, types.ErrDuplicateSlug)
	}
	if !errors.Is(err, types.ErrNotFound) {
		return nil, err
	}

	if err := e.pipeline.Check(spec.Validators); err != nil {
		return nil, err
	}

	now := e.now()
	p := &types.Parameter{
		Name:          name,
		Slug:          slug,
		ValueType:     vt,
		Description:   spec.Description,
		IsGlobal:      spec.IsGlobal,
		EnableCypher:  spec.EnableCypher,
		EnableHistory: spec.EnableHistory,
		Validators:    cloneValidators(spec.Validators),
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	native, err := values.Decode(vt, spec.Value)
	if err != nil {
		return nil, types.WithSlug(err, slug)
	}
	if err := e.commit(ctx, nil, p, native); err != nil {
		return nil, err
	}

	e.logger.Info("parameter created", "slug", slug, "type", string(vt), "cypher", p.EnableCypher)
	return p, nil
}

// Outcome reports what Apply did with a spec.
type Outcome string

// Apply outcomes.
const (
	OutcomeCreated Outcome = "created"
	OutcomeUpdated Outcome = "updated"
	OutcomeSkipped Outcome = "skipped"
)

// Apply brings the store in line with spec: a new slug is created, an
// existing one is overwritten when overwrite is set and skipped otherwise.
// An update keeps the slug and its creation time; a spec whose ValueType
// differs from the stored one fails with *types.TypeMismatchError, and an
// empty ValueType keeps the stored one.
func (e *Engine) Apply(ctx context.Context, spec types.ParameterSpec, overwrite bool) (Outcome, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	slug := spec.ResolvedSlug()
	cur, err := e.store.Get(ctx, slug)
	if errors.Is(err, types.ErrNotFound) {
		_, err = e.create(ctx, spec)
		e.metrics.RecordWrite("create", err)
		if err != nil {
			return "", err
		}
		return OutcomeCreated, nil
	}
	if err != nil {
		return "", err
	}
	if !overwrite {
		return OutcomeSkipped, nil
	}

	err = e.replace(ctx, cur, spec)
	e.metrics.RecordWrite("update", err)
	if err != nil {
		return "", err
	}
	return OutcomeUpdated, nil
}

func (e *Engine) replace(ctx context.Context, cur *types.Parameter, spec types.ParameterSpec) error {
	if spec.ValueType != "" && spec.ValueType != cur.ValueType {
		return &types.TypeMismatchError{Slug: cur.Slug, Expected: cur.ValueType, Got: string(spec.ValueType)}
	}
	name := strings.TrimSpace(spec.Name)
	if name == "" {
		return fmt.Errorf("%w: name is required", types.ErrInvalidName)
	}
	if err := e.pipeline.Check(spec.Validators); err != nil {
		return err
	}

	next := cur.Clone()
	next.Name = name
	next.Description = spec.Description
	next.IsGlobal = spec.IsGlobal
	next.EnableCypher = spec.EnableCypher
	next.EnableHistory = spec.EnableHistory
	next.Validators = cloneValidators(spec.Validators)

	native, err := values.Decode(cur.ValueType, spec.Value)
	if err != nil {
		return types.WithSlug(err, cur.Slug)
	}
	if err := e.commit(ctx, cur, next, native); err != nil {
		return err
	}
	e.logger.Info("parameter replaced", "slug", cur.Slug)
	return nil
}

// commit runs the write path for next with the new native value and stores
// it. cur is the stored state, nil on create. A history entry is written
// when next keeps history and the plaintext changed.
func (e *Engine) commit(ctx context.Context, cur, next *types.Parameter, native any) error {
	plain, err := values.Encode(next.ValueType, native)
	if err != nil {
		return types.WithSlug(err, next.Slug)
	}
	if err := e.pipeline.Run(native, next.Validators); err != nil {
		var ve *types.ValidationError
		if errors.As(err, &ve) {
			e.metrics.RecordValidationFailure(ve.Validator)
		}
		return types.WithSlug(err, next.Slug)
	}
	if err := checkLength(next, plain); err != nil {
		return err
	}

	var entry *types.HistoryEntry
	if cur != nil && next.EnableHistory {
		prev, err := e.Plaintext(cur)
		if err != nil {
			return err
		}
		if prev != plain {
			entry = &types.HistoryEntry{Slug: next.Slug, PreviousValue: prev, Timestamp: e.now()}
		}
	}

	stored, err := e.seal(next, plain)
	if err != nil {
		return err
	}
	next.Value = stored
	next.UpdatedAt = e.now()

	if err := e.store.Set(ctx, next, entry); err != nil {
		return fmt.Errorf("storing %s: %w", next.Slug, err)
	}
	e.logger.Debug("parameter written", "slug", next.Slug, "value", loggable(next, plain), "history", entry != nil)
	return nil
}

// seal returns the stored form of plain for p.
func (e *Engine) seal(p *types.Parameter, plain string) (string, error) {
	if !p.EnableCypher {
		return plain, nil
	}
	if e.keys == nil {
		return "", fmt.Errorf("parameter %s: %w", p.Slug, types.ErrMissingKey)
	}
	token, err := e.keys.Seal(plain)
	if err != nil {
		return "", fmt.Errorf("parameter %s: %w", p.Slug, err)
	}
	return token, nil
}

// Plaintext returns the stored text of p, opening it when p is encrypted.
func (e *Engine) Plaintext(p *types.Parameter) (string, error) {
	if !p.EnableCypher {
		return p.Value, nil
	}
	if e.keys == nil {
		return "", fmt.Errorf("parameter %s: %w", p.Slug, types.ErrMissingKey)
	}
	plain, err := e.keys.Open(p.Value)
	if err != nil {
		if errors.Is(err, types.ErrDecryption) {
			e.metrics.RecordDecryptFailure()
		}
		return "", fmt.Errorf("parameter %s: %w", p.Slug, err)
	}
	return plain, nil
}

func checkLength(p *types.Parameter, plain string) error {
	n := utf8.RuneCountInString(plain)
	if limit := p.MaxLength(); n > limit {
		return fmt.Errorf("parameter %s: %d characters exceeds %d: %w", p.Slug, n, limit, types.ErrValueTooLong)
	}
	return nil
}

func loggable(p *types.Parameter, plain string) any {
	if p.EnableCypher {
		return logging.Secret(plain)
	}
	return plain
}

func cloneValidators(list []types.Validator) []types.Validator {
	if len(list) == 0 {
		return nil
	}
	out := make([]types.Validator, len(list))
	for i, v := range list {
		out[i] = v.Clone()
	}
	return out
}
