// Package rotation replaces the encryption key of a store in two phases.
//
// Prepare backs up the active key to an append-only ledger and hands out a
// fresh key; nothing in the store changes. The operator then makes the new
// key active in configuration and runs Apply with the old key, which
// re-seals every encrypted parameter under the new key in one transaction.
// Apply decrypts every record before writing any, so a wrong old key leaves
// the store untouched.
//
// Apply must not run concurrently with other writers.
package rotation

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/zoobzio/capitan"

	"github.com/mesh-intelligence/params/internal/cryptobox"
	"github.com/mesh-intelligence/params/internal/logging"
	"github.com/mesh-intelligence/params/internal/metrics"
	"github.com/mesh-intelligence/params/pkg/types"
)

// ErrSameKey is returned by Apply when the old key is the active key.
var ErrSameKey = errors.New("old key is the active key; activate the new key before applying")

// RotationError reports the parameter whose value did not open under the old
// key. Nothing was written.
type RotationError struct {
	Slug string
	Err  error
}

func (e *RotationError) Error() string {
	return fmt.Sprintf("rotation aborted at parameter %s: %v", e.Slug, e.Err)
}

func (e *RotationError) Unwrap() error {
	return e.Err
}

// Rotator runs key rotation against a store.
type Rotator struct {
	store   types.Store
	keys    *cryptobox.KeyRing
	ledger  string
	logger  *slog.Logger
	metrics *metrics.Metrics
	signals *capitan.Capitan
	now     func() time.Time
}

// Option configures a Rotator.
type Option func(*Rotator)

// WithLedger sets the backup ledger path. The default is DefaultLedgerFile
// in the working directory.
func WithLedger(path string) Option {
	return func(r *Rotator) {
		if path != "" {
			r.ledger = path
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Rotator) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Rotator) { r.metrics = m }
}

// WithSignals sets the capitan instance rotation signals are emitted on.
// The default is capitan.Default().
func WithSignals(c *capitan.Capitan) Option {
	return func(r *Rotator) {
		if c != nil {
			r.signals = c
		}
	}
}

// WithClock replaces time.Now for ledger timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Rotator) {
		if now != nil {
			r.now = now
		}
	}
}

// NewRotator creates a rotator over store. keys supplies the active key.
func NewRotator(store types.Store, keys *cryptobox.KeyRing, opts ...Option) *Rotator {
	r := &Rotator{
		store:   store,
		keys:    keys,
		ledger:  DefaultLedgerFile,
		logger:  logging.Discard(),
		signals: capitan.Default(),
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Ledger returns the backup ledger path.
func (r *Rotator) Ledger() string {
	return r.ledger
}

// Preparation is the result of Prepare.
type Preparation struct {
	NewKey          string // Text form of the generated key.
	ParametersCount int    // Encrypted parameters at the time of backup.
	Ledger          string // Ledger the old key was appended to.
}

// Prepare backs up the active key with the count of encrypted parameters
// and returns a newly generated key. The store is not modified.
// Returns types.ErrMissingKey if no key is active.
func (r *Rotator) Prepare(ctx context.Context) (*Preparation, error) {
	prep, err := r.prepare(ctx)
	r.metrics.RecordRotation("prepare", err, 0, 0)
	if err != nil {
		r.emitFailed(ctx, "prepare", "", err)
		return nil, err
	}
	r.emitPrepared(ctx, prep.Ledger, prep.ParametersCount)
	r.logger.Info("rotation prepared", "ledger", prep.Ledger, "parameters", prep.ParametersCount)
	return prep, nil
}

func (r *Rotator) prepare(ctx context.Context) (*Preparation, error) {
	if r.keys == nil {
		return nil, types.ErrMissingKey
	}
	active, err := r.keys.KeyText()
	if err != nil {
		return nil, err
	}
	params, err := r.store.Fetch(ctx, types.Filter{EnableCypher: types.Bool(true)})
	if err != nil {
		return nil, fmt.Errorf("counting encrypted parameters: %w", err)
	}

	entry := LedgerEntry{
		Timestamp:       r.now().Format(time.RFC3339),
		Key:             active,
		ParametersCount: len(params),
	}
	if err := AppendLedger(r.ledger, entry); err != nil {
		return nil, err
	}

	newKey, err := cryptobox.GenerateKey()
	if err != nil {
		return nil, err
	}
	return &Preparation{NewKey: newKey, ParametersCount: len(params), Ledger: r.ledger}, nil
}

// Apply re-seals every encrypted parameter, opening it with oldKey and
// sealing it with the active key, which is re-read from its source first.
// All values are opened before any is written; the writes land in a single
// transaction. Returns the number of parameters re-sealed.
//
// Returns ErrSameKey when oldKey is the active key, cryptobox.ErrInvalidKey
// when oldKey is malformed, and a *RotationError wrapping
// types.ErrDecryption when a value does not open under oldKey.
func (r *Rotator) Apply(ctx context.Context, oldKey string) (int, error) {
	start := r.now()
	n, slug, err := r.apply(ctx, oldKey)
	elapsed := r.now().Sub(start)
	r.metrics.RecordRotation("apply", err, n, elapsed.Seconds())
	if err != nil {
		r.emitFailed(ctx, "apply", slug, err)
		r.logger.Error("rotation failed", "slug", slug, "error", err)
		return 0, err
	}
	r.emitApplied(ctx, n, elapsed)
	r.logger.Info("rotation applied", "parameters", n)
	return n, nil
}

func (r *Rotator) apply(ctx context.Context, oldKey string) (int, string, error) {
	if r.keys == nil {
		return 0, "", types.ErrMissingKey
	}
	if err := r.keys.Refresh(); err != nil {
		return 0, "", err
	}
	oldBytes, err := cryptobox.ParseKey(oldKey)
	if err != nil {
		return 0, "", err
	}
	active, err := r.keys.KeyText()
	if err != nil {
		return 0, "", err
	}
	activeBytes, err := cryptobox.ParseKey(active)
	if err != nil {
		return 0, "", err
	}
	if bytes.Equal(oldBytes, activeBytes) {
		return 0, "", ErrSameKey
	}

	params, err := r.store.Fetch(ctx, types.Filter{EnableCypher: types.Bool(true)})
	if err != nil {
		return 0, "", fmt.Errorf("loading encrypted parameters: %w", err)
	}
	if len(params) == 0 {
		return 0, "", nil
	}

	box := r.keys.Box()
	plain := make([]string, len(params))
	for i, p := range params {
		text, err := box.Open(p.Value, oldBytes)
		if err != nil {
			return 0, p.Slug, &RotationError{Slug: p.Slug, Err: err}
		}
		plain[i] = text
	}

	now := r.now()
	for i, p := range params {
		token, err := r.keys.Seal(plain[i])
		if err != nil {
			return 0, p.Slug, fmt.Errorf("sealing %s: %w", p.Slug, err)
		}
		p.Value = token
		p.UpdatedAt = now
	}

	if err := r.store.SetAll(ctx, params); err != nil {
		return 0, "", fmt.Errorf("storing re-sealed parameters: %w", err)
	}
	return len(params), "", nil
}
