// Package exchange moves parameters in and out of a store as a JSON array
// of plaintext records.
//
// Import checks each record against a JSON Schema, then creates, updates,
// or skips it through the engine. A record that fails is reported and the
// rest proceed. Export writes every parameter with its validators and its
// opened value; history is never exported.
package exchange

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/mesh-intelligence/params/internal/engine"
	"github.com/mesh-intelligence/params/internal/logging"
	"github.com/mesh-intelligence/params/internal/metrics"
	"github.com/mesh-intelligence/params/pkg/types"
)

// Exchange errors.
var (
	// ErrNotArray is returned by Import when the document is not a JSON array.
	ErrNotArray = errors.New("bulk document must be a JSON array")

	// ErrInvalidRecord marks a record rejected by the schema or the decoder.
	ErrInvalidRecord = errors.New("invalid record")
)

// ResultFailed is the Outcome of a record that was not applied.
const ResultFailed engine.Outcome = "failed"

// Engine is the part of *engine.Engine the exchange uses.
type Engine interface {
	Apply(ctx context.Context, spec types.ParameterSpec, overwrite bool) (engine.Outcome, error)
	Parameters(ctx context.Context, filter types.Filter) ([]*types.Parameter, error)
	Plaintext(p *types.Parameter) (string, error)
}

// Options configures Import.
type Options struct {
	// NoOverwrite leaves existing parameters untouched.
	NoOverwrite bool
}

// Result is the outcome of one input record.
type Result struct {
	Index   int // Position in the input array.
	Slug    string
	Outcome engine.Outcome
	Err     error
}

// Report collects the results of an Import in input order.
type Report struct {
	Results []Result
}

// Count returns how many results have the given outcome.
func (r *Report) Count(outcome engine.Outcome) int {
	n := 0
	for _, res := range r.Results {
		if res.Outcome == outcome {
			n++
		}
	}
	return n
}

// Failed returns the results that were not applied.
func (r *Report) Failed() []Result {
	var out []Result
	for _, res := range r.Results {
		if res.Outcome == ResultFailed {
			out = append(out, res)
		}
	}
	return out
}

// Exchanger imports and exports parameters through an engine.
type Exchanger struct {
	engine  Engine
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures an Exchanger.
type Option func(*Exchanger)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(x *Exchanger) {
		if l != nil {
			x.logger = l
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(x *Exchanger) { x.metrics = m }
}

// New creates an Exchanger over e.
func New(e Engine, opts ...Option) *Exchanger {
	x := &Exchanger{engine: e, logger: logging.Discard()}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

// Import applies every record in data, a JSON array of records. Records
// are processed in order and independently; the report carries one result
// per record. The returned error is set only when data is not an array.
func (x *Exchanger) Import(ctx context.Context, data []byte, opts Options) (*Report, error) {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotArray, err)
	}
	if raws == nil {
		return nil, ErrNotArray
	}

	report := &Report{Results: make([]Result, 0, len(raws))}
	for i, raw := range raws {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		res := x.importOne(ctx, i, raw, !opts.NoOverwrite)
		x.metrics.RecordImport(string(res.Outcome))
		if res.Err != nil {
			x.logger.Warn("import record failed", "index", i, "slug", res.Slug, "error", res.Err)
		} else {
			x.logger.Debug("import record applied", "index", i, "slug", res.Slug, "outcome", string(res.Outcome))
		}
		report.Results = append(report.Results, res)
	}
	x.logger.Info("import finished",
		"created", report.Count(engine.OutcomeCreated),
		"updated", report.Count(engine.OutcomeUpdated),
		"skipped", report.Count(engine.OutcomeSkipped),
		"failed", report.Count(ResultFailed),
	)
	return report, nil
}

func (x *Exchanger) importOne(ctx context.Context, i int, raw []byte, overwrite bool) Result {
	res := Result{Index: i, Outcome: ResultFailed}
	rec, err := decodeRecord(raw)
	if err != nil {
		res.Err = err
		return res
	}
	spec, err := FromRecord(rec)
	if err != nil {
		res.Err = err
		return res
	}
	res.Slug = spec.ResolvedSlug()

	outcome, err := x.engine.Apply(ctx, spec, overwrite)
	if err != nil {
		res.Err = err
		return res
	}
	res.Outcome = outcome
	return res
}

// Export returns every parameter as a record, ordered by slug, with values
// opened.
func (x *Exchanger) Export(ctx context.Context) ([]Record, error) {
	params, err := x.engine.Parameters(ctx, types.Filter{})
	if err != nil {
		return nil, err
	}
	records := make([]Record, 0, len(params))
	for _, p := range params {
		plain, err := x.engine.Plaintext(p)
		if err != nil {
			return nil, types.WithSlug(err, p.Slug)
		}
		records = append(records, ToRecord(p, plain))
	}
	x.logger.Info("export finished", "parameters", len(records))
	return records, nil
}

// WriteJSON writes records as a JSON array indented by indent spaces. An
// indent of zero or less writes a single line.
func WriteJSON(w io.Writer, records []Record, indent int) error {
	if records == nil {
		records = []Record{}
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if indent > 0 {
		enc.SetIndent("", strings.Repeat(" ", indent))
	}
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("encoding records: %w", err)
	}
	return nil
}

// WriteFile writes records to path with WriteJSON, creating parent
// directories. The file holds plaintext values and is readable by the
// owner only.
func WriteFile(path string, records []Record, indent int) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	if err := WriteJSON(f, records, indent); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", path, err)
	}
	return nil
}
