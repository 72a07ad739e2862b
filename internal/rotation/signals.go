package rotation

import (
	"context"
	"log/slog"
	"time"

	"github.com/zoobzio/capitan"
)

// Signals emitted during key rotation.
var (
	SignalPrepared = capitan.NewSignal("rotation.prepared", "Old key backed up and new key generated")
	SignalApplied  = capitan.NewSignal("rotation.applied", "Encrypted parameters re-sealed under the new key")
	SignalFailed   = capitan.NewSignal("rotation.failed", "Rotation phase aborted")
)

// Field keys for rotation signals.
var (
	KeyPhase      = capitan.NewStringKey("phase")
	KeyLedger     = capitan.NewStringKey("ledger")
	KeySlug       = capitan.NewStringKey("slug")
	KeyParameters = capitan.NewIntKey("parameters")
	KeyDuration   = capitan.NewDurationKey("duration")
	KeyError      = capitan.NewErrorKey("error")
)

// Signals lists every rotation signal.
func Signals() []capitan.Signal {
	return []capitan.Signal{SignalPrepared, SignalApplied, SignalFailed}
}

func (r *Rotator) emitPrepared(ctx context.Context, ledger string, count int) {
	r.signals.Emit(ctx, SignalPrepared,
		KeyLedger.Field(ledger),
		KeyParameters.Field(count),
	)
}

func (r *Rotator) emitApplied(ctx context.Context, count int, duration time.Duration) {
	r.signals.Emit(ctx, SignalApplied,
		KeyParameters.Field(count),
		KeyDuration.Field(duration),
	)
}

func (r *Rotator) emitFailed(ctx context.Context, phase, slug string, err error) {
	fields := []capitan.Field{
		KeyPhase.Field(phase),
		KeyError.Field(err),
	}
	if slug != "" {
		fields = append(fields, KeySlug.Field(slug))
	}
	r.signals.Error(ctx, SignalFailed, fields...)
}

// LogSignals forwards rotation signals emitted on c to logger as audit
// records. Close the returned observer to stop forwarding.
func LogSignals(c *capitan.Capitan, logger *slog.Logger) *capitan.Observer {
	return c.Observe(func(ctx context.Context, e *capitan.Event) {
		attrs := []slog.Attr{slog.String("signal", e.Signal().Name())}
		for _, f := range e.Fields() {
			attrs = append(attrs, slog.Any(f.Key().Name(), f.Value()))
		}
		level := slog.LevelInfo
		if e.Severity() == capitan.SeverityError {
			level = slog.LevelError
		}
		logger.LogAttrs(ctx, level, e.Signal().Description(), attrs...)
	}, Signals()...)
}
