package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/zoobzio/capitan"

	"github.com/mesh-intelligence/params/internal/cryptobox"
	"github.com/mesh-intelligence/params/internal/engine"
	"github.com/mesh-intelligence/params/internal/logging"
	"github.com/mesh-intelligence/params/internal/metrics"
	"github.com/mesh-intelligence/params/internal/paths"
	"github.com/mesh-intelligence/params/internal/rotation"
	"github.com/mesh-intelligence/params/internal/sqlite"
	"github.com/mesh-intelligence/params/internal/validators"
	"github.com/mesh-intelligence/params/internal/validators/contrib"
	"github.com/mesh-intelligence/params/pkg/types"
)

// app holds everything a command needs, wired from configuration.
type app struct {
	cfg      *settings
	logger   *slog.Logger
	metrics  *metrics.Metrics
	backend  *sqlite.Backend
	keys     *cryptobox.KeyRing
	registry *validators.Registry
	engine   *engine.Engine
	signals  *capitan.Capitan
}

// resolveConfigDir returns the config directory from flag, env, or default.
func resolveConfigDir() (string, error) {
	return paths.ResolveConfigDir(flags.configDir)
}

// openApp loads configuration, attaches the store, and builds the engine.
// The caller must call close.
func openApp(cmd *cobra.Command) (*app, error) {
	configDir, err := resolveConfigDir()
	if err != nil {
		return nil, sysError("resolve config dir: %w", err)
	}
	cfg, err := loadConfig(configDir)
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, cmd.ErrOrStderr())
	if err != nil {
		return nil, userError("config: %w", err)
	}

	box, err := cryptobox.NewBox(cryptobox.Algorithm(cfg.EncryptionAlgorithm))
	if err != nil {
		return nil, userError("config: %w", err)
	}

	registry := validators.NewRegistry(func() (map[string]string, error) {
		return cfg.CustomValidators, nil
	})
	if err := contrib.Register(registry); err != nil {
		return nil, sysError("register validators: %w", err)
	}

	dataDir, err := paths.ResolveDataDir(flags.dataDir, cfg.DataDir)
	if err != nil {
		return nil, sysError("resolve data dir: %w", err)
	}
	backend := sqlite.NewBackend()
	if err := backend.Attach(types.Config{Backend: cfg.Backend, DataDir: dataDir}); err != nil {
		return nil, fmt.Errorf("attach store: %w", err)
	}
	logger.Debug("store attached", "data_dir", dataDir)

	signals := capitan.New()
	rotation.LogSignals(signals, logger)

	m := metrics.New()
	keys := cryptobox.NewKeyRing(keySource(cfg), box)
	eng := engine.New(backend, keys, validators.NewPipeline(registry),
		engine.WithLogger(logger), engine.WithMetrics(m))

	return &app{
		cfg:      cfg,
		logger:   logger,
		metrics:  m,
		backend:  backend,
		keys:     keys,
		registry: registry,
		engine:   eng,
		signals:  signals,
	}, nil
}

// keySource selects where the encryption key comes from.
func keySource(cfg *settings) cryptobox.KeySource {
	if cfg.KeySource == keySourceKeyring {
		return cryptobox.KeychainSource{Service: cfg.KeyringService, Account: cfg.KeyringAccount}
	}
	return cryptobox.StaticKey(cfg.EncryptionKey)
}

// close delivers pending signals, writes the metrics textfile, if
// configured, and detaches the store.
func (a *app) close() {
	a.signals.Shutdown()
	if err := a.metrics.WriteTextfile(a.cfg.MetricsTextfile); err != nil {
		a.logger.Warn("metrics textfile not written", "path", a.cfg.MetricsTextfile, "error", err)
	}
	a.keys.Reset()
	if err := a.backend.Detach(); err != nil {
		a.logger.Warn("detach store", "error", err)
	}
}

// withApp runs fn with an opened app and closes it afterwards.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()
	return fn(cmd.Context(), a)
}
