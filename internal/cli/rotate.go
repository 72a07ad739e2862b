package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/params/internal/cryptobox"
	"github.com/mesh-intelligence/params/internal/paths"
	"github.com/mesh-intelligence/params/internal/rotation"
)

func newRotateKeyCmd() *cobra.Command {
	var (
		oldKey     string
		backupFile string
		activate   bool
	)
	cmd := &cobra.Command{
		Use:   "rotate-key",
		Short: "Rotate the encryption key in two steps",
		Long: "Step 1, without --old-key: back up the active key to the ledger and\n" +
			"print a new key. Make the new key active (edit encryption_key, or pass\n" +
			"--activate to write it to the configured key source), then run step 2.\n\n" +
			"Step 2, with --old-key: re-encrypt every encrypted parameter from the\n" +
			"old key to the active key. All values are decrypted before any is\n" +
			"written, so a wrong old key changes nothing.\n\n" +
			"Do not run other writers while step 2 runs.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if activate && oldKey != "" {
				return userError("--activate applies to step 1 only")
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				ledger, err := paths.ResolveFile(backupFile, a.cfg.BackupFile, a.cfg.configDir, rotation.DefaultLedgerFile)
				if err != nil {
					return sysError("resolve backup file: %w", err)
				}
				r := rotation.NewRotator(a.backend, a.keys,
					rotation.WithLedger(ledger),
					rotation.WithLogger(a.logger),
					rotation.WithMetrics(a.metrics),
					rotation.WithSignals(a.signals),
				)
				out := cmd.OutOrStdout()

				if oldKey != "" {
					n, err := r.Apply(ctx, oldKey)
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "Re-encrypted %d parameters with the active key\n", n)
					return nil
				}

				prep, err := r.Prepare(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Backed up the active key to %s (%d encrypted parameters)\n", prep.Ledger, prep.ParametersCount)
				if activate {
					if err := activateKey(a, prep.NewKey); err != nil {
						return err
					}
					fmt.Fprintf(out, "New key written to the %s key source\n", a.cfg.KeySource)
				} else {
					fmt.Fprintf(out, "New key: %s\n", prep.NewKey)
				}
				fmt.Fprintln(out, "Next: run 'params rotate-key --old-key <previous key>' once the new key is active")
				return nil
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&oldKey, "old-key", "", "previous key; runs step 2")
	f.StringVar(&backupFile, "backup-file", "", "key backup ledger (default: encryption_key_backup_file or params_backup_key.json in the config dir)")
	f.BoolVar(&activate, "activate", false, "write the new key to the configured key source")
	return cmd
}

// activateKey makes key the active key in the configured source.
func activateKey(a *app, key string) error {
	if a.cfg.KeySource == keySourceKeyring {
		src := cryptobox.KeychainSource{Service: a.cfg.KeyringService, Account: a.cfg.KeyringAccount}
		if err := src.Store(key); err != nil {
			return sysError("%w", err)
		}
		return nil
	}
	if err := setConfigValue(a.cfg.configDir, cfgKeyEncryptionKey, key); err != nil {
		return sysError("write config: %w", err)
	}
	return nil
}
