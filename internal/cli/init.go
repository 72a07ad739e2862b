package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/params/internal/cryptobox"
	"github.com/mesh-intelligence/params/pkg/types"
)

func newInitCmd() *cobra.Command {
	var generateKey bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize configuration and storage",
		Long: "Create the configuration and data directories, write a default\n" +
			"config.yaml if missing, and initialize the storage backend.\n" +
			"With --generate-key, also create an encryption key when none is set.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			out := cmd.OutOrStdout()
			if generateKey {
				created, err := ensureKey(a)
				if err != nil {
					return err
				}
				if created {
					fmt.Fprintf(out, "Encryption key generated (%s)\n", a.cfg.KeySource)
				} else {
					fmt.Fprintln(out, "Encryption key already configured")
				}
			}
			fmt.Fprintf(out, "Initialized params in %s\n", a.backend.DataDir())
			return nil
		},
	}
	cmd.Flags().BoolVar(&generateKey, "generate-key", false, "generate an encryption key if none is configured")
	return cmd
}

// ensureKey stores a fresh key in the configured key source when no key is
// active. Reports whether a key was created.
func ensureKey(a *app) (bool, error) {
	_, err := a.keys.KeyText()
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, types.ErrMissingKey) {
		return false, err
	}

	key, err := cryptobox.GenerateKey()
	if err != nil {
		return false, sysError("generate key: %w", err)
	}
	if err := activateKey(a, key); err != nil {
		return false, err
	}
	return true, nil
}
