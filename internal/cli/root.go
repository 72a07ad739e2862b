// Package cli implements the params command-line interface.
package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/params/internal/cryptobox"
	"github.com/mesh-intelligence/params/internal/exchange"
	"github.com/mesh-intelligence/params/internal/rotation"
	"github.com/mesh-intelligence/params/pkg/types"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// rootFlags holds global flag values accessible to all subcommands.
type rootFlags struct {
	configDir string
	dataDir   string
	jsonMode  bool
}

var flags rootFlags

// ExitError carries the process exit code for a failed command.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewRootCmd creates the top-level "params" command with global flags
// and all subcommands registered.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "params",
		Short: "Typed, validated configuration parameters",
		Long: "params keeps named, typed configuration values with validators,\n" +
			"optional encryption at rest, change history, bulk import/export\n" +
			"and key rotation.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&flags.configDir, "config-dir", "", "configuration directory (default: platform config dir)")
	root.PersistentFlags().StringVar(&flags.dataDir, "data-dir", "", "data directory (default: platform data dir)")
	root.PersistentFlags().BoolVar(&flags.jsonMode, "json", false, "output in JSON format")

	root.AddCommand(
		newVersionCmd(),
		newInitCmd(),
		newCreateCmd(),
		newGetCmd(),
		newSetCmd(),
		newUpdateCmd(),
		newListCmd(),
		newDeleteCmd(),
		newHistoryCmd(),
		newGlobalsCmd(),
		newValidatorsCmd(),
		newDumpCmd(),
		newLoadCmd(),
		newRotateKeyCmd(),
	)
	return root
}

// Execute runs the root command and exits with the appropriate code.
func Execute() {
	root := NewRootCmd()
	err := root.Execute()
	if err == nil {
		os.Exit(exitSuccess)
	}
	fmt.Fprintln(os.Stderr, "params:", err)
	os.Exit(exitCode(err))
}

// exitCode maps an error to the process exit code.
func exitCode(err error) int {
	var ee *ExitError
	if errors.As(err, &ee) {
		return ee.Code
	}
	if isUserError(err) {
		return exitUserError
	}
	return exitSysError
}

// userErrors are caused by input or configuration the operator can fix.
var userErrors = []error{
	types.ErrNotFound,
	types.ErrDuplicateSlug,
	types.ErrInvalidName,
	types.ErrInvalidValueType,
	types.ErrValueTooLong,
	types.ErrInvalidValidatorParams,
	types.ErrConversion,
	types.ErrRange,
	types.ErrTypeMismatch,
	types.ErrUnknownValidator,
	types.ErrValidation,
	types.ErrMissingKey,
	types.ErrDecryption,
	types.ErrBackendEmpty,
	types.ErrBackendUnknown,
	cryptobox.ErrInvalidKey,
	cryptobox.ErrUnknownAlgorithm,
	exchange.ErrNotArray,
	rotation.ErrSameKey,
}

func isUserError(err error) bool {
	for _, target := range userErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// userError wraps err so the command exits with exitUserError.
func userError(format string, args ...any) error {
	return &ExitError{Code: exitUserError, Err: fmt.Errorf(format, args...)}
}

// sysError wraps err so the command exits with exitSysError.
func sysError(format string, args ...any) error {
	return &ExitError{Code: exitSysError, Err: fmt.Errorf(format, args...)}
}
