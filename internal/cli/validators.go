package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/params/internal/exchange"
	"github.com/mesh-intelligence/params/internal/validators"
	"github.com/mesh-intelligence/params/pkg/types"
)

func newValidatorsCmd() *cobra.Command {
	var set string
	cmd := &cobra.Command{
		Use:   "validators [slug]",
		Short: "List validator names, or show and replace a parameter's validators",
		Long: "Without arguments, list every validator name that resolves: built-ins,\n" +
			"registered custom validators and configured aliases.\n\n" +
			"With a slug, print the parameter's validators. --set replaces the whole\n" +
			"set with a JSON array of {validator_type, validator_params}; '[]' clears it.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && cmd.Flags().Changed("set") {
				return userError("--set requires a slug")
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				out := cmd.OutOrStdout()
				if len(args) == 0 {
					names, err := a.registry.Names()
					if err != nil {
						return err
					}
					if flags.jsonMode {
						return printJSON(out, names)
					}
					for _, n := range names {
						kind := "custom"
						if validators.IsBuiltin(n) {
							kind = "builtin"
						}
						fmt.Fprintf(out, "%s\t%s\n", n, kind)
					}
					return nil
				}

				slug := args[0]
				if cmd.Flags().Changed("set") {
					list, err := parseValidators(set)
					if err != nil {
						return err
					}
					if err := a.engine.SetValidators(ctx, slug, list); err != nil {
						return err
					}
					fmt.Fprintf(out, "Set %d validators on %s\n", len(list), slug)
					return nil
				}

				p, err := a.engine.Get(ctx, slug)
				if err != nil {
					return err
				}
				return printJSON(out, exchange.ToRecord(p, "").Validators)
			})
		},
	}
	cmd.Flags().StringVar(&set, "set", "", "replace the validator set with this JSON array")
	return cmd
}

// parseValidators decodes a JSON array of validator records. Entries
// without a type are dropped.
func parseValidators(s string) ([]types.Validator, error) {
	var recs []exchange.ValidatorRecord
	if err := json.Unmarshal([]byte(s), &recs); err != nil {
		return nil, userError("%w: validators must be a JSON array: %v", types.ErrInvalidValidatorParams, err)
	}
	list := make([]types.Validator, 0, len(recs))
	for _, r := range recs {
		if r.ValidatorType == "" {
			continue
		}
		list = append(list, types.Validator{Type: r.ValidatorType, Params: r.ValidatorParams})
	}
	return list, nil
}
