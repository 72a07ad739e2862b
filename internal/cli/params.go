package cli

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/params/internal/engine"
	"github.com/mesh-intelligence/params/pkg/types"
)

func newCreateCmd() *cobra.Command {
	var (
		spec       types.ParameterSpec
		valueType  string
		validators string
	)
	cmd := &cobra.Command{
		Use:   "create <name> [value]",
		Short: "Create a parameter",
		Long: "Create a parameter. The slug is derived from the name unless --slug\n" +
			"is given. The value is text in the storage format of --type.\n\n" +
			"Example:\n" +
			"  params create \"Max Retries\" 3 --type INT\n" +
			"  params create \"Api Token\" s3cret --cypher",
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			spec.Name = args[0]
			if len(args) == 2 {
				spec.Value = args[1]
			}
			vt, err := types.ParseValueType(valueType)
			if err != nil {
				return userError("%w: %q", err, valueType)
			}
			spec.ValueType = vt
			if validators != "" {
				list, err := parseValidators(validators)
				if err != nil {
					return err
				}
				spec.Validators = list
			}

			return withApp(cmd, func(ctx context.Context, a *app) error {
				p, err := a.engine.Create(ctx, spec)
				if err != nil {
					return err
				}
				if flags.jsonMode {
					return printJSON(cmd.OutOrStdout(), newParamView(p))
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created %s (%s)\n", p.Slug, p.ValueType)
				return nil
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&spec.Slug, "slug", "", "explicit slug (default: derived from name)")
	f.StringVarP(&valueType, "type", "t", string(types.ValueTypeString), "value type code")
	f.StringVarP(&spec.Description, "description", "d", "", "description")
	f.BoolVar(&spec.IsGlobal, "global", false, "expose through globals")
	f.BoolVar(&spec.EnableCypher, "cypher", false, "encrypt the value at rest")
	f.BoolVar(&spec.EnableHistory, "history", false, "record previous values")
	f.StringVar(&validators, "validators", "", `validators as JSON, e.g. '[{"validator_type":"MinValueValidator","validator_params":{"limit_value":1}}]'`)
	return cmd
}

func newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <slug>",
		Short: "Print a parameter value",
		Long:  "Print the plaintext value of a parameter. With --json, print the\nparameter with its metadata.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				p, err := a.engine.Get(ctx, args[0])
				if err != nil {
					return err
				}
				text, err := a.engine.Plaintext(p)
				if err != nil {
					return types.WithSlug(err, p.Slug)
				}
				if flags.jsonMode {
					view := newParamView(p)
					view.Value = &text
					return printJSON(cmd.OutOrStdout(), view)
				}
				fmt.Fprintln(cmd.OutOrStdout(), text)
				return nil
			})
		},
	}
}

func newSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <slug> <value>",
		Short: "Write a parameter value",
		Long:  "Write a value given as text in the storage format of the parameter's\ntype. The value is validated before it is stored.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				if err := a.engine.SetText(ctx, args[0], args[1]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Updated %s\n", args[0])
				return nil
			})
		},
	}
}

func newUpdateCmd() *cobra.Command {
	var (
		name, description               string
		isGlobal, cypher, enableHistory bool
	)
	cmd := &cobra.Command{
		Use:   "update <slug>",
		Short: "Change parameter metadata",
		Long: "Change the name, description or flags of a parameter. Only the flags\n" +
			"given are changed. Toggling --cypher re-seals or opens the stored value.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var attrs engine.Attributes
			f := cmd.Flags()
			if f.Changed("name") {
				attrs.Name = &name
			}
			if f.Changed("description") {
				attrs.Description = &description
			}
			if f.Changed("global") {
				attrs.IsGlobal = &isGlobal
			}
			if f.Changed("cypher") {
				attrs.EnableCypher = &cypher
			}
			if f.Changed("history") {
				attrs.EnableHistory = &enableHistory
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				p, err := a.engine.Update(ctx, args[0], attrs)
				if err != nil {
					return err
				}
				if flags.jsonMode {
					return printJSON(cmd.OutOrStdout(), newParamView(p))
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Updated %s\n", p.Slug)
				return nil
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&name, "name", "", "display name")
	f.StringVarP(&description, "description", "d", "", "description")
	f.BoolVar(&isGlobal, "global", false, "expose through globals")
	f.BoolVar(&cypher, "cypher", false, "encrypt the value at rest")
	f.BoolVar(&enableHistory, "history", false, "record previous values")
	return cmd
}

func newListCmd() *cobra.Command {
	var (
		global    bool
		valueType string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List parameters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var filter types.Filter
			if global {
				filter.IsGlobal = types.Bool(true)
			}
			if valueType != "" {
				vt, err := types.ParseValueType(valueType)
				if err != nil {
					return userError("%w: %q", err, valueType)
				}
				filter.ValueType = vt
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				params, err := a.engine.Parameters(ctx, filter)
				if err != nil {
					return err
				}
				if flags.jsonMode {
					views := make([]paramView, 0, len(params))
					for _, p := range params {
						views = append(views, newParamView(p))
					}
					return printJSON(cmd.OutOrStdout(), views)
				}
				printParams(cmd.OutOrStdout(), params)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&global, "global", false, "only global parameters")
	cmd.Flags().StringVarP(&valueType, "type", "t", "", "only parameters of this value type")
	return cmd
}

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <slug>",
		Short: "Delete a parameter with its validators and history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				if err := a.engine.Delete(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
				return nil
			})
		},
	}
}

// historyView is the JSON shape of a history entry.
type historyView struct {
	ID            string    `json:"id"`
	PreviousValue string    `json:"previous_value"`
	Timestamp     time.Time `json:"timestamp"`
}

func newHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history <slug>",
		Short: "Show the previous values of a parameter, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				entries, err := a.engine.History(ctx, args[0])
				if err != nil {
					return err
				}
				if flags.jsonMode {
					views := make([]historyView, 0, len(entries))
					for _, e := range entries {
						views = append(views, historyView{ID: e.ID, PreviousValue: e.PreviousValue, Timestamp: e.Timestamp})
					}
					return printJSON(cmd.OutOrStdout(), views)
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "TIMESTAMP\tPREVIOUS VALUE")
				for _, e := range entries {
					fmt.Fprintf(tw, "%s\t%s\n", e.Timestamp.Format(time.RFC3339), e.PreviousValue)
				}
				return tw.Flush()
			})
		},
	}
}

func newGlobalsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "globals",
		Short: "Print global parameters as a JSON object of slug to value",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				globals, err := a.engine.Globals(ctx)
				if err != nil {
					return err
				}
				for slug, v := range globals {
					// Durations are stored in seconds; print them the same way.
					if d, ok := v.(time.Duration); ok {
						globals[slug] = int64(d / time.Second)
					}
				}
				return printJSON(cmd.OutOrStdout(), globals)
			})
		},
	}
}
