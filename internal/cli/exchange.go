package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/params/internal/engine"
	"github.com/mesh-intelligence/params/internal/exchange"
)

func newDumpCmd() *cobra.Command {
	var indent int
	cmd := &cobra.Command{
		Use:   "dump <file>",
		Short: "Export every parameter to a JSON file",
		Long: "Write every parameter, with its validators and its plaintext value,\n" +
			"to file as a JSON array. Parent directories are created. The file\n" +
			"holds decrypted secrets and is written readable by the owner only.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				x := exchange.New(a.engine, exchange.WithLogger(a.logger), exchange.WithMetrics(a.metrics))
				records, err := x.Export(ctx)
				if err != nil {
					return err
				}
				if err := exchange.WriteFile(args[0], records, indent); err != nil {
					return sysError("dump %s: %w", args[0], err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Exported %d parameters to %s\n", len(records), args[0])
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&indent, "indent", 4, "JSON indentation in spaces (0 for a single line)")
	return cmd
}

func newLoadCmd() *cobra.Command {
	var (
		file     string
		jsonText string
		noUpdate bool
	)
	cmd := &cobra.Command{
		Use:   "load (--file F | --json S)",
		Short: "Import parameters from a JSON array",
		Long: "Create or update parameters from a JSON array of records. Each record\n" +
			"is applied on its own; failed records are reported and the rest are\n" +
			"still applied. With --no-update, existing parameters are left alone.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if (file == "") == (jsonText == "") {
				return userError("exactly one of --file or --json is required")
			}
			data := []byte(jsonText)
			source := "--json"
			if file != "" {
				var err error
				data, err = os.ReadFile(file)
				if err != nil {
					if errors.Is(err, os.ErrNotExist) {
						return userError("load: %w", err)
					}
					return sysError("load: %w", err)
				}
				source = file
			}

			return withApp(cmd, func(ctx context.Context, a *app) error {
				x := exchange.New(a.engine, exchange.WithLogger(a.logger), exchange.WithMetrics(a.metrics))
				report, err := x.Import(ctx, data, exchange.Options{NoOverwrite: noUpdate})
				if err != nil {
					return userError("%s: %w", source, err)
				}

				// --json is taken by the input document here, so the report is
				// always text.
				for _, res := range report.Failed() {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: record %d (%s): %v\n", source, res.Index, res.Slug, res.Err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created %d, updated %d, skipped %d, failed %d\n",
					report.Count(engine.OutcomeCreated),
					report.Count(engine.OutcomeUpdated),
					report.Count(engine.OutcomeSkipped),
					report.Count(exchange.ResultFailed),
				)
				if n := len(report.Failed()); n > 0 {
					return userError("%s: %d of %d records failed", source, n, len(report.Results))
				}
				return nil
			})
		},
	}
	f := cmd.Flags()
	f.StringVarP(&file, "file", "f", "", "JSON file to import")
	f.StringVar(&jsonText, "json", "", "JSON array to import")
	f.BoolVar(&noUpdate, "no-update", false, "do not overwrite existing parameters")
	return cmd
}
