package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"bellsched/internal/model"
)

func importCmd() *cobra.Command {
	var resume string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Run one calendar import and print its summary",
		Long: `Run one calendar import and print its summary as JSON.

Examples:
  bellsched import                 # start a new run
  bellsched import --resume <id>   # continue an interrupted run
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if resume != "" {
				sum, err := a.importer.Resume(ctx, resume)
				if err != nil {
					return err
				}
				return printJSON(sum)
			}
			sum, err := a.importer.Run(ctx)
			if err != nil {
				if sum.RunID != "" {
					cmd.PrintErrf("run %s failed; resume with: bellsched import --resume %s\n", sum.RunID, sum.RunID)
				}
				return err
			}
			return printJSON(sum)
		},
	}
	cmd.Flags().StringVar(&resume, "resume", "", "Resume the run with this ID")
	return cmd
}

func dayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "day <YYYY-MM-DD>",
		Short: "Print the stored schedule of a date",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			day, err := model.ParseDate(args[0], a.year.Location())
			if err != nil {
				return err
			}
			ds, err := a.days.Get(cmd.Context(), model.FormatDate(day))
			if err != nil {
				return err
			}
			return printJSON(ds)
		},
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
