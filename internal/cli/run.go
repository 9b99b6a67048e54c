package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/vk/benchgrid/internal/app"
	"github.com/vk/benchgrid/internal/config"
)

func newRunCmd(outW io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [dirs...]",
		Short: "Build and run every test found under the given directories",
		Long: `Runs every test expression of the benchgrid.yml files found under the
given directories (the current directory by default). A directory may be
given a label with LABEL:PATH; it defaults to the base name of the path.`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, args)
			if err != nil {
				return err
			}
			a, err := app.NewApp(outW, cfg, config.NewLoader())
			if err != nil {
				return err
			}
			report, err := a.Run(cmd.Context())
			if err != nil {
				return err
			}
			if cfg.Successful && report.Failed() > 0 {
				return &ExitError{
					Code:    ExitFailure,
					Message: fmt.Sprintf("%d of %d job(s) did not succeed, see %s", report.Failed(), len(report.Jobs), report.ResultsPath),
				}
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.Bool("override", false, "Remove the lock left in the output directory by another run.")
	f.Bool("dry-run", false, "Print the scripts of every job without running them.")
	f.Duration("timeout", 0, "Cancel the whole run after this duration. 0 is disabled.")
	f.Bool("successful", false, "Exit with a non-zero code when any job did not succeed.")
	f.String("print", "errors", "Job output to print. Options: 'none', 'errors', 'all'.")
	f.String("print-filter", "", "Only print jobs matching this tag filter, e.g. 'mpi,!slow'.")
	f.String("run-filter", "", "Only run jobs matching this tag filter and what they depend on.")
	f.Int("retries", 0, "How many times a failed job is run again.")
	f.Bool("history", true, "Record job timings and compare against previous runs.")
	f.String("report-uri", "", "Socket.IO endpoint receiving live job results.")
	f.Int("healthcheck-port", 0, "Port for the HTTP health check server. 0 is disabled.")
	return cmd
}
