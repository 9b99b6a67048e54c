package cli

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/vk/benchgrid/internal/app"
	"github.com/vk/benchgrid/internal/config"
)

func newGraphCmd(outW io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "graph [dirs...]",
		Short: "Write the job dependency graph in DOT format",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, args)
			if err != nil {
				return err
			}
			a, err := app.NewApp(cmd.ErrOrStderr(), cfg, config.NewLoader())
			if err != nil {
				return err
			}
			return a.Graph(cmd.Context(), outW)
		},
	}
}
