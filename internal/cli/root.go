package cli

import (
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/vk/benchgrid/internal/app"
	"github.com/vk/benchgrid/internal/config"
)

// settingsFileFlag is the only flag that is not a setting.
const settingsFileFlag = "settings-file"

// NewRootCmd builds the benchgrid command tree writing to outW.
func NewRootCmd(outW io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:   "benchgrid",
		Short: "Build and run HPC test suites described by benchgrid.yml files",
		Long: `benchgrid expands test descriptors over a criterion matrix, builds the
resulting dependency graph and runs it within the resources of the machine.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(outW)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &ExitError{Code: ExitConfig, Message: err.Error()}
	})

	pf := root.PersistentFlags()
	pf.StringP("profile", "p", "", "Path to the profile describing compilers, criteria and the machine.")
	pf.StringP("output", "o", ".benchgrid", "Directory receiving builds, results and history.")
	pf.String(settingsFileFlag, "", "Optional YAML settings file read before the environment and flags.")
	pf.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	pf.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")

	root.AddCommand(newRunCmd(outW), newGraphCmd(outW))
	return root
}

// loadConfig merges defaults, the settings file, BENCHGRID_* variables and
// the flags of cmd into an app configuration.
func loadConfig(cmd *cobra.Command, dirs []string) (*app.Config, error) {
	settingsFile, _ := cmd.Flags().GetString(settingsFileFlag)
	v, err := config.NewViper(settingsFile)
	if err != nil {
		return nil, err
	}
	if err := bindFlags(v, cmd.Flags()); err != nil {
		return nil, err
	}
	settings, err := config.LoadSettings(v)
	if err != nil {
		return nil, err
	}
	return app.NewConfig(app.Config{Settings: *settings, Dirs: dirs})
}

// bindFlags binds every flag to the setting of the same name, dashes
// becoming underscores.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	var err error
	fs.VisitAll(func(f *pflag.Flag) {
		if err != nil || f.Name == settingsFileFlag || f.Name == "help" {
			return
		}
		err = v.BindPFlag(strings.ReplaceAll(f.Name, "-", "_"), f)
	})
	return err
}
