// Package cli implements the jokizillasrv command line: serving the API and maintaining
// its database.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/jokizilla/jokizilla/internal/common/logtrace"
	"github.com/jokizilla/jokizilla/internal/jokizillasrv/config"
	"github.com/jokizilla/jokizilla/internal/jokizillasrv/srvcommon"
)

// EnvConfigFile names the configuration file when --config is not given.
const EnvConfigFile = "JOKIZILLA_CONFIG"

const defaultConfigFile = "jokizillasrv.conf"

var okLabel = color.New(color.FgGreen)
var errorLabel = color.New(color.FgRed)

type globalOptions struct {
	configFile string
	jsonOutput bool
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}
	rootCmd := &cobra.Command{
		Use:   "jokizillasrv [command] [flags]",
		Short: "Jokizilla server - OData API for applicants and service lookups",
		Long: `jokizillasrv serves the Jokizilla OData API and maintains its database.

Examples:
  # Apply all pending migrations, then start the server
  jokizillasrv migrate up
  jokizillasrv serve

  # Load lookup data
  jokizillasrv seed -f seed.yaml`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig(cmd, opts)
		},
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}
	rootCmd.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "Path to the configuration file (default $"+EnvConfigFile+" or "+defaultConfigFile+")")
	rootCmd.PersistentFlags().BoolVarP(&opts.jsonOutput, "json", "j", false, "Output in JSON format")

	rootCmd.AddCommand(newVersionCmd(opts))
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newMigrateCmd(opts))
	rootCmd.AddCommand(newSeedCmd(opts))
	return rootCmd
}

// Execute runs the command line with the process arguments and exits non-zero on failure.
func Execute() {
	rootCmd := newRootCmd()
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.Execute(); err != nil {
		errorLabel.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the configuration and sets up logging for every command except version.
func loadConfig(cmd *cobra.Command, opts *globalOptions) error {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Name() == "version" || c.Name() == "help" {
			return nil
		}
	}
	if opts.configFile == "" {
		opts.configFile = os.Getenv(EnvConfigFile)
	}
	if opts.configFile == "" {
		opts.configFile = defaultConfigFile
	}
	if err := config.LoadConfig(opts.configFile); err != nil {
		return err
	}
	cfg := config.Config()
	logtrace.InitLogger(cfg.Log.Level, cfg.Log.Pretty)
	logtrace.SetTraceEnabled(cfg.Log.Level == "trace")
	return nil
}

func newVersionCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version of jokizillasrv",
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.jsonOutput {
				return printJSON(cmd.OutOrStdout(), map[string]string{
					"serverVersion": srvcommon.ServerVersion,
					"apiVersion":    srvcommon.ApiVersion,
					"odataVersion":  srvcommon.ODataVersion,
				})
			}
			cmd.Printf("jokizillasrv %s\n", srvcommon.ServerVersion)
			cmd.Printf("API version: %s, OData version: %s\n", srvcommon.ApiVersion, srvcommon.ODataVersion)
			return nil
		},
	}
}

func printJSON(w io.Writer, data any) error {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("unable to encode output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}
