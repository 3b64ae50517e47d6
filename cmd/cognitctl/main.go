// Cognitctl - Device Runtime Supervisor CLI
//
// A CLI tool for driving a COGNIT device runtime from a terminal:
//   - Register offloadable functions ahead of time
//   - Submit synchronous calls and inspect results
//   - Inspect and change placement requirements at runtime
//   - Tail the call audit log
//
// Noun-group CLI Pattern:
//
//	cognitctl <resource> <action> [args]
//
// Examples:
//
//	cognitctl function register greet ./greet.py --lang PY
//	cognitctl runtime start --flavour PY --geolocation 40.4,-3.7 --max-latency 50
//	cognitctl call greet --timeout 5s
//	cognitctl requirements set --flavour C --max-latency 25 --geolocation 40.4,-3.7
//	cognitctl status
//	cognitctl audit list
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/SovereignEdgeEU-COGNIT/device-runtime-go/pkg/audit"
	"github.com/SovereignEdgeEU-COGNIT/device-runtime-go/pkg/cognitconfig"
	"github.com/SovereignEdgeEU-COGNIT/device-runtime-go/pkg/faas"
	"github.com/SovereignEdgeEU-COGNIT/device-runtime-go/pkg/runtime"
	"github.com/SovereignEdgeEU-COGNIT/device-runtime-go/pkg/util"
	"github.com/SovereignEdgeEU-COGNIT/device-runtime-go/pkg/version"
)

// App holds CLI state shared across all commands.
type App struct {
	configPath string
	verbose    bool
	jsonOutput bool

	config   *cognitconfig.Config
	registry *faas.Registry
	rt       *runtime.Runtime
}

var app = &App{registry: faas.NewRegistry()}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:               "cognitctl",
	Short:             "COGNIT device runtime supervisor CLI",
	SilenceUsage:      true,
	SilenceErrors:     true,
	CompletionOptions: cobra.CompletionOptions{HiddenDefaultCmd: true},
	Long: `Cognitctl drives a COGNIT device runtime from a terminal.

Commands are organized by resource (runtime, call, requirements, function, audit).

  cognitctl runtime start --flavour PY
  cognitctl function register greet ./greet.py --lang PY
  cognitctl call greet arg1 arg2
  cognitctl requirements set --max-latency 25 --geolocation 40.4,-3.7
  cognitctl status`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if isHelpOrVersion(cmd) {
			return nil
		}

		if app.verbose {
			util.SetLogLevel("debug")
		} else {
			util.SetLogLevel("warn")
		}

		var err error
		path := app.configPath
		if path == "" {
			path = cognitconfig.DefaultConfigPath
		}
		app.config, err = cognitconfig.LoadFrom(path)
		if err != nil {
			return fmt.Errorf("loading configuration: %w", err)
		}

		auditLogger, err := audit.NewFileLogger("./cognit-audit.jsonl", audit.RotationConfig{
			MaxSize:    10 * 1024 * 1024,
			MaxBackups: 5,
		})
		if err != nil {
			util.Logger.Warnf("could not initialize audit logging: %v", err)
		} else {
			audit.SetDefaultLogger(auditLogger)
		}

		app.rt = runtime.New(app.config, app.registry)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&app.configPath, "config", "c", "", "Path to cognit.conf (default ./cognit.conf)")
	rootCmd.PersistentFlags().BoolVarP(&app.verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVar(&app.jsonOutput, "json", false, "JSON output")

	rootCmd.AddGroup(
		&cobra.Group{ID: "runtime", Title: "Runtime Operations:"},
		&cobra.Group{ID: "meta", Title: "Configuration & Meta:"},
	)

	for _, cmd := range []*cobra.Command{runtimeCmd, callCmd, requirementsCmd, functionCmd, statusCmd, auditCmd} {
		cmd.GroupID = "runtime"
		rootCmd.AddCommand(cmd)
	}
	for _, cmd := range []*cobra.Command{versionCmd} {
		cmd.GroupID = "meta"
		rootCmd.AddCommand(cmd)
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		printVersion("cognitctl")
	},
}

func printVersion(tool string) {
	if version.Version == "dev" {
		fmt.Printf("%s dev build (set version info with -ldflags at build time)\n", tool)
	} else {
		fmt.Printf("%s %s (%s)\n", tool, version.Version, version.GitCommit)
	}
}

func isHelpOrVersion(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		switch c.Name() {
		case "help", "version":
			return true
		}
	}
	return false
}
