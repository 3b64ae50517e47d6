package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/SovereignEdgeEU-COGNIT/device-runtime-go/pkg/cli"
	"github.com/SovereignEdgeEU-COGNIT/device-runtime-go/pkg/faas"
)

var functionCmd = &cobra.Command{
	Use:   "function",
	Short: "Register offloadable functions ahead of time",
}

var registerLang string

var functionRegisterCmd = &cobra.Command{
	Use:   "register <function-id> <path>",
	Short: "Register a function body under a function id",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		functionID, path := args[0], args[1]

		payload, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading function body: %w", err)
		}

		callable := faas.Callable{
			FunctionID: functionID,
			Payload:    payload,
			Language:   faas.Language(registerLang),
		}
		if err := app.registry.Register(callable); err != nil {
			return err
		}
		fmt.Printf("%s registered function %q (%d bytes, %s)\n", cli.Green("OK"), functionID, len(payload), registerLang)
		return nil
	},
}

func init() {
	functionCmd.AddCommand(functionRegisterCmd)
	functionRegisterCmd.Flags().StringVar(&registerLang, "lang", string(faas.LanguagePY), "Function language (PY, C)")
}
