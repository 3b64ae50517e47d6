package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/SovereignEdgeEU-COGNIT/device-runtime-go/pkg/cli"
	"github.com/SovereignEdgeEU-COGNIT/device-runtime-go/pkg/faas"
)

var callTimeout time.Duration

var callCmd = &cobra.Command{
	Use:   "call <function-id> [params...]",
	Short: "Submit a synchronous call and print the result",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		functionID := args[0]
		params := args[1:]

		resp := app.rt.Call(functionID, params, callTimeout)
		printExecResponse(resp)
		if resp.RetCode != faas.RetSuccess {
			return fmt.Errorf("call failed: %s", resp.Err)
		}
		return nil
	},
}

func init() {
	callCmd.Flags().DurationVar(&callTimeout, "timeout", 30*time.Second, "Per-call timeout")
}

func printExecResponse(resp faas.ExecResponse) {
	if resp.RetCode == faas.RetSuccess {
		fmt.Printf("%s %s\n", cli.Green("OK"), resp.Result)
		return
	}
	fmt.Printf("%s %s\n", cli.Red("ERROR"), resp.Err)
}
