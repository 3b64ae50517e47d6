package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/SovereignEdgeEU-COGNIT/device-runtime-go/pkg/cli"
)

var requirementsCmd = &cobra.Command{
	Use:   "requirements",
	Short: "Inspect or change placement requirements",
}

var (
	setFlavour      string
	setGeolocation  string
	setMaxLatency   int
	setMaxExecTime  int
	setMinRenewable int
)

var requirementsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Change placement requirements on the running supervisor",
	RunE: func(cmd *cobra.Command, args []string) error {
		reqs := requirementsFromFlags(setFlavour, setGeolocation, setMaxLatency, setMaxExecTime, setMinRenewable)
		if err := app.rt.UpdateRequirements(reqs); err != nil {
			return err
		}
		fmt.Println(cli.Green("requirements change staged"))
		return nil
	},
}

func init() {
	requirementsCmd.AddCommand(requirementsSetCmd)

	requirementsSetCmd.Flags().StringVar(&setFlavour, "flavour", "", "Execution flavour (e.g. PY, C)")
	requirementsSetCmd.Flags().StringVar(&setGeolocation, "geolocation", "", "Device geolocation (lat,lon), required with --max-latency")
	requirementsSetCmd.Flags().IntVar(&setMaxLatency, "max-latency", 0, "Maximum tolerable latency in milliseconds (0 disables)")
	requirementsSetCmd.Flags().IntVar(&setMaxExecTime, "max-exec-time", 0, "Maximum function execution time in milliseconds (0 = unset)")
	requirementsSetCmd.Flags().IntVar(&setMinRenewable, "min-renewable", 0, "Minimum renewable energy usage percent (0 = unset)")
}
