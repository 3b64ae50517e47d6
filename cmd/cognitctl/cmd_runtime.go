package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/SovereignEdgeEU-COGNIT/device-runtime-go/pkg/cli"
	"github.com/SovereignEdgeEU-COGNIT/device-runtime-go/pkg/scheduling"
)

var runtimeCmd = &cobra.Command{
	Use:   "runtime",
	Short: "Start or stop the supervisor",
}

var (
	startFlavour     string
	startGeolocation string
	startMaxLatency  int
	startMaxExecTime int
	startMinRenewable int
)

var runtimeStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the supervisor with the given placement requirements",
	RunE: func(cmd *cobra.Command, args []string) error {
		reqs := requirementsFromFlags(startFlavour, startGeolocation, startMaxLatency, startMaxExecTime, startMinRenewable)
		if err := app.rt.Init(reqs); err != nil {
			return err
		}
		fmt.Println(cli.Green("runtime started"))
		return nil
	},
}

var runtimeStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the supervisor",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := app.rt.Stop(); err != nil {
			return err
		}
		fmt.Println(cli.Green("runtime stopped"))
		return nil
	},
}

func init() {
	runtimeCmd.AddCommand(runtimeStartCmd, runtimeStopCmd)

	runtimeStartCmd.Flags().StringVar(&startFlavour, "flavour", "", "Execution flavour (e.g. PY, C)")
	runtimeStartCmd.Flags().StringVar(&startGeolocation, "geolocation", "", "Device geolocation (lat,lon), required with --max-latency")
	runtimeStartCmd.Flags().IntVar(&startMaxLatency, "max-latency", 0, "Maximum tolerable latency in milliseconds (0 disables)")
	runtimeStartCmd.Flags().IntVar(&startMaxExecTime, "max-exec-time", 0, "Maximum function execution time in milliseconds (0 = unset)")
	runtimeStartCmd.Flags().IntVar(&startMinRenewable, "min-renewable", 0, "Minimum renewable energy usage percent (0 = unset)")
}

func requirementsFromFlags(flavour, geolocation string, maxLatency, maxExecTime, minRenewable int) scheduling.Requirements {
	r := scheduling.Requirements{Flavour: flavour, Geolocation: geolocation}
	if maxLatency > 0 {
		r.MaxLatency = scheduling.IntPtr(maxLatency)
	}
	if maxExecTime > 0 {
		r.MaxFunctionExecutionTime = scheduling.IntPtr(maxExecTime)
	}
	if minRenewable > 0 {
		r.MinEnergyRenewableUsage = scheduling.IntPtr(minRenewable)
	}
	return r
}
