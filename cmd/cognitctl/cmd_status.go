package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/SovereignEdgeEU-COGNIT/device-runtime-go/pkg/cli"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the supervisor's current state",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !app.rt.Running() {
			fmt.Println(cli.Yellow("runtime is not running"))
			return nil
		}
		fmt.Printf("%s %s\n", cli.Bold("state:"), app.rt.State())

		endpoint := app.rt.ClusterEndpoint()
		if endpoint == "" {
			return nil
		}
		tbl := cli.NewClusterTable()
		tbl.Row(endpoint, "-", "-", "yes")
		tbl.Flush()
		return nil
	},
}
