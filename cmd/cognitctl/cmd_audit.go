package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/SovereignEdgeEU-COGNIT/device-runtime-go/pkg/audit"
	"github.com/SovereignEdgeEU-COGNIT/device-runtime-go/pkg/cli"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "View the call audit log",
	Long: `View the audit log of offloaded call lifecycle events.

Every call the supervisor takes from the queue is logged at the
uploaded, executed, or dropped stage; the runtime logs no submitted
events.

Examples:
  cognitctl audit list --function-id greet
  cognitctl audit list --last 1h
  cognitctl audit list --failures`,
}

// maxDisplayRows caps how many audit rows are rendered to a terminal in one
// screen, independent of --limit (which bounds what's read from storage).
const maxDisplayRows = 50

var (
	auditCallID     string
	auditFunctionID string
	auditStage      string
	auditLast       string
	auditLimit      int
	auditFailures   bool
)

var auditListCmd = &cobra.Command{
	Use:   "list",
	Short: "List call audit events",
	RunE: func(cmd *cobra.Command, args []string) error {
		filter := audit.Filter{
			CallID:      auditCallID,
			FunctionID:  auditFunctionID,
			Stage:       audit.Stage(auditStage),
			Limit:       auditLimit,
			FailureOnly: auditFailures,
		}

		if auditLast != "" {
			duration, err := time.ParseDuration(auditLast)
			if err != nil {
				return fmt.Errorf("invalid duration: %s", auditLast)
			}
			filter.StartTime = time.Now().Add(-duration)
		}

		events, err := audit.Query(filter)
		if err != nil {
			return fmt.Errorf("querying audit log: %w", err)
		}

		if app.jsonOutput {
			return json.NewEncoder(os.Stdout).Encode(events)
		}

		if len(events) == 0 {
			fmt.Println("No audit events found")
			return nil
		}

		tbl := cli.NewAuditTable()
		tbl.MaxRows = maxDisplayRows // --limit bounds the query, this bounds the terminal

		failed := 0
		for _, event := range events {
			status := cli.Green("ok")
			if !event.Success {
				status = cli.Red("failed")
				failed++
			}

			tbl.Row(
				event.Timestamp.Format("2006-01-02 15:04:05"),
				event.CallID,
				event.FunctionID,
				string(event.Stage),
				dash(event.Cluster),
				status,
			)
		}
		tbl.Footer(fmt.Sprintf("%d event(s), %d failed", len(events), failed))
		tbl.Flush()

		return nil
	},
}

func init() {
	auditListCmd.Flags().StringVar(&auditCallID, "call-id", "", "Filter by call id")
	auditListCmd.Flags().StringVar(&auditFunctionID, "function-id", "", "Filter by function id")
	auditListCmd.Flags().StringVar(&auditStage, "stage", "", "Filter by stage (submitted, uploaded, executed, dropped)")
	auditListCmd.Flags().StringVar(&auditLast, "last", "", "Show events from last duration (e.g., 1h, 24h)")
	auditListCmd.Flags().IntVar(&auditLimit, "limit", 100, "Maximum events to show")
	auditListCmd.Flags().BoolVar(&auditFailures, "failures", false, "Show only failed operations")

	auditCmd.AddCommand(auditListCmd)
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
