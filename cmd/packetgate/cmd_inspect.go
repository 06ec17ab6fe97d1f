package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"packetgate/internal/auditlog"
	"packetgate/internal/monitor"
	"packetgate/internal/packet"
)

// inspectConfig holds the filters for the inspect subcommands.
type inspectConfig struct {
	episode  string
	severity string
	failed   bool
	jsonOut  bool
}

// newInspectCmd creates the "packetgate inspect" command group over the
// SQLite audit log.
func newInspectCmd(rc *rootConfig) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Query the audit log",
	}
	cmd.AddCommand(
		newInspectEventsCmd(rc),
		newInspectValidationsCmd(rc),
	)
	return cmd
}

// openAuditLog resolves the audit database path from flags or config.
func openAuditLog(rc *rootConfig) (*auditlog.Store, error) {
	dbPath := rc.auditDB
	if dbPath == "" {
		return nil, fmt.Errorf("--audit-db is required for inspect")
	}
	return auditlog.NewStore(dbPath)
}

// #region inspect-events
func newInspectEventsCmd(rc *rootConfig) *cobra.Command {
	var ic inspectConfig

	cmd := &cobra.Command{
		Use:   "events",
		Short: "List recorded integrity monitor events",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openAuditLog(rc)
			if err != nil {
				return err
			}
			defer store.Close()

			events, err := store.Query(monitor.EventFilter{
				CorrelationID: ic.episode,
				Severity:      packet.Severity(ic.severity),
			})
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if ic.jsonOut {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(events)
			}

			tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "AT\tEPISODE\tTYPE\tSEVERITY\tMODE\tDETAIL")
			for _, ev := range events {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
					ev.At.Format("2006-01-02T15:04:05Z"), ev.CorrelationID,
					ev.AlertType, ev.Severity, ev.Mode, ev.Detail)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&ic.episode, "episode", "", "filter by correlation id")
	cmd.Flags().StringVar(&ic.severity, "severity", "", "filter by severity (INFO, WARNING, CRITICAL)")
	cmd.Flags().BoolVar(&ic.jsonOut, "json", false, "output as JSON instead of a table")
	return cmd
}

// #endregion inspect-events

// #region inspect-validations
func newInspectValidationsCmd(rc *rootConfig) *cobra.Command {
	var ic inspectConfig

	cmd := &cobra.Command{
		Use:   "validations",
		Short: "List recorded per-packet validation outcomes",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openAuditLog(rc)
			if err != nil {
				return err
			}
			defer store.Close()

			records, err := store.Validations(auditlog.ValidationFilter{
				CorrelationID: ic.episode,
				FailedOnly:    ic.failed,
			})
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if ic.jsonOut {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(records)
			}

			tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "AT\tEPISODE\tPACKET\tTYPE\tOK\tFROM\tTO\tERRORS")
			for _, rec := range records {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%v\t%s\t%s\t%d\n",
					rec.At.Format("2006-01-02T15:04:05Z"), rec.CorrelationID,
					rec.PacketID, rec.PacketType, rec.OK, rec.FromState, rec.ToState, len(rec.Errors))
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&ic.episode, "episode", "", "filter by correlation id")
	cmd.Flags().BoolVar(&ic.failed, "failed", false, "only failed validations")
	cmd.Flags().BoolVar(&ic.jsonOut, "json", false, "output as JSON instead of a table")
	return cmd
}

// #endregion inspect-validations
