package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/aegis-gate/aegis/internal/domain/audit"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Query, export, and prune the audit log",
	Long: `Work with persisted audit entries.

These commands read the audit store configured by audit.output; use a
sqlite output so entries survive across invocations:

  audit:
    output: sqlite:///var/lib/aegis/audit.db`,
}

var auditQueryFlags struct {
	tenant string
	actor  string
	result string
	limit  int
}

var auditQueryCmd = &cobra.Command{
	Use:   "query",
	Short: "List audit entries, most recent first",
	RunE:  runAuditQuery,
}

var auditExportFlags struct {
	tenant string
}

var auditExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export audit entries as NDJSON, oldest first",
	RunE:  runAuditExport,
}

var auditStatsFlags struct {
	tenant string
}

var auditStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Aggregate audit counts by result, actor, and action",
	RunE:  runAuditStats,
}

var auditPurgeFlags struct {
	olderThan time.Duration
}

var auditPurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete audit entries older than a retention window",
	RunE:  runAuditPurge,
}

func init() {
	auditQueryCmd.Flags().StringVar(&auditQueryFlags.tenant, "tenant", "", "filter by tenant ID")
	auditQueryCmd.Flags().StringVar(&auditQueryFlags.actor, "actor", "", "filter by actor ID")
	auditQueryCmd.Flags().StringVar(&auditQueryFlags.result, "result", "", "filter by result: success, denied, error")
	auditQueryCmd.Flags().IntVar(&auditQueryFlags.limit, "limit", 50, "maximum entries to print (0 = unlimited)")

	auditExportCmd.Flags().StringVar(&auditExportFlags.tenant, "tenant", "", "filter by tenant ID")

	auditStatsCmd.Flags().StringVar(&auditStatsFlags.tenant, "tenant", "", "scope stats to one tenant")

	auditPurgeCmd.Flags().DurationVar(&auditPurgeFlags.olderThan, "older-than", 7*24*time.Hour, "delete entries older than this duration")

	auditCmd.AddCommand(auditQueryCmd, auditExportCmd, auditStatsCmd, auditPurgeCmd)
	rootCmd.AddCommand(auditCmd)
}

func runAuditQuery(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	eng, err := buildEngine(cmd.Context())
	if err != nil {
		return err
	}
	defer eng.Close(cmd.Context())

	entries, err := eng.auditLog.Query(cmd.Context(), audit.Filter{
		TenantID: auditQueryFlags.tenant,
		ActorID:  auditQueryFlags.actor,
		Result:   auditQueryFlags.result,
		Limit:    auditQueryFlags.limit,
	})
	if err != nil {
		return err
	}

	for _, e := range entries {
		fmt.Printf("%s  %-7s  %s/%s  %s %s",
			e.Timestamp.Format(time.RFC3339),
			e.Result, e.ActorType, e.ActorID, e.Action, e.Resource)
		if reason := e.Details["reason"]; reason != "" {
			fmt.Printf("  (%s)", reason)
		}
		fmt.Println()
	}
	if len(entries) == 0 {
		fmt.Println("no matching audit entries")
	}
	return nil
}

func runAuditExport(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	eng, err := buildEngine(cmd.Context())
	if err != nil {
		return err
	}
	defer eng.Close(cmd.Context())

	out, err := eng.auditLog.Export(cmd.Context(), audit.Filter{
		TenantID: auditExportFlags.tenant,
	})
	if err != nil {
		return err
	}
	fmt.Print(out)
	return nil
}

func runAuditStats(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	eng, err := buildEngine(cmd.Context())
	if err != nil {
		return err
	}
	defer eng.Close(cmd.Context())

	stats, err := eng.auditLog.Stats(cmd.Context(), auditStatsFlags.tenant)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func runAuditPurge(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	eng, err := buildEngine(cmd.Context())
	if err != nil {
		return err
	}
	defer eng.Close(cmd.Context())

	cutoff := time.Now().Add(-auditPurgeFlags.olderThan)
	removed, err := eng.auditStore.PurgeBefore(cmd.Context(), cutoff)
	if err != nil {
		return err
	}
	fmt.Printf("purged %d entries older than %s\n", removed, cutoff.UTC().Format(time.RFC3339))
	return nil
}
