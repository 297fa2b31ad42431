package cli

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/vitality/internal/monitoring/health"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show checks and open issues of the running watcher",
	Run:   runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	var report health.HealthReport
	if err := newAdminClient().do(context.Background(), http.MethodGet, "/health/detailed", nil, &report); err != nil {
		slog.Error("Failed to fetch status", "error", err)
		os.Exit(1)
	}

	fmt.Printf("Status: %s (node available: %t, options v%d)\n\n",
		report.SystemStatus, report.Node.Available, report.OptionsVersion)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "CHECK\tINTERVAL\tLAST RUN\tOUTCOME\tFINDINGS\tERROR")
	for _, c := range report.Checks {
		last := "-"
		if !c.LastRun.IsZero() {
			last = c.LastRun.Format(time.RFC3339)
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n", c.Name, c.Interval, last, c.Outcome, c.Findings, c.Error)
	}
	_ = w.Flush()

	if len(report.Issues) == 0 {
		fmt.Println("\nNo open issues.")
		return
	}

	fmt.Println()
	w = tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "KIND\tKEY\tSINCE\tNOTIFIED\tDETAIL")
	for _, iss := range report.Issues {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\n",
			iss.Kind, iss.Key, iss.FirstDetectedAt.Format(time.RFC3339), iss.Notified, iss.Detail)
	}
	_ = w.Flush()
}
