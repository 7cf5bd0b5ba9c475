package cli

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/pickflow/pickflow/internal/core/config"
	"github.com/pickflow/pickflow/internal/health"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the health of a running agent service",
	Run:   runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	client := &http.Client{Timeout: 5 * time.Second}
	url := fmt.Sprintf("http://localhost:%d/health/detailed", cfg.Server.Port)
	resp, err := client.Get(url)
	if err != nil {
		slog.Error("Failed to reach service", "url", url, "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	var report health.Report
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		slog.Error("Failed to decode health report", "error", err)
		os.Exit(1)
	}

	fmt.Printf("System: %s  (outbox pending: %d, open findings: %d)\n\n",
		report.SystemStatus, report.OutboxPending, report.OpenFindings)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "AGENT\tSTATUS\tLAST SUCCESS\tERRORS\tLAST ERROR")

	for _, a := range report.Agents {
		last := "never"
		if !a.LastSuccess.IsZero() {
			last = a.LastSuccess.Format(time.RFC3339)
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
			a.Agent, a.Status, last, a.ConsecutiveErrors, a.LastError)
	}
	_ = w.Flush()
}
