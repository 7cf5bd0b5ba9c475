package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/pickflow/pickflow/internal/core/config"
	redisclient "github.com/pickflow/pickflow/internal/infra/redis"
)

var regradeCmd = &cobra.Command{
	Use:   "regrade [pick_id...]",
	Short: "Queue picks for regrading",
	Long:  `Pushes the given pick ids onto the regrade queue. The grading agent drains the queue on its next pass.`,
	Args:  cobra.MinimumNArgs(1),
	Run:   runRegrade,
}

func init() {
	rootCmd.AddCommand(regradeCmd)
}

func runRegrade(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	if cfg.Redis.URL == "" {
		slog.Error("Redis is not configured; the regrade queue is unavailable")
		os.Exit(1)
	}

	client, err := redisclient.NewClient(cfg.Redis)
	if err != nil {
		slog.Error("Failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = client.Close()
	}()

	ctx := context.Background()
	for _, pickID := range args {
		if err := client.PushRegrade(ctx, pickID); err != nil {
			slog.Error("Failed to queue pick", "pick", pickID, "error", err)
			os.Exit(1)
		}
		fmt.Printf("Queued pick %s for regrading\n", pickID)
	}

	depth, err := client.RegradeDepth(ctx)
	if err == nil {
		fmt.Printf("Regrade queue depth: %d\n", depth)
	}
}
