package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nstepanov/docqa/internal/answer"
	"github.com/nstepanov/docqa/internal/app"
	"github.com/nstepanov/docqa/internal/config"
	"github.com/nstepanov/docqa/internal/log"
)

var askVerbose bool

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a one-shot question from the terminal",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

func init() {
	askCmd.Flags().BoolVarP(&askVerbose, "verbose", "v", false, "print retrieval details")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	// A one-shot invocation has no cache to warm or share.
	cfg.CacheBackend = config.CacheBackendMemory

	level := slog.LevelWarn
	if askVerbose {
		level = slog.LevelDebug
	}
	logger := log.New(log.Config{Level: level})

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer a.Close()

	question := strings.Join(args, " ")
	res, err := a.Service.Ask(ctx, answer.Request{Question: question})
	if err != nil {
		return fmt.Errorf("answering question: %w", err)
	}

	fmt.Println(res.Answer)
	if askVerbose {
		fmt.Printf("\nsources: %s\n", strings.Join(res.ChunkIDs, ", "))
		if res.Partial {
			fmt.Println("note: retrieval was degraded, one search arm was unavailable")
		}
	}
	return nil
}
