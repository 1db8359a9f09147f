package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/terra-clan/quiz-engine/internal/config"
	"github.com/terra-clan/quiz-engine/internal/quiz"
	"github.com/terra-clan/quiz-engine/internal/report"
	"github.com/terra-clan/quiz-engine/pkg/client"
)

func main() {
	// Logs go to stderr so they do not interleave with the prompts
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	controller, attempt, err := newController(cfg.Client, logger)
	if err != nil {
		slog.Error("failed to configure quiz", "error", err)
		os.Exit(1)
	}

	outcome, err := run(ctx, controller, newPrompter(os.Stdin, os.Stdout))
	switch {
	case errors.Is(err, quiz.ErrNoQuestionsAnswered):
		fmt.Println("\nNo questions were answered, nothing to score.")
		return
	case err != nil:
		slog.Error("quiz aborted", "error", err, "state", controller.State().String())
		os.Exit(1)
	}

	printOutcome(os.Stdout, outcome)

	if cfg.Client.ReportPath != "" {
		meta := report.Meta{
			AttemptID:   attempt.ID(),
			GradingURL:  cfg.Client.GradingURL,
			GeneratedAt: time.Now(),
		}
		if err := report.Save(cfg.Client.ReportPath, outcome, meta); err != nil {
			slog.Error("failed to save report", "path", cfg.Client.ReportPath, "error", err)
			os.Exit(1)
		}
		fmt.Printf("Report saved to %s\n", cfg.Client.ReportPath)
	}
}

func newController(cfg config.ClientConfig, logger *slog.Logger) (*quiz.Controller, *client.Attempt, error) {
	protocol, err := quiz.ParseProtocol(cfg.Protocol)
	if err != nil {
		return nil, nil, err
	}
	policy, err := quiz.ParseDropPolicy(cfg.DropPolicy)
	if err != nil {
		return nil, nil, err
	}

	opts := []client.Option{}
	if cfg.APIKey != "" {
		opts = append(opts, client.WithAPIKey(cfg.APIKey))
	}
	attempt := client.NewClient(cfg.GradingURL, opts...).Attempt()

	registry := quiz.DefaultRegistry()
	ctrlOpts := []quiz.Option{
		quiz.WithLogger(logger),
		quiz.WithRegistry(registry),
		quiz.WithCodec(quiz.NewCodec(protocol, registry, logger)),
		quiz.WithDropPolicy(policy),
		quiz.WithTimeout(cfg.Timeout),
	}
	if cfg.Shuffle {
		ctrlOpts = append(ctrlOpts, quiz.WithShuffle(rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))))
	}

	return quiz.NewController(attempt, ctrlOpts...), attempt, nil
}
