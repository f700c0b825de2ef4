// Command replay runs a batch fixture through the employee handler using the
// in-memory stream runtime and store, printing every invocation's response.
//
//	replay -fixture batch.yaml [-config cfg.yaml] [-max-attempts n]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/ahrav/streambatch/internal/config"
	"github.com/ahrav/streambatch/internal/infra/fixture"
	"github.com/ahrav/streambatch/pkg/common/logger"
)

func main() {
	fixturePath := flag.String("fixture", "", "path to a YAML batch fixture (required)")
	configPath := flag.String("config", "", "path to a YAML config file")
	maxAttempts := flag.Int("max-attempts", -1, "override kafka.max-attempts (0 retries until success)")
	flag.Parse()

	if *fixturePath == "" {
		flag.Usage()
		os.Exit(2)
	}

	if err := run(*fixturePath, *configPath, *maxAttempts); err != nil {
		fmt.Fprintf(os.Stderr, "replay: %v\n", err)
		os.Exit(1)
	}
}

func run(fixturePath, configPath string, maxAttempts int) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if maxAttempts >= 0 {
		cfg.Kafka.MaxAttempts = maxAttempts
	}

	b, err := fixture.Load(fixturePath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	log := logger.New(os.Stderr, logger.ParseLevel(cfg.LogLevel), cfg.ServiceName+"-replay", nil)

	summary, err := replay(ctx, os.Stdout, log, cfg, b)
	if err != nil {
		return err
	}

	log.Info(ctx, "Replay finished",
		"invocations", summary.Invocations,
		"succeeded", summary.Succeeded,
		"redelivered", summary.Redelivered,
		"dead_lettered", summary.DeadLettered,
		"fatal_batches", summary.FatalBatches,
		"stored", summary.Stored,
	)
	return nil
}
