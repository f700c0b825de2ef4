package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/ahrav/streambatch/internal/app/batch"
	"github.com/ahrav/streambatch/internal/config"
	"github.com/ahrav/streambatch/internal/domain/employee"
	"github.com/ahrav/streambatch/internal/domain/stream"
	"github.com/ahrav/streambatch/internal/infra/eventbus/memory"
	employeeStore "github.com/ahrav/streambatch/internal/infra/storage/employee/memory"
	"github.com/ahrav/streambatch/pkg/common"
	"github.com/ahrav/streambatch/pkg/common/logger"
	"github.com/ahrav/streambatch/pkg/common/otel"
)

// invocationLine is printed for every handler invocation.
type invocationLine struct {
	InvocationID string              `json:"invocationId"`
	Attempt      int                 `json:"attempt"`
	Records      []string            `json:"records"`
	Response     *stream.BatchResult `json:"response,omitempty"`
	Error        string              `json:"error,omitempty"`
}

// summary is what a replay did overall.
type summary struct {
	memory.Stats
	Stored      int
	DeadLetters []memory.DeadLetter
}

func replay(
	ctx context.Context,
	w io.Writer,
	log *logger.Logger,
	cfg config.Settings,
	b stream.Batch,
) (summary, error) {
	store := employeeStore.NewStore()

	metrics, err := batch.NewMetrics(otel.NewMeterProvider(cfg.ServiceName))
	if err != nil {
		return summary{}, fmt.Errorf("creating handler metrics: %w", err)
	}

	limiter := common.NewRateLimiter(cfg.Handler.RateLimitRPS, cfg.Handler.RateLimitBurst)
	handler := batch.NewHandler[employee.Employee](
		employee.NewCodec(),
		employee.NewValidator(),
		batch.RateLimited[employee.Employee](employee.NewRecorder(store), limiter),
		batch.WithConcurrency(cfg.Handler.Concurrency),
		batch.WithLogger(log),
		batch.WithMetrics(metrics),
	)

	broker := memory.NewBroker(memory.Config{
		MaxBatchSize: cfg.Kafka.MaxBatchSize,
		MaxAttempts:  cfg.Kafka.MaxAttempts,
	}, log)
	if err := broker.Publish(ctx, b.Records...); err != nil {
		return summary{}, err
	}

	enc := json.NewEncoder(w)
	var writeErr error
	stats, err := broker.Drain(ctx, handler, func(r memory.InvocationReport) {
		line := invocationLine{
			InvocationID: r.Invocation.ID,
			Attempt:      r.Invocation.Attempt,
			Records:      r.SequenceIDs,
		}
		if r.Err != nil {
			line.Error = r.Err.Error()
		} else {
			line.Response = &r.Result
		}
		if err := enc.Encode(line); err != nil && writeErr == nil {
			writeErr = err
		}
	})
	if err != nil {
		return summary{}, fmt.Errorf("draining batch: %w", err)
	}
	if writeErr != nil {
		return summary{}, fmt.Errorf("writing invocation report: %w", writeErr)
	}

	return summary{Stats: stats, Stored: store.Len(), DeadLetters: broker.DeadLetters()}, nil
}
