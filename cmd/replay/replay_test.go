package main

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/streambatch/internal/config"
	"github.com/ahrav/streambatch/internal/domain/stream"
	"github.com/ahrav/streambatch/internal/infra/fixture"
	"github.com/ahrav/streambatch/internal/testutil"
	"github.com/ahrav/streambatch/pkg/common/logger"
)

func TestReplayRedeliversAndDeadLettersInvalidRecords(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Kafka.MaxAttempts = 2
	cfg.Kafka.MaxBatchSize = 10

	valid := testutil.Employees(2)
	invalid := testutil.NewEmployeeBuilder().WithEmail("not-an-email").Build()
	b := testutil.NewBatchBuilder().WithEmployees(valid[0], invalid, valid[1])
	badID := b.Records[1].SequenceID

	var out bytes.Buffer
	got, err := replay(context.Background(), &out, logger.Noop(), cfg, b)
	require.NoError(t, err)

	assert.Equal(t, 2, got.Invocations)
	assert.Equal(t, 2, got.Succeeded)
	assert.Equal(t, 1, got.Redelivered)
	assert.Equal(t, 1, got.DeadLettered)
	assert.Equal(t, 2, got.Stored)
	require.Len(t, got.DeadLetters, 1)
	assert.Equal(t, badID, got.DeadLetters[0].Record.SequenceID)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)

	var first struct {
		Attempt  int                `json:"attempt"`
		Records  []string           `json:"records"`
		Response stream.BatchResult `json:"response"`
	}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, 1, first.Attempt)
	assert.Len(t, first.Records, 3)
	assert.Equal(t, []string{badID}, first.Response.FailedIDs())

	assert.Contains(t, lines[1], `"attempt":2`)
}

func TestReplayEmptyBatch(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	var out bytes.Buffer
	got, err := replay(context.Background(), &out, logger.Noop(), cfg, stream.NewBatch())
	require.NoError(t, err)
	assert.Zero(t, got.Invocations)
	assert.Empty(t, out.String())
}

func TestReplayStoresValidEmployees(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Kafka.MaxBatchSize = 2

	employees := testutil.Employees(5)
	b := testutil.NewBatchBuilder().WithEmployees(employees...)

	var out bytes.Buffer
	got, err := replay(context.Background(), &out, logger.Noop(), cfg, b)
	require.NoError(t, err)

	assert.Equal(t, 3, got.Invocations)
	assert.Equal(t, 5, got.Stored)
	for _, line := range strings.Split(strings.TrimSpace(out.String()), "\n") {
		assert.Contains(t, line, `"batchItemFailures":[]`)
	}
}

func TestReplayFixture(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Kafka.MaxAttempts = 1

	b, err := fixture.Load("testdata/employees.yaml")
	require.NoError(t, err)
	require.Equal(t, 4, b.Len())

	var out bytes.Buffer
	got, err := replay(context.Background(), &out, logger.Noop(), cfg, b)
	require.NoError(t, err)

	assert.Equal(t, 1, got.Invocations)
	assert.Equal(t, 2, got.Stored)
	assert.Equal(t, 2, got.DeadLettered)
	assert.Zero(t, got.Redelivered)

	var line struct {
		Response stream.BatchResult `json:"response"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &line))
	assert.Equal(t, []string{
		"49590338271490256608559692538361571095921575989136588802",
		"49590338271490256608559692538361571095921575989136588803",
	}, line.Response.FailedIDs())
}
