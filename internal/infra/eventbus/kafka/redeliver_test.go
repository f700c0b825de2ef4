package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/ahrav/streambatch/internal/domain/stream"
)

func newTestRedeliverer(t *testing.T, maxAttempts int) (*redeliverer, *mocks.SyncProducer, *fakeMetrics) {
	t.Helper()
	producer := mocks.NewSyncProducer(t, nil)
	metrics := new(fakeMetrics)
	return &redeliverer{
		producer:        producer,
		retryTopic:      "employees-retry",
		deadLetterTopic: "employees-dlq",
		maxAttempts:     maxAttempts,
		tracer:          noop.NewTracerProvider().Tracer("test"),
		metrics:         metrics,
	}, producer, metrics
}

func failure(msg *sarama.ConsumerMessage, stage stream.FailureStage, reason string) failedMessage {
	return failedMessage{
		msg:     msg,
		failure: stream.BatchItemFailure{ItemIdentifier: recordID(msg), Stage: stage, Reason: reason},
	}
}

func TestRedeliverToRetryTopic(t *testing.T) {
	r, producer, metrics := newTestRedeliverer(t, 3)

	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(pm *sarama.ProducerMessage) error {
		assert.Equal(t, "employees-retry", pm.Topic)
		assert.Equal(t, "2", producedHeader(pm, HeaderAttempt))
		assert.Equal(t, "employees", producedHeader(pm, HeaderSourceTopic))
		assert.Equal(t, "employees/0/7", producedHeader(pm, HeaderSourcePosition))
		assert.Equal(t, "validate", producedHeader(pm, HeaderFailureStage))
		assert.Equal(t, "email is invalid", producedHeader(pm, HeaderFailureReason))
		assert.Equal(t, "acme", producedHeader(pm, "tenant"))

		value, err := pm.Value.Encode()
		require.NoError(t, err)
		assert.Equal(t, `{"employeeId":"1"}`, string(value))
		return nil
	})

	msg := message("employees", 7, `{"employeeId":"1"}`, header("tenant", "acme"))
	report, err := r.redeliver(context.Background(), []failedMessage{
		failure(msg, stream.StageValidate, "email is invalid"),
	})

	require.NoError(t, err)
	assert.Equal(t, redeliveryReport{Retried: 1}, report)
	assert.Equal(t, 1, metrics.redelivered)
	require.NoError(t, producer.Close())
}

func TestRedeliverDeadLettersExhaustedRecords(t *testing.T) {
	r, producer, metrics := newTestRedeliverer(t, 3)

	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(pm *sarama.ProducerMessage) error {
		assert.Equal(t, "employees-retry", pm.Topic)
		assert.Equal(t, "3", producedHeader(pm, HeaderAttempt))
		return nil
	})
	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(pm *sarama.ProducerMessage) error {
		assert.Equal(t, "employees-dlq", pm.Topic)
		assert.Equal(t, "4", producedHeader(pm, HeaderAttempt))
		assert.Equal(t, "employees", producedHeader(pm, HeaderSourceTopic))
		assert.Equal(t, "employees/0/42", producedHeader(pm, HeaderSourcePosition))
		return nil
	})

	second := message("employees-retry", 1, "{}",
		header(HeaderAttempt, "2"), header(HeaderSourceTopic, "employees"))
	third := message("employees-retry", 2, "{}",
		header(HeaderAttempt, "3"),
		header(HeaderSourceTopic, "employees"),
		header(HeaderSourcePosition, "employees/0/42"),
	)

	report, err := r.redeliver(context.Background(), []failedMessage{
		failure(second, stream.StageProcess, "db down"),
		failure(third, stream.StageProcess, "db down"),
	})

	require.NoError(t, err)
	assert.Equal(t, redeliveryReport{Retried: 1, DeadLettered: 1}, report)
	assert.Equal(t, 1, metrics.redelivered)
	assert.Equal(t, 1, metrics.deadLettered)
	require.NoError(t, producer.Close())
}

func TestRedeliverWithoutRetryTopicUsesSourceTopic(t *testing.T) {
	r, producer, _ := newTestRedeliverer(t, 0)
	r.retryTopic = ""

	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(pm *sarama.ProducerMessage) error {
		assert.Equal(t, "employees", pm.Topic)
		assert.Equal(t, "11", producedHeader(pm, HeaderAttempt))
		return nil
	})

	msg := message("employees", 1, "{}", header(HeaderAttempt, "10"))
	_, err := r.redeliver(context.Background(), []failedMessage{failure(msg, stream.StageDecode, "bad json")})
	require.NoError(t, err)
	require.NoError(t, producer.Close())
}

func TestRedeliverPublishError(t *testing.T) {
	r, producer, metrics := newTestRedeliverer(t, 3)
	producer.ExpectSendMessageAndFail(errors.New("leader not available"))

	msg := message("employees", 1, "{}")
	_, err := r.redeliver(context.Background(), []failedMessage{failure(msg, stream.StageProcess, "x")})

	require.Error(t, err)
	assert.Equal(t, 1, metrics.publishErrs)
	require.NoError(t, producer.Close())
}

func TestRedeliverNothing(t *testing.T) {
	r, producer, _ := newTestRedeliverer(t, 3)

	report, err := r.redeliver(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, report)
	require.NoError(t, producer.Close())
}
