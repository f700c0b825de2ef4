package kafka

import (
	"strconv"

	"github.com/IBM/sarama"

	"github.com/ahrav/streambatch/internal/domain/stream"
)

// Headers written on redelivered records. HeaderSourcePosition holds the
// Position identifier of the first delivery and survives retries.
const (
	HeaderAttempt        = "x-delivery-attempt"
	HeaderSourceTopic    = "x-source-topic"
	HeaderSourcePosition = "x-source-position"
	HeaderFailureReason  = "x-failure-reason"
	HeaderFailureStage   = "x-failure-stage"
)

// recordID is the identifier a record is reported under.
func recordID(msg *sarama.ConsumerMessage) string { return positionOf(msg).Identifier() }

// headerValue returns the value of the last header named key.
func headerValue(headers []*sarama.RecordHeader, key string) (string, bool) {
	for i := len(headers) - 1; i >= 0; i-- {
		if h := headers[i]; h != nil && string(h.Key) == key {
			return string(h.Value), true
		}
	}
	return "", false
}

// attemptOf returns which delivery attempt msg represents. Records read from
// the source topic carry no header and are on their first attempt.
func attemptOf(msg *sarama.ConsumerMessage) int {
	v, ok := headerValue(msg.Headers, HeaderAttempt)
	if !ok {
		return 1
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 1
	}
	return n
}

func toRawRecord(msg *sarama.ConsumerMessage) stream.RawRecord {
	attrs := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		if h != nil {
			attrs[string(h.Key)] = string(h.Value)
		}
	}

	return stream.RawRecord{
		SequenceID:   recordID(msg),
		PartitionKey: string(msg.Key),
		Data:         msg.Value,
		Attributes:   attrs,
		ArrivedAt:    msg.Timestamp,
	}
}

// toBatch converts msgs into a Batch and indexes the messages by the
// identifier each record is reported under.
func toBatch(msgs []*sarama.ConsumerMessage) (stream.Batch, map[string]*sarama.ConsumerMessage) {
	records := make([]stream.RawRecord, 0, len(msgs))
	byID := make(map[string]*sarama.ConsumerMessage, len(msgs))
	for _, msg := range msgs {
		rec := toRawRecord(msg)
		records = append(records, rec)
		byID[rec.SequenceID] = msg
	}
	return stream.NewBatch(records...), byID
}

// maxAttempt returns the highest delivery attempt in msgs.
func maxAttempt(msgs []*sarama.ConsumerMessage) int {
	highest := 1
	for _, msg := range msgs {
		highest = max(highest, attemptOf(msg))
	}
	return highest
}
