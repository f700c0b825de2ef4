package kafka

import (
	"context"
	"sync"

	"github.com/IBM/sarama"
)

type fakeSession struct {
	ctx context.Context

	mu      sync.Mutex
	marked  []int64
	commits int
}

func newFakeSession(ctx context.Context) *fakeSession { return &fakeSession{ctx: ctx} }

func (s *fakeSession) Claims() map[string][]int32 { return map[string][]int32{"employees": {0}} }
func (s *fakeSession) MemberID() string           { return "member-1" }
func (s *fakeSession) GenerationID() int32        { return 1 }
func (s *fakeSession) Context() context.Context   { return s.ctx }

func (s *fakeSession) MarkOffset(string, int32, int64, string)  {}
func (s *fakeSession) ResetOffset(string, int32, int64, string) {}

func (s *fakeSession) MarkMessage(msg *sarama.ConsumerMessage, _ string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marked = append(s.marked, msg.Offset)
}

func (s *fakeSession) Commit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commits++
}

type fakeClaim struct {
	topic     string
	partition int32
	messages  chan *sarama.ConsumerMessage
}

func newFakeClaim(msgs ...*sarama.ConsumerMessage) *fakeClaim {
	ch := make(chan *sarama.ConsumerMessage, len(msgs))
	for _, m := range msgs {
		ch <- m
	}
	close(ch)
	return &fakeClaim{topic: "employees", messages: ch}
}

func (c *fakeClaim) Topic() string                            { return c.topic }
func (c *fakeClaim) Partition() int32                         { return c.partition }
func (c *fakeClaim) InitialOffset() int64                     { return 0 }
func (c *fakeClaim) HighWaterMarkOffset() int64               { return 0 }
func (c *fakeClaim) Messages() <-chan *sarama.ConsumerMessage { return c.messages }

type fakeMetrics struct {
	mu           sync.Mutex
	consumed     int
	redelivered  int
	deadLettered int
	publishErrs  int
	aborted      int
}

func (m *fakeMetrics) IncMessagesConsumed(_ context.Context, _ string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.consumed += n
}

func (m *fakeMetrics) IncRedelivered(context.Context, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.redelivered++
}

func (m *fakeMetrics) IncDeadLettered(context.Context, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deadLettered++
}

func (m *fakeMetrics) IncPublishError(context.Context, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.publishErrs++
}

func (m *fakeMetrics) IncBatchAborted(context.Context, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.aborted++
}

func message(topic string, offset int64, value string, headers ...*sarama.RecordHeader) *sarama.ConsumerMessage {
	return &sarama.ConsumerMessage{
		Topic:   topic,
		Offset:  offset,
		Key:     []byte("key"),
		Value:   []byte(value),
		Headers: headers,
	}
}

func header(key, value string) *sarama.RecordHeader {
	return &sarama.RecordHeader{Key: []byte(key), Value: []byte(value)}
}

func producedHeader(pm *sarama.ProducerMessage, key string) string {
	for _, h := range pm.Headers {
		if string(h.Key) == key {
			return string(h.Value)
		}
	}
	return ""
}
