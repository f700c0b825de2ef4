package kafka

import (
	"testing"

	"github.com/IBM/sarama"
	"github.com/stretchr/testify/assert"
)

func TestAttemptOf(t *testing.T) {
	tests := []struct {
		name    string
		headers []*sarama.RecordHeader
		want    int
	}{
		{name: "no header", want: 1},
		{name: "numeric header", headers: []*sarama.RecordHeader{header(HeaderAttempt, "4")}, want: 4},
		{name: "garbage header", headers: []*sarama.RecordHeader{header(HeaderAttempt, "x")}, want: 1},
		{name: "zero header", headers: []*sarama.RecordHeader{header(HeaderAttempt, "0")}, want: 1},
		{
			name:    "last header wins",
			headers: []*sarama.RecordHeader{header(HeaderAttempt, "2"), header(HeaderAttempt, "3")},
			want:    3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, attemptOf(message("employees", 0, "{}", tt.headers...)))
		})
	}
}

func TestToBatch(t *testing.T) {
	msgs := []*sarama.ConsumerMessage{
		message("employees", 10, `{"a":1}`, header("tenant", "acme")),
		message("employees", 11, `{"a":2}`),
	}
	msgs[1].Partition = 3

	batch, byID := toBatch(msgs)

	assert.Equal(t, []string{"employees/0/10", "employees/3/11"}, batch.SequenceIDs())
	assert.NoError(t, batch.CheckIdentifiers())
	assert.Equal(t, "acme", batch.Records[0].Attributes["tenant"])
	assert.Equal(t, "key", batch.Records[0].PartitionKey)
	assert.Equal(t, []byte(`{"a":2}`), batch.Records[1].Data)
	assert.Same(t, msgs[1], byID["employees/3/11"])
}

func TestMaxAttempt(t *testing.T) {
	msgs := []*sarama.ConsumerMessage{
		message("retry", 1, "{}", header(HeaderAttempt, "2")),
		message("retry", 2, "{}", header(HeaderAttempt, "5")),
		message("retry", 3, "{}"),
	}
	assert.Equal(t, 5, maxAttempt(msgs))
}
