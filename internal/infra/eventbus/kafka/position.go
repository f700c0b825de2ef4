package kafka

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/IBM/sarama"
)

// ErrInvalidPositionFormat is returned when a record identifier is not of the
// form "topic/partition/offset".
type ErrInvalidPositionFormat struct{ ID string }

func (e ErrInvalidPositionFormat) Error() string {
	return fmt.Sprintf("invalid position format: %s", e.ID)
}

// Position is a specific location in a Kafka topic partition. Its Identifier
// is what records are reported under in a BatchResult.
type Position struct {
	Topic     string
	Partition int32
	Offset    int64
}

func positionOf(msg *sarama.ConsumerMessage) Position {
	return Position{Topic: msg.Topic, Partition: msg.Partition, Offset: msg.Offset}
}

// Identifier returns the Position as "topic/partition/offset". Offsets are
// unique within a topic partition, so the identifier is unique in any batch.
func (p Position) Identifier() string {
	return fmt.Sprintf("%s/%d/%d", p.Topic, p.Partition, p.Offset)
}

// Validate checks that the Position names a topic and has a non-negative
// partition and offset.
func (p Position) Validate() error {
	if p.Topic == "" {
		return errors.New("missing topic")
	}
	if p.Partition < 0 {
		return fmt.Errorf("invalid partition: %d", p.Partition)
	}
	if p.Offset < 0 {
		return fmt.Errorf("invalid offset: %d", p.Offset)
	}
	return nil
}

// ParsePosition parses an identifier produced by Position.Identifier. Topic
// names cannot contain '/', so the split is unambiguous.
func ParsePosition(id string) (Position, error) {
	parts := strings.Split(id, "/")
	if len(parts) != 3 {
		return Position{}, ErrInvalidPositionFormat{ID: id}
	}

	partition, err := strconv.ParseInt(parts[1], 10, 32)
	if err != nil {
		return Position{}, fmt.Errorf("parsing partition of %q: %w", id, err)
	}
	offset, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return Position{}, fmt.Errorf("parsing offset of %q: %w", id, err)
	}

	p := Position{Topic: parts[0], Partition: int32(partition), Offset: offset}
	if err := p.Validate(); err != nil {
		return Position{}, fmt.Errorf("position %q: %w", id, err)
	}
	return p, nil
}
