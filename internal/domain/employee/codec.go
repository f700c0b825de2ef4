package employee

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ahrav/streambatch/internal/domain/stream"
)

var _ stream.Codec[Employee] = Codec{}

// ErrEmptyPayload is returned when a record carries no data.
var ErrEmptyPayload = errors.New("empty payload")

// Codec decodes JSON employee payloads.
type Codec struct{}

// NewCodec creates a Codec.
func NewCodec() Codec { return Codec{} }

// Decode unmarshals the record payload into an Employee.
func (Codec) Decode(raw stream.RawRecord) (Employee, error) {
	if len(raw.Data) == 0 {
		return Employee{}, ErrEmptyPayload
	}

	var e Employee
	if err := json.Unmarshal(raw.Data, &e); err != nil {
		return Employee{}, fmt.Errorf("unmarshal employee: %w", err)
	}
	return e, nil
}

// Encode marshals an employee into a record payload.
func Encode(e Employee) ([]byte, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal employee: %w", err)
	}
	return b, nil
}
