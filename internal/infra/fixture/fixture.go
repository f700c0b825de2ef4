// Package fixture loads stream batches described in YAML files so they can be
// replayed through a handler without a broker.
//
// A fixture looks like:
//
//	records:
//	  - sequence_id: "49590338271490256608559692538361571095921575989136588801"
//	    partition_key: employees
//	    attributes:
//	      source: hr
//	    json:
//	      employeeId: E-1
//	      email: ada@example.com
//	  - sequence_id: "49590338271490256608559692538361571095921575989136588802"
//	    data: "not json"
//
// A record carries its payload either verbatim in data or as a YAML mapping
// in json, which is re-encoded as JSON.
package fixture

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ahrav/streambatch/internal/domain/stream"
)

var (
	// ErrAmbiguousPayload is returned when a record sets both data and json.
	ErrAmbiguousPayload = errors.New("record sets both data and json")
)

type file struct {
	Records []record `yaml:"records"`
}

type record struct {
	SequenceID   string            `yaml:"sequence_id"`
	PartitionKey string            `yaml:"partition_key"`
	Attributes   map[string]string `yaml:"attributes"`
	Data         *string           `yaml:"data"`
	JSON         map[string]any    `yaml:"json"`
}

// Load reads the fixture at path.
func Load(path string) (stream.Batch, error) {
	f, err := os.Open(path)
	if err != nil {
		return stream.Batch{}, fmt.Errorf("opening fixture: %w", err)
	}
	defer f.Close()

	return Decode(f)
}

// Decode reads a fixture from r. Sequence identifiers are taken as written;
// checking them is left to the handler.
func Decode(r io.Reader) (stream.Batch, error) {
	var doc file
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return stream.NewBatch(), nil
		}
		return stream.Batch{}, fmt.Errorf("decoding fixture: %w", err)
	}

	now := time.Now().UTC()
	records := make([]stream.RawRecord, 0, len(doc.Records))
	for i, rec := range doc.Records {
		data, err := rec.payload()
		if err != nil {
			return stream.Batch{}, fmt.Errorf("record %d: %w", i, err)
		}
		records = append(records, stream.RawRecord{
			SequenceID:   rec.SequenceID,
			PartitionKey: rec.PartitionKey,
			Data:         data,
			Attributes:   rec.Attributes,
			ArrivedAt:    now,
		})
	}

	return stream.NewBatch(records...), nil
}

func (r record) payload() ([]byte, error) {
	switch {
	case r.Data != nil && r.JSON != nil:
		return nil, ErrAmbiguousPayload
	case r.Data != nil:
		return []byte(*r.Data), nil
	case r.JSON != nil:
		b, err := json.Marshal(r.JSON)
		if err != nil {
			return nil, fmt.Errorf("encoding json payload: %w", err)
		}
		return b, nil
	default:
		return nil, nil
	}
}
