package fixture

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
records:
  - sequence_id: "1"
    partition_key: employees
    attributes:
      source: hr
    json:
      employeeId: E-1
      email: ada@example.com
  - sequence_id: "2"
    data: "not json"
  - sequence_id: "3"
`

func TestDecode(t *testing.T) {
	batch, err := Decode(strings.NewReader(sample))
	require.NoError(t, err)
	require.Equal(t, 3, batch.Len())

	assert.Equal(t, []string{"1", "2", "3"}, batch.SequenceIDs())
	assert.Equal(t, "employees", batch.Records[0].PartitionKey)
	assert.Equal(t, "hr", batch.Records[0].Attributes["source"])

	var payload map[string]string
	require.NoError(t, json.Unmarshal(batch.Records[0].Data, &payload))
	assert.Equal(t, "E-1", payload["employeeId"])

	assert.Equal(t, []byte("not json"), batch.Records[1].Data)
	assert.Empty(t, batch.Records[2].Data)
	assert.False(t, batch.Records[0].ArrivedAt.IsZero())
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{
			name:    "both payload kinds",
			input:   "records:\n  - sequence_id: \"1\"\n    data: x\n    json: {a: 1}\n",
			wantErr: ErrAmbiguousPayload,
		},
		{name: "unknown field", input: "records:\n  - sequence: \"1\"\n"},
		{name: "not yaml", input: "records: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.input))
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestDecodeEmpty(t *testing.T) {
	batch, err := Decode(strings.NewReader(""))
	require.NoError(t, err)
	assert.Zero(t, batch.Len())
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "batch.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))

	batch, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, batch.Len())

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
