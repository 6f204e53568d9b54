package cli

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/roach88/healthstore/internal/record"
)

// LoadRecords decodes a YAML list of records. Each entry names its record
// type in a "type" field next to the record's own fields:
//
//   - type: STEPS
//     start_time: 1700000000000
//     end_time: 1700000060000
//     count: 120
func LoadRecords(r io.Reader) ([]record.Record, error) {
	var nodes []yaml.Node
	if err := yaml.NewDecoder(r).Decode(&nodes); err != nil {
		if err == io.EOF {
			return []record.Record{}, nil
		}
		return nil, fmt.Errorf("decode records: %w", err)
	}
	out := make([]record.Record, 0, len(nodes))
	for i := range nodes {
		rec, err := record.DecodeYAML(&nodes[i])
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		out = append(out, rec)
	}
	return out, nil
}
