package record

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// yamlHeader picks the concrete record type of one YAML mapping.
type yamlHeader struct {
	Type Type `yaml:"type"`
}

// DecodeYAML decodes one YAML mapping into the record type named by its
// "type" field. The remaining fields are the record's own.
func DecodeYAML(node *yaml.Node) (Record, error) {
	var hdr yamlHeader
	if err := node.Decode(&hdr); err != nil {
		return nil, err
	}
	h, ok := Lookup(hdr.Type)
	if !ok {
		return nil, fmt.Errorf("line %d: unknown record type %q", node.Line, hdr.Type)
	}
	rec := h.New()
	if err := node.Decode(rec); err != nil {
		return nil, fmt.Errorf("line %d: %w", node.Line, err)
	}
	return rec, nil
}
