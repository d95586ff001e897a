package decl

import (
	"encoding/json"

	"gopkg.in/yaml.v3"
)

// FormatVersion identifies the document layout emitted by this build.
const FormatVersion = 1

// Document is the fully resolved, provider-ready declaration set. Field
// order is fixed and map keys sort during encoding, so equal documents
// encode byte for byte identically.
type Document struct {
	FormatVersion      int                       `json:"format_version" yaml:"format_version"`
	Variables          map[string]any            `json:"variables" yaml:"variables"`
	SensitiveVariables []string                  `json:"sensitive_variables,omitempty" yaml:"sensitive_variables,omitempty"`
	Resources          map[string]map[string]any `json:"resources" yaml:"resources"`
	Backend            *BackendSummary           `json:"backend,omitempty" yaml:"backend,omitempty"`
}

// BackendSummary mirrors the backend block in emitted documents.
type BackendSummary struct {
	Type     string            `json:"type" yaml:"type"`
	Settings map[string]string `json:"settings,omitempty" yaml:"settings,omitempty"`
}

// EncodeJSON renders the document as indented JSON with a trailing
// newline.
func (d *Document) EncodeJSON() ([]byte, error) {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// EncodeYAML renders the document as YAML.
func (d *Document) EncodeYAML() ([]byte, error) {
	return yaml.Marshal(d)
}

// DecodeDocument parses a document previously written by EncodeJSON or
// EncodeYAML, picking the codec by sniffing the first byte.
func DecodeDocument(data []byte) (*Document, error) {
	var d Document
	if isJSONDocument(data) {
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, err
		}
		return &d, nil
	}
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func isJSONDocument(data []byte) bool {
	for _, b := range data {
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		case '{':
			return true
		default:
			return false
		}
	}
	return false
}
