package action

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadCatalog reads and validates the YAML catalog at path.
//
// Precondition: path must name a readable YAML file.
// Postcondition: Returns a Catalog, or an error if the file cannot be read,
// contains unknown fields, or fails validation.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading action catalog %q: %w", path, err)
	}
	cat, err := ParseCatalog(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %q: %w", path, err)
	}
	return cat, nil
}

// ParseCatalog decodes a YAML catalog document and validates it.
//
// Postcondition: Returns a Catalog or a non-nil error.
func ParseCatalog(data []byte) (*Catalog, error) {
	var doc Document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decoding action catalog: %w", err)
	}
	return NewCatalog(doc)
}
