package ingest

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SynonymFile is the on-disk format for extra header synonyms:
//
//	synonyms:
//	  firstName: [given, prenom]
//	  campus: [uc_location]
type SynonymFile struct {
	Synonyms map[Field][]string `yaml:"synonyms"`
}

// LoadSynonyms reads a YAML synonym file and returns header → field entries
// suitable for NewMapper. Unknown field names are rejected.
func LoadSynonyms(path string) (map[string]Field, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read synonyms: %w", err)
	}
	return ParseSynonyms(b)
}

// ParseSynonyms decodes YAML synonym data.
func ParseSynonyms(data []byte) (map[string]Field, error) {
	var f SynonymFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse synonyms: %w", err)
	}

	out := make(map[string]Field)
	for field, headers := range f.Synonyms {
		if field == Skip || !field.Valid() {
			return nil, fmt.Errorf("parse synonyms: unknown field %q", field)
		}
		for _, h := range headers {
			if NormalizeHeader(h) == "" {
				continue
			}
			out[h] = field
		}
	}
	return out, nil
}
