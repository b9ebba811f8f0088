package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/c0deZ3R0/go-sync-engine/record"
)

// readCollection decodes a JSON or YAML file without interpreting it, so
// validation can report what was actually there.
func readCollection(path string) (any, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var v any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &v)
	default:
		err = json.Unmarshal(data, &v)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return v, nil
}

// loadRecords reads path as a record collection. A missing path is an
// empty collection.
func loadRecords(path string) ([]record.Record, error) {
	v, err := readCollection(path)
	if err != nil || v == nil {
		return nil, err
	}
	recs, ok := record.FromAny(v)
	if !ok {
		return nil, fmt.Errorf("%s is not a list of records", path)
	}
	return recs, nil
}
