package diff

import (
	"fmt"
	"math"
)

// Default fields compared when no explicit list is configured.
var DefaultCompareFields = []string{"title", "progress", "lastUpdated"}

// Config controls how records are compared.
type Config struct {
	// CompareFields is the ordered list of fields examined for each record
	// pair. An empty list compares every non-id field present on either side.
	CompareFields []string `json:"compare_fields" yaml:"compare_fields" mapstructure:"compare_fields"`

	// CaseSensitive controls string comparison.
	CaseSensitive bool `json:"case_sensitive" yaml:"case_sensitive" mapstructure:"case_sensitive"`

	// NumericTolerance is the absolute difference below or equal to which two
	// numbers are considered equal.
	NumericTolerance float64 `json:"numeric_tolerance" yaml:"numeric_tolerance" mapstructure:"numeric_tolerance"`
}

// DefaultConfig returns the comparison defaults.
func DefaultConfig() Config {
	fields := make([]string, len(DefaultCompareFields))
	copy(fields, DefaultCompareFields)
	return Config{
		CompareFields:    fields,
		CaseSensitive:    true,
		NumericTolerance: 0,
	}
}

// Validate reports configuration values the engine cannot work with.
func (c Config) Validate() error {
	if c.NumericTolerance < 0 || math.IsNaN(c.NumericTolerance) || math.IsInf(c.NumericTolerance, 0) {
		return fmt.Errorf("numeric tolerance must be a finite non-negative number, got %v", c.NumericTolerance)
	}
	for i, f := range c.CompareFields {
		if f == "" {
			return fmt.Errorf("compare field at index %d is empty", i)
		}
	}
	return nil
}

func (c Config) clone() Config {
	out := c
	if c.CompareFields != nil {
		out.CompareFields = append([]string(nil), c.CompareFields...)
	}
	return out
}
