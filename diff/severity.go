package diff

// Severity ranks a single field change.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Rank orders severities, low being 1. Unknown values rank 0.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	default:
		return 0
	}
}

const (
	progressHighDelta   = 50
	progressMediumDelta = 25
)

// FieldSeverity classifies a change of field from one value to another.
func FieldSeverity(field string, from, to any) Severity {
	switch field {
	case "progress":
		delta, ok := numericDelta(from, to)
		if !ok {
			return SeverityLow
		}
		switch {
		case delta >= progressHighDelta:
			return SeverityHigh
		case delta >= progressMediumDelta:
			return SeverityMedium
		default:
			return SeverityLow
		}
	case "title":
		return SeverityMedium
	default:
		return SeverityLow
	}
}
