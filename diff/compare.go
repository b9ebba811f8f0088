package diff

import (
	"encoding/json"
	"math"
	"reflect"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// valuesEqual applies the field comparison rules: both absent is equal, one
// absent is different, numbers honor the tolerance, strings honor case
// sensitivity, times use Equal and everything else is compared deeply.
func valuesEqual(a, b any, aok, bok bool, cfg Config) bool {
	if !aok && !bok {
		return true
	}
	if aok != bok {
		return false
	}

	if isNumeric(a) && isNumeric(b) {
		af, _ := cast.ToFloat64E(a)
		bf, _ := cast.ToFloat64E(b)
		return math.Abs(af-bf) <= cfg.NumericTolerance
	}

	as, aStr := a.(string)
	bs, bStr := b.(string)
	if aStr && bStr {
		if cfg.CaseSensitive {
			return as == bs
		}
		return strings.EqualFold(as, bs)
	}

	at, aTime := a.(time.Time)
	bt, bTime := b.(time.Time)
	if aTime && bTime {
		return at.Equal(bt)
	}

	return reflect.DeepEqual(a, b)
}

func isNumeric(v any) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64, json.Number:
		return true
	default:
		return false
	}
}

// numericDelta returns |a-b| when both values coerce to numbers.
func numericDelta(a, b any) (float64, bool) {
	af, err := cast.ToFloat64E(a)
	if err != nil {
		return 0, false
	}
	bf, err := cast.ToFloat64E(b)
	if err != nil {
		return 0, false
	}
	return math.Abs(af - bf), true
}
