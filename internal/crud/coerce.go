package crud

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cast"

	"github.com/koustreak/tabula/internal/errs"
	"github.com/koustreak/tabula/internal/schema"
)

// coerce converts a submitted value to the Go type expected by col.
// Values for unknown column types pass through untouched.
func coerce(tableName string, col schema.ColumnInfo, v any) (any, error) {
	if n, ok := v.(json.Number); ok {
		v = n.String()
	}
	if v == nil {
		return nil, nil
	}
	if s, ok := v.(string); ok && s == "" && col.Nullable &&
		col.Type != schema.TypeText && col.Type != schema.TypeUnknown {
		return nil, nil
	}

	var (
		out any
		err error
	)
	switch col.Type {
	case schema.TypeInteger:
		out, err = toInteger(v)
	case schema.TypeReal:
		out, err = toReal(v)
	case schema.TypeBoolean:
		out, err = toBoolean(v)
	case schema.TypeText:
		out, err = toText(v)
	case schema.TypeBlob:
		out, err = toBlob(v)
	default:
		return v, nil
	}
	if err != nil {
		return nil, errs.Validation(tableName, col.Name,
			fmt.Sprintf("column %q expects %s: %v", col.Name, col.Type, err))
	}
	return out, nil
}

func toInteger(v any) (int64, error) {
	switch x := v.(type) {
	case string:
		s := strings.TrimSpace(x)
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("%q is not a number", x)
		}
		return integral(f)
	case float64:
		return integral(x)
	case float32:
		return integral(float64(x))
	default:
		return cast.ToInt64E(v)
	}
}

func integral(f float64) (int64, error) {
	if f != math.Trunc(f) || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, fmt.Errorf("%v is not a whole number", f)
	}
	// float64(math.MaxInt64) rounds up to 2^63, which no int64 can hold.
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, fmt.Errorf("%v is out of range", f)
	}
	return int64(f), nil
}

func toReal(v any) (float64, error) {
	if s, ok := v.(string); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return 0, fmt.Errorf("%q is not a number", s)
		}
		return f, nil
	}
	return cast.ToFloat64E(v)
}

func toBoolean(v any) (bool, error) {
	if s, ok := v.(string); ok {
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "on", "yes", "y":
			return true, nil
		case "off", "no", "n":
			return false, nil
		}
	}
	return cast.ToBoolE(v)
}

func toText(v any) (any, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case time.Time:
		return x, nil
	}
	return cast.ToStringE(v)
}

func toBlob(v any) ([]byte, error) {
	switch x := v.(type) {
	case []byte:
		return x, nil
	case string:
		return []byte(x), nil
	default:
		return nil, fmt.Errorf("unsupported value of type %T", v)
	}
}
