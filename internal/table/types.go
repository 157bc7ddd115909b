package table

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/spf13/cast"
)

// Logical kinds every declared column type folds into.
const (
	KindInt    = "int"
	KindDouble = "double"
	KindBool   = "boolean"
	KindString = "string"
)

// Kind folds a declared column type onto one of the logical kinds.
func Kind(typ string) string {
	switch strings.ToLower(strings.TrimSpace(typ)) {
	case "bigint", "int", "integer", "long", "smallint", "tinyint", "int8", "int4", "int2":
		return KindInt
	case "double", "float", "real", "decimal", "numeric", "float8", "float4":
		return KindDouble
	case "boolean", "bool":
		return KindBool
	default:
		return KindString
	}
}

// Coerce converts v to the Go representation of typ: int64, float64, bool or
// string. nil stays nil. ok is false when v cannot be represented, in which
// case the returned value is nil (permissive parsing: bad cells become NULL).
func Coerce(v any, typ string) (out any, ok bool) {
	if v == nil {
		return nil, true
	}
	if n, isNum := v.(json.Number); isNum {
		v = n.String()
	}
	s, isStr := v.(string)
	if isStr {
		s = strings.TrimSpace(s)
	}

	switch Kind(typ) {
	case KindInt:
		if isStr {
			n, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return nil, false
			}
			return n, true
		}
		if _, isBool := v.(bool); isBool {
			return nil, false
		}
		n, err := cast.ToInt64E(v)
		if err != nil {
			return nil, false
		}
		return n, true
	case KindDouble:
		if isStr {
			f, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, false
			}
			return f, true
		}
		if _, isBool := v.(bool); isBool {
			return nil, false
		}
		f, err := cast.ToFloat64E(v)
		if err != nil {
			return nil, false
		}
		return f, true
	case KindBool:
		if isStr {
			b, err := strconv.ParseBool(strings.ToLower(s))
			if err != nil {
				return nil, false
			}
			return b, true
		}
		b, err := cast.ToBoolE(v)
		if err != nil {
			return nil, false
		}
		return b, true
	default:
		if isStr {
			return v.(string), true
		}
		str, err := cast.ToStringE(v)
		if err != nil {
			return nil, false
		}
		return str, true
	}
}

// Numeric returns v as a float64 when it is a number or a numeric string.
// Booleans and nil are not numeric.
func Numeric(v any) (float64, bool) {
	switch x := v.(type) {
	case nil, bool:
		return 0, false
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	}
	f, err := cast.ToFloat64E(v)
	return f, err == nil
}
