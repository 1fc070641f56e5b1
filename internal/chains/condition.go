package chains

import (
	"encoding/json"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"homeops/backend/pkg/models"
)

// EvaluateCondition applies a step's condition to a tool's result payload.
// Fields follow the same path rules as argument sources ("result" addresses
// the whole payload, a "result." prefix is optional). It is total: unknown
// operators, missing fields or values, malformed patterns, and type
// mismatches all evaluate to false. Chain configuration is user data and
// must never take down the call path.
func EvaluateCondition(result any, success bool, spec models.ConditionSpec) bool {
	op := spec.Operator
	if !op.Valid() {
		return false
	}
	switch op {
	case models.OperatorSuccess:
		return success
	case models.OperatorFailed:
		return !success
	}

	if spec.Field == "" {
		return false
	}
	val := resolveSource(result, spec.Field)

	switch op {
	case models.OperatorIsEmpty:
		return isEmptyValue(val)
	case models.OperatorIsNotEmpty:
		return !isEmptyValue(val)
	}

	if spec.Value == "" {
		return false
	}
	switch op {
	case models.OperatorEquals:
		return valuesEqual(val, parseValue(spec.Value))
	case models.OperatorNotEquals:
		return !valuesEqual(val, parseValue(spec.Value))
	case models.OperatorContains:
		found, ok := containsValue(val, parseValue(spec.Value))
		return ok && found
	case models.OperatorNotContains:
		found, ok := containsValue(val, parseValue(spec.Value))
		return ok && !found
	case models.OperatorGreaterThan, models.OperatorLessThan,
		models.OperatorGreaterOrEqual, models.OperatorLessOrEqual:
		lhs, lok := coerceFloat(val)
		rhs, rok := coerceFloat(spec.Value)
		if !lok || !rok {
			return false
		}
		switch op {
		case models.OperatorGreaterThan:
			return lhs > rhs
		case models.OperatorLessThan:
			return lhs < rhs
		case models.OperatorGreaterOrEqual:
			return lhs >= rhs
		default:
			return lhs <= rhs
		}
	case models.OperatorRegex:
		s, ok := val.(string)
		if !ok {
			return false
		}
		re, err := regexp.Compile(spec.Value)
		if err != nil {
			return false
		}
		return re.MatchString(s)
	}
	return false
}

// parseValue decodes a configured comparison value. Values are persisted as
// strings; JSON-looking ones become structured data, the rest stay raw.
func parseValue(raw string) any {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}
	return v
}

// valuesEqual bridges numeric kinds but never strings to numbers, so a list
// length of 5 equals 5 while "5" does not.
func valuesEqual(a, b any) bool {
	if fa, ok := numericValue(a); ok {
		fb, ok := numericValue(b)
		return ok && fa == fb
	}
	return reflect.DeepEqual(a, b)
}

func numericValue(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// coerceFloat additionally accepts numeric strings; ordering comparisons
// coerce both sides this way.
func coerceFloat(v any) (float64, bool) {
	if f, ok := numericValue(v); ok {
		return f, true
	}
	if s, ok := v.(string); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err == nil {
			return f, true
		}
	}
	return 0, false
}

// containsValue checks substring or list membership. ok is false when the
// haystack supports neither, which fails contains and not_contains alike.
func containsValue(hay, needle any) (found, ok bool) {
	switch h := hay.(type) {
	case string:
		if ns, sok := needle.(string); sok {
			return strings.Contains(h, ns), true
		}
		return false, false
	case []any:
		for _, item := range h {
			if valuesEqual(item, needle) {
				return true, true
			}
		}
		return false, true
	}
	return false, false
}

// isEmptyValue treats nil and zero-length strings, lists, and maps as
// empty. Numbers and booleans never are.
func isEmptyValue(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return len(t) == 0
	case []any:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	}
	return false
}
