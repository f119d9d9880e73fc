package alerting

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Condition is the normalised {field, operator, threshold} triple every rule
// is reduced to when it is loaded.
type Condition struct {
	Field     string  `json:"field" yaml:"field"`
	Operator  string  `json:"operator" yaml:"operator"`
	Threshold float64 `json:"threshold" yaml:"threshold"`
}

var ErrInvalidCondition = errors.New("invalid condition")

// DecodeCondition accepts the flat form {"field":..,"operator":..,"threshold":..}
// or the nested form {"<field>": {"<operator>": <threshold>}}. When the flat keys
// are incomplete, the first object-valued key decides, in document order: its
// first operator/threshold pair wins, and an empty object is invalid.
func DecodeCondition(raw []byte) (Condition, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return Condition{}, fmt.Errorf("%w: empty", ErrInvalidCondition)
	}

	var flat map[string]json.RawMessage
	if err := json.Unmarshal(raw, &flat); err != nil {
		return Condition{}, fmt.Errorf("%w: %v", ErrInvalidCondition, err)
	}

	if c, ok := decodeFlat(flat); ok {
		return c, nil
	}

	c, ok, err := decodeNested(raw)
	if err != nil {
		return Condition{}, fmt.Errorf("%w: %v", ErrInvalidCondition, err)
	}
	if !ok {
		return Condition{}, fmt.Errorf("%w: missing field, operator or threshold", ErrInvalidCondition)
	}
	return c, nil
}

func decodeFlat(m map[string]json.RawMessage) (Condition, bool) {
	var c Condition
	if err := json.Unmarshal(m["field"], &c.Field); err != nil || c.Field == "" {
		return Condition{}, false
	}
	if err := json.Unmarshal(m["operator"], &c.Operator); err != nil || c.Operator == "" {
		return Condition{}, false
	}
	t, ok := parseThreshold(m["threshold"])
	if !ok {
		return Condition{}, false
	}
	c.Threshold = t
	return c, true
}

// decodeNested walks the object with a token decoder so key order is preserved.
func decodeNested(raw []byte) (Condition, bool, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	if err := expectDelim(dec, '{'); err != nil {
		return Condition{}, false, err
	}

	for dec.More() {
		key, err := readKey(dec)
		if err != nil {
			return Condition{}, false, err
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return Condition{}, false, err
		}
		value = bytes.TrimSpace(value)
		if key == "" || len(value) == 0 || value[0] != '{' {
			continue
		}

		inner := json.NewDecoder(bytes.NewReader(value))
		if err := expectDelim(inner, '{'); err != nil {
			return Condition{}, false, err
		}
		if !inner.More() {
			return Condition{}, false, nil
		}
		op, err := readKey(inner)
		if err != nil {
			return Condition{}, false, err
		}
		var thresh json.RawMessage
		if err := inner.Decode(&thresh); err != nil {
			return Condition{}, false, err
		}
		t, ok := parseThreshold(thresh)
		if op == "" || !ok {
			return Condition{}, false, nil
		}
		return Condition{Field: key, Operator: op, Threshold: t}, true, nil
	}
	return Condition{}, false, nil
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("expected %q, got %v", want, tok)
	}
	return nil
}

func readKey(dec *json.Decoder) (string, error) {
	tok, err := dec.Token()
	if err != nil {
		return "", err
	}
	key, ok := tok.(string)
	if !ok {
		return "", fmt.Errorf("expected object key, got %v", tok)
	}
	return key, nil
}

func parseThreshold(raw json.RawMessage) (float64, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, false
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, false
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, false
	}
	f, err := n.Float64()
	if err != nil || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// KnownOperator reports whether Compare understands op.
func KnownOperator(op string) bool {
	switch op {
	case ">", "gt", "<", "lt", ">=", "gte", "<=", "lte", "==", "!=":
		return true
	}
	return false
}

// Compare applies op to value and threshold. Unknown operators never match.
func Compare(value float64, op string, threshold float64) bool {
	switch op {
	case ">", "gt":
		return value > threshold
	case "<", "lt":
		return value < threshold
	case ">=", "gte":
		return value >= threshold
	case "<=", "lte":
		return value <= threshold
	case "==":
		return value == threshold
	case "!=":
		return value != threshold
	default:
		return false
	}
}

// ExtractValue resolves a dotted path through nested maps and coerces the leaf
// to a float64. A missing key, a non-map intermediate or an uncoercible leaf all
// yield ok=false.
func ExtractValue(data map[string]interface{}, path string) (float64, bool) {
	if data == nil || path == "" {
		return 0, false
	}

	var current interface{} = data
	for _, key := range strings.Split(path, ".") {
		m, ok := current.(map[string]interface{})
		if !ok {
			return 0, false
		}
		current, ok = m[key]
		if !ok {
			return 0, false
		}
	}
	return toFloat(current)
}

func toFloat(v interface{}) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint:
		f = float64(n)
	case uint32:
		f = float64(n)
	case uint64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	case bool:
		if n {
			f = 1
		}
	default:
		return 0, false
	}
	if math.IsNaN(f) {
		return 0, false
	}
	return f, true
}
