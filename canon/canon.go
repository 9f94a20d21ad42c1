// Package canon implements the single canonical-JSON encoder shared by
// ledger (record hashing) and policy (config hashing), so the two hash
// computations in the system can never drift apart from each other.
//
// Canonical form: object keys sorted lexicographically, UTF-8, no
// insignificant whitespace, numbers in the shortest round-trip decimal
// form, arrays for ordered sequences, explicit null for absent optional
// fields. Two conforming implementations on the same logical value must
// produce byte-identical output.
package canon

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Marshal renders v (built from maps, slices, strings, bools, nil, and
// float64/int numbers — the shapes produced by ToValue helpers across the
// kernel) to its canonical byte form.
func Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := encode(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encode(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case nil:
		buf.WriteString("null")
		return nil
	case bool:
		if val {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
		return nil
	case string:
		encoded, err := json.Marshal(val)
		if err != nil {
			return err
		}
		buf.Write(encoded)
		return nil
	case float64:
		return encodeFloat(buf, val)
	case int:
		fmt.Fprintf(buf, "%d", val)
		return nil
	case int64:
		fmt.Fprintf(buf, "%d", val)
		return nil
	case []any:
		return encodeArray(buf, val)
	case map[string]any:
		return encodeObject(buf, val)
	default:
		return fmt.Errorf("canon: unsupported type %T", v)
	}
}

func encodeFloat(buf *bytes.Buffer, f float64) error {
	// json.Marshal on a float64 already produces the shortest round-trip
	// decimal form required by the wire format; NaN/Inf have no JSON
	// representation and must never reach canonical encoding.
	encoded, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("canon: non-finite float cannot be canonicalized: %w", err)
	}
	buf.Write(encoded)
	return nil
}

func encodeArray(buf *bytes.Buffer, arr []any) error {
	buf.WriteByte('[')
	for i, elem := range arr {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := encode(buf, elem); err != nil {
			return err
		}
	}
	buf.WriteByte(']')
	return nil
}

func encodeObject(buf *bytes.Buffer, obj map[string]any) error {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyBytes, err := json.Marshal(k)
		if err != nil {
			return err
		}
		buf.Write(keyBytes)
		buf.WriteByte(':')
		if err := encode(buf, obj[k]); err != nil {
			return err
		}
	}
	buf.WriteByte('}')
	return nil
}

// Pair renders an (n, u) pair as the two-element array form mandated by the
// wire format.
func Pair(n, u float64) []any {
	return []any{n, u}
}
