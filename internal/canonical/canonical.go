// Package canonical implements deterministic canonicalization and hashing of
// JSON-like values. It is the single choke point every identifier in argus
// derives from: two inputs that canonicalize to the same value always digest
// to the same hex string, regardless of key order or platform.
package canonical

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/argus-sec/argus/internal/coded"
)

// undefinedValue is the type behind the Undefined sentinel.
type undefinedValue struct{}

// Undefined marks a value that is explicitly absent. Object fields holding it
// are dropped during canonicalization, so adding one never changes a digest;
// array elements and top-level values collapse to null.
var Undefined = undefinedValue{}

// Canonicalize rewrites v into the canonical value model: Undefined collapses
// to nil, arrays keep their order, objects keep only defined fields. The
// result is stable under repeated application.
func Canonicalize(v any) (any, error) {
	switch val := v.(type) {
	case nil, undefinedValue:
		return nil, nil
	case bool, string, json.Number,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32:
		return val, nil
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return nil, coded.New(coded.CodeInvalidInput, "non-finite number is not representable")
		}

		return val, nil
	case []any:
		out := make([]any, len(val))

		for i, elem := range val {
			c, err := Canonicalize(elem)
			if err != nil {
				return nil, err
			}

			out[i] = c
		}

		return out, nil
	case map[string]any:
		out := make(map[string]any, len(val))

		for k, elem := range val {
			if _, undef := elem.(undefinedValue); undef {
				continue
			}

			c, err := Canonicalize(elem)
			if err != nil {
				return nil, err
			}

			out[k] = c
		}

		return out, nil
	default:
		return nil, coded.New(
			coded.CodeInvalidInput,
			fmt.Sprintf("value of type %T is not representable in the canonical model", v),
		)
	}
}

// MarshalCanonical serializes v as compact JSON with object keys sorted by
// byte-wise ordinal comparison. The byte layout is load-bearing: identifiers
// are hashes of this output.
func MarshalCanonical(v any) ([]byte, error) {
	c, err := Canonicalize(v)
	if err != nil {
		return nil, err
	}

	var sb strings.Builder
	if err := writeCanonical(&sb, c); err != nil {
		return nil, err
	}

	return []byte(sb.String()), nil
}

// Digest returns the SHA-256 of the canonical serialization of v, rendered
// as 64 lowercase hex characters.
func Digest(v any) (string, error) {
	data, err := MarshalCanonical(v)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(data)

	return hex.EncodeToString(sum[:]), nil
}

func writeCanonical(sb *strings.Builder, v any) error {
	switch val := v.(type) {
	case nil:
		sb.WriteString("null")
	case bool:
		if val {
			sb.WriteString("true")
		} else {
			sb.WriteString("false")
		}
	case string:
		writeString(sb, val)
	case json.Number:
		sb.WriteString(val.String())
	case int:
		sb.WriteString(strconv.FormatInt(int64(val), 10))
	case int8:
		sb.WriteString(strconv.FormatInt(int64(val), 10))
	case int16:
		sb.WriteString(strconv.FormatInt(int64(val), 10))
	case int32:
		sb.WriteString(strconv.FormatInt(int64(val), 10))
	case int64:
		sb.WriteString(strconv.FormatInt(val, 10))
	case uint:
		sb.WriteString(strconv.FormatUint(uint64(val), 10))
	case uint8:
		sb.WriteString(strconv.FormatUint(uint64(val), 10))
	case uint16:
		sb.WriteString(strconv.FormatUint(uint64(val), 10))
	case uint32:
		sb.WriteString(strconv.FormatUint(uint64(val), 10))
	case uint64:
		sb.WriteString(strconv.FormatUint(val, 10))
	case float32:
		writeFloat(sb, float64(val))
	case float64:
		writeFloat(sb, val)
	case []any:
		sb.WriteByte('[')

		for i, elem := range val {
			if i > 0 {
				sb.WriteByte(',')
			}

			if err := writeCanonical(sb, elem); err != nil {
				return err
			}
		}

		sb.WriteByte(']')
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}

		// Ordinal byte-wise order, deliberately locale-independent.
		sort.Strings(keys)

		sb.WriteByte('{')

		for i, k := range keys {
			if i > 0 {
				sb.WriteByte(',')
			}

			writeString(sb, k)
			sb.WriteByte(':')

			if err := writeCanonical(sb, val[k]); err != nil {
				return err
			}
		}

		sb.WriteByte('}')
	default:
		return coded.New(
			coded.CodeInvalidInput,
			fmt.Sprintf("value of type %T is not representable in the canonical model", v),
		)
	}

	return nil
}

// writeFloat renders floats deterministically: exact integers drop the
// fraction, everything else uses the shortest round-trip form.
func writeFloat(sb *strings.Builder, f float64) {
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		sb.WriteString(strconv.FormatInt(int64(f), 10))
		return
	}

	sb.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
}

// writeString emits a JSON string with minimal escaping: only the quote,
// backslash and control characters are escaped, never HTML characters.
func writeString(sb *strings.Builder, s string) {
	sb.WriteByte('"')

	for _, r := range s {
		switch r {
		case '"':
			sb.WriteString(`\"`)
		case '\\':
			sb.WriteString(`\\`)
		case '\n':
			sb.WriteString(`\n`)
		case '\r':
			sb.WriteString(`\r`)
		case '\t':
			sb.WriteString(`\t`)
		default:
			if r < 0x20 {
				sb.WriteString(fmt.Sprintf(`\u%04x`, r))
			} else {
				sb.WriteRune(r)
			}
		}
	}

	sb.WriteByte('"')
}
