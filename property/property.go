// Package property provides the dynamically-typed key/value map attached to
// every service, and the Filter predicate used to scope dependency injection.
// Values are a tagged variant over the closed set of kinds the container
// actually uses; unknown keys are inert.
package property

import (
	"fmt"

	"github.com/c360/servicekit/errors"
)

// Well-known keys recognized by the container.
const (
	// KeyPriority holds the initial priority for the owning service's
	// events and start/stop scheduling (uint kind).
	KeyPriority = "Priority"
	// KeyFilter holds the injection predicate (filter kind).
	KeyFilter = "Filter"
	// KeyLogLevel holds the requested log level (enum kind). Consumed by
	// the logger tracker.
	KeyLogLevel = "LogLevel"
	// KeyTargetServiceID holds the service id a runtime-created provider
	// is scoped to (uint kind). Consumed by the logger tracker.
	KeyTargetServiceID = "TargetServiceId"
)

// Kind identifies the variant stored in a Value.
type Kind int

// Supported value kinds.
const (
	KindBool Kind = iota
	KindInt
	KindUint
	KindFloat
	KindString
	KindBytes
	KindFilter
	KindEnum
)

// String returns a string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindUint:
		return "uint"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindBytes:
		return "bytes"
	case KindFilter:
		return "filter"
	case KindEnum:
		return "enum"
	default:
		return "unknown"
	}
}

// Enum is a named enumeration value. The container stores enums opaquely;
// consumers convert the ordinal back to their own enum type.
type Enum struct {
	Name    string
	Ordinal int64
}

// Value is a tagged variant holding one property value.
type Value struct {
	kind   Kind
	b      bool
	i      int64
	u      uint64
	f      float64
	s      string
	bytes  []byte
	filter *Filter
	enum   Enum
}

// Bool wraps a bool value.
func Bool(v bool) Value { return Value{kind: KindBool, b: v} }

// Int wraps a signed integer value.
func Int(v int64) Value { return Value{kind: KindInt, i: v} }

// Uint wraps an unsigned integer value.
func Uint(v uint64) Value { return Value{kind: KindUint, u: v} }

// Float wraps a float value.
func Float(v float64) Value { return Value{kind: KindFloat, f: v} }

// String wraps a string value.
func String(v string) Value { return Value{kind: KindString, s: v} }

// Bytes wraps a byte-vector value. The slice is stored as-is.
func Bytes(v []byte) Value { return Value{kind: KindBytes, bytes: v} }

// FilterValue wraps a Filter.
func FilterValue(f *Filter) Value { return Value{kind: KindFilter, filter: f} }

// EnumValue wraps a named enumeration value.
func EnumValue(name string, ordinal int64) Value {
	return Value{kind: KindEnum, enum: Enum{Name: name, Ordinal: ordinal}}
}

// Kind returns the variant stored in the value.
func (v Value) Kind() Kind { return v.kind }

// Bool returns the bool payload; ok is false for other kinds.
func (v Value) Bool() (value, ok bool) { return v.b, v.kind == KindBool }

// Int returns the signed integer payload; ok is false for other kinds.
func (v Value) Int() (int64, bool) { return v.i, v.kind == KindInt }

// Uint returns the unsigned integer payload; ok is false for other kinds.
func (v Value) Uint() (uint64, bool) { return v.u, v.kind == KindUint }

// Float returns the float payload; ok is false for other kinds.
func (v Value) Float() (float64, bool) { return v.f, v.kind == KindFloat }

// Str returns the string payload; ok is false for other kinds.
func (v Value) Str() (string, bool) { return v.s, v.kind == KindString }

// BytesValue returns the byte-vector payload; ok is false for other kinds.
func (v Value) BytesValue() ([]byte, bool) { return v.bytes, v.kind == KindBytes }

// Filter returns the filter payload; ok is false for other kinds.
func (v Value) Filter() (*Filter, bool) { return v.filter, v.kind == KindFilter }

// Enum returns the enum payload; ok is false for other kinds.
func (v Value) Enum() (Enum, bool) { return v.enum, v.kind == KindEnum }

// Equal reports whether two values have the same kind and payload. Filters
// compare by pointer identity; byte vectors compare element-wise.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindBool:
		return v.b == other.b
	case KindInt:
		return v.i == other.i
	case KindUint:
		return v.u == other.u
	case KindFloat:
		return v.f == other.f
	case KindString:
		return v.s == other.s
	case KindBytes:
		if len(v.bytes) != len(other.bytes) {
			return false
		}
		for i := range v.bytes {
			if v.bytes[i] != other.bytes[i] {
				return false
			}
		}
		return true
	case KindFilter:
		return v.filter == other.filter
	case KindEnum:
		return v.enum == other.enum
	default:
		return false
	}
}

// String implements fmt.Stringer for diagnostics.
func (v Value) String() string {
	switch v.kind {
	case KindBool:
		return fmt.Sprintf("%v", v.b)
	case KindInt:
		return fmt.Sprintf("%d", v.i)
	case KindUint:
		return fmt.Sprintf("%d", v.u)
	case KindFloat:
		return fmt.Sprintf("%g", v.f)
	case KindString:
		return v.s
	case KindBytes:
		return fmt.Sprintf("bytes[%d]", len(v.bytes))
	case KindFilter:
		return "filter"
	case KindEnum:
		return fmt.Sprintf("%s(%d)", v.enum.Name, v.enum.Ordinal)
	default:
		return "unknown"
	}
}

// Properties is the keyed map owned by a service. It is set at construction
// and may be mutated only by the owning service afterwards.
type Properties map[string]Value

// Clone returns a shallow copy of the properties map.
func (p Properties) Clone() Properties {
	if p == nil {
		return nil
	}
	out := make(Properties, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// GetUint extracts an unsigned integer with a default fallback.
func (p Properties) GetUint(key string, defaultValue uint64) uint64 {
	if v, ok := p[key]; ok {
		if u, isUint := v.Uint(); isUint {
			return u
		}
	}
	return defaultValue
}

// GetBool extracts a bool with a default fallback.
func (p Properties) GetBool(key string, defaultValue bool) bool {
	if v, ok := p[key]; ok {
		if b, isBool := v.Bool(); isBool {
			return b
		}
	}
	return defaultValue
}

// GetString extracts a string with a default fallback.
func (p Properties) GetString(key, defaultValue string) string {
	if v, ok := p[key]; ok {
		if s, isStr := v.Str(); isStr {
			return s
		}
	}
	return defaultValue
}

// GetFloat extracts a float with a default fallback.
func (p Properties) GetFloat(key string, defaultValue float64) float64 {
	if v, ok := p[key]; ok {
		if f, isFloat := v.Float(); isFloat {
			return f
		}
	}
	return defaultValue
}

// GetFilter extracts the filter stored under key, or nil.
func (p Properties) GetFilter(key string) *Filter {
	if v, ok := p[key]; ok {
		if f, isFilter := v.Filter(); isFilter {
			return f
		}
	}
	return nil
}

// GetEnum extracts an enum value.
func (p Properties) GetEnum(key string) (Enum, error) {
	v, ok := p[key]
	if !ok {
		return Enum{}, errors.WrapInvalid(errors.ErrPropertyNotFound, "Properties", "GetEnum", key)
	}
	e, isEnum := v.Enum()
	if !isEnum {
		return Enum{}, errors.WrapInvalid(errors.ErrPropertyKind, "Properties", "GetEnum", key)
	}
	return e, nil
}
