package minipl

import "strconv"

// ValueKind tags the variant held by a Value.
type ValueKind int

const (
	KindNone ValueKind = iota
	KindInt
	KindString
	KindBool
)

func (k ValueKind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindString:
		return "string"
	case KindBool:
		return "bool"
	default:
		return "none"
	}
}

// Value is the single runtime value type. Only the field matching Kind is
// meaningful. KindNone means "no value", never zero or the empty string.
type Value struct {
	Kind ValueKind
	Int  int64
	Str  string
	Bool bool
}

// None is the value of statements and absent branches.
func None() Value { return Value{} }

func IntValue(n int64) Value { return Value{Kind: KindInt, Int: n} }

func StringValue(s string) Value { return Value{Kind: KindString, Str: s} }

func BoolValue(b bool) Value { return Value{Kind: KindBool, Bool: b} }

// IsNone reports whether v carries no value.
func (v Value) IsNone() bool { return v.Kind == KindNone }

// String returns the display form used by print and by the final result.
func (v Value) String() string {
	switch v.Kind {
	case KindInt:
		return strconv.FormatInt(v.Int, 10)
	case KindString:
		return v.Str
	case KindBool:
		return strconv.FormatBool(v.Bool)
	default:
		return ""
	}
}

// Interface converts v to a plain Go value (int64, string, bool or nil),
// which is what JSON encoding and the YAML suites compare against.
func (v Value) Interface() any {
	switch v.Kind {
	case KindInt:
		return v.Int
	case KindString:
		return v.Str
	case KindBool:
		return v.Bool
	default:
		return nil
	}
}

// zeroValue is what a declaration without initializer stores. Booleans
// start out true.
func zeroValue(typ TokenType) (Value, bool) {
	switch typ {
	case TokenInt:
		return IntValue(0), true
	case TokenStr:
		return StringValue(""), true
	case TokenBool:
		return BoolValue(true), true
	default:
		return None(), false
	}
}
