package compiler

import "fmt"

// ValueKind tags the operand-stack element a Value holds.
type ValueKind int

const (
	VNil ValueKind = iota
	VBool
	VInt
	VFloat
	VString
	VArray
	VData
)

func (k ValueKind) String() string {
	switch k {
	case VNil:
		return "nil"
	case VBool:
		return "bool"
	case VInt:
		return "int"
	case VFloat:
		return "float"
	case VString:
		return "string"
	case VArray:
		return "array"
	case VData:
		return "data"
	default:
		return "?value"
	}
}

// Value is a tagged immediate: the operand stack, scope bindings and array
// slots all hold Values by copy, never by pointer, so they're always cheap
// to duplicate (spec §3: "the stack holds only the id").
type Value struct {
	Kind ValueKind
	B    bool
	I    int64
	F    float64
	ID   int // interned string id, array id, or data handle id
}

func Nil() Value            { return Value{Kind: VNil} }
func Bool(b bool) Value     { return Value{Kind: VBool, B: b} }
func Int(i int64) Value     { return Value{Kind: VInt, I: i} }
func Float(f float64) Value { return Value{Kind: VFloat, F: f} }
func Str(id int) Value      { return Value{Kind: VString, ID: id} }
func Arr(id int) Value      { return Value{Kind: VArray, ID: id} }
func Data(id int) Value     { return Value{Kind: VData, ID: id} }

// Truthy reports whether v counts as true for JumpIfNot: only Nil and
// Bool(false) are falsy (spec §4.4).
func (v Value) Truthy() bool {
	switch v.Kind {
	case VNil:
		return false
	case VBool:
		return v.B
	default:
		return true
	}
}

// Debug renders v as a tagged literal, not the resolved string/array
// contents (those live in side tables the Value itself doesn't see). `trace`
// uses it for every kind except strings and arrays, which the executor
// renders from its own tables.
func (v Value) Debug() string {
	switch v.Kind {
	case VNil:
		return "nil"
	case VBool:
		return fmt.Sprintf("bool(%v)", v.B)
	case VInt:
		return fmt.Sprintf("int(%d)", v.I)
	case VFloat:
		return fmt.Sprintf("float(%g)", v.F)
	case VString:
		return fmt.Sprintf("string(#%d)", v.ID)
	case VArray:
		return fmt.Sprintf("array(#%d)", v.ID)
	case VData:
		return fmt.Sprintf("data(#%d)", v.ID)
	default:
		return "?value"
	}
}
