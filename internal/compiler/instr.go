package compiler

import "fmt"

// Addr indexes the flat instruction vector; also used as a span-table index
// for SetSpan.
type Addr int

// Op is the runtime counterpart of ast.OpKind, restricted to the operators
// the executor actually dispatches through ExecOp. Control words
// (break/continue/return) and the stack-shuffle words (dup/drop/swap/over/
// rot) and the Bool/Nil literals compile to their own dedicated
// instructions instead, so they never reach Op.
type Op int

const (
	OpAdd Op = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpExp
	OpGt
	OpLt
	OpEq
	OpGe
	OpLe
	OpNe
	OpShl
	OpShr
	OpBor
	OpBand
	OpBNot
	OpIndex
	OpStoreAt
	OpIsNil
	OpTrace
)

func (o Op) String() string {
	switch o {
	case OpAdd:
		return "+"
	case OpSub:
		return "-"
	case OpMul:
		return "*"
	case OpDiv:
		return "/"
	case OpMod:
		return "%"
	case OpExp:
		return "**"
	case OpGt:
		return ">"
	case OpLt:
		return "<"
	case OpEq:
		return "="
	case OpGe:
		return ">="
	case OpLe:
		return "<="
	case OpNe:
		return "!="
	case OpShl:
		return "<<"
	case OpShr:
		return ">>"
	case OpBor:
		return "|"
	case OpBand:
		return "&"
	case OpBNot:
		return "~"
	case OpIndex:
		return "@"
	case OpStoreAt:
		return "!"
	case OpIsNil:
		return "?"
	case OpTrace:
		return "trace"
	default:
		return "?op"
	}
}

// Builtin enumerates the names resolved at compile time rather than left as
// a generic binding lookup (spec §4.4.2).
type Builtin int

const (
	BPrint Builtin = iota
	BPrintln
	BEprint
	BEprintln
	BInput
	BInputln
	BExit
	BChr
	BOrd
	BLen
	BTypeof
	BToInt
	BToFloat
	BToString
	BToBool
	BOpen
	BRead
	BReadLine
	BWrite
)

var builtinNames = map[string]Builtin{
	"print": BPrint, "println": BPrintln, "eprint": BEprint, "eprintln": BEprintln,
	"input": BInput, "inputln": BInputln, "exit": BExit,
	"chr": BChr, "ord": BOrd, "len": BLen, "typeof": BTypeof,
	"toint": BToInt, "tofloat": BToFloat, "tostring": BToString, "tobool": BToBool,
	"open": BOpen, "read": BRead, "readline": BReadLine, "write": BWrite,
}

// LookupBuiltin reports whether word names a builtin.
func LookupBuiltin(word string) (Builtin, bool) {
	b, ok := builtinNames[word]
	return b, ok
}

func (b Builtin) String() string {
	for name, v := range builtinNames {
		if v == b {
			return name
		}
	}
	return "?builtin"
}

// Code discriminates which Instr field carries the operand.
type Code int

const (
	Push Code = iota
	PushString
	PushBinding
	SetVariable
	SetDefinition
	ExecOp
	ExecBuiltin
	Jump
	JumpIfNot
	Call
	Return
	BeginScope
	EndScope
	BeginArray
	EndArray
	Dup
	Drop
	Swap
	Over
	Rotate
	SetSpan
)

func (c Code) String() string {
	switch c {
	case Push:
		return "push"
	case PushString:
		return "pushstring"
	case PushBinding:
		return "pushbinding"
	case SetVariable:
		return "setvariable"
	case SetDefinition:
		return "setdefinition"
	case ExecOp:
		return "execop"
	case ExecBuiltin:
		return "execbuiltin"
	case Jump:
		return "jump"
	case JumpIfNot:
		return "jumpifnot"
	case Call:
		return "call"
	case Return:
		return "return"
	case BeginScope:
		return "beginscope"
	case EndScope:
		return "endscope"
	case BeginArray:
		return "beginarray"
	case EndArray:
		return "endarray"
	case Dup:
		return "dup"
	case Drop:
		return "drop"
	case Swap:
		return "swap"
	case Over:
		return "over"
	case Rotate:
		return "rotate"
	case SetSpan:
		return "setspan"
	default:
		return "?instr"
	}
}

// Instr is one flat bytecode instruction. Only the fields relevant to Code
// are meaningful; this mirrors the original compiler's enum-with-payload
// shape flattened into a single struct so the program is one contiguous
// []Instr slice rather than a tree of boxed variants.
type Instr struct {
	Code    Code
	Value   Value   // Push
	Name    string  // PushBinding/SetVariable/SetDefinition
	Text    string  // PushString
	Op      Op      // ExecOp
	Builtin Builtin // ExecBuiltin
	Addr    Addr    // Jump/JumpIfNot/Call/SetSpan
}

// Operand renders the instruction's disassembly operand, the part after
// the mnemonic name in a listing line (spec §6); the mnemonic itself and
// the trailing span comment are added by internal/disasm.
func (i Instr) Operand() string {
	switch i.Code {
	case Push:
		return i.Value.Debug()
	case PushString:
		return fmt.Sprintf("%q", i.Text)
	case PushBinding, SetVariable, SetDefinition:
		return i.Name
	case ExecOp:
		return i.Op.String()
	case ExecBuiltin:
		return i.Builtin.String()
	case Jump, JumpIfNot, Call:
		return fmt.Sprintf("0x%016X", i.Addr)
	case SetSpan:
		return fmt.Sprintf("%d", i.Addr)
	default:
		return ""
	}
}
