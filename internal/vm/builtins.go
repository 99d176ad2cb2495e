package vm

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/marc-dantas/pile/internal/compiler"
)

// execBuiltin dispatches every ExecBuiltin instruction (spec §4.4.2). A
// non-nil *int return signals `exit`: the caller of step/Run should stop
// immediately with that code.
func (e *Executor) execBuiltin(b compiler.Builtin) (*int, error) {
	switch b {
	case compiler.BPrint:
		return nil, e.printTo(e.stdout, false)
	case compiler.BPrintln:
		return nil, e.printTo(e.stdout, true)
	case compiler.BEprint:
		return nil, e.printTo(e.stderr, false)
	case compiler.BEprintln:
		return nil, e.printTo(e.stderr, true)
	case compiler.BInput:
		return nil, e.input()
	case compiler.BInputln:
		return nil, e.inputln()
	case compiler.BExit:
		return e.exit()
	case compiler.BChr:
		return nil, e.chr()
	case compiler.BOrd:
		return nil, e.ord()
	case compiler.BLen:
		return nil, e.length()
	case compiler.BTypeof:
		return nil, e.typeOf()
	case compiler.BToInt:
		return nil, e.toInt()
	case compiler.BToFloat:
		return nil, e.toFloat()
	case compiler.BToString:
		return nil, e.toStringBuiltin()
	case compiler.BToBool:
		return nil, e.toBool()
	case compiler.BOpen:
		return nil, e.open()
	case compiler.BRead:
		return nil, e.readBuiltin(false)
	case compiler.BReadLine:
		return nil, e.readBuiltin(true)
	case compiler.BWrite:
		return nil, e.write()
	default:
		return nil, fmt.Errorf("unimplemented builtin %s", b)
	}
}

func (e *Executor) stringify(v compiler.Value) string {
	switch v.Kind {
	case compiler.VNil:
		return "nil"
	case compiler.VBool:
		return strconv.FormatBool(v.B)
	case compiler.VInt:
		return strconv.FormatInt(v.I, 10)
	case compiler.VFloat:
		return strconv.FormatFloat(v.F, 'g', -1, 64)
	case compiler.VString:
		return e.text(v)
	case compiler.VArray:
		parts := make([]string, len(e.arrays[v.ID]))
		for i, elem := range e.arrays[v.ID] {
			parts[i] = e.stringify(elem)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case compiler.VData:
		if h, ok := e.datas[v.ID]; ok {
			return fmt.Sprintf("<data %s>", h.name)
		}
		return "<data>"
	default:
		return "?"
	}
}

func (e *Executor) printTo(w io.Writer, newline bool) error {
	v, err := e.pop("print")
	if err != nil {
		return err
	}
	s := e.stringify(v)
	if newline {
		s += "\n"
	}
	if _, werr := io.WriteString(w, s); werr != nil {
		return e.wrapIOErr("print", werr)
	}
	return nil
}

func (e *Executor) input() error {
	s, err := e.stdinHandle.readAll()
	if err != nil && err != io.EOF {
		return e.wrapIOErr("input", err)
	}
	e.push(compiler.Str(e.intern(s)))
	return nil
}

func (e *Executor) inputln() error {
	s, err := e.stdinHandle.readLine()
	if err != nil {
		e.push(compiler.Nil())
		return nil
	}
	e.push(compiler.Str(e.intern(s)))
	return nil
}

func (e *Executor) exit() (*int, error) {
	v, err := e.pop("exit")
	if err != nil {
		return nil, err
	}
	if v.Kind != compiler.VInt {
		return nil, errUnexpectedType(e.currentSpan(), "exit", "Int", v.Kind.String())
	}
	code := int(v.I)
	return &code, nil
}

func (e *Executor) chr() error {
	v, err := e.pop("chr")
	if err != nil {
		return err
	}
	if v.Kind != compiler.VInt {
		return errUnexpectedType(e.currentSpan(), "chr", "Int", v.Kind.String())
	}
	r := rune(v.I)
	if v.I < 0 || v.I > 0x10FFFF || (r >= 0xD800 && r <= 0xDFFF) {
		e.push(compiler.Nil())
		return nil
	}
	e.push(compiler.Str(e.intern(string(r))))
	return nil
}

func (e *Executor) ord() error {
	v, err := e.pop("ord")
	if err != nil {
		return err
	}
	if v.Kind != compiler.VString {
		return errUnexpectedType(e.currentSpan(), "ord", "String", v.Kind.String())
	}
	runes := []rune(e.text(v))
	if len(runes) == 0 {
		e.push(compiler.Nil())
		return nil
	}
	e.push(compiler.Int(int64(runes[0])))
	return nil
}

func (e *Executor) length() error {
	v, err := e.pop("len")
	if err != nil {
		return err
	}
	switch v.Kind {
	case compiler.VString:
		e.push(compiler.Int(int64(len([]rune(e.text(v))))))
	case compiler.VArray:
		e.push(compiler.Int(int64(len(e.arrays[v.ID]))))
	default:
		return errUnexpectedType(e.currentSpan(), "len", "String or Array", v.Kind.String())
	}
	return nil
}

func (e *Executor) typeOf() error {
	v, err := e.pop("typeof")
	if err != nil {
		return err
	}
	e.push(compiler.Str(e.intern(v.Kind.String())))
	return nil
}

func (e *Executor) toInt() error {
	v, err := e.pop("toint")
	if err != nil {
		return err
	}
	switch v.Kind {
	case compiler.VInt:
		e.push(v)
	case compiler.VFloat:
		e.push(compiler.Int(int64(v.F)))
	case compiler.VBool:
		if v.B {
			e.push(compiler.Int(1))
		} else {
			e.push(compiler.Int(0))
		}
	case compiler.VString:
		i, perr := strconv.ParseInt(strings.TrimSpace(e.text(v)), 10, 64)
		if perr != nil {
			e.push(compiler.Nil())
			return nil
		}
		e.push(compiler.Int(i))
	default:
		e.push(compiler.Nil())
	}
	return nil
}

func (e *Executor) toFloat() error {
	v, err := e.pop("tofloat")
	if err != nil {
		return err
	}
	switch v.Kind {
	case compiler.VFloat:
		e.push(v)
	case compiler.VInt:
		e.push(compiler.Float(float64(v.I)))
	case compiler.VBool:
		if v.B {
			e.push(compiler.Float(1))
		} else {
			e.push(compiler.Float(0))
		}
	case compiler.VString:
		f, perr := strconv.ParseFloat(strings.TrimSpace(e.text(v)), 64)
		if perr != nil {
			e.push(compiler.Nil())
			return nil
		}
		e.push(compiler.Float(f))
	default:
		e.push(compiler.Nil())
	}
	return nil
}

func (e *Executor) toStringBuiltin() error {
	v, err := e.pop("tostring")
	if err != nil {
		return err
	}
	e.push(compiler.Str(e.intern(e.stringify(v))))
	return nil
}

func (e *Executor) toBool() error {
	v, err := e.pop("tobool")
	if err != nil {
		return err
	}
	switch v.Kind {
	case compiler.VBool:
		e.push(v)
	case compiler.VNil:
		e.push(compiler.Bool(false))
	case compiler.VInt:
		e.push(compiler.Bool(v.I != 0))
	case compiler.VFloat:
		e.push(compiler.Bool(v.F != 0))
	case compiler.VString:
		e.push(compiler.Bool(e.text(v) != ""))
	default:
		e.push(compiler.Bool(true))
	}
	return nil
}

func (e *Executor) open() error {
	v, err := e.pop("open")
	if err != nil {
		return err
	}
	if v.Kind != compiler.VString {
		return errUnexpectedType(e.currentSpan(), "open", "String", v.Kind.String())
	}
	h, oerr := openFileHandle(e.text(v))
	if oerr != nil {
		return e.wrapIOErr("open", oerr)
	}
	id := e.nextData
	e.nextData++
	e.datas[id] = h
	e.push(compiler.Data(id))
	return nil
}

func (e *Executor) dataArg(op string) (*handle, error) {
	v, err := e.pop(op)
	if err != nil {
		return nil, err
	}
	if v.Kind != compiler.VData {
		return nil, errUnexpectedType(e.currentSpan(), op, "Data", v.Kind.String())
	}
	h, ok := e.datas[v.ID]
	if !ok {
		return nil, errInvalidSymbol(e.currentSpan(), "<data>", "")
	}
	return h, nil
}

func (e *Executor) readBuiltin(line bool) error {
	op := "read"
	if line {
		op = "readline"
	}
	h, err := e.dataArg(op)
	if err != nil {
		return err
	}
	var s string
	var rerr error
	if line {
		s, rerr = h.readLine()
	} else {
		s, rerr = h.readAll()
	}
	if rerr != nil && rerr != io.EOF {
		return e.wrapIOErr(op, rerr)
	}
	e.push(compiler.Str(e.intern(s)))
	return nil
}

func (e *Executor) write() error {
	text, err := e.pop("write")
	if err != nil {
		return err
	}
	if text.Kind != compiler.VString {
		return errUnexpectedType(e.currentSpan(), "write", "String", text.Kind.String())
	}
	h, err := e.dataArg("write")
	if err != nil {
		return err
	}
	if werr := h.write(e.text(text)); werr != nil {
		return e.wrapIOErr("write", werr)
	}
	return nil
}

func (e *Executor) wrapIOErr(op string, cause error) error {
	return wrapRuntime(e.currentSpan(), fmt.Sprintf("I/O failure in `%s`", op), cause)
}
