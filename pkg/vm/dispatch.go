package vm

import (
	"encoding/binary"
	"fmt"

	"github.com/kristofer/sind/pkg/bytecode"
	"github.com/kristofer/sind/pkg/item"
	"github.com/kristofer/sind/pkg/value"
	"github.com/kristofer/sind/pkg/vmerr"
)

// execLoop is the opcode dispatch loop of §4.3.2, decoding and running
// one code item's body starting right after its two-byte header. It
// returns on HALT (the top-of-stack, or nil if the stack is empty, is
// the item's result per §4.3.3 step 5) or on the first error — either
// an abortSignal that must unwind to Run, or a non-fatal error from a
// malformed blob.
func (vm *Interp) execLoop(code []byte) (value.Value, error) {
	ip := bytecode.HeaderLen

	for {
		if ip >= len(code) {
			return value.Nothing(), fmt.Errorf("vm: code ran past end without HALT")
		}
		op := bytecode.Op(code[ip])
		opStart := ip
		ip++

		switch op {
		case bytecode.PushInt:
			if ip+8 > len(code) {
				return value.Nothing(), fmt.Errorf("vm: truncated PUSH_INT at %d", opStart)
			}
			n := int64(binary.LittleEndian.Uint64(code[ip : ip+8]))
			ip += 8
			if err := vm.push(value.FromInt(n)); err != nil {
				return value.Nothing(), err
			}

		case bytecode.PushStr:
			if ip+2 > len(code) {
				return value.Nothing(), fmt.Errorf("vm: truncated PUSH_STR at %d", opStart)
			}
			n := int(binary.LittleEndian.Uint16(code[ip : ip+2]))
			ip += 2
			if ip+n > len(code) {
				return value.Nothing(), fmt.Errorf("vm: truncated PUSH_STR payload at %d", opStart)
			}
			s := string(code[ip : ip+n])
			ip += n
			if err := vm.push(value.FromString(s)); err != nil {
				return value.Nothing(), err
			}

		case bytecode.GetLocal:
			if ip >= len(code) {
				return value.Nothing(), fmt.Errorf("vm: truncated GET_LOCAL at %d", opStart)
			}
			idx := int(code[ip])
			ip++
			slot, err := vm.localSlot(idx)
			if err != nil {
				return value.Nothing(), err
			}
			if err := vm.push(vm.stack[slot].Copy()); err != nil {
				return value.Nothing(), err
			}

		case bytecode.SaveLocal:
			if ip >= len(code) {
				return value.Nothing(), fmt.Errorf("vm: truncated SAVE_LOCAL at %d", opStart)
			}
			idx := int(code[ip])
			ip++
			slot, err := vm.localSlot(idx)
			if err != nil {
				return value.Nothing(), err
			}
			v, err := vm.pop()
			if err != nil {
				return value.Nothing(), err
			}
			vm.stack[slot].Drop()
			vm.stack[slot] = v

		case bytecode.IncLocal, bytecode.DecLocal:
			if ip >= len(code) {
				return value.Nothing(), fmt.Errorf("vm: truncated %s at %d", op, opStart)
			}
			idx := int(code[ip])
			ip++
			slot, err := vm.localSlot(idx)
			if err != nil {
				return value.Nothing(), err
			}
			switch vm.stack[slot].Kind {
			case value.Nil:
				// A freshly allocated local reads as nil; INC/DEC treat
				// that as starting from 0, matching ADD's nil-as-0 rule.
				vm.stack[slot] = value.FromInt(0)
			case value.Int:
			default:
				vm.typeError(op.String())
				break
			}
			if vm.stack[slot].Kind == value.Int {
				if op == bytecode.IncLocal {
					vm.stack[slot].I++
				} else {
					vm.stack[slot].I--
				}
			}

		case bytecode.Add, bytecode.Sub, bytecode.Mul, bytecode.Div:
			if err := vm.binaryArith(op); err != nil {
				return value.Nothing(), err
			}

		case bytecode.Neg:
			a, err := vm.pop()
			if err != nil {
				return value.Nothing(), err
			}
			r, ok := value.Neg(a)
			if !ok {
				vm.typeError("NEG")
			}
			if err := vm.push(r); err != nil {
				return value.Nothing(), err
			}

		case bytecode.Eq, bytecode.NotEq, bytecode.Lt, bytecode.Gt, bytecode.Le, bytecode.Ge:
			if err := vm.binaryCompare(op); err != nil {
				return value.Nothing(), err
			}

		case bytecode.Not:
			a, err := vm.pop()
			if err != nil {
				return value.Nothing(), err
			}
			if err := vm.push(value.Not(a)); err != nil {
				return value.Nothing(), err
			}

		case bytecode.And, bytecode.Or:
			b, err := vm.pop()
			if err != nil {
				return value.Nothing(), err
			}
			a, err := vm.pop()
			if err != nil {
				return value.Nothing(), err
			}
			var r value.Value
			if op == bytecode.And {
				r = value.And(a, b)
			} else {
				r = value.Or(a, b)
			}
			if err := vm.push(r); err != nil {
				return value.Nothing(), err
			}

		case bytecode.Jump:
			if ip+2 > len(code) {
				return value.Nothing(), fmt.Errorf("vm: truncated JUMP at %d", opStart)
			}
			off := int16(binary.LittleEndian.Uint16(code[ip : ip+2]))
			ip += 2
			ip += int(off)

		case bytecode.JumpIfFalse:
			if ip+2 > len(code) {
				return value.Nothing(), fmt.Errorf("vm: truncated JUMP_IF_FALSE at %d", opStart)
			}
			off := int16(binary.LittleEndian.Uint16(code[ip : ip+2]))
			ip += 2
			cond, err := vm.pop()
			if err != nil {
				return value.Nothing(), err
			}
			if !cond.ToBool() {
				ip += int(off)
			}

		case bytecode.Halt:
			if vm.top > vm.base+vm.locals {
				return vm.pop()
			}
			return value.Nothing(), nil

		case bytecode.BeginAssembly:
			name, n, aerr := vm.Store.Assemble(code[ip:], vm.GetLocal)
			ip += n
			if aerr != nil {
				vm.Log.Debugf("sind: item-name assembly failed: %v", aerr)
				if err := vm.push(value.Nothing()); err != nil {
					return value.Nothing(), err
				}
				break
			}
			if err := vm.push(value.FromString(name)); err != nil {
				return value.Nothing(), err
			}

		case bytecode.AssignItem:
			if err := vm.execAssignItem(); err != nil {
				return value.Nothing(), err
			}

		case bytecode.AssignCode:
			var err error
			ip, err = vm.execAssignCode(code, ip)
			if err != nil {
				return value.Nothing(), err
			}

		case bytecode.FetchItem:
			if ip >= len(code) {
				return value.Nothing(), fmt.Errorf("vm: truncated FETCH_ITEM at %d", opStart)
			}
			argc := int(code[ip])
			ip++
			if err := vm.execFetchItem(argc); err != nil {
				return value.Nothing(), err
			}

		case bytecode.Libcall:
			if ip+2 > len(code) {
				return value.Nothing(), fmt.Errorf("vm: truncated LIBCALL at %d", opStart)
			}
			libIdx, fnIdx := code[ip], code[ip+1]
			ip += 2
			if err := vm.execLibcall(libIdx, fnIdx); err != nil {
				return value.Nothing(), err
			}

		case bytecode.Delete:
			name, err := vm.pop()
			if err != nil {
				return value.Nothing(), err
			}
			if derr := vm.Store.Delete(name.S); derr != nil {
				vm.setError(vmerr.RuntimeNoSuchItem, derr.Error())
			}

		case bytecode.Exists:
			name, err := vm.pop()
			if err != nil {
				return value.Nothing(), err
			}
			if err := vm.push(value.FromBool(vm.Store.Exists(name.S))); err != nil {
				return value.Nothing(), err
			}

		default:
			vm.Log.Warnf("sind: undefined opcode %#02x at %d", byte(op), opStart)
		}
	}
}

// binaryArith implements the int/str arithmetic opcodes: pop b, pop a,
// compute, push the result (nil on a type mismatch, per §4.1).
func (vm *Interp) binaryArith(op bytecode.Op) error {
	b, err := vm.pop()
	if err != nil {
		return err
	}
	a, err := vm.pop()
	if err != nil {
		return err
	}
	var r value.Value
	var ok bool
	switch op {
	case bytecode.Add:
		r, ok = value.Add(a, b)
	case bytecode.Sub:
		r, ok = value.Sub(a, b)
	case bytecode.Mul:
		r, ok = value.Mul(a, b)
	case bytecode.Div:
		r, ok = value.Div(a, b)
	}
	if !ok {
		vm.typeError(op.String())
	}
	return vm.push(r)
}

// binaryCompare implements the comparison opcodes, same pop order as
// binaryArith.
func (vm *Interp) binaryCompare(op bytecode.Op) error {
	b, err := vm.pop()
	if err != nil {
		return err
	}
	a, err := vm.pop()
	if err != nil {
		return err
	}
	var r bool
	switch op {
	case bytecode.Eq:
		r = value.Equal(a, b)
	case bytecode.NotEq:
		r = value.NotEqual(a, b)
	case bytecode.Lt:
		r = value.Less(a, b)
	case bytecode.Gt:
		r = value.Greater(a, b)
	case bytecode.Le:
		r = value.LessEqual(a, b)
	case bytecode.Ge:
		r = value.GreaterEqual(a, b)
	}
	return vm.push(value.FromBool(r))
}

// execAssignItem implements ASSIGN_ITEM (§4.3.2 `C`): the operand
// stack holds the assembled name then the value to assign, value on
// top, per the instruction sequencing in §8 scenario 5.
func (vm *Interp) execAssignItem() error {
	val, err := vm.pop()
	if err != nil {
		return err
	}
	name, err := vm.pop()
	if err != nil {
		return err
	}
	if _, ierr := vm.Store.InsertValueItem(name.S, val); ierr != nil {
		vm.setError(classifyInsertErr(ierr), name.S)
	}
	return nil
}

// execAssignCode implements ASSIGN_CODE_ITEM (§4.3.2 `B`): an optional
// `P`-tagged parameter-name list, a two-byte source length, the raw
// source bytes, then (on the operand stack) the assembled item name.
// The embedded source is handed to vm.Compiler; a nil Compiler is a
// configuration error the caller must have ruled out before running
// any bytecode that contains this opcode.
func (vm *Interp) execAssignCode(code []byte, ip int) (int, error) {
	var params []string
	if ip < len(code) && code[ip] == 'P' {
		ip++
		for {
			if ip >= len(code) {
				return ip, fmt.Errorf("vm: truncated ASSIGN_CODE_ITEM parameter list")
			}
			n := int(code[ip])
			ip++
			if n == 0 {
				if ip >= len(code) {
					return ip, fmt.Errorf("vm: truncated ASSIGN_CODE_ITEM parameter terminator")
				}
				ip++
				break
			}
			if ip+n > len(code) {
				return ip, fmt.Errorf("vm: truncated ASSIGN_CODE_ITEM parameter name")
			}
			params = append(params, string(code[ip:ip+n]))
			ip += n
		}
	}
	if ip+2 > len(code) {
		return ip, fmt.Errorf("vm: truncated ASSIGN_CODE_ITEM source length")
	}
	n := int(binary.LittleEndian.Uint16(code[ip : ip+2]))
	ip += 2
	if ip+n > len(code) {
		return ip, fmt.Errorf("vm: truncated ASSIGN_CODE_ITEM source")
	}
	source := string(code[ip : ip+n])
	ip += n

	name, err := vm.pop()
	if err != nil {
		return ip, err
	}

	if vm.Compiler == nil {
		vm.setError(vmerr.CompSyntax, "no compiler configured")
		return ip, nil
	}
	blob, reconstructed, cerr := vm.Compiler.Compile(source, params)
	if cerr != nil {
		vm.setError(vmerr.CompSyntax, cerr.Error())
		return ip, nil
	}
	it, ierr := vm.Store.InsertCodeItem(name.S, blob)
	if ierr != nil {
		vm.setError(classifyInsertErr(ierr), name.S)
		return ip, nil
	}
	if vm.Source != nil {
		if werr := vm.Source.WriteSource(it.FullyQualifiedName(), reconstructed); werr != nil {
			vm.Log.Warnf("sind: failed writing source for %s: %v", it.FullyQualifiedName(), werr)
		}
	}
	return ip, nil
}

// execFetchItem implements FETCH_ITEM (§4.3.2 `F`, §4.3.3): argc
// arguments already sit atop the operand stack, then the assembled
// name on top of those. It pops the name first, then adapts the argc
// arguments to the callee's declared parameter count, invokes, and
// rebases the stack so the single result replaces everything from the
// name-pop point up (§8 invariant 5).
func (vm *Interp) execFetchItem(argc int) error {
	name, err := vm.pop()
	if err != nil {
		return err
	}
	argsBase := vm.top - argc
	if argsBase < vm.base {
		argsBase = vm.base
	}

	it, ferr := vm.Store.Find(name.S)
	if ferr != nil {
		vm.top = argsBase
		vm.setError(vmerr.RuntimeNoSuchItem, name.S)
		return vm.push(value.Nothing())
	}

	if !it.IsCode {
		vm.top = argsBase
		return vm.push(it.Val.Copy())
	}

	hdr, herr := bytecode.ParseHeader(it.Code)
	if herr != nil {
		vm.top = argsBase
		vm.setError(vmerr.CompSyntax, herr.Error())
		return vm.push(value.Nothing())
	}

	vm.adaptArity(argsBase, int(hdr.Params))
	result, rerr := vm.invoke(it)
	if rerr != nil {
		return rerr
	}
	vm.top = argsBase
	return vm.push(result)
}

// execLibcall implements LIBCALL (§4.3.2 `A`, §4.4): dispatch to the
// registered handler, which is responsible for popping exactly its own
// argument count and pushing exactly one result. An unregistered
// (lib,func) pair is a compile-time concern normally ruled out before
// this code ever runs, but the runtime still records the error kind
// rather than aborting, since producing a nil result and continuing is
// cheaper than tearing down a whole task over a stale libcall index.
func (vm *Interp) execLibcall(libIdx, fnIdx byte) error {
	fn, ok := vm.Libcalls[[2]byte{libIdx, fnIdx}]
	if !ok {
		vm.setError(vmerr.CompUnknownLib, fmt.Sprintf("lib=%d func=%d", libIdx, fnIdx))
		return vm.push(value.Nothing())
	}
	return fn(vm)
}

// classifyInsertErr maps pkg/item's sentinel errors onto §7's error
// kinds for sys.error.
func classifyInsertErr(err error) vmerr.Kind {
	switch err {
	case item.ErrInUse:
		return vmerr.CompInUse
	default:
		return vmerr.CompSyntax
	}
}
