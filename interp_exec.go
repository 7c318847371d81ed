// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package clr

import (
	"fmt"
	"math"
)

// ilCall implements §4.10.2: resolve the call target, build its frame,
// run its dispatch loop (or dispatch to an intrinsic), and return the
// frame's net stack effect (0 or 1 value) to the caller.
//
// callerFrame's operand stack holds the arguments already pushed by
// the caller (the instance reference first, if any, then each formal
// parameter in order); ilCall pops exactly param_count values off it.
// A nil callerFrame means no arguments are expected (the program's
// fixed entry point, or a .cctor).
func (it *Interpreter) ilCall(tok MDToken, callerFrame *frame) (*ILType, error) {
	it.ctx.StackID++
	stackID := it.ctx.StackID

	methodIdx, asmIdx, err := it.getMethodIndex(it.ctx.CurrentAssemblyIndex, tok)
	if err != nil {
		return nil, err
	}
	asm, _ := it.assemblies.At(asmIdx)
	method := asm.Methods[methodIdx]

	if len(it.ctx.CallStack) >= it.cfg.MaxCallDepth {
		return nil, fmt.Errorf("%w: call depth exceeds %d", ErrExecutionFault, it.cfg.MaxCallDepth)
	}
	it.ctx.CallStack = append(it.ctx.CallStack, callStackEntry{assemblyIndex: asmIdx, methodToken: method.Token, stackID: stackID})
	prevAsm, prevAsmIdx := it.ctx.CurrentAssembly, it.ctx.CurrentAssemblyIndex
	it.ctx.CurrentAssembly, it.ctx.CurrentAssemblyIndex = asm, asmIdx
	defer func() {
		it.ctx.CallStack = it.ctx.CallStack[:len(it.ctx.CallStack)-1]
		it.ctx.CurrentAssembly, it.ctx.CurrentAssemblyIndex = prevAsm, prevAsmIdx
	}()

	paramCount := len(method.Signature.ParamTypes)
	if method.Signature.HasThis {
		paramCount++
	}

	fr := &frame{params: make([]ILType, paramCount)}
	if callerFrame != nil {
		if len(callerFrame.stack) < paramCount {
			return nil, fmt.Errorf("%w: too few arguments on caller stack", ErrExecutionFault)
		}
		for i := paramCount - 1; i >= 0; i-- {
			v, err := callerFrame.pop()
			if err != nil {
				return nil, err
			}
			fr.params[i] = v
		}
	}

	if method.IsInternalCall() {
		return it.dispatchIntrinsic(asm, method, fr)
	}

	if err := it.buildLocals(asm, method, fr); err != nil {
		return nil, err
	}

	return it.execute(asm, method, fr, stackID)
}

func (it *Interpreter) buildLocals(asm *Assembly, method *MethodRow, fr *frame) error {
	if method.LocalVarRID == 0 {
		return nil
	}
	si := int(method.LocalVarRID) - 1
	if si < 0 || si >= len(asm.StandAloneSigs) {
		return fmt.Errorf("%w: local-var signature rid out of range", ErrMalformedImage)
	}
	localSig := asm.StandAloneSigs[si].Signature
	fr.locals = make([]ILType, len(localSig.Locals))
	for i, t := range localSig.Locals {
		fr.locals[i] = ZeroFromTypeSig(t)
	}
	return nil
}

// execute runs method's dispatch loop over its code bytes, per
// §4.10.2-§4.10.4. Any opcode byte this core does not recognise faults
// with ErrUnsupportedFeature instead of being silently skipped.
func (it *Interpreter) execute(asm *Assembly, method *MethodRow, fr *frame, stackID uint64) (*ILType, error) {
	f := asm.File
	rip := method.CodePos
	end := method.CodePos + method.CodeSize

	for rip < end {
		opPos := rip
		b, err := f.ReadUint8(rip)
		if err != nil {
			return nil, fmt.Errorf("%w: reading opcode at %d: %v", ErrMalformedImage, rip, err)
		}
		rip++

		switch b {
		case opNop, opBreak:
			// no-op; Break has no debugger to trap into.

		case opLdarg0, opLdarg1, opLdarg2, opLdarg3:
			if err := pushParam(fr, int(b-opLdarg0)); err != nil {
				return nil, err
			}
		case opLdloc0, opLdloc1, opLdloc2, opLdloc3:
			if err := pushLocal(fr, int(b-opLdloc0)); err != nil {
				return nil, err
			}
		case opStloc0, opStloc1, opStloc2, opStloc3:
			if err := popToLocal(fr, int(b-opStloc0)); err != nil {
				return nil, err
			}

		case opLdargS:
			idx, err := f.ReadUint8(rip)
			rip++
			if err != nil {
				return nil, err
			}
			if err := pushParam(fr, int(idx)); err != nil {
				return nil, err
			}
		case opLdargaS:
			idx, err := f.ReadUint8(rip)
			rip++
			if err != nil {
				return nil, err
			}
			fr.push(ILType{Kind: KindPtr, Ptr: Ptr{Origin: PtrParam, StackID: stackID, Index: uint32(idx)}})
		case opStargS:
			idx, err := f.ReadUint8(rip)
			rip++
			if err != nil {
				return nil, err
			}
			if err := popToParam(fr, int(idx)); err != nil {
				return nil, err
			}
		case opLdlocS:
			idx, err := f.ReadUint8(rip)
			rip++
			if err != nil {
				return nil, err
			}
			if err := pushLocal(fr, int(idx)); err != nil {
				return nil, err
			}
		case opLdlocaS:
			idx, err := f.ReadUint8(rip)
			rip++
			if err != nil {
				return nil, err
			}
			fr.push(ILType{Kind: KindPtr, Ptr: Ptr{Origin: PtrLocal, StackID: stackID, Index: uint32(idx)}})
		case opStlocS:
			idx, err := f.ReadUint8(rip)
			rip++
			if err != nil {
				return nil, err
			}
			if err := popToLocal(fr, int(idx)); err != nil {
				return nil, err
			}

		case opLdnull:
			fr.push(NullRef())

		case opLdcI4M1:
			fr.push(NewInt32(-1))
		case opLdcI40, opLdcI41, opLdcI42, opLdcI43, opLdcI44, opLdcI45, opLdcI46, opLdcI47, opLdcI48:
			fr.push(NewInt32(int32(b - opLdcI40)))
		case opLdcI4S:
			v, err := f.ReadUint8(rip)
			rip++
			if err != nil {
				return nil, err
			}
			fr.push(NewInt32(int32(int8(v))))
		case opLdcI4:
			v, err := f.ReadUint32(rip)
			rip += 4
			if err != nil {
				return nil, err
			}
			fr.push(NewInt32(int32(v)))
		case opLdcI8:
			v, err := f.ReadUint64(rip)
			rip += 8
			if err != nil {
				return nil, err
			}
			fr.push(NewInt64(int64(v)))
		case opLdcR4:
			v, err := f.ReadUint32(rip)
			rip += 4
			if err != nil {
				return nil, err
			}
			fr.push(NewSingle(math.Float32frombits(v)))
		case opLdcR8:
			v, err := f.ReadUint64(rip)
			rip += 8
			if err != nil {
				return nil, err
			}
			fr.push(NewDouble(math.Float64frombits(v)))

		case opDup:
			if err := fr.dup(); err != nil {
				return nil, err
			}
		case opPop:
			if _, err := fr.pop(); err != nil {
				return nil, err
			}

		case opAdd, opSub, opAnd, opOr, opXor:
			b2, err := fr.pop()
			if err != nil {
				return nil, err
			}
			a2, err := fr.pop()
			if err != nil {
				return nil, err
			}
			var res ILType
			switch b {
			case opAdd:
				res, err = Add(a2, b2)
			case opSub:
				res, err = Sub(a2, b2)
			case opAnd:
				res, err = And(a2, b2)
			case opOr:
				res, err = Or(a2, b2)
			case opXor:
				res, err = Xor(a2, b2)
			}
			if err != nil {
				return nil, err
			}
			fr.push(res)

		case opJmp:
			tok, err := readToken(f, &rip)
			if err != nil {
				return nil, err
			}
			if len(fr.stack) != 0 {
				return nil, fmt.Errorf("%w: jmp with non-empty operand stack", ErrExecutionFault)
			}
			fr.stack = append(fr.stack, fr.params...)
			return it.ilCall(tok, fr)

		case opCall, opCallvirt:
			tok, err := readToken(f, &rip)
			if err != nil {
				return nil, err
			}
			ret, err := it.ilCall(tok, fr)
			if err != nil {
				return nil, err
			}
			if ret != nil {
				fr.push(*ret)
			}

		case opCalli:
			return nil, fmt.Errorf("%w: calli", ErrUnsupportedFeature)

		case opRet:
			if len(fr.stack) == 0 {
				return nil, nil
			}
			v, err := fr.pop()
			if err != nil {
				return nil, err
			}
			return &v, nil

		case opBrS:
			off, err := f.ReadUint8(rip)
			rip++
			if err != nil {
				return nil, err
			}
			rip = uint32(int64(rip) + int64(int8(off)))
		case opBr:
			off, err := f.ReadUint32(rip)
			rip += 4
			if err != nil {
				return nil, err
			}
			rip = uint32(int64(rip) + int64(int32(off)))
		case opBrfalseS, opBrtrueS:
			off, err := f.ReadUint8(rip)
			rip++
			if err != nil {
				return nil, err
			}
			v, err := fr.pop()
			if err != nil {
				return nil, err
			}
			taken := v.IsFalseType()
			if b == opBrtrueS {
				taken = !taken
			}
			if taken {
				rip = uint32(int64(rip) + int64(int8(off)))
			}
		case opBrfalse, opBrtrue:
			off, err := f.ReadUint32(rip)
			rip += 4
			if err != nil {
				return nil, err
			}
			v, err := fr.pop()
			if err != nil {
				return nil, err
			}
			taken := v.IsFalseType()
			if b == opBrtrue {
				taken = !taken
			}
			if taken {
				rip = uint32(int64(rip) + int64(int32(off)))
			}
		case opSwitch:
			n, err := f.ReadUint32(rip)
			rip += 4
			if err != nil {
				return nil, err
			}
			idxVal, err := fr.pop()
			if err != nil {
				return nil, err
			}
			idx, err := idxVal.ToU32()
			if err != nil {
				return nil, err
			}
			base := rip + 4*n
			if idx < n {
				off, err := f.ReadUint32(rip + 4*idx)
				if err != nil {
					return nil, err
				}
				rip = uint32(int64(base) + int64(int32(off)))
			} else {
				rip = base
			}

		case opLdstr:
			tok, err := f.ReadUint32(rip)
			rip += 4
			if err != nil {
				return nil, err
			}
			s, err := f.USAt(tok & 0x00FFFFFF)
			if err != nil {
				return nil, err
			}
			fr.push(StringRef(it.pushString(s)))

		case opNewobj:
			tok, err := readToken(f, &rip)
			if err != nil {
				return nil, err
			}
			ref, err := it.ilNewObj(fr, tok)
			if err != nil {
				return nil, err
			}
			fr.push(ref)

		case opCastclass:
			tok, err := readToken(f, &rip)
			if err != nil {
				return nil, err
			}
			v, err := fr.pop()
			if err != nil {
				return nil, err
			}
			v, err = it.castclass(v, tok)
			if err != nil {
				return nil, err
			}
			fr.push(v)

		case opBox:
			tok, err := readToken(f, &rip)
			if err != nil {
				return nil, err
			}
			v, err := fr.pop()
			if err != nil {
				return nil, err
			}
			obj := &Object{OriginTypeToken: tok, CurrentTypeToken: tok, OwnerAssembly: it.ctx.CurrentAssemblyIndex, BoxedValue: &v}
			fr.push(ObjectRef(it.pushObject(obj)))

		case opUnboxAny:
			tok, err := readToken(f, &rip)
			if err != nil {
				return nil, err
			}
			v, err := fr.pop()
			if err != nil {
				return nil, err
			}
			if v.Kind != KindRef || v.Ref.Kind != RefObject {
				return nil, fmt.Errorf("%w: unbox.any on non-object reference", ErrExecutionFault)
			}
			obj, err := it.object(v.Ref.Index)
			if err != nil {
				return nil, err
			}
			if obj.OriginTypeToken != tok || obj.BoxedValue == nil {
				return nil, fmt.Errorf("%w: unbox.any type mismatch", ErrExecutionFault)
			}
			fr.push(*obj.BoxedValue)

		case opUnbox:
			return nil, fmt.Errorf("%w: unbox", ErrUnsupportedFeature)

		case opLdfld:
			tok, err := readToken(f, &rip)
			if err != nil {
				return nil, err
			}
			this, err := fr.pop()
			if err != nil {
				return nil, err
			}
			v, err := it.loadField(this, tok)
			if err != nil {
				return nil, err
			}
			fr.push(v)
		case opStfld:
			tok, err := readToken(f, &rip)
			if err != nil {
				return nil, err
			}
			val, err := fr.pop()
			if err != nil {
				return nil, err
			}
			this, err := fr.pop()
			if err != nil {
				return nil, err
			}
			if err := it.storeField(this, tok, val); err != nil {
				return nil, err
			}
		case opLdflda:
			return nil, fmt.Errorf("%w: ldflda", ErrUnsupportedFeature)

		case opLdsfld, opLdsflda:
			tok, err := readToken(f, &rip)
			if err != nil {
				return nil, err
			}
			v, err := it.loadStaticField(asm, tok, b == opLdsflda)
			if err != nil {
				return nil, err
			}
			fr.push(v)
		case opStsfld:
			tok, err := readToken(f, &rip)
			if err != nil {
				return nil, err
			}
			val, err := fr.pop()
			if err != nil {
				return nil, err
			}
			if err := it.storeStaticField(asm, tok, val); err != nil {
				return nil, err
			}

		case opConvU:
			v, err := fr.pop()
			if err != nil {
				return nil, err
			}
			u, err := v.ToUsize()
			if err != nil {
				return nil, err
			}
			fr.push(ILType{Kind: KindVal, Val: ILVal{Kind: ILUIntPtr, I: int64(u)}})

		case opPrefix1:
			nb, err := f.ReadUint8(rip)
			rip++
			if err != nil {
				return nil, err
			}
			if err := it.executeExtended(f, &rip, fr, nb, stackID); err != nil {
				return nil, err
			}

		default:
			return nil, fmt.Errorf("%w: unrecognised opcode 0x%02X at offset %d", ErrUnsupportedFeature, b, opPos)
		}
	}
	return nil, nil
}

// executeExtended handles the 0xFE-prefixed two-byte opcode table.
func (it *Interpreter) executeExtended(f *File, rip *uint32, fr *frame, b byte, stackID uint64) error {
	switch b {
	case opLdargExt:
		idx, err := f.ReadUint16(*rip)
		*rip += 2
		if err != nil {
			return err
		}
		return pushParam(fr, int(idx))
	case opLdargaExt:
		idx, err := f.ReadUint16(*rip)
		*rip += 2
		if err != nil {
			return err
		}
		fr.push(ILType{Kind: KindPtr, Ptr: Ptr{Origin: PtrParam, StackID: stackID, Index: uint32(idx)}})
		return nil
	case opStargExt:
		idx, err := f.ReadUint16(*rip)
		*rip += 2
		if err != nil {
			return err
		}
		return popToParam(fr, int(idx))
	case opLdlocExt:
		idx, err := f.ReadUint16(*rip)
		*rip += 2
		if err != nil {
			return err
		}
		return pushLocal(fr, int(idx))
	case opLdlocaExt:
		idx, err := f.ReadUint16(*rip)
		*rip += 2
		if err != nil {
			return err
		}
		fr.push(ILType{Kind: KindPtr, Ptr: Ptr{Origin: PtrLocal, StackID: stackID, Index: uint32(idx)}})
		return nil
	case opStlocExt:
		idx, err := f.ReadUint16(*rip)
		*rip += 2
		if err != nil {
			return err
		}
		return popToLocal(fr, int(idx))

	case opCeq, opCgt, opClt:
		v2, err := fr.pop()
		if err != nil {
			return err
		}
		v1, err := fr.pop()
		if err != nil {
			return err
		}
		cmp, err := Compare(v1, v2)
		if err != nil {
			return err
		}
		var result bool
		switch b {
		case opCeq:
			result = cmp == 0
		case opCgt:
			result = cmp > 0
		case opClt:
			result = cmp < 0
		}
		fr.push(NewBool(result))
		return nil

	case opLocalloc:
		v, err := fr.pop()
		if err != nil {
			return err
		}
		size, err := v.ToUsize()
		if err != nil {
			return err
		}
		fr.push(ILType{Kind: KindNPtr, NPtr: NPtr{Buf: make([]byte, size)}})
		return nil

	default:
		return fmt.Errorf("%w: unrecognised extended opcode 0xFE 0x%02X", ErrUnsupportedFeature, b)
	}
}

// ilNewObj implements §4.10.3's Newobj: resolve the constructor, splice
// a fresh object reference in under its explicit arguments already on
// callerFrame's stack (so it lands in the this slot), invoke the
// constructor, and return the same reference as Newobj's result.
func (it *Interpreter) ilNewObj(callerFrame *frame, ctorTok MDToken) (ILType, error) {
	methodIdx, asmIdx, err := it.getMethodIndex(it.ctx.CurrentAssemblyIndex, ctorTok)
	if err != nil {
		return ILType{}, err
	}
	ctorAsm, _ := it.assemblies.At(asmIdx)
	ctor := ctorAsm.Methods[methodIdx]
	if ctor.OwnerType < 0 {
		return ILType{}, fmt.Errorf("%w: newobj constructor has no owning type", ErrMalformedImage)
	}

	typeTok := NewMDToken(TypeDef, uint32(ctor.OwnerType+1))
	obj := &Object{
		OriginTypeToken:  typeTok,
		CurrentTypeToken: typeTok,
		OwnerAssembly:    asmIdx,
		FieldMap:         newObjectFields(ctorAsm, ctor.OwnerType),
	}
	ref := ObjectRef(it.pushObject(obj))

	explicitParams := len(ctor.Signature.ParamTypes)
	if len(callerFrame.stack) < explicitParams {
		return ILType{}, fmt.Errorf("%w: too few arguments for newobj", ErrExecutionFault)
	}
	insertAt := len(callerFrame.stack) - explicitParams
	callerFrame.stack = append(callerFrame.stack[:insertAt:insertAt], append([]ILType{ref}, callerFrame.stack[insertAt:]...)...)

	if _, err := it.ilCall(ctorTok, callerFrame); err != nil {
		return ILType{}, err
	}
	return ref, nil
}

// castclass validates that v's runtime type is reachable from tok via
// the TypeDef Extends chain, per §4.10.3. A null reference always
// passes. The stored identity is never mutated (§9 Open Question #6);
// a successful cast returns v unchanged.
func (it *Interpreter) castclass(v ILType, tok MDToken) (ILType, error) {
	if v.Kind == KindRef && v.Ref.Kind == RefNull {
		return v, nil
	}
	if v.Kind != KindRef || v.Ref.Kind != RefObject {
		return ILType{}, fmt.Errorf("%w: castclass on non-object reference", ErrExecutionFault)
	}
	obj, err := it.object(v.Ref.Index)
	if err != nil {
		return ILType{}, err
	}
	targetIdx, targetAsmIdx, err := it.resolveTypeDefOrRef(it.ctx.CurrentAssemblyIndex, tok)
	if err != nil {
		return ILType{}, err
	}
	asm, ok := it.assemblies.At(obj.OwnerAssembly)
	if !ok {
		return ILType{}, fmt.Errorf("%w: object's owning assembly index out of range", ErrExecutionFault)
	}
	if obj.CurrentTypeToken.Table() != TypeDef {
		return ILType{}, fmt.Errorf("%w: castclass on an object with a non-TypeDef type token", ErrUnsupportedFeature)
	}
	for idx, asmIdx := int(obj.CurrentTypeToken.RID())-1, obj.OwnerAssembly; ; {
		if asmIdx == targetAsmIdx && idx == targetIdx {
			return v, nil
		}
		if idx < 0 || idx >= len(asm.TypeDefs) {
			break
		}
		td := asm.TypeDefs[idx]
		if td.Extends.IsNull() || td.Extends.Table() != TypeDef {
			break
		}
		next := int(td.Extends.RID()) - 1
		if next < 0 || next >= len(asm.TypeDefs) || next == idx {
			break
		}
		idx = next
	}
	return ILType{}, fmt.Errorf("%w: castclass target type not reachable from object's type", ErrExecutionFault)
}

func (it *Interpreter) derefThis(this ILType) (*Object, error) {
	if this.Kind != KindRef || this.Ref.Kind != RefObject {
		return nil, fmt.Errorf("%w: field access on non-object reference", ErrExecutionFault)
	}
	return it.object(this.Ref.Index)
}

// loadField and storeField implement §4.10.3's Ldfld/Stfld: the field
// RID is tok's RID component directly, matching FieldMap's keys.
func (it *Interpreter) loadField(this ILType, tok MDToken) (ILType, error) {
	obj, err := it.derefThis(this)
	if err != nil {
		return ILType{}, err
	}
	return obj.GetField(tok.RID())
}

func (it *Interpreter) storeField(this ILType, tok MDToken, v ILType) error {
	obj, err := it.derefThis(this)
	if err != nil {
		return err
	}
	return obj.SetField(tok.RID(), v)
}

// ensureClassInit runs typeIdx's .cctor (within asm) if it has never
// run, per §4.10.3's Ldsfld/Stsfld rule and static.go's interlock.
func (it *Interpreter) ensureClassInit(asm *Assembly, typeIdx int) error {
	if typeIdx < 0 {
		return nil
	}
	asmIdx, ok := it.assemblies.IndexOf(asm.Name.Name)
	if !ok {
		return fmt.Errorf("%w: assembly %q not registered", ErrExecutionFault, asm.Name.Name)
	}
	store := it.staticsByAsm[asmIdx]
	cctorTok := store.cctorToken(asm, typeIdx)
	if cctorTok == 0 {
		return nil
	}
	prevAsm, prevIdx := it.ctx.CurrentAssembly, it.ctx.CurrentAssemblyIndex
	it.ctx.CurrentAssembly, it.ctx.CurrentAssemblyIndex = asm, asmIdx
	_, err := it.ilCall(cctorTok, nil)
	it.ctx.CurrentAssembly, it.ctx.CurrentAssemblyIndex = prevAsm, prevIdx
	if err != nil {
		return err
	}
	store.markDone(typeIdx)
	return nil
}

func (it *Interpreter) loadStaticField(asm *Assembly, tok MDToken, wantPtr bool) (ILType, error) {
	fieldIdx := int(tok.RID()) - 1
	if fieldIdx < 0 || fieldIdx >= len(asm.Fields) {
		return ILType{}, fmt.Errorf("%w: field rid out of range", ErrMalformedImage)
	}
	if err := it.ensureClassInit(asm, asm.Fields[fieldIdx].OwnerType); err != nil {
		return ILType{}, err
	}
	asmIdx, _ := it.assemblies.IndexOf(asm.Name.Name)
	if wantPtr {
		return ILType{Kind: KindPtr, Ptr: Ptr{Origin: PtrStatic, Index: uint32(asmIdx), StaticField: uint32(tok)}}, nil
	}
	v, ok := it.staticsByAsm[asmIdx].get(tok.RID())
	if !ok {
		return ILType{}, fmt.Errorf("%w: static field not initialised", ErrExecutionFault)
	}
	return v, nil
}

func (it *Interpreter) storeStaticField(asm *Assembly, tok MDToken, v ILType) error {
	fieldIdx := int(tok.RID()) - 1
	if fieldIdx < 0 || fieldIdx >= len(asm.Fields) {
		return fmt.Errorf("%w: field rid out of range", ErrMalformedImage)
	}
	if err := it.ensureClassInit(asm, asm.Fields[fieldIdx].OwnerType); err != nil {
		return err
	}
	asmIdx, _ := it.assemblies.IndexOf(asm.Name.Name)
	it.staticsByAsm[asmIdx].set(tok.RID(), v)
	return nil
}

func pushParam(fr *frame, i int) error {
	if i < 0 || i >= len(fr.params) {
		return fmt.Errorf("%w: argument index %d out of range", ErrExecutionFault, i)
	}
	fr.push(fr.params[i])
	return nil
}

func popToParam(fr *frame, i int) error {
	v, err := fr.pop()
	if err != nil {
		return err
	}
	if i < 0 || i >= len(fr.params) {
		return fmt.Errorf("%w: argument index %d out of range", ErrExecutionFault, i)
	}
	fr.params[i] = v
	return nil
}

func pushLocal(fr *frame, i int) error {
	if i < 0 || i >= len(fr.locals) {
		return fmt.Errorf("%w: local index %d out of range", ErrExecutionFault, i)
	}
	fr.push(fr.locals[i])
	return nil
}

func popToLocal(fr *frame, i int) error {
	v, err := fr.pop()
	if err != nil {
		return err
	}
	if i < 0 || i >= len(fr.locals) {
		return fmt.Errorf("%w: local index %d out of range", ErrExecutionFault, i)
	}
	fr.locals[i] = v
	return nil
}

func readToken(f *File, rip *uint32) (MDToken, error) {
	v, err := f.ReadUint32(*rip)
	if err != nil {
		return 0, err
	}
	*rip += 4
	return MDToken(v), nil
}
