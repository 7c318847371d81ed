// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package clr

import "fmt"

// ILValKind tags the primitive carried by a Val value.
type ILValKind uint8

// Common Type System primitives this core carries on the stack.
const (
	ILBool ILValKind = iota
	ILChar
	ILInt8
	ILUInt8
	ILInt16
	ILUInt16
	ILInt32
	ILUInt32
	ILInt64
	ILUInt64
	ILSingle
	ILDouble
	ILIntPtr
	ILUIntPtr
)

// ILVal is a single CTS primitive value, stored as an int64/float64 pair
// wide enough to hold any of the integer or floating-point kinds above.
type ILVal struct {
	Kind ILValKind
	I    int64
	F    float64
}

// RefKind tags the variant of a Ref value.
type RefKind uint8

// Ref variants.
const (
	RefNull RefKind = iota
	RefString
	RefObject
)

// Ref is a reference-typed value: Null, an index into the string heap,
// or an index into the object heap.
type Ref struct {
	Kind  RefKind
	Index int
}

// PtrOrigin tags where a managed Ptr points.
type PtrOrigin uint8

// Ptr origins.
const (
	PtrParam PtrOrigin = iota
	PtrLocal
	PtrStatic
)

// Ptr is a safe managed pointer into a frame or a static field, carrying
// the stack_id generation under which it was created. No opcode in this
// core dereferences a Ptr, so the generation is recorded but never
// checked.
type Ptr struct {
	Origin        PtrOrigin
	StackID       uint64
	Index         uint32 // param/local index, or assembly index for Static
	StaticField    uint32 // field token, only meaningful when Origin == PtrStatic
}

// NPtr is an owned fixed-size buffer standing in for unmanaged memory,
// with a current byte offset.
type NPtr struct {
	Buf    []byte
	Offset int
}

// ValueKind tags the four-variant ILType union.
type ValueKind uint8

// ILType variants.
const (
	KindVal ValueKind = iota
	KindRef
	KindPtr
	KindNPtr
)

// ILType is the tagged union carried on the operand stack and in
// locals/params/fields.
type ILType struct {
	Kind ValueKind
	Val  ILVal
	Ref  Ref
	Ptr  Ptr
	NPtr NPtr
}

// NewInt32 builds an Int32 Val.
func NewInt32(v int32) ILType {
	return ILType{Kind: KindVal, Val: ILVal{Kind: ILInt32, I: int64(v)}}
}

// NewInt64 builds an Int64 Val.
func NewInt64(v int64) ILType {
	return ILType{Kind: KindVal, Val: ILVal{Kind: ILInt64, I: v}}
}

// NewSingle builds a Single Val.
func NewSingle(v float32) ILType {
	return ILType{Kind: KindVal, Val: ILVal{Kind: ILSingle, F: float64(v)}}
}

// NewDouble builds a Double Val.
func NewDouble(v float64) ILType {
	return ILType{Kind: KindVal, Val: ILVal{Kind: ILDouble, F: v}}
}

// NewBool builds a Boolean Val.
func NewBool(v bool) ILType {
	var i int64
	if v {
		i = 1
	}
	return ILType{Kind: KindVal, Val: ILVal{Kind: ILBool, I: i}}
}

// NullRef is the Ref::Null value.
func NullRef() ILType {
	return ILType{Kind: KindRef, Ref: Ref{Kind: RefNull}}
}

// StringRef wraps a string-heap index as a Ref.
func StringRef(idx int) ILType {
	return ILType{Kind: KindRef, Ref: Ref{Kind: RefString, Index: idx}}
}

// ObjectRef wraps an object-heap index as a Ref.
func ObjectRef(idx int) ILType {
	return ILType{Kind: KindRef, Ref: Ref{Kind: RefObject, Index: idx}}
}

// IsFalseType implements §4.9's is_false_type: true for numeric zero,
// '\0', false, Ref::Null, and an NPtr with no buffer.
func (v ILType) IsFalseType() bool {
	switch v.Kind {
	case KindVal:
		if v.Val.Kind == ILSingle || v.Val.Kind == ILDouble {
			return v.Val.F == 0
		}
		return v.Val.I == 0
	case KindRef:
		return v.Ref.Kind == RefNull
	case KindNPtr:
		return len(v.NPtr.Buf) == 0
	case KindPtr:
		return false
	}
	return false
}

func isInt(k ILValKind) bool {
	switch k {
	case ILInt32, ILUInt32, ILInt64, ILUInt64, ILInt16, ILUInt16, ILInt8, ILUInt8,
		ILIntPtr, ILUIntPtr, ILBool, ILChar:
		return true
	}
	return false
}

func isFloat(k ILValKind) bool {
	return k == ILSingle || k == ILDouble
}

// Add implements CIL's `add`: pop b then a, push a+b. Same-width
// Int32/Int64/Single/Double add directly; mixed Int32+Int64 widens to
// Int64 (Bool, Char and the narrower integer kinds add as Int32);
// NPtr+integer adjusts the NPtr offset; everything else, including a
// Single+Double mix, faults.
func Add(a, b ILType) (ILType, error) {
	if a.Kind == KindNPtr && b.Kind == KindVal && isInt(b.Val.Kind) {
		out := a
		out.NPtr.Offset += int(b.Val.I)
		return out, nil
	}
	if a.Kind != KindVal || b.Kind != KindVal {
		return ILType{}, fmt.Errorf("%w: add on non-numeric operands", ErrExecutionFault)
	}
	if isFloat(a.Val.Kind) && isFloat(b.Val.Kind) {
		if a.Val.Kind != b.Val.Kind {
			return ILType{}, fmt.Errorf("%w: add on mixed Single/Double operands", ErrExecutionFault)
		}
		if a.Val.Kind == ILSingle {
			return NewSingle(float32(a.Val.F + b.Val.F)), nil
		}
		return NewDouble(a.Val.F + b.Val.F), nil
	}
	if isInt(a.Val.Kind) && isInt(b.Val.Kind) {
		if a.Val.Kind == ILInt64 || b.Val.Kind == ILInt64 {
			return NewInt64(a.Val.I + b.Val.I), nil
		}
		return NewInt32(int32(a.Val.I) + int32(b.Val.I)), nil
	}
	return ILType{}, fmt.Errorf("%w: add on incompatible operand kinds", ErrExecutionFault)
}

// Sub implements CIL's `sub`: pop b then a, push a-b.
func Sub(a, b ILType) (ILType, error) {
	if a.Kind == KindNPtr && b.Kind == KindVal && isInt(b.Val.Kind) {
		out := a
		out.NPtr.Offset -= int(b.Val.I)
		return out, nil
	}
	if a.Kind != KindVal || b.Kind != KindVal {
		return ILType{}, fmt.Errorf("%w: sub on non-numeric operands", ErrExecutionFault)
	}
	if isFloat(a.Val.Kind) && isFloat(b.Val.Kind) {
		return NewDouble(a.Val.F - b.Val.F), nil
	}
	if isInt(a.Val.Kind) && isInt(b.Val.Kind) {
		if a.Val.Kind == ILInt64 || b.Val.Kind == ILInt64 {
			return NewInt64(a.Val.I - b.Val.I), nil
		}
		return NewInt32(int32(a.Val.I) - int32(b.Val.I)), nil
	}
	return ILType{}, fmt.Errorf("%w: sub on incompatible operand kinds", ErrExecutionFault)
}

func bitwise(a, b ILType, op func(x, y int64) int64) (ILType, error) {
	if a.Kind != KindVal || b.Kind != KindVal || !isInt(a.Val.Kind) || !isInt(b.Val.Kind) {
		return ILType{}, fmt.Errorf("%w: bitwise op on non-integer operands", ErrExecutionFault)
	}
	if a.Val.Kind == ILInt64 || b.Val.Kind == ILInt64 {
		return NewInt64(op(a.Val.I, b.Val.I)), nil
	}
	return NewInt32(int32(op(a.Val.I, b.Val.I))), nil
}

// And implements CIL's `and`.
func And(a, b ILType) (ILType, error) { return bitwise(a, b, func(x, y int64) int64 { return x & y }) }

// Or implements CIL's `or`.
func Or(a, b ILType) (ILType, error) { return bitwise(a, b, func(x, y int64) int64 { return x | y }) }

// Xor implements CIL's `xor`.
func Xor(a, b ILType) (ILType, error) { return bitwise(a, b, func(x, y int64) int64 { return x ^ y }) }

// Compare orders two numeric values that are both integer-kinded or
// both floating-point (Bool, Char and every integer width compare by
// value, as do Single and Double); any other combination faults.
// Returns -1, 0, 1.
func Compare(a, b ILType) (int, error) {
	if a.Kind != KindVal || b.Kind != KindVal {
		return 0, fmt.Errorf("%w: comparison on non-numeric operands", ErrExecutionFault)
	}
	if isFloat(a.Val.Kind) != isFloat(b.Val.Kind) {
		return 0, fmt.Errorf("%w: comparison between integer and floating-point operands", ErrExecutionFault)
	}
	if isFloat(a.Val.Kind) || isFloat(b.Val.Kind) {
		switch {
		case a.Val.F < b.Val.F:
			return -1, nil
		case a.Val.F > b.Val.F:
			return 1, nil
		default:
			return 0, nil
		}
	}
	switch {
	case a.Val.I < b.Val.I:
		return -1, nil
	case a.Val.I > b.Val.I:
		return 1, nil
	default:
		return 0, nil
	}
}

// ToU32 performs the arithmetic cast `switch`/`conv` opcodes rely on.
func (v ILType) ToU32() (uint32, error) {
	if v.Kind != KindVal {
		return 0, fmt.Errorf("%w: to_u32 on non-value operand", ErrExecutionFault)
	}
	if isFloat(v.Val.Kind) {
		return uint32(v.Val.F), nil
	}
	return uint32(v.Val.I), nil
}

// ToUsize performs the widening `conv_u` relies on.
func (v ILType) ToUsize() (uint64, error) {
	if v.Kind != KindVal {
		return 0, fmt.Errorf("%w: to_usize on non-value operand", ErrExecutionFault)
	}
	if isFloat(v.Val.Kind) {
		return uint64(v.Val.F), nil
	}
	return uint64(v.Val.I), nil
}

// ZeroFromTypeSig produces a zero ILType for the given TypeSig: CTS
// primitives get their zero value, everything else gets Ref::Null.
func ZeroFromTypeSig(sig *TypeSig) ILType {
	if sig == nil {
		return NullRef()
	}
	switch sig.Code {
	case ElemBoolean:
		return NewBool(false)
	case ElemChar:
		return ILType{Kind: KindVal, Val: ILVal{Kind: ILChar}}
	case ElemI1:
		return ILType{Kind: KindVal, Val: ILVal{Kind: ILInt8}}
	case ElemU1:
		return ILType{Kind: KindVal, Val: ILVal{Kind: ILUInt8}}
	case ElemI2:
		return ILType{Kind: KindVal, Val: ILVal{Kind: ILInt16}}
	case ElemU2:
		return ILType{Kind: KindVal, Val: ILVal{Kind: ILUInt16}}
	case ElemI4:
		return NewInt32(0)
	case ElemU4:
		return ILType{Kind: KindVal, Val: ILVal{Kind: ILUInt32}}
	case ElemI8:
		return NewInt64(0)
	case ElemU8:
		return ILType{Kind: KindVal, Val: ILVal{Kind: ILUInt64}}
	case ElemR4:
		return NewSingle(0)
	case ElemR8:
		return NewDouble(0)
	case ElemI:
		return ILType{Kind: KindVal, Val: ILVal{Kind: ILIntPtr}}
	case ElemU:
		return ILType{Kind: KindVal, Val: ILVal{Kind: ILUIntPtr}}
	default:
		return NullRef()
	}
}
