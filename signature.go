// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package clr

import "fmt"

// Calling-convention low-nibble values, ECMA-335 §II.23.2.
const (
	sigDefault      = 0x0
	sigC            = 0x1
	sigStdCall      = 0x2
	sigThisCall     = 0x3
	sigFastCall     = 0x4
	sigVarArg       = 0x5
	sigField        = 0x6
	sigLocalSig     = 0x7
	sigProperty     = 0x8
	sigUnmanaged    = 0x9
	sigGenericInst  = 0xA
	sigNativeVarArg = 0xB
)

// High-nibble flag bits, OR-ed onto the calling-convention byte.
const (
	sigGeneric      = 0x10
	sigHasThis      = 0x20
	sigExplicitThis = 0x40
)

// CallingConventionKind tags which of Method/Field/Property/Local a
// decoded signature is.
type CallingConventionKind uint8

// CallingConventionSig variants.
const (
	SigKindMethod CallingConventionKind = iota
	SigKindField
	SigKindProperty
	SigKindLocal
)

// CallingConventionSig is the decoded top-level shape of a #Blob
// signature entry.
type CallingConventionSig struct {
	Kind          CallingConventionKind
	HasThis       bool
	ExplicitThis  bool
	Generic       bool
	GenParamCount uint32

	// Method/Property.
	RetType    *TypeSig
	ParamTypes []*TypeSig
	HasSentinel bool

	// Field.
	FieldType *TypeSig

	// Local.
	Locals []*TypeSig
}

// ElemType is an ECMA-335 element-type byte (CTS primitive or
// composite-form tag), §II.23.1.16.
type ElemType uint8

// Element-type codes this core decodes.
const (
	ElemEnd         ElemType = 0x00
	ElemVoid        ElemType = 0x01
	ElemBoolean     ElemType = 0x02
	ElemChar        ElemType = 0x03
	ElemI1          ElemType = 0x04
	ElemU1          ElemType = 0x05
	ElemI2          ElemType = 0x06
	ElemU2          ElemType = 0x07
	ElemI4          ElemType = 0x08
	ElemU4          ElemType = 0x09
	ElemI8          ElemType = 0x0A
	ElemU8          ElemType = 0x0B
	ElemR4          ElemType = 0x0C
	ElemR8          ElemType = 0x0D
	ElemString      ElemType = 0x0E
	ElemPtr         ElemType = 0x0F
	ElemByRef       ElemType = 0x10
	ElemValueType   ElemType = 0x11
	ElemClass       ElemType = 0x12
	ElemVar         ElemType = 0x13
	ElemArray       ElemType = 0x14
	ElemGenericInst ElemType = 0x15
	ElemTypedByRef  ElemType = 0x16
	ElemI           ElemType = 0x18
	ElemU           ElemType = 0x19
	ElemFnPtr       ElemType = 0x1B
	ElemObject      ElemType = 0x1C
	ElemSZArray     ElemType = 0x1D
	ElemMVar        ElemType = 0x1E
	ElemCModReqd    ElemType = 0x1F
	ElemCModOpt     ElemType = 0x20
	ElemInternal    ElemType = 0x21
	ElemModifier    ElemType = 0x40
	ElemSentinel    ElemType = 0x41
	ElemPinned      ElemType = 0x45
)

// TypeSig is the recursive tagged tree decoded from a #Blob signature.
// Only the fields relevant to Code are populated.
type TypeSig struct {
	Code ElemType

	// Ptr, ByRef, SZArray, CModReqd, CModOpt, Pinned wrap one inner type.
	Elem *TypeSig

	// ValueType, Class carry the resolved TypeDefOrRef token.
	Token MDToken

	// Array.
	Rank        uint32
	Sizes       []uint32
	LowerBounds []int32

	// GenericInst.
	GenericArgs []*TypeSig
	IsValueType bool

	// Var, MVar.
	GenericIndex uint32

	// FnPtr.
	MethodSig *CallingConventionSig
}

const (
	maxArrayRank   = 64
	maxSigDepth    = 64
)

// sigReader walks a #Blob payload with a cursor, independent of the
// File-wide DataReader since the blob has already been copied out by
// BlobAt.
type sigReader struct {
	data []byte
	pos  uint32
}

func (r *sigReader) readByte() (byte, error) {
	if r.pos >= uint32(len(r.data)) {
		return 0, ErrMalformedImage
	}
	b := r.data[r.pos]
	r.pos++
	return b, nil
}

func (r *sigReader) readCompressed() (uint32, error) {
	v, n, err := ReadCompressedUint32(r.data, r.pos)
	if err != nil {
		return 0, err
	}
	r.pos += n
	return v, nil
}

func (r *sigReader) readCompressedSigned() (int32, error) {
	v, n, err := ReadCompressedInt32(r.data, r.pos)
	if err != nil {
		return 0, err
	}
	r.pos += n
	return v, nil
}

func (r *sigReader) readCodedToken(c codedidx) (MDToken, error) {
	coded, err := r.readCompressed()
	if err != nil {
		return 0, err
	}
	return decodeCodedToken(c, coded), nil
}

// DecodeSignature decodes the #Blob entry at idx as a
// CallingConventionSig.
func (pe *File) DecodeSignature(idx uint32) (*CallingConventionSig, error) {
	blob, err := pe.BlobAt(idx)
	if err != nil {
		return nil, err
	}
	r := &sigReader{data: blob}
	return decodeCallingConventionSig(r)
}

func decodeCallingConventionSig(r *sigReader) (*CallingConventionSig, error) {
	b, err := r.readByte()
	if err != nil {
		return nil, err
	}
	sig := &CallingConventionSig{
		HasThis:      b&sigHasThis != 0,
		ExplicitThis: b&sigExplicitThis != 0,
		Generic:      b&sigGeneric != 0,
	}
	switch b & 0x0F {
	case sigField:
		sig.Kind = SigKindField
		t, err := decodeTypeSig(r, 0)
		if err != nil {
			return nil, err
		}
		sig.FieldType = t
	case sigLocalSig:
		sig.Kind = SigKindLocal
		n, err := r.readCompressed()
		if err != nil {
			return nil, err
		}
		sig.Locals = make([]*TypeSig, n)
		for i := range sig.Locals {
			sig.Locals[i], err = decodeTypeSig(r, 0)
			if err != nil {
				return nil, err
			}
		}
	case sigProperty:
		sig.Kind = SigKindProperty
		if err := decodeMethodLikeSig(r, sig); err != nil {
			return nil, err
		}
	default:
		sig.Kind = SigKindMethod
		if sig.Generic {
			n, err := r.readCompressed()
			if err != nil {
				return nil, err
			}
			sig.GenParamCount = n
		}
		if err := decodeMethodLikeSig(r, sig); err != nil {
			return nil, err
		}
	}
	return sig, nil
}

func decodeMethodLikeSig(r *sigReader, sig *CallingConventionSig) error {
	paramCount, err := r.readCompressed()
	if err != nil {
		return err
	}
	sig.RetType, err = decodeTypeSig(r, 0)
	if err != nil {
		return err
	}
	sig.ParamTypes = make([]*TypeSig, 0, paramCount)
	for i := uint32(0); i < paramCount; i++ {
		t, err := decodeTypeSig(r, 0)
		if err != nil {
			return err
		}
		if t.Code == ElemSentinel {
			sig.HasSentinel = true
			i--
			continue
		}
		sig.ParamTypes = append(sig.ParamTypes, t)
	}
	return nil
}

// decodeTypeSig reads one TypeSig, recursing on composite forms. depth
// bounds recursion against adversarial inputs.
func decodeTypeSig(r *sigReader, depth int) (*TypeSig, error) {
	if depth > maxSigDepth {
		return nil, fmt.Errorf("%w: signature nesting too deep", ErrMalformedImage)
	}
	b, err := r.readByte()
	if err != nil {
		return nil, err
	}
	code := ElemType(b)
	switch code {
	case ElemVoid, ElemBoolean, ElemChar, ElemI1, ElemU1, ElemI2, ElemU2,
		ElemI4, ElemU4, ElemI8, ElemU8, ElemR4, ElemR8, ElemString,
		ElemI, ElemU, ElemObject, ElemTypedByRef, ElemSentinel:
		return &TypeSig{Code: code}, nil

	case ElemPtr, ElemByRef, ElemSZArray, ElemCModReqd, ElemCModOpt, ElemPinned:
		inner, err := decodeTypeSig(r, depth+1)
		if err != nil {
			return nil, err
		}
		return &TypeSig{Code: code, Elem: inner}, nil

	case ElemValueType, ElemClass:
		tok, err := r.readCodedToken(idxTypeDefOrRef)
		if err != nil {
			return nil, err
		}
		return &TypeSig{Code: code, Token: tok}, nil

	case ElemVar, ElemMVar:
		n, err := r.readCompressed()
		if err != nil {
			return nil, err
		}
		return &TypeSig{Code: code, GenericIndex: n}, nil

	case ElemFnPtr:
		inner, err := decodeCallingConventionSig(r)
		if err != nil {
			return nil, err
		}
		return &TypeSig{Code: code, MethodSig: inner}, nil

	case ElemGenericInst:
		open, err := decodeTypeSig(r, depth+1)
		if err != nil {
			return nil, err
		}
		n, err := r.readCompressed()
		if err != nil {
			return nil, err
		}
		args := make([]*TypeSig, n)
		for i := range args {
			args[i], err = decodeTypeSig(r, depth+1)
			if err != nil {
				return nil, err
			}
		}
		return &TypeSig{Code: code, Elem: open, GenericArgs: args, IsValueType: open.Code == ElemValueType}, nil

	case ElemArray:
		elem, err := decodeTypeSig(r, depth+1)
		if err != nil {
			return nil, err
		}
		rank, err := r.readCompressed()
		if err != nil {
			return nil, err
		}
		if rank > maxArrayRank {
			return nil, fmt.Errorf("%w: array rank exceeds limit", ErrMalformedImage)
		}
		numSizes, err := r.readCompressed()
		if err != nil {
			return nil, err
		}
		sizes := make([]uint32, numSizes)
		for i := range sizes {
			sizes[i], err = r.readCompressed()
			if err != nil {
				return nil, err
			}
		}
		numLower, err := r.readCompressed()
		if err != nil {
			return nil, err
		}
		lower := make([]int32, numLower)
		for i := range lower {
			lower[i], err = r.readCompressedSigned()
			if err != nil {
				return nil, err
			}
		}
		return &TypeSig{Code: code, Elem: elem, Rank: rank, Sizes: sizes, LowerBounds: lower}, nil

	default:
		return nil, fmt.Errorf("%w: unsupported element type 0x%x", ErrUnsupportedFeature, b)
	}
}
