// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package clr

import (
	"errors"
	"testing"
)

func TestAddSubPopOrder(t *testing.T) {
	tests := []struct {
		name    string
		a, b    ILType
		wantAdd int64
		wantSub int64
	}{
		{"int32", NewInt32(10), NewInt32(3), 13, 7},
		{"int64 widens", NewInt64(10), NewInt32(3), 13, 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sum, err := Add(tt.a, tt.b)
			if err != nil {
				t.Fatalf("Add failed, reason: %v", err)
			}
			if sum.Val.I != tt.wantAdd {
				t.Errorf("Add(%v, %v) = %d, want %d", tt.a, tt.b, sum.Val.I, tt.wantAdd)
			}

			diff, err := Sub(tt.a, tt.b)
			if err != nil {
				t.Fatalf("Sub failed, reason: %v", err)
			}
			if diff.Val.I != tt.wantSub {
				t.Errorf("Sub(%v, %v) = %d, want %d", tt.a, tt.b, diff.Val.I, tt.wantSub)
			}
		})
	}
}

func TestAddOnIncompatibleOperandsFaults(t *testing.T) {
	_, err := Add(NewInt32(1), NullRef())
	if !errors.Is(err, ErrExecutionFault) {
		t.Errorf("Add(int32, null ref) error = %v, want ErrExecutionFault", err)
	}
}

func TestNPtrOffsetArithmetic(t *testing.T) {
	p := ILType{Kind: KindNPtr, NPtr: NPtr{Buf: make([]byte, 16), Offset: 4}}
	out, err := Add(p, NewInt32(3))
	if err != nil {
		t.Fatalf("Add failed, reason: %v", err)
	}
	if out.NPtr.Offset != 7 {
		t.Errorf("NPtr offset after add = %d, want 7", out.NPtr.Offset)
	}
	out, err = Sub(out, NewInt32(2))
	if err != nil {
		t.Fatalf("Sub failed, reason: %v", err)
	}
	if out.NPtr.Offset != 5 {
		t.Errorf("NPtr offset after sub = %d, want 5", out.NPtr.Offset)
	}
}

func TestCompare(t *testing.T) {
	tests := []struct {
		name string
		a, b ILType
		want int
	}{
		{"equal ints", NewInt32(5), NewInt32(5), 0},
		{"less ints", NewInt32(3), NewInt32(5), -1},
		{"greater ints", NewInt32(9), NewInt32(5), 1},
		{"equal doubles", NewDouble(1.5), NewDouble(1.5), 0},
		{"less doubles", NewDouble(1.1), NewDouble(2.2), -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Compare(tt.a, tt.b)
			if err != nil {
				t.Fatalf("Compare failed, reason: %v", err)
			}
			if got != tt.want {
				t.Errorf("Compare(%v, %v) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestIsFalseType(t *testing.T) {
	cases := []struct {
		name string
		v    ILType
		want bool
	}{
		{"zero int32", NewInt32(0), true},
		{"nonzero int32", NewInt32(1), false},
		{"zero double", NewDouble(0), true},
		{"null ref", NullRef(), true},
		{"string ref", StringRef(0), false},
		{"empty nptr", ILType{Kind: KindNPtr}, true},
		{"nonempty nptr", ILType{Kind: KindNPtr, NPtr: NPtr{Buf: []byte{1}}}, false},
		{"ptr never false", ILType{Kind: KindPtr}, false},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.v.IsFalseType(); got != tt.want {
				t.Errorf("IsFalseType(%v) = %v, want %v", tt.v, got, tt.want)
			}
		})
	}
}

func TestZeroFromTypeSigNilIsNullRef(t *testing.T) {
	z := ZeroFromTypeSig(nil)
	if z.Kind != KindRef || z.Ref.Kind != RefNull {
		t.Errorf("ZeroFromTypeSig(nil) = %v, want null ref", z)
	}
}

func TestZeroFromTypeSigPrimitives(t *testing.T) {
	z := ZeroFromTypeSig(&TypeSig{Code: ElemI4})
	if z.Kind != KindVal || z.Val.Kind != ILInt32 || z.Val.I != 0 {
		t.Errorf("ZeroFromTypeSig(I4) = %v, want zero Int32", z)
	}
	z = ZeroFromTypeSig(&TypeSig{Code: ElemClass, Token: NewMDToken(TypeDef, 1)})
	if z.Kind != KindRef || z.Ref.Kind != RefNull {
		t.Errorf("ZeroFromTypeSig(Class) = %v, want null ref", z)
	}
}
