// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package clr

import "testing"

func TestTypeSigEqual(t *testing.T) {
	i4 := &TypeSig{Code: ElemI4}
	i4b := &TypeSig{Code: ElemI4}
	i8 := &TypeSig{Code: ElemI8}
	class1 := &TypeSig{Code: ElemClass, Token: NewMDToken(TypeDef, 1)}
	class1b := &TypeSig{Code: ElemClass, Token: NewMDToken(TypeDef, 1)}
	class2 := &TypeSig{Code: ElemClass, Token: NewMDToken(TypeDef, 2)}
	arrI4 := &TypeSig{Code: ElemSZArray, Elem: i4}
	arrI4b := &TypeSig{Code: ElemSZArray, Elem: i4b}
	arrI8 := &TypeSig{Code: ElemSZArray, Elem: i8}

	tests := []struct {
		name string
		a, b *TypeSig
		want bool
	}{
		{"same primitive", i4, i4b, true},
		{"different primitive", i4, i8, false},
		{"same class token", class1, class1b, true},
		{"different class token", class1, class2, false},
		{"same element array", arrI4, arrI4b, true},
		{"different element array", arrI4, arrI8, false},
		{"both nil", nil, nil, true},
		{"one nil", i4, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := typeSigEqual(tt.a, tt.b); got != tt.want {
				t.Errorf("typeSigEqual(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestMethodSigEqual(t *testing.T) {
	ret := &TypeSig{Code: ElemVoid}
	a := &CallingConventionSig{RetType: ret, ParamTypes: []*TypeSig{{Code: ElemI4}, {Code: ElemString}}}
	b := &CallingConventionSig{RetType: ret, ParamTypes: []*TypeSig{{Code: ElemI4}, {Code: ElemString}}}
	c := &CallingConventionSig{RetType: ret, ParamTypes: []*TypeSig{{Code: ElemI4}}}

	if !methodSigEqual(a, b) {
		t.Error("identical method signatures should compare equal")
	}
	if methodSigEqual(a, c) {
		t.Error("signatures with different arity should not compare equal")
	}
}
