// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package clr

import "testing"

// counterAssembly builds a minimal in-memory Assembly with one type
// ("Counter") carrying one static Int32 field and a .cctor, enough to
// exercise staticStore's run-once interlock without any PE bytes.
func counterAssembly() *Assembly {
	field := &FieldRow{
		Token:     NewMDToken(Field, 1),
		Flags:     0x10, // Static
		Name:      "hits",
		Signature: &CallingConventionSig{FieldType: &TypeSig{Code: ElemI4}},
		OwnerType: 0,
	}
	cctor := &MethodRow{
		Token: NewMDToken(MethodDef, 1),
		Name:  ".cctor",
		Flags: 0x10,
	}
	td := &TypeDefRow{
		Token:      NewMDToken(TypeDef, 1),
		Name:       "Counter",
		FieldList:  RidList{Start: 1, End: 2},
		MethodList: RidList{Start: 1, End: 2},
	}
	return &Assembly{
		TypeDefs: []*TypeDefRow{td},
		Fields:   []*FieldRow{field},
		Methods:  []*MethodRow{cctor},
	}
}

func TestStaticStoreCctorTokenRunsOnce(t *testing.T) {
	s := newStaticStore()
	a := counterAssembly()

	tok := s.cctorToken(a, 0)
	if tok != a.Methods[0].Token {
		t.Fatalf("cctorToken = %v, want %v", tok, a.Methods[0].Token)
	}
	s.markDone(0)

	if again := s.cctorToken(a, 0); again != 0 {
		t.Errorf("cctorToken after markDone = %v, want 0 (already run)", again)
	}
}

func TestStaticStoreZeroInitialisesFields(t *testing.T) {
	s := newStaticStore()
	a := counterAssembly()
	s.cctorToken(a, 0)

	v, ok := s.get(1)
	if !ok {
		t.Fatal("expected static field 1 to be zero-initialised")
	}
	if v.Kind != KindVal || v.Val.I != 0 {
		t.Errorf("zero-initialised static field = %v, want zero Int32", v)
	}

	s.set(1, NewInt32(7))
	v, _ = s.get(1)
	if v.Val.I != 7 {
		t.Errorf("after set, field = %v, want 7", v)
	}
}
