// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package clr

import "testing"

// pointAssembly builds Base <- Derived, where Derived adds one field
// ("y") on top of Base's ("x"), enough to exercise newObjectFields'
// walk up the Extends chain without any PE bytes.
func pointAssembly() *Assembly {
	x := &FieldRow{Token: NewMDToken(Field, 1), Name: "x",
		Signature: &CallingConventionSig{FieldType: &TypeSig{Code: ElemI4}}, OwnerType: 0}
	y := &FieldRow{Token: NewMDToken(Field, 2), Name: "y",
		Signature: &CallingConventionSig{FieldType: &TypeSig{Code: ElemI4}}, OwnerType: 1}

	base := &TypeDefRow{Token: NewMDToken(TypeDef, 1), Name: "Base", FieldList: RidList{Start: 1, End: 2}}
	derived := &TypeDefRow{Token: NewMDToken(TypeDef, 2), Name: "Derived",
		Extends:   NewMDToken(TypeDef, 1),
		FieldList: RidList{Start: 2, End: 3}}

	return &Assembly{
		TypeDefs: []*TypeDefRow{base, derived},
		Fields:   []*FieldRow{x, y},
	}
}

func TestNewObjectFieldsWalksExtendsChain(t *testing.T) {
	a := pointAssembly()
	fm := newObjectFields(a, 1) // Derived

	if fm.Len() != 2 {
		t.Fatalf("field count = %d, want 2 (x from Base, y from Derived)", fm.Len())
	}
	if !fm.Contains(1) || !fm.Contains(2) {
		t.Errorf("expected fields 1 (x) and 2 (y), got %v", fm.Values())
	}
}

func TestObjectGetSetField(t *testing.T) {
	a := pointAssembly()
	o := &Object{
		OriginTypeToken:  NewMDToken(TypeDef, 2),
		CurrentTypeToken: NewMDToken(TypeDef, 2),
		FieldMap:         newObjectFields(a, 1),
	}

	v, err := o.GetField(2)
	if err != nil {
		t.Fatalf("GetField(2) failed, reason: %v", err)
	}
	if v.Val.I != 0 {
		t.Errorf("GetField(2) = %v, want zero-initialised", v)
	}

	if err := o.SetField(2, NewInt32(9)); err != nil {
		t.Fatalf("SetField(2) failed, reason: %v", err)
	}
	v, _ = o.GetField(2)
	if v.Val.I != 9 {
		t.Errorf("GetField(2) after SetField = %v, want 9", v)
	}

	if err := o.SetField(99, NewInt32(1)); err == nil {
		t.Error("SetField on an unowned rid should fault")
	}
}
