// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package clr

import "github.com/saferwall/clrvm/internal/ordmap"

// gcFlags is the reserved per-Object byte: {locked, pinned,
// generation(2 bits), gc_mark}. No component reads it; it exists only
// because a real implementation would need the slot, and this core
// does not implement a collector (§3, §9).
type gcFlags uint8

// Object is a heap entry. origin_type_token is fixed at allocation;
// current_type_token starts equal to it and is never mutated by
// Castclass in this implementation — see DESIGN.md's decision on
// Open Question #5: a cast reinterprets the reference, it does not
// change the object's stored identity.
type Object struct {
	OriginTypeToken  MDToken
	CurrentTypeToken MDToken

	// OwnerAssembly is the index of the assembly OriginTypeToken and
	// CurrentTypeToken are TypeDef-relative to, since a token alone is
	// only meaningful within one assembly's tables.
	OwnerAssembly int

	// FieldMap holds instance fields keyed by field RID, in the
	// insertion order produced by walking the extends chain from the
	// most-derived type up (§3, §4.10.5).
	FieldMap *ordmap.Map[uint32, ILType]

	// BoxedValue holds the wrapped value for a boxed primitive; nil for
	// a reference-typed object.
	BoxedValue *ILType

	gc gcFlags
}

// newObjectFields collects the instance-field RIDs of typeIdx and
// every ancestor reachable through Extends, walking from the
// most-derived type upward, and zero-initialises each slot per its
// field signature (§4.10.5).
func newObjectFields(a *Assembly, typeIdx int) *ordmap.Map[uint32, ILType] {
	fm := ordmap.New[uint32, ILType]()
	for idx := typeIdx; idx >= 0; {
		td := a.TypeDefs[idx]
		for rid := td.FieldList.Start; rid < td.FieldList.End; rid++ {
			fi := int(rid) - 1
			if fi < 0 || fi >= len(a.Fields) {
				continue
			}
			field := a.Fields[fi]
			if field.IsStatic() {
				continue
			}
			if !fm.Contains(rid) {
				fm.Set(rid, ZeroFromTypeSig(field.Signature.FieldType))
			}
		}
		if td.Extends.IsNull() || td.Extends.Table() != TypeDef {
			break
		}
		next := int(td.Extends.RID()) - 1
		if next < 0 || next >= len(a.TypeDefs) || next == idx {
			break
		}
		idx = next
	}
	return fm
}

// GetField reads the field at rid, faulting if absent.
func (o *Object) GetField(rid uint32) (ILType, error) {
	v, ok := o.FieldMap.Get(rid)
	if !ok {
		return ILType{}, ErrExecutionFault
	}
	return v, nil
}

// SetField writes the field at rid, faulting if absent.
func (o *Object) SetField(rid uint32, v ILType) error {
	if !o.FieldMap.Contains(rid) {
		return ErrExecutionFault
	}
	o.FieldMap.Set(rid, v)
	return nil
}
