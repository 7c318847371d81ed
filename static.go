// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package clr

// cctorState is the per-(assembly, type) class-constructor interlock
// sentinel (§5, §9): the transition to Running happens before the
// first store into the type's static slots, so a re-entrant read from
// within the .cctor itself sees zeroed values instead of looping.
type cctorState uint8

const (
	cctorUninitialised cctorState = iota
	cctorRunning
	cctorDone
)

// staticStore is one Assembly's static-field storage: the current
// value of every static field, keyed by field RID, plus one
// .cctor interlock slot per TypeDef index.
type staticStore struct {
	fields map[uint32]ILType // keyed by Field RID
	cctors map[int]cctorState
}

func newStaticStore() *staticStore {
	return &staticStore{
		fields: make(map[uint32]ILType),
		cctors: make(map[int]cctorState),
	}
}

// get reads a static field's current value. Absence means cctorToken
// has not zero-initialised the defining type's statics; interp_exec.go
// calls ensureClassInit before every get.
func (s *staticStore) get(fieldRID uint32) (ILType, bool) {
	v, ok := s.fields[fieldRID]
	return v, ok
}

func (s *staticStore) set(fieldRID uint32, v ILType) {
	s.fields[fieldRID] = v
}

// cctorToken returns the owning type's .cctor method token if
// typeIdx's statics have never been touched, else the zero token. It
// also performs the Uninitialised -> Running transition and
// zero-initialises every static field of typeIdx, per §4.10.3's
// Ldsfld/Stsfld rule and §9's interlock note.
func (s *staticStore) cctorToken(a *Assembly, typeIdx int) MDToken {
	if s.cctors[typeIdx] != cctorUninitialised {
		return 0
	}
	s.cctors[typeIdx] = cctorRunning

	td := a.TypeDefs[typeIdx]
	var cctorTok MDToken
	for rid := td.FieldList.Start; rid < td.FieldList.End; rid++ {
		fi := int(rid) - 1
		if fi < 0 || fi >= len(a.Fields) {
			continue
		}
		field := a.Fields[fi]
		if !field.IsStatic() {
			continue
		}
		if _, ok := s.fields[rid]; !ok {
			s.fields[rid] = ZeroFromTypeSig(field.Signature.FieldType)
		}
	}
	for rid := td.MethodList.Start; rid < td.MethodList.End; rid++ {
		mi := int(rid) - 1
		if mi < 0 || mi >= len(a.Methods) {
			continue
		}
		if a.Methods[mi].Name == ".cctor" {
			cctorTok = a.Methods[mi].Token
		}
	}
	return cctorTok
}

// markDone transitions typeIdx's interlock to Done once its .cctor (if
// any) has returned.
func (s *staticStore) markDone(typeIdx int) {
	s.cctors[typeIdx] = cctorDone
}

// IsStatic reports whether the CLI FieldAttributes.Static bit (0x10)
// is set.
func (f *FieldRow) IsStatic() bool {
	return f.Flags&0x10 != 0
}
