// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package clr

import "fmt"

// RidList is a half-open rid range [Start, End) into a child table,
// derived from a pair of neighbouring parent rows that each point into
// that child table.
type RidList struct {
	Start uint32
	End   uint32
}

// Len returns the number of RIDs the range covers.
func (r RidList) Len() uint32 {
	if r.End <= r.Start {
		return 0
	}
	return r.End - r.Start
}

// Contains reports whether rid falls within the range.
func (r RidList) Contains(rid uint32) bool {
	return rid >= r.Start && rid < r.End
}

// ridListFrom builds the RidList owned by row index i (0-based) out of
// column col of table parentRows, using nextCol(i+1) or the child
// table's row count when i is the last row.
func ridListFrom(col uint32, nextCol uint32, hasNext bool, childRowCount uint32) RidList {
	start := col
	end := childRowCount + 1
	if hasNext {
		end = nextCol
	}
	return RidList{Start: start, End: end}
}

// TypeRefRow is the row view over a TypeRef table entry.
type TypeRefRow struct {
	Token           MDToken
	ResolutionScope MDToken
	Namespace       string
	Name            string
}

// FullName is the TypeRef's dotted name used for cross-assembly lookup.
func (t *TypeRefRow) FullName() string {
	return fullName(t.Namespace, t.Name)
}

func fullName(namespace, name string) string {
	if namespace == "" {
		return name
	}
	return namespace + "." + name
}

func buildTypeRefRows(pe *File) ([]*TypeRefRow, error) {
	raw, err := metadataRows[TypeRefTableRow](pe, TypeRef)
	if err != nil {
		return nil, err
	}
	out := make([]*TypeRefRow, len(raw))
	for i, r := range raw {
		ns, err := pe.StringAt(r.TypeNamespace)
		if err != nil {
			return nil, err
		}
		name, err := pe.StringAt(r.TypeName)
		if err != nil {
			return nil, err
		}
		out[i] = &TypeRefRow{
			Token:           NewMDToken(TypeRef, uint32(i+1)),
			ResolutionScope: decodeCodedToken(idxResolutionScope, r.ResolutionScope),
			Namespace:       ns,
			Name:            name,
		}
	}
	return out, nil
}

// TypeDefRow is the row view over a TypeDef table entry.
type TypeDefRow struct {
	Token      MDToken
	Flags      uint32
	Namespace  string
	Name       string
	Extends    MDToken
	FieldList  RidList
	MethodList RidList
}

// FullName is the TypeDef's dotted name.
func (t *TypeDefRow) FullName() string {
	return fullName(t.Namespace, t.Name)
}

func buildTypeDefRows(pe *File, fieldRowCount, methodRowCount uint32) ([]*TypeDefRow, error) {
	raw, err := metadataRows[TypeDefTableRow](pe, TypeDef)
	if err != nil {
		return nil, err
	}
	out := make([]*TypeDefRow, len(raw))
	for i, r := range raw {
		ns, err := pe.StringAt(r.TypeNamespace)
		if err != nil {
			return nil, err
		}
		name, err := pe.StringAt(r.TypeName)
		if err != nil {
			return nil, err
		}
		hasNext := i+1 < len(raw)
		var nextField, nextMethod uint32
		if hasNext {
			nextField = raw[i+1].FieldList
			nextMethod = raw[i+1].MethodList
		}
		out[i] = &TypeDefRow{
			Token:      NewMDToken(TypeDef, uint32(i+1)),
			Flags:      r.Flags,
			Namespace:  ns,
			Name:       name,
			Extends:    decodeCodedToken(idxTypeDefOrRef, r.Extends),
			FieldList:  ridListFrom(r.FieldList, nextField, hasNext, fieldRowCount),
			MethodList: ridListFrom(r.MethodList, nextMethod, hasNext, methodRowCount),
		}
	}
	return out, nil
}

// FieldRow is the row view over a Field table entry.
type FieldRow struct {
	Token     MDToken
	Flags     uint16
	Name      string
	Signature *CallingConventionSig
	OwnerType int // 0-based index into TypeDefs
}

func buildFieldRows(pe *File) ([]*FieldRow, error) {
	raw, err := metadataRows[FieldTableRow](pe, Field)
	if err != nil {
		return nil, err
	}
	out := make([]*FieldRow, len(raw))
	for i, r := range raw {
		name, err := pe.StringAt(r.Name)
		if err != nil {
			return nil, err
		}
		sig, err := pe.DecodeSignature(r.Signature)
		if err != nil {
			return nil, err
		}
		out[i] = &FieldRow{
			Token:     NewMDToken(Field, uint32(i+1)),
			Flags:     r.Flags,
			Name:      name,
			Signature: sig,
			OwnerType: -1,
		}
	}
	return out, nil
}

// MethodRow is the row view over a MethodDef table entry.
type MethodRow struct {
	Token        MDToken
	RVA          uint32
	ImplFlags    uint16
	Flags        uint16
	Name         string
	Signature    *CallingConventionSig
	ParamList    RidList
	OwnerType    int // 0-based index into TypeDefs
	HeaderPos    uint32
	CodePos      uint32
	CodeSize     uint32
	MaxStack     uint16
	LocalVarRID  uint32
}

// IsInternalCall reports whether the CLI-runtime-provided InternalCall
// bit (MethodImplAttributes.InternalCall, 0x1000) is set.
func (m *MethodRow) IsInternalCall() bool {
	return m.ImplFlags&0x1000 != 0
}

// IsStatic reports whether the CLI MethodAttributes.Static bit (0x10)
// is set.
func (m *MethodRow) IsStatic() bool {
	return m.Flags&0x10 != 0
}

func buildMethodRows(pe *File, paramRowCount uint32) ([]*MethodRow, error) {
	raw, err := metadataRows[MethodDefTableRow](pe, MethodDef)
	if err != nil {
		return nil, err
	}
	out := make([]*MethodRow, len(raw))
	for i, r := range raw {
		name, err := pe.StringAt(r.Name)
		if err != nil {
			return nil, err
		}
		sig, err := pe.DecodeSignature(r.Signature)
		if err != nil {
			return nil, err
		}
		hasNext := i+1 < len(raw)
		var nextParam uint32
		if hasNext {
			nextParam = raw[i+1].ParamList
		}
		out[i] = &MethodRow{
			Token:     NewMDToken(MethodDef, uint32(i+1)),
			RVA:       r.RVA,
			ImplFlags: r.ImplFlags,
			Flags:     r.Flags,
			Name:      name,
			Signature: sig,
			ParamList: ridListFrom(r.ParamList, nextParam, hasNext, paramRowCount),
			OwnerType: -1,
		}
	}
	return out, nil
}

// ParamRow is the row view over a Param table entry.
type ParamRow struct {
	Token    MDToken
	Flags    uint16
	Sequence uint16
	Name     string
}

func buildParamRows(pe *File) ([]*ParamRow, error) {
	raw, err := metadataRows[ParamTableRow](pe, Param)
	if err != nil {
		return nil, err
	}
	out := make([]*ParamRow, len(raw))
	for i, r := range raw {
		name, err := pe.StringAt(r.Name)
		if err != nil {
			return nil, err
		}
		out[i] = &ParamRow{
			Token:    NewMDToken(Param, uint32(i+1)),
			Flags:    r.Flags,
			Sequence: r.Sequence,
			Name:     name,
		}
	}
	return out, nil
}

// MemberRefRow is the row view over a MemberRef table entry.
type MemberRefRow struct {
	Token     MDToken
	Class     MDToken
	Name      string
	Signature *CallingConventionSig
}

func buildMemberRefRows(pe *File) ([]*MemberRefRow, error) {
	raw, err := metadataRows[MemberRefTableRow](pe, MemberRef)
	if err != nil {
		return nil, err
	}
	out := make([]*MemberRefRow, len(raw))
	for i, r := range raw {
		name, err := pe.StringAt(r.Name)
		if err != nil {
			return nil, err
		}
		sig, err := pe.DecodeSignature(r.Signature)
		if err != nil {
			return nil, err
		}
		out[i] = &MemberRefRow{
			Token:     NewMDToken(MemberRef, uint32(i+1)),
			Class:     decodeCodedToken(idxMemberRefParent, r.Class),
			Name:      name,
			Signature: sig,
		}
	}
	return out, nil
}

// StandAloneSigRow is the row view over a StandAloneSig table entry;
// this core only uses it for LocalSig blobs.
type StandAloneSigRow struct {
	Token     MDToken
	Signature *CallingConventionSig
}

func buildStandAloneSigRows(pe *File) ([]*StandAloneSigRow, error) {
	raw, err := metadataRows[StandAloneSigTableRow](pe, StandAloneSig)
	if err != nil {
		return nil, err
	}
	out := make([]*StandAloneSigRow, len(raw))
	for i, r := range raw {
		sig, err := pe.DecodeSignature(r.Signature)
		if err != nil {
			return nil, err
		}
		out[i] = &StandAloneSigRow{
			Token:     NewMDToken(StandAloneSig, uint32(i+1)),
			Signature: sig,
		}
	}
	return out, nil
}

// TypeSpecRow is the row view over a TypeSpec table entry.
type TypeSpecRow struct {
	Token     MDToken
	Signature *TypeSig
}

func buildTypeSpecRows(pe *File) ([]*TypeSpecRow, error) {
	raw, err := metadataRows[TypeSpecTableRow](pe, TypeSpec)
	if err != nil {
		return nil, err
	}
	out := make([]*TypeSpecRow, len(raw))
	for i, r := range raw {
		blob, err := pe.BlobAt(r.Signature)
		if err != nil {
			return nil, err
		}
		sr := &sigReader{data: blob}
		sig, err := decodeTypeSig(sr, 0)
		if err != nil {
			return nil, err
		}
		out[i] = &TypeSpecRow{
			Token:     NewMDToken(TypeSpec, uint32(i+1)),
			Signature: sig,
		}
	}
	return out, nil
}

// AssemblyRefRow is the row view over an AssemblyRef table entry.
type AssemblyRefRow struct {
	Token   MDToken
	Name    AssemblyName
	Culture string
	Hash    []byte
}

func buildAssemblyRefRows(pe *File) ([]*AssemblyRefRow, error) {
	raw, err := metadataRows[AssemblyRefTableRow](pe, AssemblyRef)
	if err != nil {
		return nil, err
	}
	out := make([]*AssemblyRefRow, len(raw))
	for i, r := range raw {
		name, err := pe.StringAt(r.Name)
		if err != nil {
			return nil, err
		}
		culture, err := pe.StringAt(r.Culture)
		if err != nil {
			return nil, err
		}
		pkt, err := pe.BlobAt(r.PublicKeyOrToken)
		if err != nil {
			return nil, err
		}
		hash, err := pe.BlobAt(r.HashValue)
		if err != nil {
			return nil, err
		}
		out[i] = &AssemblyRefRow{
			Token: NewMDToken(AssemblyRef, uint32(i+1)),
			Name: AssemblyName{
				Major:           r.MajorVersion,
				Minor:           r.MinorVersion,
				Build:           r.BuildNumber,
				Revision:        r.RevisionNumber,
				Flags:           r.Flags,
				PublicKeyToken:  pkt,
				Name:            name,
			},
			Culture: culture,
			Hash:    hash,
		}
	}
	return out, nil
}

// ExportedTypeRow is the row view over an ExportedType table entry.
type ExportedTypeRow struct {
	Token          MDToken
	Flags          uint32
	TypeDefID      uint32
	Namespace      string
	Name           string
	Implementation MDToken
}

// FullName is the ExportedType's dotted name.
func (e *ExportedTypeRow) FullName() string {
	return fullName(e.Namespace, e.Name)
}

func buildExportedTypeRows(pe *File) ([]*ExportedTypeRow, error) {
	raw, err := metadataRows[ExportedTypeTableRow](pe, ExportedType)
	if err != nil {
		return nil, err
	}
	out := make([]*ExportedTypeRow, len(raw))
	for i, r := range raw {
		ns, err := pe.StringAt(r.TypeNamespace)
		if err != nil {
			return nil, err
		}
		name, err := pe.StringAt(r.TypeName)
		if err != nil {
			return nil, err
		}
		out[i] = &ExportedTypeRow{
			Token:          NewMDToken(ExportedType, uint32(i+1)),
			Flags:          r.Flags,
			TypeDefID:      r.TypeDefId,
			Namespace:      ns,
			Name:           name,
			Implementation: decodeCodedToken(idxImplementation, r.Implementation),
		}
	}
	return out, nil
}

// MethodSpecRow is the row view over a MethodSpec table entry.
type MethodSpecRow struct {
	Token         MDToken
	Method        MDToken
	Instantiation *TypeSig
}

func buildMethodSpecRows(pe *File) ([]*MethodSpecRow, error) {
	raw, err := metadataRows[MethodSpecTableRow](pe, MethodSpec)
	if err != nil {
		return nil, err
	}
	out := make([]*MethodSpecRow, len(raw))
	for i, r := range raw {
		blob, err := pe.BlobAt(r.Instantiation)
		if err != nil {
			return nil, err
		}
		var inst *TypeSig
		if len(blob) > 0 {
			sr := &sigReader{data: blob}
			// GENERICINST element-type byte prefixes the arg list here too.
			inst, err = decodeTypeSig(sr, 0)
			if err != nil {
				return nil, err
			}
		}
		out[i] = &MethodSpecRow{
			Token:         NewMDToken(MethodSpec, uint32(i+1)),
			Method:        decodeCodedToken(idxMethodDefOrRef, r.Method),
			Instantiation: inst,
		}
	}
	return out, nil
}

// tableRowCount returns the row count recorded for tableIdx, or 0 if
// the table is absent from this image.
func tableRowCount(pe *File, tableIdx int) uint32 {
	table, ok := pe.CLR.MetadataTables[tableIdx]
	if !ok {
		return 0
	}
	return table.CountCols
}

// metadataRows fetches and type-asserts the decoded rows for table
// index tableIdx, returning an empty slice if the table is absent from
// this image (valid_mask bit clear).
func metadataRows[T any](pe *File, tableIdx int) ([]T, error) {
	table, ok := pe.CLR.MetadataTables[tableIdx]
	if !ok || table.Content == nil {
		return nil, nil
	}
	rows, ok := table.Content.([]T)
	if !ok {
		return nil, fmt.Errorf("%w: metadata table %d has unexpected row type", ErrMalformedImage, tableIdx)
	}
	return rows, nil
}
