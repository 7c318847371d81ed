// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package clr

import (
	"fmt"
	"path/filepath"

	"github.com/saferwall/clrvm/internal/ordmap"
)

// AssemblyName identifies a loaded or referenced assembly. Name must
// always match; version comparison is additionally enforced only when
// Config.StrictVersioning is set.
type AssemblyName struct {
	Major, Minor, Build, Revision uint16
	Flags                         uint32
	PublicKeyToken                []byte
	Name                          string
}

// Equal compares two names per the active versioning policy.
func (n AssemblyName) Equal(other AssemblyName, strict bool) bool {
	if n.Name != other.Name {
		return false
	}
	if !strict {
		return true
	}
	return n.Major == other.Major && n.Minor == other.Minor &&
		n.Build == other.Build && n.Revision == other.Revision
}

// corLibName is the well-known identity of the base class library this
// core recognises as "the" corlib.
const corLibName = "mscorlib"

// Assembly is one loaded image: its PE/metadata view plus every row
// view this core materialises eagerly, per §4.7's "read the entire
// table up front" convention.
type Assembly struct {
	File *File
	Name AssemblyName

	TypeRefs       []*TypeRefRow
	TypeDefs       []*TypeDefRow
	Fields         []*FieldRow
	Methods        []*MethodRow
	Params         []*ParamRow
	MemberRefs     []*MemberRefRow
	StandAloneSigs []*StandAloneSigRow
	TypeSpecs      []*TypeSpecRow
	AssemblyRefs   []*AssemblyRefRow
	ExportedTypes  []*ExportedTypeRow
	MethodSpecs    []*MethodSpecRow

	// TypeDefsByName indexes TypeDefs by full_name, disambiguating
	// duplicates (which occur in real-world assemblies) by appending
	// `1, `2, ... on subsequent occurrences, per §4.7.
	TypeDefsByName *ordmap.Map[string, int]

	// ExportedTypesByName mirrors TypeDefsByName for forwarded types.
	ExportedTypesByName *ordmap.Map[string, int]

	IsCorLib bool
}

// LoadAssembly parses path as a PE/CLI image and materialises every row
// view this core needs.
func LoadAssembly(path string) (*Assembly, error) {
	f, err := New(path, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHostIO, err)
	}
	if err := f.Parse(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedImage, err)
	}
	return newAssembly(f)
}

func newAssembly(f *File) (*Assembly, error) {
	fieldCount := tableRowCount(f, Field)
	methodCount := tableRowCount(f, MethodDef)
	paramCount := tableRowCount(f, Param)

	typeRefs, err := buildTypeRefRows(f)
	if err != nil {
		return nil, err
	}
	typeDefs, err := buildTypeDefRows(f, fieldCount, methodCount)
	if err != nil {
		return nil, err
	}
	fields, err := buildFieldRows(f)
	if err != nil {
		return nil, err
	}
	methods, err := buildMethodRows(f, paramCount)
	if err != nil {
		return nil, err
	}
	params, err := buildParamRows(f)
	if err != nil {
		return nil, err
	}
	memberRefs, err := buildMemberRefRows(f)
	if err != nil {
		return nil, err
	}
	standAloneSigs, err := buildStandAloneSigRows(f)
	if err != nil {
		return nil, err
	}
	typeSpecs, err := buildTypeSpecRows(f)
	if err != nil {
		return nil, err
	}
	assemblyRefs, err := buildAssemblyRefRows(f)
	if err != nil {
		return nil, err
	}
	exportedTypes, err := buildExportedTypeRows(f)
	if err != nil {
		return nil, err
	}
	methodSpecs, err := buildMethodSpecRows(f)
	if err != nil {
		return nil, err
	}

	assignFieldOwners(typeDefs, fields)
	assignMethodOwners(typeDefs, methods)
	assignMethodBodies(f, methods)

	name, err := assemblyNameFromTable(f)
	if err != nil {
		return nil, err
	}

	a := &Assembly{
		File:                f,
		Name:                name,
		TypeRefs:            typeRefs,
		TypeDefs:            typeDefs,
		Fields:              fields,
		Methods:             methods,
		Params:              params,
		MemberRefs:          memberRefs,
		StandAloneSigs:      standAloneSigs,
		TypeSpecs:           typeSpecs,
		AssemblyRefs:        assemblyRefs,
		ExportedTypes:       exportedTypes,
		MethodSpecs:         methodSpecs,
		TypeDefsByName:      ordmap.New[string, int](),
		ExportedTypesByName: ordmap.New[string, int](),
		IsCorLib:            name.Name == corLibName,
	}
	indexByFullName(a.TypeDefsByName, len(typeDefs), func(i int) string { return typeDefs[i].FullName() })
	indexByFullName(a.ExportedTypesByName, len(exportedTypes), func(i int) string { return exportedTypes[i].FullName() })
	return a, nil
}

// indexByFullName populates m with index i under fullName(i), appending
// a `1, `2, ... suffix for repeats of the same name.
func indexByFullName(m *ordmap.Map[string, int], n int, fullName func(i int) string) {
	seen := map[string]int{}
	for i := 0; i < n; i++ {
		name := fullName(i)
		if c, ok := seen[name]; ok {
			seen[name] = c + 1
			name = fmt.Sprintf("%s`%d", name, c+1)
		} else {
			seen[name] = 0
		}
		m.Set(name, i)
	}
}

func assignFieldOwners(typeDefs []*TypeDefRow, fields []*FieldRow) {
	for ti, td := range typeDefs {
		for rid := td.FieldList.Start; rid < td.FieldList.End; rid++ {
			if idx := int(rid) - 1; idx >= 0 && idx < len(fields) {
				fields[idx].OwnerType = ti
			}
		}
	}
}

func assignMethodOwners(typeDefs []*TypeDefRow, methods []*MethodRow) {
	for ti, td := range typeDefs {
		for rid := td.MethodList.Start; rid < td.MethodList.End; rid++ {
			if idx := int(rid) - 1; idx >= 0 && idx < len(methods) {
				methods[idx].OwnerType = ti
			}
		}
	}
}

// assignMethodBodies resolves each non-abstract, non-InternalCall
// method's RVA into a file offset, reads its tiny/fat method-header,
// and records header/code position, size and max_stack.
func assignMethodBodies(f *File, methods []*MethodRow) {
	for _, m := range methods {
		if m.RVA == 0 {
			continue
		}
		off := f.GetOffsetFromRva(m.RVA)
		if off == ^uint32(0) {
			continue
		}
		parseMethodHeader(f, m, off)
	}
}

// ResolveCorLibType maps a CTS primitive element type to a token
// against this assembly's own TypeDef table (when IsCorLib) or,
// otherwise, to the first of this assembly's own TypeRefs whose full
// name matches. No TypeRef is synthesised and the matching TypeRef's
// resolution scope is not checked; false is returned when no row
// matches.
func (a *Assembly) ResolveCorLibType(code ElemType) (MDToken, bool) {
	name, ns, ok := corLibTypeName(code)
	if !ok {
		return 0, false
	}
	full := fullName(ns, name)
	if a.IsCorLib {
		if idx, ok := a.TypeDefsByName.Get(full); ok {
			return a.TypeDefs[idx].Token, true
		}
		return 0, false
	}
	for _, tr := range a.TypeRefs {
		if tr.FullName() == full {
			return tr.Token, true
		}
	}
	return 0, false
}

func corLibTypeName(code ElemType) (name, namespace string, ok bool) {
	switch code {
	case ElemBoolean:
		return "Boolean", "System", true
	case ElemChar:
		return "Char", "System", true
	case ElemI1:
		return "SByte", "System", true
	case ElemU1:
		return "Byte", "System", true
	case ElemI2:
		return "Int16", "System", true
	case ElemU2:
		return "UInt16", "System", true
	case ElemI4:
		return "Int32", "System", true
	case ElemU4:
		return "UInt32", "System", true
	case ElemI8:
		return "Int64", "System", true
	case ElemU8:
		return "UInt64", "System", true
	case ElemR4:
		return "Single", "System", true
	case ElemR8:
		return "Double", "System", true
	case ElemString:
		return "String", "System", true
	case ElemObject:
		return "Object", "System", true
	case ElemI:
		return "IntPtr", "System", true
	case ElemU:
		return "UIntPtr", "System", true
	default:
		return "", "", false
	}
}

func assemblyNameFromTable(f *File) (AssemblyName, error) {
	rows, err := metadataRows[AssemblyTableRow](f, Assembly)
	if err != nil {
		return AssemblyName{}, err
	}
	if len(rows) == 0 {
		// A module with no Assembly row (a non-manifest module) is
		// named after its file.
		base := filepath.Base(f.Path)
		return AssemblyName{Name: base}, nil
	}
	r := rows[0]
	name, err := f.StringAt(r.Name)
	if err != nil {
		return AssemblyName{}, err
	}
	pkt, err := f.BlobAt(r.PublicKey)
	if err != nil {
		return AssemblyName{}, err
	}
	return AssemblyName{
		Major:          r.MajorVersion,
		Minor:          r.MinorVersion,
		Build:          r.BuildNumber,
		Revision:       r.RevisionNumber,
		Flags:          r.Flags,
		PublicKeyToken: pkt,
		Name:           name,
	}, nil
}
