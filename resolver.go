// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package clr

import "fmt"

// resolveTypeRef decodes typerefTok's resolution_scope and returns the
// resolved TypeDef index together with the assembly index it lives in,
// per §4.10.1. Loading a referenced assembly happens on demand.
func (it *Interpreter) resolveTypeRef(asmIdx int, typerefTok MDToken) (typeDefIdx, resolvedAsmIdx int, err error) {
	asm, ok := it.assemblies.At(asmIdx)
	if !ok {
		return 0, 0, fmt.Errorf("%w: assembly index %d out of range", ErrResolutionFailure, asmIdx)
	}
	ri := int(typerefTok.RID()) - 1
	if ri < 0 || ri >= len(asm.TypeRefs) {
		return 0, 0, fmt.Errorf("%w: TypeRef rid out of range", ErrMalformedImage)
	}
	tr := asm.TypeRefs[ri]

	switch tr.ResolutionScope.Table() {
	case AssemblyRef:
		refIdx := int(tr.ResolutionScope.RID()) - 1
		if refIdx < 0 || refIdx >= len(asm.AssemblyRefs) {
			return 0, 0, fmt.Errorf("%w: AssemblyRef rid out of range", ErrMalformedImage)
		}
		targetName := asm.AssemblyRefs[refIdx].Name.Name
		targetIdx, targetAsm, err := it.loadReferencedAssembly(targetName)
		if err != nil {
			return 0, 0, err
		}
		full := tr.FullName()
		if idx, ok := targetAsm.TypeDefsByName.Get(full); ok {
			return idx, targetIdx, nil
		}
		if idx, ok := targetAsm.ExportedTypesByName.Get(full); ok {
			return it.resolveExportedType(targetIdx, targetAsm.ExportedTypes[idx])
		}
		return 0, 0, fmt.Errorf("%w: type %q not found in assembly %q", ErrResolutionFailure, full, targetName)

	case Module, ModuleRef:
		full := tr.FullName()
		if idx, ok := asm.TypeDefsByName.Get(full); ok {
			return idx, asmIdx, nil
		}
		return 0, 0, fmt.Errorf("%w: type %q not found in owning module", ErrResolutionFailure, full)

	case TypeRef:
		return 0, 0, fmt.Errorf("%w: nested TypeRef resolution scopes", ErrUnsupportedFeature)

	default:
		return 0, 0, fmt.Errorf("%w: unsupported TypeRef resolution scope", ErrUnsupportedFeature)
	}
}

// resolveExportedType follows an ExportedType's Implementation chain.
// AssemblyRef-kind implementations redirect to another assembly's
// TypeDefs; File and ExportedType kinds are not supported (§4.10.1).
func (it *Interpreter) resolveExportedType(asmIdx int, et *ExportedTypeRow) (typeDefIdx, resolvedAsmIdx int, err error) {
	switch et.Implementation.Table() {
	case AssemblyRef:
		asm, ok := it.assemblies.At(asmIdx)
		if !ok {
			return 0, 0, fmt.Errorf("%w: assembly index %d out of range", ErrResolutionFailure, asmIdx)
		}
		refIdx := int(et.Implementation.RID()) - 1
		if refIdx < 0 || refIdx >= len(asm.AssemblyRefs) {
			return 0, 0, fmt.Errorf("%w: AssemblyRef rid out of range", ErrMalformedImage)
		}
		targetName := asm.AssemblyRefs[refIdx].Name.Name
		targetIdx, targetAsm, err := it.loadReferencedAssembly(targetName)
		if err != nil {
			return 0, 0, err
		}
		full := et.FullName()
		if idx, ok := targetAsm.TypeDefsByName.Get(full); ok {
			return idx, targetIdx, nil
		}
		return 0, 0, fmt.Errorf("%w: forwarded type %q not found", ErrResolutionFailure, full)
	default:
		return 0, 0, fmt.Errorf("%w: ExportedType implementation kind %d", ErrUnsupportedFeature, et.Implementation.Table())
	}
}

// resolveTypeDefOrRef dispatches on tok's table, per §4.10.1. Null
// tokens (RID 0) resolve to index 0 by convention. TypeSpec tokens
// whose signature is a GenericInst recurse on the inner (open) type.
func (it *Interpreter) resolveTypeDefOrRef(asmIdx int, tok MDToken) (typeDefIdx, resolvedAsmIdx int, err error) {
	if tok.IsNull() {
		return 0, asmIdx, nil
	}
	switch tok.Table() {
	case TypeRef:
		return it.resolveTypeRef(asmIdx, tok)
	case TypeDef:
		return int(tok.RID()) - 1, asmIdx, nil
	case TypeSpec:
		asm, ok := it.assemblies.At(asmIdx)
		if !ok {
			return 0, 0, fmt.Errorf("%w: assembly index %d out of range", ErrResolutionFailure, asmIdx)
		}
		si := int(tok.RID()) - 1
		if si < 0 || si >= len(asm.TypeSpecs) {
			return 0, 0, fmt.Errorf("%w: TypeSpec rid out of range", ErrMalformedImage)
		}
		sig := asm.TypeSpecs[si].Signature
		if sig.Code == ElemGenericInst {
			return it.resolveTypeDefOrRef(asmIdx, sig.Elem.Token)
		}
		if sig.Code == ElemValueType || sig.Code == ElemClass {
			return it.resolveTypeDefOrRef(asmIdx, sig.Token)
		}
		return 0, 0, fmt.Errorf("%w: unsupported TypeSpec shape for resolution", ErrUnsupportedFeature)
	default:
		return 0, 0, fmt.Errorf("%w: unsupported TypeDefOrRef table", ErrUnsupportedFeature)
	}
}

// resolveMemberRef finds memberrefTok's MemberRef, resolves its class
// as a TypeDefOrRef, and scans that TypeDef's method_list for a name
// and signature match, per §4.10.1.
func (it *Interpreter) resolveMemberRef(asmIdx int, memberrefTok MDToken) (methodIdx, resolvedAsmIdx int, err error) {
	asm, ok := it.assemblies.At(asmIdx)
	if !ok {
		return 0, 0, fmt.Errorf("%w: assembly index %d out of range", ErrResolutionFailure, asmIdx)
	}
	ri := int(memberrefTok.RID()) - 1
	if ri < 0 || ri >= len(asm.MemberRefs) {
		return 0, 0, fmt.Errorf("%w: MemberRef rid out of range", ErrMalformedImage)
	}
	mr := asm.MemberRefs[ri]

	typeDefIdx, targetAsmIdx, err := it.resolveTypeDefOrRef(asmIdx, mr.Class)
	if err != nil {
		return 0, 0, err
	}
	targetAsm, _ := it.assemblies.At(targetAsmIdx)
	td := targetAsm.TypeDefs[typeDefIdx]

	for rid := td.MethodList.Start; rid < td.MethodList.End; rid++ {
		mi := int(rid) - 1
		if mi < 0 || mi >= len(targetAsm.Methods) {
			continue
		}
		cand := targetAsm.Methods[mi]
		if cand.Name == mr.Name && methodSigEqual(cand.Signature, mr.Signature) {
			return mi, targetAsmIdx, nil
		}
	}
	return 0, 0, fmt.Errorf("%w: member %q not found on resolved type", ErrResolutionFailure, mr.Name)
}

// methodSigEqual compares two MethodSigs structurally: return type and
// parameter types, per §4.10.1's "exact match" rule.
func methodSigEqual(a, b *CallingConventionSig) bool {
	if a == nil || b == nil {
		return a == b
	}
	if !typeSigEqual(a.RetType, b.RetType) {
		return false
	}
	if len(a.ParamTypes) != len(b.ParamTypes) {
		return false
	}
	for i := range a.ParamTypes {
		if !typeSigEqual(a.ParamTypes[i], b.ParamTypes[i]) {
			return false
		}
	}
	return true
}

func typeSigEqual(a, b *TypeSig) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Code != b.Code {
		return false
	}
	switch a.Code {
	case ElemValueType, ElemClass:
		return a.Token == b.Token
	case ElemPtr, ElemByRef, ElemSZArray, ElemCModReqd, ElemCModOpt, ElemPinned:
		return typeSigEqual(a.Elem, b.Elem)
	case ElemVar, ElemMVar:
		return a.GenericIndex == b.GenericIndex
	case ElemArray:
		return typeSigEqual(a.Elem, b.Elem) && a.Rank == b.Rank
	case ElemGenericInst:
		if !typeSigEqual(a.Elem, b.Elem) || len(a.GenericArgs) != len(b.GenericArgs) {
			return false
		}
		for i := range a.GenericArgs {
			if !typeSigEqual(a.GenericArgs[i], b.GenericArgs[i]) {
				return false
			}
		}
		return true
	default:
		return true
	}
}

// getMethodIndex dispatches a call-site token to a concrete method
// index, per §4.10.1: MethodDef tokens map directly, MemberRef tokens
// resolve via resolveMemberRef, MethodSpec tokens redirect to their
// underlying MethodDefOrRef.
func (it *Interpreter) getMethodIndex(asmIdx int, tok MDToken) (methodIdx, resolvedAsmIdx int, err error) {
	switch tok.Table() {
	case MethodDef:
		return int(tok.RID()) - 1, asmIdx, nil
	case MemberRef:
		return it.resolveMemberRef(asmIdx, tok)
	case MethodSpec:
		asm, ok := it.assemblies.At(asmIdx)
		if !ok {
			return 0, 0, fmt.Errorf("%w: assembly index %d out of range", ErrResolutionFailure, asmIdx)
		}
		si := int(tok.RID()) - 1
		if si < 0 || si >= len(asm.MethodSpecs) {
			return 0, 0, fmt.Errorf("%w: MethodSpec rid out of range", ErrMalformedImage)
		}
		return it.getMethodIndex(asmIdx, asm.MethodSpecs[si].Method)
	default:
		return 0, 0, fmt.Errorf("%w: unsupported method-reference table", ErrUnsupportedFeature)
	}
}
