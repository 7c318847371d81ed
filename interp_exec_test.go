// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package clr

import (
	"bytes"
	"testing"

	"github.com/saferwall/clrvm/internal/ordmap"
)

// newTestInterpreter wires a single in-memory assembly (built straight
// from Go structs, no PE bytes needed beyond the raw code stream each
// method's File wraps) into a fresh Interpreter, the same way
// NewInterpreter does for a loaded one.
func newTestInterpreter(asm *Assembly, out *bytes.Buffer) *Interpreter {
	it := &Interpreter{
		cfg:        Config{MaxCallDepth: DefaultMaxCallDepth, Output: out},
		assemblies: ordmap.New[string, *Assembly](),
	}
	it.registerAssembly(asm)
	it.ctx.CurrentAssembly = asm
	it.ctx.CurrentAssemblyIndex = 0
	return it
}

func codeFile(t *testing.T, code []byte) *File {
	t.Helper()
	f, err := NewBytes(code, nil)
	if err != nil {
		t.Fatalf("NewBytes failed, reason: %v", err)
	}
	return f
}

// TestAddIntsMethod exercises the AddInts scenario: ldc.i4.s 3,
// ldc.i4.s 4, add, ret.
func TestAddIntsMethod(t *testing.T) {
	code := []byte{opLdcI4S, 3, opLdcI4S, 4, opAdd, opRet}
	method := &MethodRow{
		Token:     NewMDToken(MethodDef, 1),
		Name:      "AddInts",
		CodePos:   0,
		CodeSize:  uint32(len(code)),
		Signature: &CallingConventionSig{RetType: &TypeSig{Code: ElemI4}},
	}
	asm := &Assembly{
		File:    codeFile(t, code),
		Name:    AssemblyName{Name: "Test"},
		Methods: []*MethodRow{method},
	}
	it := newTestInterpreter(asm, nil)

	ret, err := it.ilCall(method.Token, nil)
	if err != nil {
		t.Fatalf("ilCall(AddInts) failed, reason: %v", err)
	}
	if ret == nil || ret.Val.I != 7 {
		t.Errorf("AddInts returned %v, want 7", ret)
	}
}

// TestLoopMethod exercises a counted-down loop summing 3+2+1 via a
// backward short branch (Open Question #3: short branches are signed,
// so br.s can jump backward to re-enter the loop body).
func TestLoopMethod(t *testing.T) {
	code := []byte{
		/*  0 */ opLdcI43, opStloc0, // counter = 3
		/*  2 */ opLdcI40, opStloc1, // sum = 0
		/*  4 */ opLdloc0, // LOOP: push counter
		/*  5 */ opBrfalseS, 10, // if counter == 0, jump to END (17)
		/*  7 */ opLdloc1, opLdloc0, opAdd, opStloc1, // sum += counter
		/* 11 */ opLdloc0, opLdcI41, opSub, opStloc0, // counter -= 1
		/* 15 */ opBrS, 0xF3, // br.s LOOP (offset -13)
		/* 17 */ opLdloc1, // END: push sum
		/* 18 */ opRet,
	}
	method := &MethodRow{
		Token:       NewMDToken(MethodDef, 1),
		Name:        "SumDownFrom3",
		CodePos:     0,
		CodeSize:    uint32(len(code)),
		Signature:   &CallingConventionSig{RetType: &TypeSig{Code: ElemI4}},
		LocalVarRID: 1,
	}
	localSig := &StandAloneSigRow{
		Signature: &CallingConventionSig{Locals: []*TypeSig{{Code: ElemI4}, {Code: ElemI4}}},
	}
	asm := &Assembly{
		File:           codeFile(t, code),
		Name:           AssemblyName{Name: "Test"},
		Methods:        []*MethodRow{method},
		StandAloneSigs: []*StandAloneSigRow{localSig},
	}
	it := newTestInterpreter(asm, nil)

	ret, err := it.ilCall(method.Token, nil)
	if err != nil {
		t.Fatalf("ilCall(SumDownFrom3) failed, reason: %v", err)
	}
	if ret == nil || ret.Val.I != 6 {
		t.Errorf("SumDownFrom3 returned %v, want 6", ret)
	}
}

// TestNewObjAndFieldAccess exercises Newobj placing "this" below the
// already-pushed constructor argument, then Stfld/Ldfld against it.
func TestNewObjAndFieldAccess(t *testing.T) {
	xField := &FieldRow{Token: NewMDToken(Field, 1), Name: "x",
		Signature: &CallingConventionSig{FieldType: &TypeSig{Code: ElemI4}}, OwnerType: 0}

	// ctor: stfld x on `this` using the single explicit int32 argument.
	ctorCode := []byte{
		opLdarg0, opLdarg1, opStfld, 0, 0, 0, 0, // token patched below
		opRet,
	}
	ctor := &MethodRow{
		Token:    NewMDToken(MethodDef, 1),
		Name:     ".ctor",
		CodePos:  0,
		CodeSize: uint32(len(ctorCode)),
		Signature: &CallingConventionSig{
			HasThis:    true,
			ParamTypes: []*TypeSig{{Code: ElemI4}},
		},
		OwnerType: 0,
	}
	fieldTok := NewMDToken(Field, 1)
	ctorCode[3] = byte(fieldTok)
	ctorCode[4] = byte(fieldTok >> 8)
	ctorCode[5] = byte(fieldTok >> 16)
	ctorCode[6] = byte(fieldTok >> 24)

	// main: newobj Point(5), ldfld x, ret.
	mainCode := []byte{
		opLdcI45, opNewobj, 0, 0, 0, 0, opLdfld, 0, 0, 0, 0, opRet,
	}
	ctorTok := ctor.Token
	mainCode[2] = byte(ctorTok)
	mainCode[3] = byte(ctorTok >> 8)
	mainCode[4] = byte(ctorTok >> 16)
	mainCode[5] = byte(ctorTok >> 24)
	mainCode[7] = byte(fieldTok)
	mainCode[8] = byte(fieldTok >> 8)
	mainCode[9] = byte(fieldTok >> 16)
	mainCode[10] = byte(fieldTok >> 24)

	main := &MethodRow{
		Token:     NewMDToken(MethodDef, 2),
		Name:      "Main",
		CodeSize:  uint32(len(mainCode)),
		Signature: &CallingConventionSig{RetType: &TypeSig{Code: ElemI4}},
	}

	td := &TypeDefRow{Token: NewMDToken(TypeDef, 1), Name: "Point", FieldList: RidList{Start: 1, End: 2}}

	// Lay both methods' code into one shared buffer so File offsets
	// are distinct, matching how assignMethodBodies locates each
	// method's bytes within the same image.
	code := append(append([]byte{}, ctorCode...), mainCode...)
	ctor.CodePos = 0
	main.CodePos = uint32(len(ctorCode))

	asm := &Assembly{
		File:     codeFile(t, code),
		Name:     AssemblyName{Name: "Test"},
		TypeDefs: []*TypeDefRow{td},
		Fields:   []*FieldRow{xField},
		Methods:  []*MethodRow{ctor, main},
	}
	it := newTestInterpreter(asm, nil)

	ret, err := it.ilCall(main.Token, nil)
	if err != nil {
		t.Fatalf("ilCall(Main) failed, reason: %v", err)
	}
	if ret == nil || ret.Val.I != 5 {
		t.Errorf("Main returned %v, want 5 (the value stored via the constructor)", ret)
	}
}

// TestStaticCctorRunsOnce exercises the Ldsfld-before-first-access
// class-init rule: reading a static field for the first time runs its
// type's .cctor, and a second read does not run it again.
func TestStaticCctorRunsOnce(t *testing.T) {
	field := &FieldRow{Token: NewMDToken(Field, 1), Flags: 0x10, Name: "hits",
		Signature: &CallingConventionSig{FieldType: &TypeSig{Code: ElemI4}}, OwnerType: 0}

	// .cctor: ldsfld hits; ldc.i4.1; add; stsfld hits; ret.
	cctorCode := []byte{
		opLdsfld, 0, 0, 0, 0,
		opLdcI41,
		opAdd,
		opStsfld, 0, 0, 0, 0,
		opRet,
	}
	fieldTok := NewMDToken(Field, 1)
	for _, pos := range []int{1, 8} {
		cctorCode[pos] = byte(fieldTok)
		cctorCode[pos+1] = byte(fieldTok >> 8)
		cctorCode[pos+2] = byte(fieldTok >> 16)
		cctorCode[pos+3] = byte(fieldTok >> 24)
	}
	cctor := &MethodRow{Token: NewMDToken(MethodDef, 1), Name: ".cctor", Flags: 0x10,
		CodeSize: uint32(len(cctorCode)), OwnerType: 0, Signature: &CallingConventionSig{}}

	// main: ldsfld hits twice in a row, add the two reads, ret.
	mainCode := []byte{
		opLdsfld, 0, 0, 0, 0,
		opLdsfld, 0, 0, 0, 0,
		opAdd,
		opRet,
	}
	for _, pos := range []int{1, 6} {
		mainCode[pos] = byte(fieldTok)
		mainCode[pos+1] = byte(fieldTok >> 8)
		mainCode[pos+2] = byte(fieldTok >> 16)
		mainCode[pos+3] = byte(fieldTok >> 24)
	}
	main := &MethodRow{Token: NewMDToken(MethodDef, 2), Name: "Main",
		CodeSize: uint32(len(mainCode)), Signature: &CallingConventionSig{RetType: &TypeSig{Code: ElemI4}}}

	cctor.CodePos = 0
	main.CodePos = uint32(len(cctorCode))
	code := append(append([]byte{}, cctorCode...), mainCode...)

	td := &TypeDefRow{Token: NewMDToken(TypeDef, 1), Name: "Counter",
		FieldList: RidList{Start: 1, End: 2}, MethodList: RidList{Start: 1, End: 2}}

	asm := &Assembly{
		File:     codeFile(t, code),
		Name:     AssemblyName{Name: "Test"},
		TypeDefs: []*TypeDefRow{td},
		Fields:   []*FieldRow{field},
		Methods:  []*MethodRow{cctor, main},
	}
	it := newTestInterpreter(asm, nil)

	ret, err := it.ilCall(main.Token, nil)
	if err != nil {
		t.Fatalf("ilCall(Main) failed, reason: %v", err)
	}
	// The .cctor sets hits=1 exactly once (on the first Ldsfld); Main's
	// two reads then both observe 1, so 1+1 == 2. If the interlock
	// failed to suppress a second .cctor run, the first read would
	// already be 2 and the sum would be 4.
	if ret == nil || ret.Val.I != 2 {
		t.Errorf("Main returned %v, want 2 (.cctor must run exactly once)", ret)
	}
}

// buildUSHeap lays out a minimal #US heap: the mandatory empty entry at
// index 0, followed by one user-string record for s at index 1. The
// record is a compressed length prefix (payload length in bytes plus
// the trailing marker byte) followed by the UTF-16LE encoding of s and
// a single 0x00 "no special characters" marker, matching what USAt
// expects to unpack.
func buildUSHeap(s string) []byte {
	utf16 := make([]byte, 0, len(s)*2)
	for _, r := range s {
		utf16 = append(utf16, byte(r), byte(r>>8))
	}
	heap := []byte{0x00}
	heap = append(heap, byte(len(utf16)+1))
	heap = append(heap, utf16...)
	heap = append(heap, 0x00)
	return heap
}

// TestHelloWorldMethod exercises the HelloWorld scenario: ldstr pushes a
// token resolved through USAt against a hand-populated #US heap, then
// call dispatches to the WriteLine intrinsic, end to end.
func TestHelloWorldMethod(t *testing.T) {
	const greeting = "Hello, World!"

	writeLine := &MethodRow{
		Token:     NewMDToken(MethodDef, 2),
		Name:      "WriteLine",
		ImplFlags: 0x1000,
		Signature: &CallingConventionSig{ParamTypes: []*TypeSig{{Code: ElemString}}},
	}

	code := []byte{
		opLdstr, 0x01, 0x00, 0x00, 0x70, // ldstr token 0x70000001, #US RID 1
		opCall, 0, 0, 0, 0,
		opRet,
	}
	wlTok := writeLine.Token
	code[6] = byte(wlTok)
	code[7] = byte(wlTok >> 8)
	code[8] = byte(wlTok >> 16)
	code[9] = byte(wlTok >> 24)

	main := &MethodRow{
		Token:     NewMDToken(MethodDef, 1),
		Name:      "Main",
		CodeSize:  uint32(len(code)),
		Signature: &CallingConventionSig{},
	}

	var out bytes.Buffer
	f := codeFile(t, code)
	f.CLR.MetadataStreams = map[string][]byte{"#US": buildUSHeap(greeting)}
	asm := &Assembly{
		File:    f,
		Name:    AssemblyName{Name: "Test"},
		Methods: []*MethodRow{main, writeLine},
	}
	it := newTestInterpreter(asm, &out)

	if _, err := it.ilCall(main.Token, nil); err != nil {
		t.Fatalf("ilCall(Main) failed, reason: %v", err)
	}
	if got := out.String(); got != greeting+"\n" {
		t.Errorf("HelloWorld output = %q, want %q", got, greeting+"\n")
	}
}

// TestIfTrueMethod exercises a forward conditional branch: brtrue.s over
// a then-branch, complementing TestLoopMethod's backward brfalse.s.
func TestIfTrueMethod(t *testing.T) {
	code := []byte{
		/*  0 */ opLdcI41, opBrtrueS, 2, // if (1) skip the else branch
		/*  3 */ opLdcI40, opRet, // ELSE: return 0
		/*  5 */ opLdcI4S, 9, opRet, // THEN: return 9
	}
	method := &MethodRow{
		Token:     NewMDToken(MethodDef, 1),
		Name:      "IfTrue",
		CodeSize:  uint32(len(code)),
		Signature: &CallingConventionSig{RetType: &TypeSig{Code: ElemI4}},
	}
	asm := &Assembly{
		File:    codeFile(t, code),
		Name:    AssemblyName{Name: "Test"},
		Methods: []*MethodRow{method},
	}
	it := newTestInterpreter(asm, nil)

	ret, err := it.ilCall(method.Token, nil)
	if err != nil {
		t.Fatalf("ilCall(IfTrue) failed, reason: %v", err)
	}
	if ret == nil || ret.Val.I != 9 {
		t.Errorf("IfTrue returned %v, want 9 (the then-branch)", ret)
	}
}

func TestWriteLineIntrinsic(t *testing.T) {
	var out bytes.Buffer
	asm := &Assembly{Name: AssemblyName{Name: "Test"}}
	it := newTestInterpreter(asm, &out)

	fr := &frame{params: []ILType{NewInt32(42)}}
	method := &MethodRow{Name: "WriteLine", ImplFlags: 0x1000}
	if _, err := it.dispatchIntrinsic(asm, method, fr); err != nil {
		t.Fatalf("dispatchIntrinsic(WriteLine) failed, reason: %v", err)
	}
	if got := out.String(); got != "42\n" {
		t.Errorf("WriteLine output = %q, want %q", got, "42\n")
	}
}

func TestUnrecognisedInternalCallFaults(t *testing.T) {
	asm := &Assembly{Name: AssemblyName{Name: "Test"}}
	it := newTestInterpreter(asm, nil)
	method := &MethodRow{Name: "SomeUnknownRuntimeHelper", ImplFlags: 0x1000}
	if _, err := it.dispatchIntrinsic(asm, method, &frame{}); err == nil {
		t.Error("an unrecognised internal call should fault, not silently no-op")
	}
}
