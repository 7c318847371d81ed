// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package clr

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/saferwall/clrvm/internal/clog"
	"github.com/saferwall/clrvm/internal/ordmap"
)

// frame is one call's state: operand stack, arguments, and locals.
// CIL frames map 1:1 to host (Go) stack frames, per §5's scheduling
// model: il_call recurses directly rather than trampolining through an
// explicit work queue.
type frame struct {
	stack   []ILType
	params  []ILType
	locals  []ILType
}

func (fr *frame) push(v ILType) {
	fr.stack = append(fr.stack, v)
}

func (fr *frame) pop() (ILType, error) {
	n := len(fr.stack)
	if n == 0 {
		return ILType{}, fmt.Errorf("%w: pop on empty operand stack", ErrExecutionFault)
	}
	v := fr.stack[n-1]
	fr.stack = fr.stack[:n-1]
	return v, nil
}

func (fr *frame) dup() error {
	n := len(fr.stack)
	if n == 0 {
		return fmt.Errorf("%w: dup on empty operand stack", ErrExecutionFault)
	}
	fr.push(fr.stack[n-1])
	return nil
}

// callStackEntry tracks one live call, used for Ptr::Local/Param
// generation validity (§3, §5).
type callStackEntry struct {
	assemblyIndex int
	methodToken   MDToken
	stackID       uint64
}

// Context is the interpreter's call context, per §3: the currently
// executing assembly, the call stack, and the monotonic stack_id
// generation counter.
type Context struct {
	CurrentAssembly      *Assembly
	CurrentAssemblyIndex int
	CallStack            []callStackEntry
	StackID              uint64
}

// Interpreter owns every piece of mutable VM-wide state: the assembly
// registry, the object and string heaps, per-assembly static stores,
// and the call context (§3, §4.10).
type Interpreter struct {
	cfg Config

	assemblies      *ordmap.Map[string, *Assembly]
	staticsByAsm    []*staticStore
	objectHeap      []*Object
	stringHeap      []string

	ctx Context
}

// NewInterpreter constructs an Interpreter and loads entryPath as
// assembly 0.
func NewInterpreter(entryPath string, cfg Config) (*Interpreter, error) {
	if cfg.MaxCallDepth == 0 {
		cfg.MaxCallDepth = DefaultMaxCallDepth
	}
	if cfg.Output == nil {
		cfg.Output = os.Stdout
	}
	it := &Interpreter{
		cfg:        cfg,
		assemblies: ordmap.New[string, *Assembly](),
	}
	asm, err := LoadAssembly(entryPath)
	if err != nil {
		return nil, err
	}
	if cfg.VerifyStrongName {
		ok, err := VerifyStrongName(asm.File)
		if err != nil {
			return nil, err
		}
		if !ok && cfg.Logger != nil {
			cfg.Logger.Log(clog.LevelWarn, "msg", "strong-name verification failed", "assembly", asm.Name.Name)
		}
	}
	it.registerAssembly(asm)
	it.ctx.CurrentAssembly = asm
	it.ctx.CurrentAssemblyIndex = 0
	return it, nil
}

func (it *Interpreter) registerAssembly(asm *Assembly) int {
	it.assemblies.Set(asm.Name.Name, asm)
	it.staticsByAsm = append(it.staticsByAsm, newStaticStore())
	idx, _ := it.assemblies.IndexOf(asm.Name.Name)
	return idx
}

// loadReferencedAssembly loads and registers the assembly referenced
// by name from Config.RuntimeDir, if not already loaded (§4.10.1).
func (it *Interpreter) loadReferencedAssembly(name string) (int, *Assembly, error) {
	if idx, ok := it.assemblies.IndexOf(name); ok {
		asm, _ := it.assemblies.At(idx)
		return idx, asm, nil
	}
	path := filepath.Join(it.cfg.RuntimeDir, name+".dll")
	asm, err := LoadAssembly(path)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: loading referenced assembly %q: %v", ErrResolutionFailure, name, err)
	}
	if !asm.Name.Equal(AssemblyName{Name: name}, it.cfg.StrictVersioning) {
		return 0, nil, fmt.Errorf("%w: assembly name mismatch: wanted %q, loaded %q", ErrResolutionFailure, name, asm.Name.Name)
	}
	idx := it.registerAssembly(asm)
	return idx, asm, nil
}

// pushObject appends o to the heap and returns its stable index.
func (it *Interpreter) pushObject(o *Object) int {
	it.objectHeap = append(it.objectHeap, o)
	return len(it.objectHeap) - 1
}

func (it *Interpreter) object(i int) (*Object, error) {
	if i < 0 || i >= len(it.objectHeap) {
		return nil, fmt.Errorf("%w: object heap index %d out of range", ErrExecutionFault, i)
	}
	return it.objectHeap[i], nil
}

// pushString appends s to the heap and returns its stable index.
func (it *Interpreter) pushString(s string) int {
	it.stringHeap = append(it.stringHeap, s)
	return len(it.stringHeap) - 1
}

func (it *Interpreter) string(i int) (string, error) {
	if i < 0 || i >= len(it.stringHeap) {
		return "", fmt.Errorf("%w: string heap index %d out of range", ErrExecutionFault, i)
	}
	return it.stringHeap[i], nil
}

// Run constructs an Interpreter for entryPath and executes its entry
// method per §4.10: the method whose token is 0x06000001 is invoked
// with no arguments on the stack, matching the reference's
// fixed-entry-point convention noted as Open Question #6 in
// DESIGN.md — a faithful reading of the CLI header's entry_point_token
// is not implemented.
func Run(entryPath string, cfg Config) error {
	it, err := NewInterpreter(entryPath, cfg)
	if err != nil {
		return err
	}
	const mainToken = MDToken(0x06000001)
	_, err = it.ilCall(mainToken, nil)
	return err
}
