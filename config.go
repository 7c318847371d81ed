// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package clr

import (
	"io"

	"github.com/saferwall/clrvm/internal/clog"
)

// Config configures an Interpreter, following the same options-struct
// idiom file.go's Options uses for the PE parser: explicit fields
// instead of a hardcoded constant, so callers (and tests) can point the
// runtime at a fixture directory.
type Config struct {
	// RuntimeDir is the directory referenced AssemblyRefs are resolved
	// against: a referenced assembly named "Foo" is loaded from
	// "{RuntimeDir}/Foo.dll".
	RuntimeDir string

	// MaxCallDepth bounds the recursive il_call chain so a runaway or
	// adversarial program fails loudly instead of exhausting the host
	// stack. Zero means DefaultMaxCallDepth.
	MaxCallDepth int

	// VerifyStrongName, when set, best-effort verifies an assembly's
	// Authenticode-shaped strong-name signature via strongname.go. A
	// verification failure is logged, not fatal.
	VerifyStrongName bool

	// StrictVersioning, when set, additionally compares AssemblyRef
	// versions (major/minor/build/revision) when resolving a reference.
	// Name is always compared regardless of this flag; off by default.
	StrictVersioning bool

	// Logger receives non-fatal anomalies the same way file.go's
	// Options.Logger does.
	Logger clog.Logger

	// Output receives text written by the WriteLine intrinsic. Defaults
	// to os.Stdout when nil.
	Output io.Writer
}

// DefaultMaxCallDepth is used when Config.MaxCallDepth is zero.
const DefaultMaxCallDepth = 2048
