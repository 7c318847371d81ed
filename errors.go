// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package clr

import "errors"

// Error taxonomy for the loader and interpreter, following the same
// sentinel-error idiom helper.go already uses for PE-level errors: each
// category is one wrapped sentinel a caller can match with errors.Is,
// with contextual detail attached via fmt.Errorf("...: %w", ...).
var (
	// ErrMalformedImage covers a violated PE or metadata signature,
	// out-of-range offsets, invalid compressed integers, or an unknown
	// metadata-table shape. Reported at load time; aborts the load.
	ErrMalformedImage = errors.New("malformed image")

	// ErrUnsupportedFeature covers ENC metadata, an unimplemented
	// opcode, or an unimplemented resolution-scope kind. Fatal.
	ErrUnsupportedFeature = errors.New("unsupported feature")

	// ErrResolutionFailure covers a name lookup in TypeDefs,
	// ExportedTypes, or Methods that found no match, or an
	// AssemblyName mismatch on a referenced load. Fatal.
	ErrResolutionFailure = errors.New("resolution failure")

	// ErrExecutionFault covers a null-reference on Ldfld/Stfld, a
	// Castclass failure, an Unbox type mismatch, or an arithmetic or
	// comparison domain error. Fatal; no exception-handler table is
	// interpreted.
	ErrExecutionFault = errors.New("execution fault")

	// ErrHostIO covers a file open/read failure. Surfaced to the
	// driver as-is.
	ErrHostIO = errors.New("host I/O error")
)
