// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package clr

import (
	"crypto/x509"
	"encoding/binary"

	"go.mozilla.org/pkcs7"
)

// WinCertTypePKCSSignedData marks a WIN_CERTIFICATE entry whose content
// is a PKCS#7 SignedData blob, the shape both Authenticode and a
// strong-name signature take in the Certificate Table.
const WinCertTypePKCSSignedData = 0x0002

// certDirectory locates the Certificate Table, entry 4 of the optional
// header's DataDirectory. Unlike every other data directory its
// VirtualAddress is a plain file offset, not an RVA.
func certDirectory(pe *File) (offset, size uint32, present bool) {
	switch oh := pe.NtHeader.OptionalHeader.(type) {
	case ImageOptionalHeader32:
		d := oh.DataDirectory[ImageDirectoryEntryCertificate]
		return d.VirtualAddress, d.Size, d.Size != 0
	case ImageOptionalHeader64:
		d := oh.DataDirectory[ImageDirectoryEntryCertificate]
		return d.VirtualAddress, d.Size, d.Size != 0
	default:
		return 0, 0, false
	}
}

// VerifyStrongName best-effort verifies the signature an assembly
// carries in its Certificate Table against the host's system root
// store, per Config.VerifyStrongName. A missing, malformed, or
// untrusted signature reports ok=false with a nil error; err is
// reserved for a host-level failure (the system cert pool could not be
// loaded). NewInterpreter only logs ok=false but returns a non-nil err.
func VerifyStrongName(pe *File) (ok bool, err error) {
	off, size, present := certDirectory(pe)
	if !present {
		return false, nil
	}
	const headerSize = 8
	if off+headerSize > pe.size || size < headerSize {
		return false, nil
	}

	length := binary.LittleEndian.Uint32(pe.data[off:])
	certType := binary.LittleEndian.Uint16(pe.data[off+6:])
	if certType != WinCertTypePKCSSignedData {
		return false, nil
	}
	if length < headerSize || off+length > pe.size {
		return false, nil
	}

	p7, err := pkcs7.Parse(pe.data[off+headerSize : off+length])
	if err != nil {
		return false, nil
	}

	pool, poolErr := x509.SystemCertPool()
	if poolErr != nil {
		return false, ErrHostIO
	}
	if err := p7.VerifyWithChain(pool); err != nil {
		return false, nil
	}
	return true, nil
}
