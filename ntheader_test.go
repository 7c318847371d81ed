// Copyright 2021 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package clr

import (
	"bytes"
	"encoding/binary"
	"testing"
)

// buildNtHeaderBytes lays out a PE signature, an ImageFileHeader and a
// 32-bit optional header back to back, starting at ntOffset.
func buildNtHeaderBytes(ntOffset uint32, fh ImageFileHeader, oh ImageOptionalHeader32) []byte {
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, ImageNTSignature)
	binary.Write(&buf, binary.LittleEndian, fh)
	binary.Write(&buf, binary.LittleEndian, oh)

	data := make([]byte, ntOffset)
	return append(data, buf.Bytes()...)
}

func TestParseNTHeader(t *testing.T) {
	const ntOffset = 0x80

	fh := ImageFileHeader{
		Machine:              ImageFileHeaderMachineType(0x8664),
		NumberOfSections:     0,
		SizeOfOptionalHeader: uint16(binary.Size(ImageOptionalHeader32{})),
		Characteristics:      0x0022,
	}
	oh := ImageOptionalHeader32{
		Magic:     ImageNtOptionalHeader32Magic,
		ImageBase: 0x400000,
	}

	data := buildNtHeaderBytes(ntOffset, fh, oh)

	f, err := NewBytes(data, nil)
	if err != nil {
		t.Fatalf("NewBytes failed, reason: %v", err)
	}
	f.DOSHeader.AddressOfNewEXEHeader = ntOffset

	if err := f.ParseNTHeader(); err != nil {
		t.Fatalf("ParseNTHeader failed, reason: %v", err)
	}

	if !f.HasNTHdr {
		t.Error("HasNTHdr should be set after a successful parse")
	}
	if f.Is32 != true || f.Is64 != false {
		t.Errorf("Is32/Is64 = %v/%v, want true/false for a PE32 optional header", f.Is32, f.Is64)
	}
	got, ok := f.NtHeader.OptionalHeader.(ImageOptionalHeader32)
	if !ok {
		t.Fatalf("OptionalHeader has type %T, want ImageOptionalHeader32", f.NtHeader.OptionalHeader)
	}
	if got.ImageBase != oh.ImageBase {
		t.Errorf("ImageBase = %#x, want %#x", got.ImageBase, oh.ImageBase)
	}
}

func TestParseNTHeaderRejectsBadSignature(t *testing.T) {
	const ntOffset = 0x80

	data := make([]byte, ntOffset+4)
	binary.LittleEndian.PutUint32(data[ntOffset:], 0xDEADBEEF)

	f, err := NewBytes(data, nil)
	if err != nil {
		t.Fatalf("NewBytes failed, reason: %v", err)
	}
	f.DOSHeader.AddressOfNewEXEHeader = ntOffset

	if err := f.ParseNTHeader(); err == nil {
		t.Error("a non-PE signature should be rejected")
	}
}
