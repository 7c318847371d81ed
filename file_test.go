// Copyright 2021 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package clr

import (
	"bytes"
	"encoding/binary"
	"testing"
)

// buildMinimalPE assembles a tiny, section-less PE32 DLL: just enough of a
// DOS stub, NT header and optional header for Parse to walk end to end
// without needing a real assembly on disk.
func buildMinimalPE(characteristics ImageFileHeaderCharacteristicsType) []byte {
	const ntOffset = 0x80

	dos := ImageDOSHeader{
		Magic:                 ImageDOSSignature,
		AddressOfNewEXEHeader: ntOffset,
	}
	fh := ImageFileHeader{
		Machine:              ImageFileHeaderMachineType(0x014c),
		NumberOfSections:     0,
		SizeOfOptionalHeader: uint16(binary.Size(ImageOptionalHeader32{})),
		Characteristics:      characteristics,
	}
	oh := ImageOptionalHeader32{
		Magic:            ImageNtOptionalHeader32Magic,
		ImageBase:        0x10000000,
		SectionAlignment: 0x1000,
		FileAlignment:    0x200,
	}

	var dosBuf bytes.Buffer
	binary.Write(&dosBuf, binary.LittleEndian, dos)
	data := dosBuf.Bytes()
	if pad := int(ntOffset) - len(data); pad > 0 {
		data = append(data, make([]byte, pad)...)
	}

	var ntBuf bytes.Buffer
	binary.Write(&ntBuf, binary.LittleEndian, uint32(ImageNTSignature))
	binary.Write(&ntBuf, binary.LittleEndian, fh)
	binary.Write(&ntBuf, binary.LittleEndian, oh)
	data = append(data, ntBuf.Bytes()...)

	return data
}

func TestParse(t *testing.T) {
	f, err := NewBytes(buildMinimalPE(ImageFileDLL | ImageFileExecutableImage), nil)
	if err != nil {
		t.Fatalf("NewBytes failed, reason: %v", err)
	}

	if err := f.Parse(); err != nil {
		t.Errorf("Parse() failed, reason: %v", err)
	}
}

func TestNewBytes(t *testing.T) {
	data := buildMinimalPE(ImageFileDLL | ImageFileExecutableImage)
	f, err := NewBytes(data, nil)
	if err != nil {
		t.Fatalf("NewBytes failed, reason: %v", err)
	}

	if err := f.Parse(); err != nil {
		t.Errorf("Parse() failed, reason: %v", err)
	}
}

func TestChecksum(t *testing.T) {
	f, err := NewBytes(buildMinimalPE(ImageFileDLL | ImageFileExecutableImage), nil)
	if err != nil {
		t.Fatalf("NewBytes failed, reason: %v", err)
	}
	if err := f.Parse(); err != nil {
		t.Fatalf("Parse() failed, reason: %v", err)
	}

	if got := f.Checksum(); got == 0 {
		t.Error("Checksum() = 0, want a non-zero value")
	}
}

func TestIsDLL(t *testing.T) {
	f, err := NewBytes(buildMinimalPE(ImageFileDLL | ImageFileExecutableImage), nil)
	if err != nil {
		t.Fatalf("NewBytes failed, reason: %v", err)
	}
	if err := f.Parse(); err != nil {
		t.Fatalf("Parse() failed, reason: %v", err)
	}

	if !f.IsDLL() {
		t.Error("IsDLL() = false, want true")
	}
	if f.IsEXE() {
		t.Error("IsEXE() = true, want false for a DLL")
	}
}
