// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package clr

import (
	"bytes"
	"encoding/binary"
	"testing"
)

// buildSectionHeaderBytes lays out one ImageSectionHeader (40 bytes,
// no padding) the way ParseSectionHeader expects to find it.
func buildSectionHeaderBytes(h ImageSectionHeader) []byte {
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, h)
	return buf.Bytes()
}

func TestParseSectionHeaders(t *testing.T) {
	const fileHeaderOffset = 4
	const optHeaderSize = 28 // unused by this test beyond sizing the offset
	const sectionTableOffset = fileHeaderOffset + 20 + optHeaderSize

	want := ImageSectionHeader{
		Name:             [8]uint8{'.', 't', 'e', 'x', 't'},
		VirtualSize:      0x1000,
		VirtualAddress:   0x2000,
		SizeOfRawData:    0x200,
		PointerToRawData: 0x400,
		Characteristics:  0x60000020,
	}

	data := make([]byte, sectionTableOffset+40)
	copy(data[sectionTableOffset:], buildSectionHeaderBytes(want))

	f, err := NewBytes(data, nil)
	if err != nil {
		t.Fatalf("NewBytes failed, reason: %v", err)
	}
	f.DOSHeader.AddressOfNewEXEHeader = 0
	f.NtHeader.FileHeader.SizeOfOptionalHeader = optHeaderSize
	f.NtHeader.FileHeader.NumberOfSections = 1
	f.NtHeader.OptionalHeader = ImageOptionalHeader32{FileAlignment: 0x200}

	if err := f.ParseSectionHeader(); err != nil {
		t.Fatalf("ParseSectionHeader failed, reason: %v", err)
	}

	if len(f.Sections) != 1 {
		t.Fatalf("section count = %d, want 1", len(f.Sections))
	}

	got := f.Sections[0]
	if got.Header != want {
		t.Errorf("section header = %+v, want %+v", got.Header, want)
	}
	if name := got.String(); name != ".text" {
		t.Errorf("section name = %q, want %q", name, ".text")
	}
}

func TestSectionContains(t *testing.T) {
	f, err := NewBytes(make([]byte, 0x3000), nil)
	if err != nil {
		t.Fatalf("NewBytes failed, reason: %v", err)
	}
	f.NtHeader.OptionalHeader = ImageOptionalHeader32{FileAlignment: 0x200, SectionAlignment: 0x1000}
	sec := Section{Header: ImageSectionHeader{
		VirtualAddress: 0x2000,
		VirtualSize:    0x1000,
		PointerToRawData: 0x1000,
		SizeOfRawData:    0x1000,
	}}
	f.Sections = []Section{sec}

	if !sec.Contains(0x2500, f) {
		t.Error("expected RVA 0x2500 to fall inside the section")
	}
	if sec.Contains(0x5000, f) {
		t.Error("expected RVA 0x5000 to fall outside the section")
	}
}
