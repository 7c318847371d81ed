// Copyright 2022 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package clr

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestParseDOSHeader(t *testing.T) {
	want := ImageDOSHeader{
		Magic:                 ImageDOSSignature,
		BytesOnLastPageOfFile: 0x90,
		PagesInFile:           0x3,
		AddressOfNewEXEHeader: 0x80,
	}

	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, want)
	data := buf.Bytes()
	if pad := int(want.AddressOfNewEXEHeader) - len(data); pad > 0 {
		data = append(data, make([]byte, pad)...)
	}

	f, err := NewBytes(data, nil)
	if err != nil {
		t.Fatalf("NewBytes failed, reason: %v", err)
	}

	if err := f.ParseDOSHeader(); err != nil {
		t.Fatalf("ParseDOSHeader failed, reason: %v", err)
	}

	if f.DOSHeader != want {
		t.Errorf("DOS header = %+v, want %+v", f.DOSHeader, want)
	}
	if !f.HasDOSHdr {
		t.Error("HasDOSHdr should be set after a successful parse")
	}
}

func TestParseDOSHeaderRejectsBadMagic(t *testing.T) {
	bad := ImageDOSHeader{Magic: 0x1234, AddressOfNewEXEHeader: 0x80}
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, bad)
	data := append(buf.Bytes(), make([]byte, 0x80)...)

	f, err := NewBytes(data, nil)
	if err != nil {
		t.Fatalf("NewBytes failed, reason: %v", err)
	}
	if err := f.ParseDOSHeader(); err == nil {
		t.Error("a non-MZ magic should be rejected")
	}
}
