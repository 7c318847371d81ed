// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package clr

import "testing"

func TestCertDirectoryAbsentWhenSizeZero(t *testing.T) {
	oh := ImageOptionalHeader32{}
	pe := &File{NtHeader: ImageNtHeader{OptionalHeader: oh}}

	_, _, present := certDirectory(pe)
	if present {
		t.Error("certDirectory should report absent when DataDirectory size is zero")
	}
}

func TestCertDirectoryPresent(t *testing.T) {
	oh := ImageOptionalHeader32{}
	oh.DataDirectory[ImageDirectoryEntryCertificate] = DataDirectory{VirtualAddress: 0x400, Size: 0x80}
	pe := &File{NtHeader: ImageNtHeader{OptionalHeader: oh}}

	off, size, present := certDirectory(pe)
	if !present || off != 0x400 || size != 0x80 {
		t.Errorf("certDirectory = (%d, %d, %v), want (0x400, 0x80, true)", off, size, present)
	}
}

func TestVerifyStrongNameAbsentSignature(t *testing.T) {
	oh := ImageOptionalHeader32{}
	pe, err := NewBytes(make([]byte, 16), nil)
	if err != nil {
		t.Fatalf("NewBytes failed, reason: %v", err)
	}
	pe.NtHeader.OptionalHeader = oh

	ok, err := VerifyStrongName(pe)
	if err != nil {
		t.Fatalf("VerifyStrongName failed, reason: %v", err)
	}
	if ok {
		t.Error("an assembly with no Certificate Table entry should not verify")
	}
}
