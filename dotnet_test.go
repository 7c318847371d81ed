// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package clr

import (
	"bytes"
	"encoding/binary"
	"reflect"
	"sort"
	"strconv"
	"testing"
)

// buildMinimalCLRMetadata lays out a CLI runtime header followed by a
// metadata root carrying a single "#~" stream with only the Module table
// present, enough to drive parseCLRHeaderDirectory end to end without a
// real assembly on disk. It returns the flat buffer alongside the runtime
// header's Cb and MetaData.Size so callers can pass them straight to
// parseCLRHeaderDirectory.
func buildMinimalCLRMetadata() (data []byte, cb uint32, mdSize uint32) {
	const (
		clrHeaderSize = 72
		mdRootSize    = 74
	)

	var buf bytes.Buffer

	// ImageCOR20Header, starting at offset 0.
	binary.Write(&buf, binary.LittleEndian, uint32(0x48)) // Cb
	binary.Write(&buf, binary.LittleEndian, uint16(2))    // MajorRuntimeVersion
	binary.Write(&buf, binary.LittleEndian, uint16(5))    // MinorRuntimeVersion
	binary.Write(&buf, binary.LittleEndian, uint32(clrHeaderSize)) // MetaData.VirtualAddress
	binary.Write(&buf, binary.LittleEndian, uint32(mdRootSize))    // MetaData.Size
	binary.Write(&buf, binary.LittleEndian, uint32(COMImageFlagsILOnly))
	binary.Write(&buf, binary.LittleEndian, uint32(0)) // EntryPointRVAorToken
	for i := 0; i < 6; i++ {                            // Resources, StrongNameSignature, CodeManagerTable,
		binary.Write(&buf, binary.LittleEndian, uint32(0)) // VTableFixups, ExportAddressTableJumps,
		binary.Write(&buf, binary.LittleEndian, uint32(0)) // ManagedNativeHeader — each an (VA, Size) pair
	}

	// MetadataHeader, starting at offset clrHeaderSize.
	binary.Write(&buf, binary.LittleEndian, uint32(0x424a5342)) // Signature ("BSJB")
	binary.Write(&buf, binary.LittleEndian, uint16(1))          // MajorVersion
	binary.Write(&buf, binary.LittleEndian, uint16(1))          // MinorVersion
	binary.Write(&buf, binary.LittleEndian, uint32(0))          // ExtraData
	binary.Write(&buf, binary.LittleEndian, uint32(4))          // VersionString length
	buf.Write([]byte{'v', '0', 0, 0})                           // Version, padded to 4 bytes
	buf.WriteByte(0)                                            // Flags
	buf.WriteByte(0)                                            // padding to 4-byte boundary
	binary.Write(&buf, binary.LittleEndian, uint16(1))          // Streams

	// One stream header, for "#~".
	binary.Write(&buf, binary.LittleEndian, uint32(36)) // Offset, relative to the metadata root
	binary.Write(&buf, binary.LittleEndian, uint32(38)) // Size
	buf.Write([]byte{'#', '~', 0, 0})                   // Name, padded to 4 bytes

	// The "#~" stream itself: a MetadataTableStreamHeader followed by one
	// row count (Module) and one Module table row.
	binary.Write(&buf, binary.LittleEndian, uint32(0))         // Reserved
	buf.WriteByte(2)                                           // MajorVersion
	buf.WriteByte(0)                                           // MinorVersion
	buf.WriteByte(0)                                           // Heaps: all heap indexes are 2 bytes wide
	buf.WriteByte(1)                                           // RID
	binary.Write(&buf, binary.LittleEndian, uint64(1<<Module)) // MaskValid: only Module present
	binary.Write(&buf, binary.LittleEndian, uint64(0))         // Sorted

	binary.Write(&buf, binary.LittleEndian, uint32(1)) // Module table row count

	binary.Write(&buf, binary.LittleEndian, uint16(0)) // Generation
	binary.Write(&buf, binary.LittleEndian, uint16(0)) // Name (String heap index)
	binary.Write(&buf, binary.LittleEndian, uint16(0)) // Mvid (GUID heap index)
	binary.Write(&buf, binary.LittleEndian, uint16(0)) // EncID
	binary.Write(&buf, binary.LittleEndian, uint16(0)) // EncBaseID

	return buf.Bytes(), 0x48, mdRootSize
}

func TestClrDirectoryHeaders(t *testing.T) {
	data, cb, mdSize := buildMinimalCLRMetadata()

	f, err := NewBytes(data, nil)
	if err != nil {
		t.Fatalf("NewBytes failed, reason: %v", err)
	}

	if err := f.parseCLRHeaderDirectory(0, cb); err != nil {
		t.Fatalf("parseCLRHeaderDirectory failed, reason: %v", err)
	}

	wantHeader := ImageCOR20Header{
		Cb:                   0x48,
		MajorRuntimeVersion:  2,
		MinorRuntimeVersion:  5,
		MetaData:             ImageDataDirectory{VirtualAddress: 72, Size: mdSize},
		Flags:                COMImageFlagsILOnly,
		EntryPointRVAorToken: 0,
	}
	if f.CLR.CLRHeader != wantHeader {
		t.Errorf("CLR header = %+v, want %+v", f.CLR.CLRHeader, wantHeader)
	}

	wantMdHeader := MetadataHeader{
		Signature:     0x424a5342,
		MajorVersion:  1,
		MinorVersion:  1,
		VersionString: 4,
		Version:       "v0",
		Streams:       1,
	}
	if f.CLR.MetadataHeader != wantMdHeader {
		t.Errorf("metadata header = %+v, want %+v", f.CLR.MetadataHeader, wantMdHeader)
	}

	wantStreamHeaders := []MetadataStreamHeader{{Offset: 36, Size: 38, Name: "#~"}}
	if !reflect.DeepEqual(f.CLR.MetadataStreamHeaders, wantStreamHeaders) {
		t.Errorf("metadata stream headers = %+v, want %+v",
			f.CLR.MetadataStreamHeaders, wantStreamHeaders)
	}

	wantTableStreamHeader := MetadataTableStreamHeader{
		MajorVersion: 2,
		RID:          1,
		MaskValid:    1 << Module,
	}
	if f.CLR.MetadataTablesStreamHeader != wantTableStreamHeader {
		t.Errorf("metadata table stream header = %+v, want %+v",
			f.CLR.MetadataTablesStreamHeader, wantTableStreamHeader)
	}
}

func TestClrDirectoryMetadataTables(t *testing.T) {
	data, cb, _ := buildMinimalCLRMetadata()

	f, err := NewBytes(data, nil)
	if err != nil {
		t.Fatalf("NewBytes failed, reason: %v", err)
	}

	if err := f.parseCLRHeaderDirectory(0, cb); err != nil {
		t.Fatalf("parseCLRHeaderDirectory failed, reason: %v", err)
	}

	table := f.CLR.MetadataTables[Module]
	if table == nil {
		t.Fatalf("Module table missing from MetadataTables")
	}
	if table.Name != "Module" || table.CountCols != 1 {
		t.Errorf("Module table = %+v, want Name=Module CountCols=1", table)
	}

	rows, ok := table.Content.([]ModuleTableRow)
	if !ok || len(rows) != 1 {
		t.Fatalf("Module table content = %#v, want a single ModuleTableRow", table.Content)
	}
	if rows[0] != (ModuleTableRow{}) {
		t.Errorf("Module table row = %+v, want the zero row", rows[0])
	}
}

func TestClrDirectorCOMImageFlagsType(t *testing.T) {

	tests := []struct {
		in  int
		out []string
	}{
		{
			0x9,
			[]string{"IL Only", "Strong Name Signed"},
		},
	}

	for _, tt := range tests {
		t.Run("CaseFlagsEqualTo_"+strconv.Itoa(tt.in), func(t *testing.T) {
			got := COMImageFlagsType(tt.in).String()
			sort.Strings(got)
			sort.Strings(tt.out)
			if !reflect.DeepEqual(got, tt.out) {
				t.Errorf("CLR header flags assertion failed, got %v, want %v",
					got, tt.out)
			}
		})
	}
}
