// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package clr

// Heap stream readers: #Strings, #US, #Blob, #GUID. Unlike the table
// stream, whose rows are decoded once up front, heap lookups happen
// on demand against the raw stream bytes captured in
// pe.CLR.MetadataStreams by parseCLRHeaderDirectory.

// ReadCompressedUint32 decodes a CIL compressed unsigned integer starting
// at off within data, per ECMA-335 §II.23.2: a leading 0 bit means a
// 1-byte value, a leading 10 means a 2-byte big-endian value, and a
// leading 110 means a 4-byte big-endian value. It returns the decoded
// value and the number of bytes consumed.
func ReadCompressedUint32(data []byte, off uint32) (uint32, uint32, error) {
	if off >= uint32(len(data)) {
		return 0, 0, ErrOutsideBoundary
	}
	b0 := data[off]
	switch {
	case b0&0x80 == 0:
		return uint32(b0), 1, nil
	case b0&0xC0 == 0x80:
		if off+1 >= uint32(len(data)) {
			return 0, 0, ErrOutsideBoundary
		}
		v := (uint32(b0&0x3F) << 8) | uint32(data[off+1])
		return v, 2, nil
	case b0&0xE0 == 0xC0:
		if off+3 >= uint32(len(data)) {
			return 0, 0, ErrOutsideBoundary
		}
		v := (uint32(b0&0x1F) << 24) | (uint32(data[off+1]) << 16) |
			(uint32(data[off+2]) << 8) | uint32(data[off+3])
		return v, 4, nil
	default:
		return 0, 0, ErrMalformedImage
	}
}

// ReadCompressedInt32 decodes a CIL compressed signed integer: decode as
// an unsigned value of the same width, then rotate the sign bit back
// into position and sign-extend.
func ReadCompressedInt32(data []byte, off uint32) (int32, uint32, error) {
	u, n, err := ReadCompressedUint32(data, off)
	if err != nil {
		return 0, 0, err
	}
	negative := u&1 != 0
	var v int32
	switch n {
	case 1:
		v = int32(u >> 1)
		if negative {
			v -= 0x40
		}
	case 2:
		v = int32(u >> 1)
		if negative {
			v -= 0x2000
		}
	case 4:
		v = int32(u >> 1)
		if negative {
			v -= 0x10000000
		}
	}
	return v, n, nil
}

func (pe *File) heapStream(name string) []byte {
	if pe.CLR.MetadataStreams == nil {
		return nil
	}
	return pe.CLR.MetadataStreams[name]
}

// StringAt returns the NUL-terminated ASCII string starting at idx in
// #Strings. Index 0 is the empty string by convention.
func (pe *File) StringAt(idx uint32) (string, error) {
	if idx == 0 {
		return "", nil
	}
	data := pe.heapStream("#Strings")
	if data == nil || idx >= uint32(len(data)) {
		return "", ErrOutsideBoundary
	}
	end := idx
	for end < uint32(len(data)) && data[end] != 0 {
		end++
	}
	return string(data[idx:end]), nil
}

// BlobAt returns a copy of the length-prefixed payload starting at idx in
// #Blob. Index 0 is the empty blob.
func (pe *File) BlobAt(idx uint32) ([]byte, error) {
	if idx == 0 {
		return nil, nil
	}
	data := pe.heapStream("#Blob")
	if data == nil || idx >= uint32(len(data)) {
		return nil, ErrOutsideBoundary
	}
	length, n, err := ReadCompressedUint32(data, idx)
	if err != nil {
		return nil, err
	}
	start := idx + n
	end := start + length
	if end > uint32(len(data)) {
		return nil, ErrOutsideBoundary
	}
	out := make([]byte, length)
	copy(out, data[start:end])
	return out, nil
}

// USAt returns the UTF-16LE user-string literal starting at idx in #US.
// The payload is framed like a #Blob entry but carries one trailing byte
// (the 0x00/0x01 "has special characters" marker) which is excluded from
// the decoded text.
func (pe *File) USAt(idx uint32) (string, error) {
	if idx == 0 {
		return "", nil
	}
	data := pe.heapStream("#US")
	if data == nil || idx >= uint32(len(data)) {
		return "", ErrOutsideBoundary
	}
	length, n, err := ReadCompressedUint32(data, idx)
	if err != nil {
		return "", err
	}
	if length == 0 {
		return "", nil
	}
	start := idx + n
	end := start + length
	if end > uint32(len(data)) {
		return "", ErrOutsideBoundary
	}
	payload := length - 1
	if payload == 0 {
		return "", nil
	}
	return DecodeUTF16String(append(data[start:start+payload:start+payload], 0, 0))
}

// GUIDAt returns a copy of the 1-based, 16-byte #GUID record at idx.
func (pe *File) GUIDAt(idx uint32) ([16]byte, error) {
	var out [16]byte
	if idx == 0 {
		return out, nil
	}
	data := pe.heapStream("#GUID")
	start := (idx - 1) * 16
	if data == nil || start+16 > uint32(len(data)) {
		return out, ErrOutsideBoundary
	}
	copy(out[:], data[start:start+16])
	return out, nil
}
