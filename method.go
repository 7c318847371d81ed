// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package clr

// Method-header format tags, ECMA-335 §II.25.4.
const (
	methodHeaderTiny = 0x2
	methodHeaderFat  = 0x3
)

const fatHeaderInitLocals = 0x10

// parseMethodHeader decodes the tiny or fat method-body header at file
// offset off and records the resulting header/code position, size, and
// max_stack on m. Methods with RVA == 0 (abstract, InternalCall,
// P/Invoke) never reach here.
func parseMethodHeader(pe *File, m *MethodRow, off uint32) {
	b, err := pe.ReadUint8(off)
	if err != nil {
		return
	}
	switch b & 0x3 {
	case methodHeaderTiny:
		m.HeaderPos = off
		m.CodeSize = uint32(b >> 2)
		m.CodePos = off + 1
		m.MaxStack = 8
	case methodHeaderFat:
		flagsAndSize, err := pe.ReadUint16(off)
		if err != nil {
			return
		}
		headerSize := (flagsAndSize >> 12) & 0xF // in 4-byte words
		maxStack, err := pe.ReadUint16(off + 2)
		if err != nil {
			return
		}
		codeSize, err := pe.ReadUint32(off + 4)
		if err != nil {
			return
		}
		localVarSigTok, err := pe.ReadUint32(off + 8)
		if err != nil {
			return
		}
		m.HeaderPos = off
		m.MaxStack = maxStack
		m.CodeSize = codeSize
		m.CodePos = off + uint32(headerSize)*4
		if localVarSigTok != 0 {
			m.LocalVarRID = MDToken(localVarSigTok).RID()
		}
	}
}
