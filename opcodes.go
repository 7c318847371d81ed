// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package clr

// Primary (one-byte) CIL opcodes this core recognises, ECMA-335 §III.
const (
	opNop        = 0x00
	opBreak      = 0x01
	opLdarg0     = 0x02
	opLdarg1     = 0x03
	opLdarg2     = 0x04
	opLdarg3     = 0x05
	opLdloc0     = 0x06
	opLdloc1     = 0x07
	opLdloc2     = 0x08
	opLdloc3     = 0x09
	opStloc0     = 0x0A
	opStloc1     = 0x0B
	opStloc2     = 0x0C
	opStloc3     = 0x0D
	opLdargS     = 0x0E
	opLdargaS    = 0x0F
	opStargS     = 0x10
	opLdlocS     = 0x11
	opLdlocaS    = 0x12
	opStlocS     = 0x13
	opLdnull     = 0x14
	opLdcI4M1    = 0x15
	opLdcI40     = 0x16
	opLdcI41     = 0x17
	opLdcI42     = 0x18
	opLdcI43     = 0x19
	opLdcI44     = 0x1A
	opLdcI45     = 0x1B
	opLdcI46     = 0x1C
	opLdcI47     = 0x1D
	opLdcI48     = 0x1E
	opLdcI4S     = 0x1F
	opLdcI4      = 0x20
	opLdcI8      = 0x21
	opLdcR4      = 0x22
	opLdcR8      = 0x23
	opDup        = 0x25
	opPop        = 0x26
	opJmp        = 0x27
	opCall       = 0x28
	opCalli      = 0x29
	opRet        = 0x2A
	opBrS        = 0x2B
	opBrfalseS   = 0x2C
	opBrtrueS    = 0x2D
	opBr         = 0x38
	opBrfalse    = 0x39
	opBrtrue     = 0x3A
	opSwitch     = 0x45
	opAdd        = 0x58
	opSub        = 0x59
	opAnd        = 0x5F
	opOr         = 0x60
	opXor        = 0x61
	opCallvirt   = 0x6F
	opLdstr      = 0x72
	opNewobj     = 0x73
	opCastclass  = 0x74
	opUnbox      = 0x79
	opLdfld      = 0x7B
	opLdflda     = 0x7C
	opStfld      = 0x7D
	opLdsfld     = 0x7E
	opLdsflda    = 0x7F
	opStsfld     = 0x80
	opBox        = 0x8C
	opUnboxAny   = 0xA5
	opConvU      = 0xE0
	opPrefix1    = 0xFE
)

// Extended (0xFE-prefixed, two-byte) CIL opcodes this core recognises.
const (
	opCeq       = 0x01
	opCgt       = 0x02
	opClt       = 0x04
	opLdargExt  = 0x09
	opLdargaExt = 0x0A
	opStargExt  = 0x0B
	opLdlocExt  = 0x0C
	opLdlocaExt = 0x0D
	opStlocExt  = 0x0E
	opLocalloc  = 0x0F
)
