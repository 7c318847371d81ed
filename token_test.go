// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package clr

import "testing"

func TestMDTokenRoundTrip(t *testing.T) {
	tests := []struct {
		table int
		rid   uint32
	}{
		{MethodDef, 1},
		{TypeDef, 42},
		{Field, 0x00FFFFFF},
	}
	for _, tt := range tests {
		tok := NewMDToken(tt.table, tt.rid)
		if got := tok.Table(); got != tt.table {
			t.Errorf("Table() = %d, want %d", got, tt.table)
		}
		if got := tok.RID(); got != tt.rid {
			t.Errorf("RID() = %d, want %d", got, tt.rid)
		}
	}
}

func TestMDTokenIsNull(t *testing.T) {
	if !NewMDToken(TypeDef, 0).IsNull() {
		t.Error("token with RID 0 should be null")
	}
	if NewMDToken(TypeDef, 1).IsNull() {
		t.Error("token with RID 1 should not be null")
	}
}

func TestDecodeCodedToken(t *testing.T) {
	c := codedidx{tagbits: 2, idx: []int{TypeDef, TypeRef, TypeSpec}}
	// RID 5, tag 1 (TypeRef): (5 << 2) | 1
	tok := decodeCodedToken(c, (5<<2)|1)
	if tok.Table() != TypeRef || tok.RID() != 5 {
		t.Errorf("decodeCodedToken = table %d rid %d, want TypeRef/5", tok.Table(), tok.RID())
	}
}
