// Copyright 2021 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package clr

import (
	"testing"
)

func TestIsEXE(t *testing.T) {
	tests := []struct {
		name            string
		characteristics ImageFileHeaderCharacteristicsType
		out             bool
	}{
		{"dll", ImageFileDLL | ImageFileExecutableImage, false},
		{"exe", ImageFileExecutableImage, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := NewBytes(buildMinimalPE(tt.characteristics), nil)
			if err != nil {
				t.Fatalf("NewBytes failed, reason: %v", err)
			}

			if err := f.Parse(); err != nil {
				t.Fatalf("Parse() failed, reason: %v", err)
			}

			if got := f.IsEXE(); got != tt.out {
				t.Errorf("IsEXE() = %v, want %v", got, tt.out)
			}
		})
	}
}
