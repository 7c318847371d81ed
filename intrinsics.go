// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package clr

import (
	"fmt"
	"strconv"
)

// dispatchIntrinsic resolves an [InternalCall]-flagged method against
// this core's small intrinsic table, per §4.10.6. An InternalCall the
// table does not recognise fails loudly rather than silently acting as
// a no-op.
func (it *Interpreter) dispatchIntrinsic(asm *Assembly, method *MethodRow, fr *frame) (*ILType, error) {
	switch method.Name {
	case "WriteLine":
		if len(fr.params) == 0 {
			return nil, fmt.Errorf("%w: WriteLine expects one argument", ErrExecutionFault)
		}
		s, err := it.renderValue(fr.params[len(fr.params)-1])
		if err != nil {
			return nil, err
		}
		fmt.Fprintln(it.cfg.Output, s)
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: internal call %q", ErrUnsupportedFeature, method.Name)
	}
}

// renderValue implements §4.10.7's value-to-string rendering: numeric
// Vals print as decimal (bool as "True"/"False", char as the rune),
// a String ref prints its text, an Object ref prints its boxed value
// (if any) or a type-tagged placeholder, Null prints "Null", and a
// managed or unmanaged pointer prints a diagnostic placeholder.
func (it *Interpreter) renderValue(v ILType) (string, error) {
	switch v.Kind {
	case KindVal:
		switch v.Val.Kind {
		case ILBool:
			if v.Val.I != 0 {
				return "True", nil
			}
			return "False", nil
		case ILChar:
			return string(rune(v.Val.I)), nil
		case ILSingle, ILDouble:
			return strconv.FormatFloat(v.Val.F, 'g', -1, 64), nil
		default:
			return strconv.FormatInt(v.Val.I, 10), nil
		}
	case KindRef:
		switch v.Ref.Kind {
		case RefNull:
			return "Null", nil
		case RefString:
			return it.string(v.Ref.Index)
		case RefObject:
			obj, err := it.object(v.Ref.Index)
			if err != nil {
				return "", err
			}
			if obj.BoxedValue != nil {
				return it.renderValue(*obj.BoxedValue)
			}
			return fmt.Sprintf("<object type=0x%08X>", uint32(obj.CurrentTypeToken)), nil
		}
	case KindPtr:
		return fmt.Sprintf("<ptr origin=%d index=%d>", v.Ptr.Origin, v.Ptr.Index), nil
	case KindNPtr:
		return fmt.Sprintf("<nptr len=%d offset=%d>", len(v.NPtr.Buf), v.NPtr.Offset), nil
	}
	return "", fmt.Errorf("%w: unrenderable value kind", ErrExecutionFault)
}
