/*
 * Copyright (c) 2024-present Jeffrey M. Engelmann
 *
 * This source code is licensed under the MIT license found in the
 * LICENSE file in the root directory of this source tree.
 */

package sim

import (
	"github.com/jme2041/commem/com"
)

// VariantInit empties v without releasing anything it holds
func VariantInit(v *Variant) {
	*v = Variant{}
}

// VariantClear releases what v holds and empties it.
// On failure v is left unchanged
func (p *Platform) VariantClear(v *Variant) error {
	switch {
	case v.VT == com.VT_LPWSTR:
		p.TaskMemFree(v.Val)
	case v.VT == com.VT_BSTR:
		p.SysFreeString(com.BSTR(v.Val))
	case v.VT&com.VT_ARRAY != 0:
		if err := p.SafeArrayDestroy(com.SafeArray(v.Val)); err != nil {
			return err
		}
	}
	VariantInit(v)
	return nil
}

// SetBSTR stores s in v. v takes ownership of s; anything v held before is not released
func (v *Variant) SetBSTR(s com.BSTR) {
	v.VT = com.VT_BSTR
	v.Val = uintptr(s)
}

// SetOLEStr stores s, a string in task memory, in v as VT_LPWSTR. v takes ownership of s
func (v *Variant) SetOLEStr(s com.OLEStr) {
	v.VT = com.VT_LPWSTR
	v.Val = uintptr(s)
}

// SetArray stores psa, an array of vt elements, in v. v takes ownership of psa
func (v *Variant) SetArray(vt com.VarType, psa com.SafeArray) {
	v.VT = vt | com.VT_ARRAY
	v.Val = uintptr(psa)
}

// BSTR returns the held string without transferring ownership, 0 if v holds none
func (v *Variant) BSTR() com.BSTR {
	if v.VT != com.VT_BSTR {
		return 0
	}
	return com.BSTR(v.Val)
}

// Array returns the held array without transferring ownership, 0 if v holds none
func (v *Variant) Array() com.SafeArray {
	if v.VT&com.VT_ARRAY == 0 {
		return 0
	}
	return com.SafeArray(v.Val)
}

// OLEStr returns the held task memory string without transferring ownership
func (v *Variant) OLEStr() com.OLEStr {
	if v.VT != com.VT_LPWSTR {
		return 0
	}
	return com.OLEStr(v.Val)
}

// TakeOLEStr empties v and hands the held task memory string to the caller
func (v *Variant) TakeOLEStr() com.OLEStr {
	s := v.OLEStr()
	if s != 0 {
		VariantInit(v)
	}
	return s
}

// TakeBSTR empties v and hands the held string to the caller
func (v *Variant) TakeBSTR() com.BSTR {
	s := v.BSTR()
	if s != 0 {
		VariantInit(v)
	}
	return s
}

// TakeArray empties v and hands the held array to the caller
func (v *Variant) TakeArray() com.SafeArray {
	psa := v.Array()
	if psa != 0 {
		VariantInit(v)
	}
	return psa
}
