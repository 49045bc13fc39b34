//go:build windows

/*
 * Copyright (c) 2024-present Jeffrey M. Engelmann
 *
 * This source code is licensed under the MIT license found in the
 * LICENSE file in the root directory of this source tree.
 */

package com

import (
	"unicode/utf16"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	modole32    = windows.NewLazySystemDLL("ole32.dll")
	modoleaut32 = windows.NewLazySystemDLL("oleaut32.dll")

	procCoTaskMemAlloc = modole32.NewProc("CoTaskMemAlloc")
	procCoTaskMemFree  = modole32.NewProc("CoTaskMemFree")

	procSysAllocStringLen = modoleaut32.NewProc("SysAllocStringLen")
	procSysFreeString     = modoleaut32.NewProc("SysFreeString")
	procSysStringLen      = modoleaut32.NewProc("SysStringLen")

	procSafeArrayCreateVector = modoleaut32.NewProc("SafeArrayCreateVector")
	procSafeArrayDestroy      = modoleaut32.NewProc("SafeArrayDestroy")
	procSafeArrayCopy         = modoleaut32.NewProc("SafeArrayCopy")
	procSafeArrayLock         = modoleaut32.NewProc("SafeArrayLock")
	procSafeArrayUnlock       = modoleaut32.NewProc("SafeArrayUnlock")
	procSafeArrayGetVartype   = modoleaut32.NewProc("SafeArrayGetVartype")
	procSafeArrayGetDim       = modoleaut32.NewProc("SafeArrayGetDim")
)

type system struct{}

// System returns the platform backed by ole32.dll and oleaut32.dll
func System() IPlatform {
	return system{}
}

func (system) TaskMemAlloc(size uintptr) uintptr {
	r, _, _ := procCoTaskMemAlloc.Call(size)
	return r
}

func (system) TaskMemFree(p uintptr) {
	if p == 0 {
		return
	}
	procCoTaskMemFree.Call(p) //nolint:errcheck // CoTaskMemFree returns void
}

func (system) SysAllocString(s string) BSTR {
	u := utf16.Encode([]rune(s))
	if len(u) == 0 {
		r, _, _ := procSysAllocStringLen.Call(0, 0)
		return BSTR(r)
	}
	r, _, _ := procSysAllocStringLen.Call(uintptr(unsafe.Pointer(&u[0])), uintptr(len(u)))
	return BSTR(r)
}

func (system) SysFreeString(s BSTR) {
	if s == 0 {
		return
	}
	procSysFreeString.Call(uintptr(s)) //nolint:errcheck // SysFreeString returns void
}

func (system) SysStringLen(s BSTR) uint32 {
	r, _, _ := procSysStringLen.Call(uintptr(s))
	return uint32(r)
}

func (p system) SysString(s BSTR) string {
	n := p.SysStringLen(s)
	if n == 0 {
		return ""
	}
	u := unsafe.Slice(s.chars(), n)
	return string(utf16.Decode(u))
}

func (system) SafeArrayCreateVector(vt VarType, lbound int32, elements uint32) SafeArray {
	r, _, _ := procSafeArrayCreateVector.Call(uintptr(vt), uintptr(lbound), uintptr(elements))
	return SafeArray(r)
}

func (system) SafeArrayDestroy(psa SafeArray) error {
	r, _, _ := procSafeArrayDestroy.Call(uintptr(psa))
	return HRESULT(uint32(r)).Err()
}

func (system) SafeArrayCopy(psa SafeArray) (SafeArray, error) {
	var out SafeArray
	r, _, _ := procSafeArrayCopy.Call(uintptr(psa), uintptr(unsafe.Pointer(&out)))
	if err := HRESULT(uint32(r)).Err(); err != nil {
		return 0, err
	}
	return out, nil
}

func (system) SafeArrayLock(psa SafeArray) error {
	r, _, _ := procSafeArrayLock.Call(uintptr(psa))
	return HRESULT(uint32(r)).Err()
}

func (system) SafeArrayUnlock(psa SafeArray) error {
	r, _, _ := procSafeArrayUnlock.Call(uintptr(psa))
	return HRESULT(uint32(r)).Err()
}

func (system) SafeArrayGetVartype(psa SafeArray) (VarType, error) {
	var vt VarType
	r, _, _ := procSafeArrayGetVartype.Call(uintptr(psa), uintptr(unsafe.Pointer(&vt)))
	if err := HRESULT(uint32(r)).Err(); err != nil {
		return VT_ERROR, err
	}
	return vt, nil
}

func (system) SafeArrayGetDim(psa SafeArray) uint32 {
	r, _, _ := procSafeArrayGetDim.Call(uintptr(psa))
	return uint32(r)
}

// chars reinterprets the BSTR value as the pointer it is, without a
// uintptr-to-pointer conversion
func (s BSTR) chars() *uint16 {
	return (*uint16)(*(*unsafe.Pointer)(unsafe.Pointer(&s)))
}
