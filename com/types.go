/*
 * Copyright (c) 2024-present Jeffrey M. Engelmann
 *
 * This source code is licensed under the MIT license found in the
 * LICENSE file in the root directory of this source tree.
 */

// Package com describes the boundary of the COM memory subsystem: the
// pointer-shaped handle types its allocators hand out, HRESULT and VARTYPE
// codes, and IPlatform, the set of allocation and release functions the
// ownership handles depend on.
package com

import "fmt"

// Handle is an untyped block from the task allocator (void*)
type Handle uintptr

// OLEStr is a NUL-terminated wide string allocated with the task allocator (LPOLESTR)
type OLEStr uintptr

// BSTR is a length-prefixed wide string. The value points past the 4-byte length prefix
type BSTR uintptr

// SafeArray is a pointer to a SAFEARRAY descriptor (LPSAFEARRAY)
type SafeArray uintptr

// VarType is a VARTYPE
type VarType uint16

const (
	VT_EMPTY    VarType = 0
	VT_NULL     VarType = 1
	VT_I2       VarType = 2
	VT_I4       VarType = 3
	VT_R4       VarType = 4
	VT_R8       VarType = 5
	VT_CY       VarType = 6
	VT_DATE     VarType = 7
	VT_BSTR     VarType = 8
	VT_DISPATCH VarType = 9
	VT_ERROR    VarType = 10
	VT_BOOL     VarType = 11
	VT_VARIANT  VarType = 12
	VT_UNKNOWN  VarType = 13
	VT_DECIMAL  VarType = 14
	VT_I1       VarType = 16
	VT_UI1      VarType = 17
	VT_UI2      VarType = 18
	VT_UI4      VarType = 19
	VT_I8       VarType = 20
	VT_UI8      VarType = 21
	VT_INT      VarType = 22
	VT_UINT     VarType = 23
	VT_LPWSTR   VarType = 31 // PROPVARIANT only: task-allocated wide string

	VT_ARRAY    VarType = 0x2000
	VT_TYPEMASK VarType = 0x0fff
)

// HRESULT is a COM status code. Failed codes implement error
type HRESULT uint32

const (
	S_OK                 HRESULT = 0x00000000
	S_FALSE              HRESULT = 0x00000001
	E_UNEXPECTED         HRESULT = 0x8000FFFF
	E_POINTER            HRESULT = 0x80004003
	E_OUTOFMEMORY        HRESULT = 0x8007000E
	E_INVALIDARG         HRESULT = 0x80070057
	DISP_E_BADVARTYPE    HRESULT = 0x80020008
	DISP_E_ARRAYISLOCKED HRESULT = 0x8002000D
)

var hresultNames = map[HRESULT]string{
	S_OK:                 "S_OK",
	S_FALSE:              "S_FALSE",
	E_UNEXPECTED:         "E_UNEXPECTED",
	E_POINTER:            "E_POINTER",
	E_OUTOFMEMORY:        "E_OUTOFMEMORY",
	E_INVALIDARG:         "E_INVALIDARG",
	DISP_E_BADVARTYPE:    "DISP_E_BADVARTYPE",
	DISP_E_ARRAYISLOCKED: "DISP_E_ARRAYISLOCKED",
}

// Failed reports whether the severity bit is set
func (hr HRESULT) Failed() bool {
	return hr&0x80000000 != 0
}

// Err returns nil for success codes and hr itself otherwise
func (hr HRESULT) Err() error {
	if hr.Failed() {
		return hr
	}
	return nil
}

func (hr HRESULT) Error() string {
	if name, ok := hresultNames[hr]; ok {
		return fmt.Sprintf("%s (0x%08X)", name, uint32(hr))
	}
	return fmt.Sprintf("HRESULT 0x%08X", uint32(hr))
}

// ElemSize returns the size in bytes of one array element of type vt, or 0 if
// vt cannot be the element type of a SAFEARRAY
func (vt VarType) ElemSize() uintptr {
	switch vt & VT_TYPEMASK {
	case VT_I1, VT_UI1:
		return 1
	case VT_I2, VT_UI2, VT_BOOL:
		return 2
	case VT_I4, VT_UI4, VT_R4, VT_INT, VT_UINT, VT_ERROR:
		return 4
	case VT_I8, VT_UI8, VT_R8, VT_CY, VT_DATE:
		return 8
	case VT_BSTR, VT_DISPATCH, VT_UNKNOWN:
		return ptrSize
	case VT_DECIMAL:
		return 16
	case VT_VARIANT:
		return 16 + 2*(ptrSize-4)
	}
	return 0
}

const ptrSize = 4 << (^uintptr(0) >> 63)
