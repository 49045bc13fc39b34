/*
 * Copyright (c) 2024-present Jeffrey M. Engelmann
 *
 * This source code is licensed under the MIT license found in the
 * LICENSE file in the root directory of this source tree.
 */

package com

// IPlatform is the COM memory subsystem as seen by the ownership handles.
// Allocation failure is reported as the null (zero) handle.
// Use System() on Windows; package sim provides an in-process implementation
type IPlatform interface {
	// task allocator (CoTaskMemAlloc/CoTaskMemFree). TaskMemFree(0) is a no-op
	TaskMemAlloc(size uintptr) uintptr
	TaskMemFree(p uintptr)

	// SysAllocString returns 0 if out of memory
	SysAllocString(s string) BSTR
	// SysFreeString frees a BSTR. Freeing the same BSTR twice is undefined
	SysFreeString(s BSTR)
	SysStringLen(s BSTR) uint32
	// SysString copies the BSTR content into a Go string
	SysString(s BSTR) string

	// SafeArrayCreateVector returns 0 if out of memory or vt is not a valid element type
	SafeArrayCreateVector(vt VarType, lbound int32, elements uint32) SafeArray
	// SafeArrayDestroy fails with DISP_E_ARRAYISLOCKED while the array is locked
	SafeArrayDestroy(psa SafeArray) error
	SafeArrayCopy(psa SafeArray) (SafeArray, error)
	SafeArrayLock(psa SafeArray) error
	SafeArrayUnlock(psa SafeArray) error
	SafeArrayGetVartype(psa SafeArray) (VarType, error)
	SafeArrayGetDim(psa SafeArray) uint32
}
