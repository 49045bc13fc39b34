/*
 * Copyright (c) 2024-present Jeffrey M. Engelmann
 *
 * This source code is licensed under the MIT license found in the
 * LICENSE file in the root directory of this source tree.
 */

package commem

import (
	"os"

	"go.uber.org/zap"

	"github.com/jme2041/commem/com"
)

// FatalReleaseExitCode is the exit status of a process stopped because a
// SAFEARRAY could not be destroyed
const FatalReleaseExitCode = 3

// HeapDeleter releases task memory with CoTaskMemFree
//
//	a := commem.NewUniqueHeap(com.Handle(platform.TaskMemAlloc(10)))
//	b := commem.NewShared(com.Handle(platform.TaskMemAlloc(10)), commem.HeapDeleter[com.Handle]{}.Delete)
type HeapDeleter[T Pointer] struct{}

func (HeapDeleter[T]) Delete(p T) {
	if p == 0 {
		return
	}
	CurrentPlatform().TaskMemFree(uintptr(p))
}

// BStringDeleter releases a BSTR with SysFreeString
//
//	a := commem.NewUniqueBSTR(platform.SysAllocString("ABCD"))
//	b := commem.NewShared(platform.SysAllocString("ABCD"), commem.BStringDeleter{}.Delete)
type BStringDeleter struct{}

func (BStringDeleter) Delete(p com.BSTR) {
	if p == 0 {
		return
	}
	CurrentPlatform().SysFreeString(p)
}

// SafeArrayDeleter releases a SAFEARRAY with SafeArrayDestroy.
// If SafeArrayDestroy fails (the array is locked, or does not own its data)
// the process is terminated: the failure is logged and os.Exit(FatalReleaseExitCode)
// is called. Delete runs where no error can be returned and leaking would hide
// the lifecycle bug
//
//	a := commem.NewUniqueSafeArray(platform.SafeArrayCreateVector(com.VT_I4, 0, 10))
//	b := commem.NewShared(platform.SafeArrayCreateVector(com.VT_I4, 0, 10), commem.SafeArrayDeleter{}.Delete)
type SafeArrayDeleter struct{}

func (SafeArrayDeleter) Delete(p com.SafeArray) {
	if p == 0 {
		return
	}
	if err := CurrentPlatform().SafeArrayDestroy(p); err != nil {
		terminate("SafeArrayDestroy failed", zap.Uintptr("psa", uintptr(p)), zap.Error(err))
	}
}

func terminate(msg string, fields ...zap.Field) {
	l := Logger()
	l.Error(msg, append(fields, zap.Stack("stack"))...)
	_ = l.Sync()
	os.Exit(FatalReleaseExitCode)
}

type (
	UniqueHeap[T Pointer] = Unique[T, HeapDeleter[T]]
	UniqueBSTR            = Unique[com.BSTR, BStringDeleter]
	UniqueSafeArray       = Unique[com.SafeArray, SafeArrayDeleter]

	SharedHeap[T Pointer] = Shared[T]
	SharedBSTR            = Shared[com.BSTR]
	SharedSafeArray       = Shared[com.SafeArray]
)

// NewUniqueHeap takes ownership of p, a block from the task allocator
func NewUniqueHeap[T Pointer](p T) *UniqueHeap[T] {
	u := &UniqueHeap[T]{}
	u.Reset(p)
	return u
}

// NewUniqueBSTR takes ownership of p, a BSTR from SysAllocString
func NewUniqueBSTR(p com.BSTR) *UniqueBSTR {
	u := &UniqueBSTR{}
	u.Reset(p)
	return u
}

// NewUniqueSafeArray takes ownership of p, a SAFEARRAY from SafeArrayCreate*
func NewUniqueSafeArray(p com.SafeArray) *UniqueSafeArray {
	u := &UniqueSafeArray{}
	u.Reset(p)
	return u
}

// NewSharedHeap is the shared handle for task memory that needs no explicit
// deleter: it releases with HeapDeleter. Unlike NewShared, the null handle
// gives an empty Shared (UseCount 0)
func NewSharedHeap[T Pointer](p T) *SharedHeap[T] {
	if p == 0 {
		return &SharedHeap[T]{}
	}
	return NewShared(p, HeapDeleter[T]{}.Delete)
}
