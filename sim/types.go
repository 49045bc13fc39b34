/*
 * Copyright (c) 2024-present Jeffrey M. Engelmann
 *
 * This source code is licensed under the MIT license found in the
 * LICENSE file in the root directory of this source tree.
 */

package sim

import (
	"sync"

	"github.com/eapache/queue"
	"github.com/valyala/bytebufferpool"

	"github.com/jme2041/commem/com"
)

// Platform is an in-process implementation of com.IPlatform.
// Every allocation is a tracked block so tests can assert that a sequence of
// operations returns the heap to where it started
type Platform struct {
	mu       sync.Mutex
	opts     options
	next     uintptr
	bytes    uintptr
	blocks   map[uintptr]*block
	arrays   map[com.SafeArray]*descriptor
	journal  *queue.Queue
	releases map[releaseKey]int
}

type blockKind uint8

const (
	kindTaskMem blockKind = iota
	kindString
	kindArrayDescriptor
	kindArrayData
)

func (k blockKind) String() string {
	switch k {
	case kindTaskMem:
		return "task memory"
	case kindString:
		return "BSTR"
	case kindArrayDescriptor:
		return "SAFEARRAY descriptor"
	case kindArrayData:
		return "SAFEARRAY data"
	}
	return "unknown"
}

type block struct {
	kind blockKind
	buf  *bytebufferpool.ByteBuffer
}

func (b *block) size() uintptr {
	return uintptr(len(b.buf.B))
}

type descriptor struct {
	vt       com.VarType
	lbound   int32
	elements uint32
	locks    uint32
	data     uintptr
}

type releaseKey struct {
	op     Op
	handle uintptr
}

// Op identifies a platform call recorded in the journal
type Op uint8

const (
	OpTaskMemAlloc Op = iota
	OpTaskMemFree
	OpSysAllocString
	OpSysFreeString
	OpSafeArrayCreate
	OpSafeArrayCopy
	OpSafeArrayDestroy
)

func (op Op) String() string {
	switch op {
	case OpTaskMemAlloc:
		return "CoTaskMemAlloc"
	case OpTaskMemFree:
		return "CoTaskMemFree"
	case OpSysAllocString:
		return "SysAllocString"
	case OpSysFreeString:
		return "SysFreeString"
	case OpSafeArrayCreate:
		return "SafeArrayCreateVector"
	case OpSafeArrayCopy:
		return "SafeArrayCopy"
	case OpSafeArrayDestroy:
		return "SafeArrayDestroy"
	}
	return "unknown"
}

// Event is one journal entry. Handle is 0 for a failed allocation
type Event struct {
	Op     Op
	Handle uintptr
	Size   uintptr
	Result com.HRESULT
}

// Stats is a snapshot of the live blocks
type Stats struct {
	Blocks int
	Bytes  uintptr
}

// Variant is a stand-in for (PROP)VARIANT that holds a BSTR (VT_BSTR), a
// SAFEARRAY (VT_ARRAY|vt) or a task memory string (VT_LPWSTR).
// It owns what it holds: VariantClear releases it
type Variant struct {
	VT  com.VarType
	Val uintptr
}
