/*
 * Copyright (c) 2024-present Jeffrey M. Engelmann
 *
 * This source code is licensed under the MIT license found in the
 * LICENSE file in the root directory of this source tree.
 */

package sim

import (
	"encoding/binary"
	"fmt"
	"unicode/utf16"

	"github.com/eapache/queue"
	"github.com/valyala/bytebufferpool"
	"golang.org/x/exp/slices"

	"github.com/jme2041/commem/com"
)

const (
	blockAlign      = 16
	bstrPrefix      = 4
	descriptorBytes = 16 + 2*ptrSize
	ptrSize         = 4 << (^uintptr(0) >> 63)

	// larger requests fail with the null handle, as an exhausted heap would
	maxBlockSize = 1 << 30
)

var _ com.IPlatform = (*Platform)(nil)

// New creates an empty platform
func New(opts ...Option) *Platform {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Platform{
		opts:     o,
		next:     o.base,
		blocks:   map[uintptr]*block{},
		arrays:   map[com.SafeArray]*descriptor{},
		journal:  queue.New(),
		releases: map[releaseKey]int{},
	}
}

// TaskMemAlloc is CoTaskMemAlloc. A zero-size request still returns a unique block
func (p *Platform) TaskMemAlloc(size uintptr) uintptr {
	p.mu.Lock()
	defer p.mu.Unlock()
	addr := p.alloc(kindTaskMem, size)
	p.record(Event{Op: OpTaskMemAlloc, Handle: addr, Size: size})
	return addr
}

// TaskMemFree is CoTaskMemFree. Panics if p is not a live task memory block
func (p *Platform) TaskMemFree(addr uintptr) {
	if addr == 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.countRelease(OpTaskMemFree, addr)
	p.free(OpTaskMemFree, kindTaskMem, addr)
	p.record(Event{Op: OpTaskMemFree, Handle: addr})
}

// AllocString copies s into a NUL-terminated wide string in task memory
func (p *Platform) AllocString(s string) com.OLEStr {
	u := utf16.Encode([]rune(s))
	size := uintptr(len(u)+1) * 2
	p.mu.Lock()
	defer p.mu.Unlock()
	addr := p.alloc(kindTaskMem, size)
	p.record(Event{Op: OpTaskMemAlloc, Handle: addr, Size: size})
	if addr == 0 {
		return 0
	}
	b := p.blocks[addr].buf.B
	for i, c := range u {
		binary.LittleEndian.PutUint16(b[2*i:], c)
	}
	return com.OLEStr(addr)
}

// ReadString decodes a NUL-terminated wide string that starts a task memory block
func (p *Platform) ReadString(s com.OLEStr) string {
	if s == 0 {
		return ""
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	blk := p.lookup(kindTaskMem, uintptr(s), "ReadString")
	var u []uint16
	for i := 0; i+1 < len(blk.buf.B); i += 2 {
		c := binary.LittleEndian.Uint16(blk.buf.B[i:])
		if c == 0 {
			break
		}
		u = append(u, c)
	}
	return string(utf16.Decode(u))
}

// SysAllocString lays the string out as on Windows: a 4-byte byte count,
// the UTF-16 content and a terminating NUL. The BSTR points at the content
func (p *Platform) SysAllocString(s string) com.BSTR {
	u := utf16.Encode([]rune(s))
	size := bstrPrefix + uintptr(len(u)+1)*2
	p.mu.Lock()
	defer p.mu.Unlock()
	addr := p.alloc(kindString, size)
	if addr == 0 {
		p.record(Event{Op: OpSysAllocString, Size: size})
		return 0
	}
	b := p.blocks[addr].buf.B
	binary.LittleEndian.PutUint32(b, uint32(len(u)*2))
	for i, c := range u {
		binary.LittleEndian.PutUint16(b[bstrPrefix+2*i:], c)
	}
	res := com.BSTR(addr + bstrPrefix)
	p.record(Event{Op: OpSysAllocString, Handle: uintptr(res), Size: size})
	return res
}

// SysFreeString panics if s is not a live BSTR
func (p *Platform) SysFreeString(s com.BSTR) {
	if s == 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.countRelease(OpSysFreeString, uintptr(s))
	p.free(OpSysFreeString, kindString, uintptr(s)-bstrPrefix)
	p.record(Event{Op: OpSysFreeString, Handle: uintptr(s)})
}

func (p *Platform) SysStringLen(s com.BSTR) uint32 {
	if s == 0 {
		return 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	blk := p.lookup(kindString, uintptr(s)-bstrPrefix, "SysStringLen")
	return binary.LittleEndian.Uint32(blk.buf.B) / 2
}

func (p *Platform) SysString(s com.BSTR) string {
	if s == 0 {
		return ""
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	blk := p.lookup(kindString, uintptr(s)-bstrPrefix, "SysString")
	n := binary.LittleEndian.Uint32(blk.buf.B) / 2
	u := make([]uint16, n)
	for i := range u {
		u[i] = binary.LittleEndian.Uint16(blk.buf.B[bstrPrefix+2*i:])
	}
	return string(utf16.Decode(u))
}

// SafeArrayCreateVector allocates a descriptor block and, for a non-empty
// vector, a zeroed data block. Returns 0 for an unsupported vt or when out of memory
func (p *Platform) SafeArrayCreateVector(vt com.VarType, lbound int32, elements uint32) com.SafeArray {
	p.mu.Lock()
	defer p.mu.Unlock()
	psa := p.createArray(vt, lbound, elements)
	p.record(Event{Op: OpSafeArrayCreate, Handle: uintptr(psa), Size: uintptr(elements) * vt.ElemSize()})
	return psa
}

// SafeArrayDestroy fails with DISP_E_ARRAYISLOCKED while the array is locked.
// Panics if psa is not a live SAFEARRAY
func (p *Platform) SafeArrayDestroy(psa com.SafeArray) error {
	if psa == 0 {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.countRelease(OpSafeArrayDestroy, uintptr(psa))
	d, ok := p.arrays[psa]
	if !ok {
		panic(fmt.Sprintf("sim: SafeArrayDestroy of unknown SAFEARRAY %#x", uintptr(psa)))
	}
	if d.locks > 0 {
		p.record(Event{Op: OpSafeArrayDestroy, Handle: uintptr(psa), Result: com.DISP_E_ARRAYISLOCKED})
		return com.DISP_E_ARRAYISLOCKED
	}
	if d.data != 0 {
		p.free(OpSafeArrayDestroy, kindArrayData, d.data)
	}
	p.free(OpSafeArrayDestroy, kindArrayDescriptor, uintptr(psa))
	delete(p.arrays, psa)
	p.record(Event{Op: OpSafeArrayDestroy, Handle: uintptr(psa)})
	return nil
}

// SafeArrayCopy makes a deep copy with its own descriptor and data blocks
func (p *Platform) SafeArrayCopy(psa com.SafeArray) (com.SafeArray, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	src, ok := p.arrays[psa]
	if !ok {
		return 0, com.E_INVALIDARG
	}
	dst := p.createArray(src.vt, src.lbound, src.elements)
	if dst == 0 {
		p.record(Event{Op: OpSafeArrayCopy, Result: com.E_OUTOFMEMORY})
		return 0, com.E_OUTOFMEMORY
	}
	if src.data != 0 {
		copy(p.blocks[p.arrays[dst].data].buf.B, p.blocks[src.data].buf.B)
	}
	p.record(Event{Op: OpSafeArrayCopy, Handle: uintptr(dst)})
	return dst, nil
}

func (p *Platform) SafeArrayLock(psa com.SafeArray) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	d, ok := p.arrays[psa]
	if !ok {
		return com.E_INVALIDARG
	}
	d.locks++
	return nil
}

func (p *Platform) SafeArrayUnlock(psa com.SafeArray) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	d, ok := p.arrays[psa]
	if !ok {
		return com.E_INVALIDARG
	}
	if d.locks == 0 {
		return com.E_UNEXPECTED
	}
	d.locks--
	return nil
}

func (p *Platform) SafeArrayGetVartype(psa com.SafeArray) (com.VarType, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	d, ok := p.arrays[psa]
	if !ok {
		return com.VT_ERROR, com.E_INVALIDARG
	}
	return d.vt, nil
}

// SafeArrayGetDim returns 1 for a live vector and 0 otherwise
func (p *Platform) SafeArrayGetDim(psa com.SafeArray) uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.arrays[psa]; !ok {
		return 0
	}
	return 1
}

// ArrayData returns the address of the data block (pvData), 0 for an empty vector
func (p *Platform) ArrayData(psa com.SafeArray) uintptr {
	p.mu.Lock()
	defer p.mu.Unlock()
	if d, ok := p.arrays[psa]; ok {
		return d.data
	}
	return 0
}

// ArrayBytes returns the elements of a live array as raw bytes, nil for an
// empty vector. The slice aliases the data block
func (p *Platform) ArrayBytes(psa com.SafeArray) []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	d, ok := p.arrays[psa]
	if !ok || d.data == 0 {
		return nil
	}
	return p.blocks[d.data].buf.B
}

// Memory returns the bytes of a live task memory block. The slice aliases the block
func (p *Platform) Memory(addr uintptr) []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lookup(kindTaskMem, addr, "Memory").buf.B
}

// Stats returns the number and total size of live blocks
func (p *Platform) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{Blocks: len(p.blocks), Bytes: p.bytes}
}

func (p *Platform) Blocks() int {
	return p.Stats().Blocks
}

func (p *Platform) Bytes() uintptr {
	return p.Stats().Bytes
}

// Live returns the addresses of all live blocks in ascending order
func (p *Platform) Live() []uintptr {
	p.mu.Lock()
	res := make([]uintptr, 0, len(p.blocks))
	for addr := range p.blocks {
		res = append(res, addr)
	}
	p.mu.Unlock()
	slices.Sort(res)
	return res
}

// Events returns the journal, oldest first
func (p *Platform) Events() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	res := make([]Event, 0, p.journal.Length())
	for i := 0; i < p.journal.Length(); i++ {
		res = append(res, p.journal.Get(i).(Event))
	}
	return res
}

// Releases returns how many times the release function op was called for handle.
// op is one of OpTaskMemFree, OpSysFreeString, OpSafeArrayDestroy
func (p *Platform) Releases(op Op, handle uintptr) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.releases[releaseKey{op: op, handle: handle}]
}

func (p *Platform) createArray(vt com.VarType, lbound int32, elements uint32) com.SafeArray {
	elemSize := vt.ElemSize()
	if elemSize == 0 || vt&^com.VT_TYPEMASK != 0 {
		return 0
	}
	if uintptr(elements) > maxBlockSize/elemSize {
		return 0
	}
	addr := p.alloc(kindArrayDescriptor, descriptorBytes)
	if addr == 0 {
		return 0
	}
	d := &descriptor{vt: vt, lbound: lbound, elements: elements}
	if elements > 0 {
		if d.data = p.alloc(kindArrayData, elemSize*uintptr(elements)); d.data == 0 {
			p.free(OpSafeArrayCreate, kindArrayDescriptor, addr)
			return 0
		}
	}
	psa := com.SafeArray(addr)
	p.arrays[psa] = d
	return psa
}

func (p *Platform) alloc(kind blockKind, size uintptr) uintptr {
	if size > maxBlockSize {
		return 0
	}
	if p.opts.allocLimit > 0 && p.bytes+size > p.opts.allocLimit {
		return 0
	}
	buf := bytebufferpool.Get()
	if uintptr(cap(buf.B)) < size {
		buf.B = make([]byte, size)
	} else {
		buf.B = buf.B[:size]
		clear(buf.B)
	}
	addr := p.next
	// leave a gap so no interior pointer of one block is the start of another
	p.next += (size + 2*blockAlign - 1) &^ (blockAlign - 1)
	p.blocks[addr] = &block{kind: kind, buf: buf}
	p.bytes += size
	return addr
}

func (p *Platform) free(op Op, kind blockKind, addr uintptr) {
	blk := p.lookup(kind, addr, op.String())
	p.bytes -= blk.size()
	delete(p.blocks, addr)
	bytebufferpool.Put(blk.buf)
}

func (p *Platform) lookup(kind blockKind, addr uintptr, caller string) *block {
	blk, ok := p.blocks[addr]
	if !ok {
		panic(fmt.Sprintf("sim: %s: %#x is not a live block", caller, addr))
	}
	if blk.kind != kind {
		panic(fmt.Sprintf("sim: %s: %#x is %s, not %s", caller, addr, blk.kind, kind))
	}
	return blk
}

func (p *Platform) countRelease(op Op, handle uintptr) {
	p.releases[releaseKey{op: op, handle: handle}]++
}

func (p *Platform) record(e Event) {
	if p.opts.journalSize < 1 {
		return
	}
	p.journal.Add(e)
	for p.journal.Length() > p.opts.journalSize {
		p.journal.Remove()
	}
}
