/*
 * Copyright (c) 2024-present Jeffrey M. Engelmann
 */

package commem

import (
	"bytes"
	"fmt"
	"runtime"

	"go.uber.org/zap"
)

// Get returns the owned handle without giving up ownership, 0 if empty
func (u *Unique[T, D]) Get() T {
	return u.p
}

// Valid reports whether u owns a handle
func (u *Unique[T, D]) Valid() bool {
	return u.p != 0
}

// Reset adopts p and releases the previously owned handle, if any.
// Reset(0) empties u. Resetting to the handle u already owns does nothing
func (u *Unique[T, D]) Reset(p T) {
	if p == u.p {
		return
	}
	old, oldStackTrace := u.p, u.borrowStackTrace
	u.p, u.borrowStackTrace = p, adopt(uintptr(p))
	if old != 0 {
		deleteWith[T, D](old, oldStackTrace)
	}
}

// Detach hands the handle to the caller and empties u without releasing it.
// The caller becomes responsible for releasing the returned handle exactly once
func (u *Unique[T, D]) Detach() T {
	p := u.p
	if p != 0 {
		forget(uintptr(p), u.borrowStackTrace)
	}
	u.p, u.borrowStackTrace = 0, ""
	return p
}

// Close releases the owned handle, if any, and leaves u empty.
// Always returns nil: a release that cannot succeed terminates the process
func (u *Unique[T, D]) Close() error {
	u.Reset(0)
	return nil
}

// Move returns a new owner of u's handle and leaves u empty
func (u *Unique[T, D]) Move() *Unique[T, D] {
	res := &Unique[T, D]{p: u.p, borrowStackTrace: u.borrowStackTrace}
	u.p, u.borrowStackTrace = 0, ""
	return res
}

// MoveFrom releases u's handle, if any, and takes over src's. src is left empty
func (u *Unique[T, D]) MoveFrom(src *Unique[T, D]) {
	if src == u {
		return
	}
	p, st := src.p, src.borrowStackTrace
	src.p, src.borrowStackTrace = 0, ""
	old, oldStackTrace := u.p, u.borrowStackTrace
	u.p, u.borrowStackTrace = p, st
	if old != 0 {
		deleteWith[T, D](old, oldStackTrace)
	}
}

// Swap exchanges the handles of u and other. Nothing is released
func (u *Unique[T, D]) Swap(other *Unique[T, D]) {
	u.p, other.p = other.p, u.p
	u.borrowStackTrace, other.borrowStackTrace = other.borrowStackTrace, u.borrowStackTrace
}

// the handle stops being owned before the deleter runs, so a deleter that
// panics does not leave it counted
func deleteWith[T Pointer, D IDeleter[T]](p T, st string) {
	forget(uintptr(p), st)
	var d D
	d.Delete(p)
}

// NewShared makes the first reference to p, released with del when the last
// reference is dropped. The control block is allocated even for p == 0, so
// NewShared(0, del) is not empty: UseCount() is 1 although Valid() is false.
// Panics if del is nil
func NewShared[T Pointer](p T, del func(T)) *Shared[T] {
	if del == nil {
		panic("commem: nil deleter")
	}
	return &Shared[T]{c: newControl(p, del)}
}

// SharedFromUnique moves u's handle into a new Shared that releases it with u's
// deleter. An empty u gives an empty Shared
func SharedFromUnique[T Pointer, D IDeleter[T]](u *Unique[T, D]) *Shared[T] {
	if !u.Valid() {
		return &Shared[T]{}
	}
	var d D
	c := &control[T]{p: u.p, del: d.Delete, borrowStackTrace: u.borrowStackTrace}
	c.refs.Store(1)
	u.p, u.borrowStackTrace = 0, ""
	return &Shared[T]{c: c}
}

// AssignUnique drops dst's reference and moves src's handle into dst
func AssignUnique[T Pointer, D IDeleter[T]](dst *Shared[T], src *Unique[T, D]) {
	dst.MoveFrom(SharedFromUnique(src))
}

func newControl[T Pointer](p T, del func(T)) *control[T] {
	c := &control[T]{p: p, del: del, borrowStackTrace: adopt(uintptr(p))}
	c.refs.Store(1)
	return c
}

func (c *control[T]) acquire() {
	c.refs.Add(1)
}

func (c *control[T]) drop() {
	refs := c.refs.Add(-1)
	if refs > 0 {
		return
	}
	if refs < 0 {
		panic("commem: shared reference dropped twice")
	}
	if c.p != 0 {
		forget(uintptr(c.p), c.borrowStackTrace)
		c.del(c.p)
	}
}

// Get returns the handle, 0 if s is empty or holds the null handle
func (s *Shared[T]) Get() T {
	if s.c == nil {
		return 0
	}
	return s.c.p
}

// Valid reports whether s refers to a non-null handle
func (s *Shared[T]) Valid() bool {
	return s.Get() != 0
}

// UseCount returns the number of references sharing s's control block, 0 if empty
func (s *Shared[T]) UseCount() int64 {
	if s.c == nil {
		return 0
	}
	return s.c.refs.Load()
}

// Equal reports whether s and other hold the same handle value.
// A nil other is the empty handle
func (s *Shared[T]) Equal(other *Shared[T]) bool {
	if other == nil {
		return s.Get() == 0
	}
	return s.Get() == other.Get()
}

// Clone returns a new reference to s's handle
func (s *Shared[T]) Clone() *Shared[T] {
	if s.c != nil {
		s.c.acquire()
	}
	return &Shared[T]{c: s.c}
}

// Assign makes s another reference to src's handle, dropping s's own reference
func (s *Shared[T]) Assign(src *Shared[T]) {
	if s.c == src.c {
		return
	}
	if src.c != nil {
		src.c.acquire()
	}
	old := s.c
	s.c = src.c
	if old != nil {
		old.drop()
	}
}

// Move returns a new Shared that takes over s's reference and leaves s empty
func (s *Shared[T]) Move() *Shared[T] {
	res := &Shared[T]{c: s.c}
	s.c = nil
	return res
}

// MoveFrom drops s's reference and takes over src's. src is left empty
func (s *Shared[T]) MoveFrom(src *Shared[T]) {
	if src == s {
		return
	}
	c := src.c
	src.c = nil
	old := s.c
	s.c = c
	if old != nil {
		old.drop()
	}
}

// Reset drops s's reference and leaves s empty (UseCount 0). This is also
// what assigning null does: the deleter goes away with the control block
func (s *Shared[T]) Reset() {
	old := s.c
	s.c = nil
	if old != nil {
		old.drop()
	}
}

// ResetWith drops s's reference and makes s the first reference to p,
// released with del. p must not be the handle s already refers to.
// Panics if del is nil
func (s *Shared[T]) ResetWith(p T, del func(T)) {
	if del == nil {
		panic("commem: nil deleter")
	}
	old := s.c
	s.c = newControl(p, del)
	if old != nil {
		old.drop()
	}
}

// Swap exchanges the references of s and other. Counts do not change
func (s *Shared[T]) Swap(other *Shared[T]) {
	s.c, other.c = other.c, s.c
}

// Close drops s's reference. Always returns nil
func (s *Shared[T]) Close() error {
	s.Reset()
	return nil
}

// adopt counts a newly owned handle and, in debug mode, remembers where it was adopted
func adopt(h uintptr) string {
	if h == 0 {
		return ""
	}
	resourcesInUse.Add(1)
	if !isDebug.Load() {
		return ""
	}
	st := getStackTrace().string()
	m.Lock()
	objAmounts[st]++
	m.Unlock()
	Logger().Debug("handle adopted", zap.Uintptr("handle", h))
	return st
}

// forget undoes adopt once the handle is released or detached
func forget(h uintptr, st string) {
	resourcesInUse.Add(-1)
	if st == "" {
		return
	}
	m.Lock()
	objAmounts[st]--
	m.Unlock()
	Logger().Debug("handle released", zap.Uintptr("handle", h))
}

func (st stackTrace) string() string {
	buf := bytes.NewBufferString("")
	for _, sf := range st {
		fmt.Fprintf(buf, "%s\n\t%s:%d\n", sf.fn, sf.file, sf.line)
	}
	return buf.String()
}

func getStackTrace() stackTrace {
	pc := make([]uintptr, 64)
	n := runtime.Callers(3, pc)
	frames := runtime.CallersFrames(pc[:n])
	st := stackTrace{}
	for {
		frame, more := frames.Next()
		st = append(st, stackFrame{
			fn:   frame.Function,
			file: frame.File,
			line: frame.Line,
		})
		if !more {
			break
		}
	}
	return st
}
