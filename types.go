/*
 * Copyright (c) 2024-present Jeffrey M. Engelmann
 */

package commem

import "sync/atomic"

// Unique is the exclusive owner of one handle. The zero value is empty.
// D is part of the type, so every UniqueBSTR releases with SysFreeString and
// nothing else. Must not be copied; use Move, MoveFrom or Swap
type Unique[T Pointer, D IDeleter[T]] struct {
	p T
	// adoption site, debug mode only
	borrowStackTrace string
}

// Shared is one reference to a handle owned jointly through a control block.
// The zero value is empty (UseCount 0). Copies are made with Clone or Assign;
// copying the struct itself does not count as a reference
type Shared[T Pointer] struct {
	c *control[T]
}

type control[T Pointer] struct {
	refs             atomic.Int64
	p                T
	del              func(T)
	borrowStackTrace string
}

type stackFrame struct {
	fn   string
	file string
	line int
}

type stackTrace []stackFrame
