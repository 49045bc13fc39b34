/*
 * Copyright (c) 2024-present Jeffrey M. Engelmann
 *
 * This source code is licensed under the MIT license found in the
 * LICENSE file in the root directory of this source tree.
 */

package sim

const (
	defaultBase        = 0x10000
	defaultJournalSize = 1024
)

type options struct {
	base        uintptr
	allocLimit  uintptr
	journalSize int
}

// Option configures a Platform
type Option func(*options)

// WithAllocLimit caps the number of live bytes. An allocation that would
// exceed the cap fails and returns the null handle.
// 0 means unlimited
func WithAllocLimit(bytes uintptr) Option {
	return func(o *options) {
		o.allocLimit = bytes
	}
}

// WithJournalSize sets how many of the most recent calls Events() keeps.
// Values below 1 disable the journal
func WithJournalSize(n int) Option {
	return func(o *options) {
		o.journalSize = n
	}
}

// WithBase sets the first address handed out. Must be non-zero
func WithBase(addr uintptr) Option {
	return func(o *options) {
		if addr != 0 {
			o.base = addr
		}
	}
}

func defaultOptions() options {
	return options{
		base:        defaultBase,
		journalSize: defaultJournalSize,
	}
}
