/*
 * Copyright (c) 2024-present Jeffrey M. Engelmann
 *
 * This source code is licensed under the MIT license found in the
 * LICENSE file in the root directory of this source tree.
 */

package commem

import "sync"

var (
	platform   IPlatform
	platformMu sync.RWMutex
)

// CurrentPlatform returns the platform the deleters release through.
// Defaults to the system platform on Windows and to an in-process emulation
// (package sim) elsewhere
func CurrentPlatform() IPlatform {
	platformMu.RLock()
	p := platform
	platformMu.RUnlock()
	if p != nil {
		return p
	}
	platformMu.Lock()
	defer platformMu.Unlock()
	if platform == nil {
		platform = defaultPlatform()
	}
	return platform
}

// SetPlatform makes p the platform for all subsequent releases and returns a
// func that restores the previous one.
// Handles adopted before the switch must be released on the platform that allocated them
func SetPlatform(p IPlatform) (restore func()) {
	if p == nil {
		panic("commem: nil platform")
	}
	prev := swapPlatform(p)
	return func() {
		SetPlatform(prev)
	}
}

func swapPlatform(p IPlatform) (prev IPlatform) {
	platformMu.Lock()
	defer platformMu.Unlock()
	prev = platform
	if prev == nil {
		prev = defaultPlatform()
	}
	platform = p
	return prev
}
