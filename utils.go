/*
 * Copyright (c) 2024-present Jeffrey M. Engelmann
 *
 * This source code is licensed under the MIT license found in the
 * LICENSE file in the root directory of this source tree.
 */

package commem

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/exp/slices"
)

var (
	m                sync.Mutex
	resourceCounters []func() uint64
	isDebug          atomic.Bool
	objAmounts       = map[string]int{}
	resourcesInUse   atomic.Int64
)

func init() {
	RegisterResourcesInUseCounter(func() uint64 { return uint64(resourcesInUse.Load()) })
}

// GetResourcesInUse returns the total amount of handles adopted by Unique and
// Shared and not released yet, plus whatever the registered counters report
// useful in tests
func GetResourcesInUse() uint64 {
	res := uint64(0)
	m.Lock()
	for _, rc := range resourceCounters {
		res += rc()
	}
	m.Unlock()
	return res
}

// RegisterResourcesInUseCounter registers a counter considered by GetResourcesInUse()
// useful if handles are also owned somewhere else (e.g. a cache of variants) and
// a single leak counter is wanted
// note: func counter must be thread-safe
func RegisterResourcesInUseCounter(rc func() uint64) {
	m.Lock()
	resourceCounters = append(resourceCounters, rc)
	m.Unlock()
}

// PrintNonReleased prints stacktraces that explain where handles were adopted but not released
// note: debug mode must be turned on by `commem.SetDebug(true)` call
func PrintNonReleased(w io.Writer) {
	nr := getNonReleased()
	if len(nr) == 0 {
		return
	}
	sites := make([]string, 0, len(nr))
	for st := range nr {
		sites = append(sites, st)
	}
	slices.Sort(sites)
	fmt.Fprintln(w, "handles adopted but not released:")
	for _, st := range sites {
		amount := nr[st]
		st = "\t" + strings.ReplaceAll(st, "\n", "\n\t")
		st = st[:len(st)-1]
		fmt.Fprintf(w, "%d not released, adopted at:\n%s", amount, st)
	}
}

// SetDebug switches debug mode. In debug mode every adoption records its call
// stack so PrintNonReleased() can explain leaks
// useful for investigations only, decreases performance
func SetDebug(debug bool) {
	isDebug.Store(debug)
}

func getNonReleased() map[string]int {
	m.Lock()
	res := map[string]int{}
	for k, v := range objAmounts {
		if v > 0 {
			res[k] = v
		}
	}
	m.Unlock()
	return res
}
