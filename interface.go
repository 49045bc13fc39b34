/*
 * Copyright (c) 2024-present Jeffrey M. Engelmann
 *
 * This source code is licensed under the MIT license found in the
 * LICENSE file in the root directory of this source tree.
 */

package commem

import "github.com/jme2041/commem/com"

// Pointer is satisfied by pointer-shaped handle types only: the platform
// hands out "pointer to X" even when X is void. Instantiating a handle over
// anything else (int, string, a struct) does not compile
type Pointer interface {
	~uintptr
}

// IDeleter releases one kind of resource
// Implementations are stateless zero-size types, so the policy is carried by
// the Unique type itself: var d D; d.Delete(p)
// Delete must accept the null handle and do nothing
type IDeleter[T Pointer] interface {
	Delete(p T)
}

// IPlatform is the set of allocation and release functions the deleters call
// see SetPlatform()
type IPlatform = com.IPlatform
