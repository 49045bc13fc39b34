//go:build windows

/*
 * Copyright (c) 2024-present Jeffrey M. Engelmann
 *
 * This source code is licensed under the MIT license found in the
 * LICENSE file in the root directory of this source tree.
 */

package commem

import "github.com/jme2041/commem/com"

func defaultPlatform() IPlatform {
	return com.System()
}
