package com

import (
	"errors"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
)

func TestHRESULT(t *testing.T) {
	require := require.New(t)

	require.False(S_OK.Failed())
	require.False(S_FALSE.Failed())
	require.NoError(S_OK.Err())
	require.NoError(S_FALSE.Err())

	err := DISP_E_ARRAYISLOCKED.Err()
	require.Error(err)
	require.True(errors.Is(err, DISP_E_ARRAYISLOCKED))
	require.Equal("DISP_E_ARRAYISLOCKED (0x8002000D)", err.Error())

	var hr HRESULT
	require.True(errors.As(err, &hr))
	require.Equal(DISP_E_ARRAYISLOCKED, hr)

	require.Equal("HRESULT 0x80041234", HRESULT(0x80041234).Error())
}

func TestElemSize(t *testing.T) {
	cases := map[VarType]uintptr{
		VT_UI1:      1,
		VT_I2:       2,
		VT_BOOL:     2,
		VT_I4:       4,
		VT_R4:       4,
		VT_R8:       8,
		VT_CY:       8,
		VT_DATE:     8,
		VT_BSTR:     unsafe.Sizeof(uintptr(0)),
		VT_UNKNOWN:  unsafe.Sizeof(uintptr(0)),
		VT_DECIMAL:  16,
		VT_EMPTY:    0,
		VT_NULL:     0,
		VT_LPWSTR:   0,
		VT_ARRAY:    0,
		0x0fff:      0,
	}
	for vt, size := range cases {
		require.Equal(t, size, vt.ElemSize(), "vt %d", vt)
	}

	// VARIANT is 16 bytes on 32-bit platforms and 24 on 64-bit
	require.Equal(t, 2*unsafe.Sizeof(uintptr(0))+8, VT_VARIANT.ElemSize())
}
