package commem

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jme2041/commem/com"
	"github.com/jme2041/commem/sim"
)

var bstrDeleter = BStringDeleter{}.Delete

// createBSTR returns a BSTR the way an API with an out parameter would
func createBSTR(p *sim.Platform, s string) (com.BSTR, error) {
	res := p.SysAllocString(s)
	if res == 0 {
		return 0, com.E_OUTOFMEMORY
	}
	return res, nil
}

func TestBStringUnique_DefaultConstruct(t *testing.T) {
	checkLeaks(t)
	var a UniqueBSTR
	require.False(t, a.Valid())
	require.NoError(t, a.Close())
}

func TestBStringUnique_FromNullptr(t *testing.T) {
	checkLeaks(t)
	a := NewUniqueBSTR(0)
	require.False(t, a.Valid())
	require.NoError(t, a.Close())
}

func TestBStringUnique_FromPointer(t *testing.T) {
	p := checkLeaks(t)
	require := require.New(t)
	a := NewUniqueBSTR(p.SysAllocString("ABCD"))
	h := a.Get()
	require.True(a.Valid())
	require.Equal("ABCD", p.SysString(h))
	require.EqualValues(4, p.SysStringLen(h))

	require.NoError(a.Close())
	require.Equal(1, p.Releases(sim.OpSysFreeString, uintptr(h)))
}

func TestBStringUnique_EmbeddedNUL(t *testing.T) {
	p := checkLeaks(t)
	a := NewUniqueBSTR(p.SysAllocString("AB\x00CD"))
	defer a.Close()
	require.EqualValues(t, 5, p.SysStringLen(a.Get()))
	require.Equal(t, "AB\x00CD", p.SysString(a.Get()))
}

func TestBStringUnique_MoveConstruct(t *testing.T) {
	p := checkLeaks(t)
	a := NewUniqueBSTR(p.SysAllocString("ABCD"))
	defer a.Close()
	h := a.Get()

	b := a.Move()
	require.False(t, a.Valid())
	require.Equal(t, "ABCD", p.SysString(b.Get()))
	require.NoError(t, b.Close())
	require.Equal(t, 1, p.Releases(sim.OpSysFreeString, uintptr(h)))
}

func TestBStringUnique_NullptrAssign(t *testing.T) {
	p := checkLeaks(t)
	a := NewUniqueBSTR(p.SysAllocString("ABCD"))
	a.Reset(0)
	require.False(t, a.Valid())
}

func TestBStringUnique_MoveAssign(t *testing.T) {
	p := checkLeaks(t)
	a := NewUniqueBSTR(p.SysAllocString("ABCD"))
	defer a.Close()
	b := NewUniqueBSTR(p.SysAllocString("EFGH"))
	defer b.Close()
	hb := b.Get()

	b.MoveFrom(a)
	require.False(t, a.Valid())
	require.Equal(t, "ABCD", p.SysString(b.Get()))
	require.Equal(t, 1, p.Releases(sim.OpSysFreeString, uintptr(hb)))
}

func TestBStringUnique_Get(t *testing.T) {
	p := checkLeaks(t)
	a := NewUniqueBSTR(p.SysAllocString("ABCD"))
	defer a.Close()

	b := a.Get() // not to be released by the caller
	require.Equal(t, "ABCD", p.SysString(b))
}

func TestBStringUnique_ResetOrig(t *testing.T) {
	p := checkLeaks(t)
	var a UniqueBSTR
	defer a.Close()
	a.Reset(p.SysAllocString("ABCD"))
	require.Equal(t, "ABCD", p.SysString(a.Get()))
}

func TestBStringUnique_ResetReplace(t *testing.T) {
	p := checkLeaks(t)
	a := NewUniqueBSTR(p.SysAllocString("ABCD"))
	defer a.Close()
	old := a.Get()

	a.Reset(p.SysAllocString("EFGH"))
	require.Equal(t, "EFGH", p.SysString(a.Get()))
	require.Equal(t, 1, p.Releases(sim.OpSysFreeString, uintptr(old)))
}

func TestBStringUnique_Release(t *testing.T) {
	p := checkLeaks(t)
	a := NewUniqueBSTR(p.SysAllocString("ABCD"))

	b := a.Detach()
	require.False(t, a.Valid())
	require.NoError(t, a.Close())
	require.Zero(t, p.Releases(sim.OpSysFreeString, uintptr(b)))

	require.Equal(t, "ABCD", p.SysString(b))
	p.SysFreeString(b) // the caller owns b now
}

func TestBStringUnique_Swap(t *testing.T) {
	p := checkLeaks(t)
	require := require.New(t)
	a := NewUniqueBSTR(p.SysAllocString("ABCD"))
	defer a.Close()
	pa := a.Get()
	b := NewUniqueBSTR(p.SysAllocString("EFGH"))
	defer b.Close()
	pb := b.Get()

	a.Swap(b)
	require.Equal(pb, a.Get())
	require.Equal("EFGH", p.SysString(a.Get()))
	require.Equal(pa, b.Get())
	require.Equal("ABCD", p.SysString(b.Get()))
}

func TestBStringUnique_PutReplace(t *testing.T) {
	p := checkLeaks(t)
	a := NewUniqueBSTR(p.SysAllocString("ABCD"))
	defer a.Close()

	tmp, err := createBSTR(p, "EFGH")
	require.NoError(t, err)
	a.Reset(tmp)
	require.Equal(t, "EFGH", p.SysString(a.Get()))
}

func TestBStringUnique_Copy(t *testing.T) {
	p := checkLeaks(t)
	require := require.New(t)
	a := NewUniqueBSTR(p.SysAllocString("ABCD"))
	defer a.Close()

	// a BSTR is copied by allocating a new one with the same content
	b := NewUniqueBSTR(p.SysAllocString(p.SysString(a.Get())))
	defer b.Close()
	require.NotEqual(a.Get(), b.Get())
	require.Equal(p.SysString(a.Get()), p.SysString(b.Get()))

	b.Reset(p.SysAllocString("EFGH"))
	require.NotEqual(p.SysString(a.Get()), p.SysString(b.Get()))
}

func TestBStringUnique_WrongDeleterPanics(t *testing.T) {
	p := checkLeaks(t)
	s := p.SysAllocString("ABCD")
	defer p.SysFreeString(s)

	// a BSTR is not the start of a task memory block
	require.Panics(t, func() { HeapDeleter[com.BSTR]{}.Delete(s) })
	require.Equal(t, "ABCD", p.SysString(s))
}

func TestBStringShared_FromNullptr(t *testing.T) {
	checkLeaks(t)
	a := NewShared(com.BSTR(0), bstrDeleter)
	defer a.Close()
	require.False(t, a.Valid())
	require.EqualValues(t, 1, a.UseCount())
}

func TestBStringShared_FromPointer(t *testing.T) {
	p := checkLeaks(t)
	a := NewShared(p.SysAllocString("ABCD"), bstrDeleter)
	h := a.Get()
	require.Equal(t, "ABCD", p.SysString(h))
	require.EqualValues(t, 1, a.UseCount())
	require.NoError(t, a.Close())
	require.Equal(t, 1, p.Releases(sim.OpSysFreeString, uintptr(h)))
}

func TestBStringShared_CopyConstruct(t *testing.T) {
	p := checkLeaks(t)
	require := require.New(t)
	a := NewShared(p.SysAllocString("ABCD"), bstrDeleter)
	h := a.Get()

	b := a.Clone()
	require.True(a.Equal(b))
	require.EqualValues(2, a.UseCount())
	require.EqualValues(2, b.UseCount())

	require.NoError(a.Close())
	require.Zero(p.Releases(sim.OpSysFreeString, uintptr(h)))
	require.Equal("ABCD", p.SysString(b.Get()))
	require.NoError(b.Close())
	require.Equal(1, p.Releases(sim.OpSysFreeString, uintptr(h)))
}

func TestBStringShared_MoveConstruct(t *testing.T) {
	p := checkLeaks(t)
	a := NewShared(p.SysAllocString("ABCD"), bstrDeleter)
	b := a.Move()
	defer b.Close()
	require.Zero(t, a.UseCount())
	require.EqualValues(t, 1, b.UseCount())
}

func TestBStringShared_UniquePtrConstruct(t *testing.T) {
	p := checkLeaks(t)
	a := NewUniqueBSTR(p.SysAllocString("ABCD"))
	h := a.Get()

	b := SharedFromUnique(a)
	require.False(t, a.Valid())
	require.EqualValues(t, 1, b.UseCount())
	require.NoError(t, b.Close())
	require.Equal(t, 1, p.Releases(sim.OpSysFreeString, uintptr(h)))
}

func TestBStringShared_NullptrAssign(t *testing.T) {
	p := checkLeaks(t)
	a := NewShared(p.SysAllocString("ABCD"), bstrDeleter)
	a.Reset()
	require.False(t, a.Valid())
	require.Zero(t, a.UseCount())
}

func TestBStringShared_CopyAssign(t *testing.T) {
	p := checkLeaks(t)
	a := NewShared(p.SysAllocString("ABCD"), bstrDeleter)
	defer a.Close()
	b := NewShared(p.SysAllocString("EFGH"), bstrDeleter)
	defer b.Close()

	b.Assign(a)
	require.Equal(t, "ABCD", p.SysString(b.Get()))
	require.EqualValues(t, 2, a.UseCount())
	require.EqualValues(t, 2, b.UseCount())
}

func TestBStringShared_MoveAssign(t *testing.T) {
	p := checkLeaks(t)
	a := NewShared(p.SysAllocString("ABCD"), bstrDeleter)
	defer a.Close()
	b := NewShared(p.SysAllocString("EFGH"), bstrDeleter)
	defer b.Close()

	b.MoveFrom(a)
	require.Equal(t, "ABCD", p.SysString(b.Get()))
	require.EqualValues(t, 1, b.UseCount())
	require.Zero(t, a.UseCount())
}

func TestBStringShared_UniquePtrAssign(t *testing.T) {
	p := checkLeaks(t)
	a := NewUniqueBSTR(p.SysAllocString("ABCD"))
	b := NewShared(p.SysAllocString("EFGH"), bstrDeleter)
	defer b.Close()

	AssignUnique(b, a)
	require.False(t, a.Valid())
	require.Equal(t, "ABCD", p.SysString(b.Get()))
	require.EqualValues(t, 1, b.UseCount())

	// an empty unique handle empties the shared one
	AssignUnique(b, a)
	require.Zero(t, b.UseCount())
}

func TestBStringShared_ResetReplace(t *testing.T) {
	p := checkLeaks(t)
	a := NewShared(p.SysAllocString("ABCD"), bstrDeleter)
	defer a.Close()

	a.ResetWith(p.SysAllocString("EFGH"), bstrDeleter)
	require.Equal(t, "EFGH", p.SysString(a.Get()))
	require.EqualValues(t, 1, a.UseCount())
}

func TestBStringShared_Swap(t *testing.T) {
	p := checkLeaks(t)
	a := NewShared(p.SysAllocString("ABCD"), bstrDeleter)
	defer a.Close()
	b := NewShared(p.SysAllocString("EFGH"), bstrDeleter)
	defer b.Close()
	c := b.Clone()
	defer c.Close()

	a.Swap(b)
	require.Equal(t, "EFGH", p.SysString(a.Get()))
	require.Equal(t, "ABCD", p.SysString(b.Get()))
	require.EqualValues(t, 2, a.UseCount())
	require.EqualValues(t, 1, b.UseCount())
}
