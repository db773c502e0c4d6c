package result

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOkAndFail(t *testing.T) {
	ok := Ok(42)
	v, err := ok.Unwrap()
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	failed := Fail[int](Offline("no connection"))
	v, err = failed.Unwrap()
	require.Error(t, err)
	assert.Zero(t, v)
	assert.False(t, failed.OK)
	assert.Equal(t, CodeOffline, failed.Err.Code)
}

func TestFailWithNilErrorStillCarriesError(t *testing.T) {
	r := Fail[string](nil)
	require.NotNil(t, r.Err)
	assert.False(t, r.OK)
}

func TestHTTPUsesStatusTextWhenMessageMissing(t *testing.T) {
	err := HTTP(http.StatusBadGateway, "")
	assert.Equal(t, "502", err.Code)
	assert.Equal(t, http.StatusText(http.StatusBadGateway), err.Message)
}

func TestIsUnauthorizedWalksCauses(t *testing.T) {
	inner := HTTP(http.StatusUnauthorized, "token expired")
	outer := SyncAborted(1, 3, "L-002", inner)

	assert.True(t, IsUnauthorized(inner))
	assert.True(t, IsUnauthorized(outer))
	assert.True(t, HasCode(outer, CodeSyncAborted))
	assert.False(t, IsNotFound(outer))
	assert.False(t, IsUnauthorized(Network(errors.New("dial tcp: refused"))))
}

func TestNilErrorPointerIsNotUnauthorized(t *testing.T) {
	var e *Error
	assert.False(t, IsUnauthorized(e))
	assert.False(t, HasCode(e, CodeOffline))
}

func TestForwardKeepsError(t *testing.T) {
	src := Fail[[]string](LocalStorage(errors.New("disk full")))
	dst := Forward[int](src)
	assert.False(t, dst.OK)
	assert.Same(t, src.Err, dst.Err)
	re, ok := As(dst.Err)
	require.True(t, ok)
	assert.Equal(t, CodeLocalStorage, re.Code)
}
