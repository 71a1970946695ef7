package rangeio

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/lgulliver/vaultmvn/internal/apierr"
	"github.com/lgulliver/vaultmvn/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHeaderSentinelsDisableRanging(t *testing.T) {
	for _, h := range []string{"", "bytes=0/*", "bytes=0-", "bytes=0"} {
		_, ok, err := ParseHeader(h)
		require.NoError(t, err)
		assert.False(t, ok, "header %q should not be treated as a range request", h)
	}
}

func TestParseHeaderOffsetOnly(t *testing.T) {
	r, ok, err := ParseHeader("bytes=3-")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, types.ByteRange{Offset: 3, Limit: 0}, r)
	assert.True(t, r.ToEnd())
}

func TestParseHeaderOffsetAndEnd(t *testing.T) {
	r, ok, err := ParseHeader("bytes=3-9")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, types.ByteRange{Offset: 3, Limit: 10}, r)
}

func TestParseHeaderMultiRangeNotSupported(t *testing.T) {
	_, ok, err := ParseHeader("bytes=0-1,2-3")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAdapterRangeLength(t *testing.T) {
	a, err := NewAdapter(10, types.ByteRange{Offset: 3, Limit: 0})
	require.NoError(t, err)
	assert.EqualValues(t, 7, a.ContentLength())
	assert.Equal(t, "bytes 3-9/10", a.ContentRangeHeader())
}

func TestAdapterRangeUnsatisfiable(t *testing.T) {
	_, err := NewAdapter(10, types.ByteRange{Offset: 100, Limit: 0})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apierr.ErrRangeNotSatisfiable))
}

func TestAdapterWrapReturnsBoundedReaderAtOffset(t *testing.T) {
	src := bytes.NewReader([]byte("0123456789"))
	a, err := NewAdapter(10, types.ByteRange{Offset: 3, Limit: 0})
	require.NoError(t, err)

	wrapped, err := a.Wrap(src)
	require.NoError(t, err)

	data, err := io.ReadAll(wrapped)
	require.NoError(t, err)
	assert.Equal(t, "3456789", string(data))
}

func TestContentTypeClassification(t *testing.T) {
	assert.Equal(t, "text/plain", ContentType("org/foo/foo/1.0/foo-1.0.jar.sha1"))
	assert.Equal(t, "application/xml", ContentType("org/foo/foo/maven-metadata.xml"))
	assert.Equal(t, "application/octet-stream", ContentType("org/foo/foo/1.0/foo-1.0.jar"))
}
