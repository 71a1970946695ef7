package metadata

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadMetadataAbsentReturnsEmpty(t *testing.T) {
	m := New(t.TempDir())
	md, err := m.ReadMetadata("org/foo/foo")
	require.NoError(t, err)
	assert.Empty(t, md.Versioning.Versions)
}

func TestAddVersionCreatesAndIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	m := New(dir)

	require.NoError(t, m.AddVersion("org/foo/foo", "org.foo", "foo", "1.0"))
	require.NoError(t, m.AddVersion("org/foo/foo", "org.foo", "foo", "1.0"))

	md, err := m.ReadMetadata("org/foo/foo")
	require.NoError(t, err)
	assert.Equal(t, []string{"1.0"}, md.Versioning.Versions)
	assert.Equal(t, "1.0", md.Versioning.Release)
	assert.NotEmpty(t, md.Versioning.LastUpdated)
}

func TestAddVersionMultipleComputesLatestAndRelease(t *testing.T) {
	dir := t.TempDir()
	m := New(dir)

	require.NoError(t, m.AddVersion("org/foo/foo", "org.foo", "foo", "1.0"))
	require.NoError(t, m.AddVersion("org/foo/foo", "org.foo", "foo", "2.0"))
	require.NoError(t, m.AddVersion("org/foo/foo", "org.foo", "foo", "2.0-SNAPSHOT"))

	md, err := m.ReadMetadata("org/foo/foo")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"1.0", "2.0", "2.0-SNAPSHOT"}, md.Versioning.Versions)
	assert.Equal(t, "2.0", md.Versioning.Release)
}

func TestRemoveVersion(t *testing.T) {
	dir := t.TempDir()
	m := New(dir)

	require.NoError(t, m.AddVersion("org/foo/foo", "org.foo", "foo", "1.0"))
	require.NoError(t, m.AddVersion("org/foo/foo", "org.foo", "foo", "2.0"))
	require.NoError(t, m.RemoveVersion("org/foo/foo", "1.0"))

	md, err := m.ReadMetadata("org/foo/foo")
	require.NoError(t, err)
	assert.Equal(t, []string{"2.0"}, md.Versioning.Versions)
}

func TestSidecarsMatchXMLBytes(t *testing.T) {
	dir := t.TempDir()
	m := New(dir)
	require.NoError(t, m.AddVersion("org/foo/foo", "org.foo", "foo", "1.0"))

	xmlPath := filepath.Join(dir, "org/foo/foo", fileName)
	body, err := os.ReadFile(xmlPath)
	require.NoError(t, err)

	md5sum, err := os.ReadFile(xmlPath + ".md5")
	require.NoError(t, err)
	sha1sum, err := os.ReadFile(xmlPath + ".sha1")
	require.NoError(t, err)

	assert.Equal(t, hexDigest("md5", body), string(md5sum))
	assert.Equal(t, hexDigest("sha1", body), string(sha1sum))
}

func TestReadMetadataCorrupt(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "org/foo/foo"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "org/foo/foo", fileName), []byte("not xml <<<"), 0o644))

	m := New(dir)
	_, err := m.ReadMetadata("org/foo/foo")
	require.Error(t, err)
	var target *ErrCorrupt
	assert.ErrorAs(t, err, &target)
}
