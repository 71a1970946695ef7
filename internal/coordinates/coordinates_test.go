package coordinates

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name        string
		path        string
		shouldError bool
		wantGroup   string
		wantArtID   string
		wantVersion string
		wantExt     string
		wantClass   string
	}{
		{
			name:        "simple release jar",
			path:        "org/foo/foo/1.0/foo-1.0.jar",
			wantGroup:   "org.foo",
			wantArtID:   "foo",
			wantVersion: "1.0",
			wantExt:     "jar",
		},
		{
			name:        "classifier",
			path:        "org/foo/foo/1.0/foo-1.0-sources.jar",
			wantGroup:   "org.foo",
			wantArtID:   "foo",
			wantVersion: "1.0",
			wantExt:     "jar",
			wantClass:   "sources",
		},
		{
			name:        "checksum sidecar",
			path:        "org/foo/foo/1.0/foo-1.0.jar.sha1",
			wantGroup:   "org.foo",
			wantArtID:   "foo",
			wantVersion: "1.0",
			wantExt:     "sha1",
		},
		{
			name:        "snapshot",
			path:        "org/foo/foo/1.0-SNAPSHOT/foo-1.0-SNAPSHOT.jar",
			wantGroup:   "org.foo",
			wantArtID:   "foo",
			wantVersion: "1.0-SNAPSHOT",
			wantExt:     "jar",
		},
		{
			name:        "too few segments",
			path:        "foo-1.0.jar",
			shouldError: true,
		},
		{
			name:        "filename mismatch",
			path:        "org/foo/foo/1.0/bar-1.0.jar",
			shouldError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := Parse(tt.path)
			if tt.shouldError {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantGroup, c.GroupID)
			assert.Equal(t, tt.wantArtID, c.ArtifactID)
			assert.Equal(t, tt.wantVersion, c.Version)
			assert.Equal(t, tt.wantExt, c.Extension)
			assert.Equal(t, tt.wantClass, c.Classifier)
		})
	}
}

func TestIsSnapshot(t *testing.T) {
	assert.True(t, IsSnapshot("1.0-SNAPSHOT"))
	assert.True(t, IsSnapshot("1.0-20240102.030405-1"))
	assert.False(t, IsSnapshot("1.0"))
	assert.False(t, IsSnapshot("1.0-RC1"))
}

func TestIsChecksum(t *testing.T) {
	assert.True(t, IsChecksum("foo-1.0.jar.md5"))
	assert.True(t, IsChecksum("foo-1.0.jar.sha1"))
	assert.False(t, IsChecksum("foo-1.0.jar"))
}

func TestIsMetadata(t *testing.T) {
	assert.True(t, IsMetadata("org/foo/foo/maven-metadata.xml"))
	assert.True(t, IsMetadata("org/foo/foo/maven-metadata.xml.sha1"))
	assert.False(t, IsMetadata("org/foo/foo/1.0/foo-1.0.jar"))
}

func TestVersionDirAndArtifactDir(t *testing.T) {
	c, err := Parse("org/foo/foo/1.0/foo-1.0.jar")
	require.NoError(t, err)
	assert.Equal(t, "org/foo/foo/1.0", c.VersionDir())
	assert.Equal(t, "org/foo/foo", c.ArtifactDir())
}
