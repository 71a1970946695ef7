// Package coordinates parses and classifies Maven-style repository-relative
// artifact paths.
package coordinates

import (
	"fmt"
	"path"
	"regexp"
	"strings"
)

// Coordinates is the decomposition of a repository-relative path into Maven
// groupId/artifactId/version/classifier/extension.
type Coordinates struct {
	GroupID    string
	ArtifactID string
	Version    string
	Classifier string
	Extension  string
	Path       string
}

var snapshotTimestampRe = regexp.MustCompile(`\d{8}\.\d{6}-\d+$`)

// ErrInvalidCoordinates is returned when a path cannot be decomposed into
// Maven coordinates.
type ErrInvalidCoordinates struct {
	Path   string
	Reason string
}

func (e *ErrInvalidCoordinates) Error() string {
	return fmt.Sprintf("invalid coordinates for path %q: %s", e.Path, e.Reason)
}

// IsChecksum reports whether the path names a checksum sidecar file.
func IsChecksum(p string) bool {
	return strings.HasSuffix(p, ".md5") || strings.HasSuffix(p, ".sha1")
}

// IsMetadata reports whether the path's terminal filename is
// maven-metadata.xml, optionally followed by a checksum sidecar extension.
func IsMetadata(p string) bool {
	base := path.Base(p)
	base = strings.TrimSuffix(base, ".md5")
	base = strings.TrimSuffix(base, ".sha1")
	return base == "maven-metadata.xml"
}

// IsSnapshot reports whether a version string denotes a Maven snapshot:
// either the literal "-SNAPSHOT" suffix or a timestamped snapshot
// (\d{8}.\d{6}-\d+).
func IsSnapshot(version string) bool {
	if strings.HasSuffix(version, "-SNAPSHOT") {
		return true
	}
	return snapshotTimestampRe.MatchString(version)
}

// Parse decomposes a repository-relative artifact path into Coordinates.
// Fails with ErrInvalidCoordinates if the path has fewer than three segments
// or the filename does not match artifactId-version[...].ext[.algo].
func Parse(p string) (*Coordinates, error) {
	clean := strings.Trim(p, "/")
	segments := strings.Split(clean, "/")
	if len(segments) < 3 {
		return nil, &ErrInvalidCoordinates{Path: p, Reason: "fewer than three path segments"}
	}

	filename := segments[len(segments)-1]
	version := segments[len(segments)-2]
	artifactID := segments[len(segments)-3]
	groupID := strings.Join(segments[:len(segments)-3], ".")

	rest := filename
	var checksumExt string
	if IsChecksum(rest) {
		idx := strings.LastIndex(rest, ".")
		checksumExt = rest[idx+1:]
		rest = rest[:idx]
	}

	if !strings.HasPrefix(rest, artifactID+"-"+version) {
		return nil, &ErrInvalidCoordinates{Path: p, Reason: "filename does not match artifactId-version pattern"}
	}

	remainder := strings.TrimPrefix(rest, artifactID+"-"+version)
	dotIdx := strings.LastIndex(remainder, ".")
	if dotIdx < 0 {
		return nil, &ErrInvalidCoordinates{Path: p, Reason: "filename missing extension"}
	}
	fileExt := remainder[dotIdx+1:]
	classifier := strings.TrimPrefix(remainder[:dotIdx], "-")

	ext := fileExt
	if checksumExt != "" {
		ext = checksumExt
	}

	return &Coordinates{
		GroupID:    groupID,
		ArtifactID: artifactID,
		Version:    version,
		Classifier: classifier,
		Extension:  ext,
		Path:       p,
	}, nil
}

// IsSnapshot reports whether these coordinates name a snapshot version.
func (c *Coordinates) IsSnapshot() bool {
	return IsSnapshot(c.Version)
}

// IsChecksum reports whether these coordinates name a checksum sidecar.
func (c *Coordinates) IsChecksum() bool {
	return IsChecksum(c.Path)
}

// VersionDir returns the repository-relative directory holding this
// coordinate's version, e.g. "com/acme/foo/1.0".
func (c *Coordinates) VersionDir() string {
	return path.Join(strings.ReplaceAll(c.GroupID, ".", "/"), c.ArtifactID, c.Version)
}

// ArtifactDir returns the repository-relative directory holding all versions
// of this artifact, e.g. "com/acme/foo".
func (c *Coordinates) ArtifactDir() string {
	return path.Join(strings.ReplaceAll(c.GroupID, ".", "/"), c.ArtifactID)
}
