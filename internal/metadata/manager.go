// Package metadata implements the per-directory maven-metadata.xml version
// index: load/persist, add-version-on-store, remove-version-on-delete, with
// atomic sidecar regeneration.
package metadata

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/lgulliver/vaultmvn/internal/checksum"
	"github.com/lgulliver/vaultmvn/internal/coordinates"
	"github.com/rs/zerolog/log"
)

// Level selects which fields are populated when persisting metadata.
type Level int

const (
	ArtifactRootLevel Level = iota
	VersionLevel
	PluginGroupLevel
)

// Metadata mirrors the Maven metadata.xml schema: root element "metadata"
// with children groupId, artifactId, versioning{latest?, release?,
// versions{version*}, lastUpdated}.
type Metadata struct {
	XMLName    xml.Name   `xml:"metadata"`
	GroupID    string     `xml:"groupId"`
	ArtifactID string     `xml:"artifactId,omitempty"`
	Versioning Versioning `xml:"versioning"`
}

// Versioning is the <versioning> child element.
type Versioning struct {
	Latest      string   `xml:"latest,omitempty"`
	Release     string   `xml:"release,omitempty"`
	Versions    []string `xml:"versions>version"`
	LastUpdated string   `xml:"lastUpdated"`
}

// ErrCorrupt is returned when an existing maven-metadata.xml cannot be
// parsed.
type ErrCorrupt struct {
	Dir string
	Err error
}

func (e *ErrCorrupt) Error() string {
	return fmt.Sprintf("metadata corrupt in %s: %v", e.Dir, e.Err)
}

func (e *ErrCorrupt) Unwrap() error { return e.Err }

const fileName = "maven-metadata.xml"

// Manager loads and persists directory metadata under one repository's
// basedir. A per-directory mutex serializes read-modify-write sequences;
// independent directories proceed in parallel.
type Manager struct {
	basedir string
	locks   sync.Map // dir string -> *sync.Mutex
}

// New creates a Manager rooted at basedir.
func New(basedir string) *Manager {
	return &Manager{basedir: basedir}
}

func (m *Manager) dirLock(dir string) *sync.Mutex {
	v, _ := m.locks.LoadOrStore(dir, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// ReadMetadata parses <basedir>/<dir>/maven-metadata.xml if present, and
// returns an empty Metadata if absent.
func (m *Manager) ReadMetadata(dir string) (*Metadata, error) {
	lock := m.dirLock(dir)
	lock.Lock()
	defer lock.Unlock()
	return m.readLocked(dir)
}

func (m *Manager) readLocked(dir string) (*Metadata, error) {
	path := filepath.Join(m.basedir, dir, fileName)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Metadata{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}

	var md Metadata
	if err := xml.Unmarshal(data, &md); err != nil {
		log.Error().Err(err).Str("dir", dir).Msg("maven-metadata.xml parse failed")
		return nil, &ErrCorrupt{Dir: dir, Err: err}
	}
	return &md, nil
}

// AddVersion records version as present under dir, creating the metadata
// file if it did not already exist. It is idempotent: storing the same
// version twice leaves exactly one entry in Versions.
func (m *Manager) AddVersion(dir, groupID, artifactID, version string) error {
	lock := m.dirLock(dir)
	lock.Lock()
	defer lock.Unlock()

	md, err := m.readLocked(dir)
	if err != nil {
		return err
	}

	md.GroupID = groupID
	md.ArtifactID = artifactID

	if !containsString(md.Versioning.Versions, version) {
		md.Versioning.Versions = append(md.Versioning.Versions, version)
	}
	md.Versioning.Latest = highestVersion(md.Versioning.Versions)
	md.Versioning.Release = highestReleaseVersion(md.Versioning.Versions)

	return m.writeLocked(dir, md, ArtifactRootLevel)
}

// RemoveVersion removes version from dir's metadata if present and rewrites
// the file at ArtifactRootLevel. If version is the last entry, the metadata
// still exists with an empty version list — the metadata file itself is
// never deleted here.
func (m *Manager) RemoveVersion(dir, version string) error {
	lock := m.dirLock(dir)
	lock.Lock()
	defer lock.Unlock()

	md, err := m.readLocked(dir)
	if err != nil {
		return err
	}

	md.Versioning.Versions = removeString(md.Versioning.Versions, version)
	md.Versioning.Latest = highestVersion(md.Versioning.Versions)
	md.Versioning.Release = highestReleaseVersion(md.Versioning.Versions)

	return m.writeLocked(dir, md, ArtifactRootLevel)
}

// StoreRaw parses an externally supplied maven-metadata.xml body and
// rewrites it (and its sidecars) at ArtifactRootLevel, re-deriving
// Latest/Release from the supplied version list.
func (m *Manager) StoreRaw(dir string, body []byte) error {
	lock := m.dirLock(dir)
	lock.Lock()
	defer lock.Unlock()

	var md Metadata
	if err := xml.Unmarshal(body, &md); err != nil {
		return &ErrCorrupt{Dir: dir, Err: err}
	}
	md.Versioning.Latest = highestVersion(md.Versioning.Versions)
	md.Versioning.Release = highestReleaseVersion(md.Versioning.Versions)

	return m.writeLocked(dir, &md, ArtifactRootLevel)
}

// writeLocked serializes md to maven-metadata.xml plus .md5/.sha1 sidecars,
// writing all three to temp names and renaming sidecars before the artifact
// file itself so a reader never observes an XML file whose sidecar digests
// disagree.
func (m *Manager) writeLocked(dir string, md *Metadata, level Level) error {
	md.Versioning.LastUpdated = time.Now().UTC().Format("20060102150405")
	if level == PluginGroupLevel {
		md.ArtifactID = ""
	}

	body, err := xml.MarshalIndent(md, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	body = append([]byte(xml.Header), body...)

	targetDir := filepath.Join(m.basedir, dir)
	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return fmt.Errorf("failed to create metadata directory: %w", err)
	}

	xmlPath := filepath.Join(targetDir, fileName)
	digests := map[checksum.Algorithm]string{
		checksum.MD5:  hexDigest(checksum.MD5, body),
		checksum.SHA1: hexDigest(checksum.SHA1, body),
	}

	for alg, digest := range digests {
		sidecarPath := xmlPath + "." + alg.Extension()
		if err := writeAtomic(sidecarPath, []byte(digest)); err != nil {
			return fmt.Errorf("failed to write %s sidecar: %w", alg, err)
		}
	}
	if err := writeAtomic(xmlPath, body); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}

	log.Info().Str("dir", dir).Int("versions", len(md.Versioning.Versions)).Msg("metadata stored")
	return nil
}

func writeAtomic(path string, content []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, content, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func hexDigest(alg checksum.Algorithm, content []byte) string {
	w, _ := checksum.NewDigestingWriter(discard{}, []checksum.Algorithm{alg})
	_, _ = w.Write(content)
	return w.Digests()[alg]
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func containsString(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}

func removeString(ss []string, s string) []string {
	out := ss[:0]
	for _, v := range ss {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}

func highestVersion(versions []string) string {
	if len(versions) == 0 {
		return ""
	}
	sorted := sortedBySemverOrString(versions)
	return sorted[len(sorted)-1]
}

func highestReleaseVersion(versions []string) string {
	var releases []string
	for _, v := range versions {
		if !coordinates.IsSnapshot(v) {
			releases = append(releases, v)
		}
	}
	if len(releases) == 0 {
		return ""
	}
	sorted := sortedBySemverOrString(releases)
	return sorted[len(sorted)-1]
}

// sortedBySemverOrString orders versions ascending using semantic-version
// comparison where possible, falling back to lexical ordering for
// non-semver qualifiers (timestamped snapshots, "RC1", etc).
func sortedBySemverOrString(versions []string) []string {
	out := make([]string, len(versions))
	copy(out, versions)

	sort.SliceStable(out, func(i, j int) bool {
		vi, erri := semver.NewVersion(out[i])
		vj, errj := semver.NewVersion(out[j])
		if erri == nil && errj == nil {
			return vi.LessThan(vj)
		}
		return out[i] < out[j]
	})
	return out
}
