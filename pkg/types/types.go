// Package types holds the data model shared across the artifact repository
// server: storages, repositories, coordinates, and the small set of rows
// persisted to the audit/ownership database.
package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// JSONMap is a custom type that can handle JSON serialization for both PostgreSQL and SQLite
type JSONMap map[string]interface{}

// Value implements the driver.Valuer interface for GORM
func (j JSONMap) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Scan implements the sql.Scanner interface for GORM
func (j *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into JSONMap", value)
	}

	return json.Unmarshal(bytes, j)
}

// RepositoryType enumerates the backing strategies a Location Resolver knows
// how to serve.
type RepositoryType string

const (
	RepositoryTypeHosted RepositoryType = "hosted"
	RepositoryTypeGroup  RepositoryType = "group"
	RepositoryTypeProxy  RepositoryType = "proxy"
)

// RepositoryPolicy gates which artifact versions a hosted repository accepts.
type RepositoryPolicy string

const (
	PolicyRelease  RepositoryPolicy = "release"
	PolicySnapshot RepositoryPolicy = "snapshot"
	PolicyMixed    RepositoryPolicy = "mixed"
)

// Storage is a named container of repositories rooted at basedir.
type Storage struct {
	ID      string `yaml:"id"`
	BaseDir string `yaml:"basedir"`
}

// Repository describes one repository within a storage. Storages and
// repositories are assembled once at process init from configuration and are
// immutable for the process lifetime except for InService.
type Repository struct {
	ID                     string           `yaml:"id"`
	Type                   RepositoryType   `yaml:"type"`
	Policy                 RepositoryPolicy `yaml:"policy"`
	InService              bool             `yaml:"inService"`
	AllowsRedeployment     bool             `yaml:"allowsRedeployment"`
	ChecksumHeadersEnabled bool             `yaml:"checksumHeadersEnabled"`
	BaseDir                string           `yaml:"basedir"`
	GroupRepositories      []string         `yaml:"groupRepositories"`
}

// RepoKey uniquely identifies a repository within a storage.
type RepoKey struct {
	StorageID string
	RepoID    string
}

func (k RepoKey) String() string {
	return k.StorageID + "/" + k.RepoID
}

// User is the minimal principal record the HTTP authenticator attaches to a
// request context; this type is only what the core needs to attribute
// writes.
type User struct {
	ID        uuid.UUID `json:"id" gorm:"primaryKey"`
	Username  string    `json:"username" gorm:"uniqueIndex;not null"`
	Password  string    `json:"-" gorm:"not null"`
	IsAdmin   bool      `json:"is_admin" gorm:"default:false"`
	CreatedAt time.Time `json:"created_at"`
}

// BeforeCreate generates a UUID for the user ID
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// OperationLog is an audit trail row written by the Artifact Management
// Service façade for every store/delete/copy.
type OperationLog struct {
	ID         uuid.UUID  `json:"id" gorm:"primaryKey"`
	StorageID  string     `json:"storage_id" gorm:"not null"`
	RepoID     string     `json:"repo_id" gorm:"not null"`
	Path       string     `json:"path" gorm:"not null"`
	Operation  string     `json:"operation" gorm:"not null"` // store, delete (a copy is logged as a store into its destination)
	UserID     *uuid.UUID `json:"user_id"`
	Success    bool       `json:"success"`
	Error      string     `json:"error,omitempty"`
	DurationMS int64      `json:"duration_ms"`
	CreatedAt  time.Time  `json:"created_at"`
}

// BeforeCreate generates a UUID for the operation log ID
func (o *OperationLog) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

// RepositoryGrant records that a user is permitted to deploy into a
// repository. Consulted by the HTTP authenticator, not by the core
// validation pipeline — see internal/auth.
type RepositoryGrant struct {
	ID        uuid.UUID `json:"id" gorm:"primaryKey"`
	StorageID string    `json:"storage_id" gorm:"not null;index:idx_grant_repo"`
	RepoID    string    `json:"repo_id" gorm:"not null;index:idx_grant_repo"`
	UserID    uuid.UUID `json:"user_id" gorm:"not null;index:idx_grant_repo"`
	Role      string    `json:"role" gorm:"not null"` // deployer, admin
	GrantedBy uuid.UUID `json:"granted_by"`
	CreatedAt time.Time `json:"created_at"`
}

// BeforeCreate generates a UUID for the grant ID
func (g *RepositoryGrant) BeforeCreate(tx *gorm.DB) error {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	return nil
}

// ByteRange is an HTTP-style (offset, limit) window over an artifact's
// bytes. A limit of 0 denotes "to end of file".
type ByteRange struct {
	Offset int64
	Limit  int64
}

// ToEnd reports whether the range runs to the end of the underlying source.
func (r ByteRange) ToEnd() bool {
	return r.Limit == 0
}
