// Package rangeio wraps a byte source with HTTP Range offset/limit
// accounting for partial-content responses.
package rangeio

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/lgulliver/vaultmvn/internal/apierr"
	"github.com/lgulliver/vaultmvn/internal/coordinates"
	"github.com/lgulliver/vaultmvn/pkg/types"
)

// sentinel header values that disable ranged handling even though they
// parse as a "bytes=" prefix — preserved exactly from the reference client
// behavior this adapter was ported from.
var sentinels = map[string]bool{
	"bytes=0/*": true,
	"bytes=0-":  true,
	"bytes=0":   true,
}

// ParseHeader parses a single-range "Range: bytes=offset-[limit]" header
// value. It returns ok=false (not an error) when header is empty, one of
// the disabling sentinel strings, or does not match the single-range form —
// callers should then serve the full body. A "bytes=" value whose offset or
// end is not a decimal integer (including the suffix form "bytes=-N") is
// reported as an error.
func ParseHeader(header string) (types.ByteRange, bool, error) {
	if header == "" || sentinels[header] {
		return types.ByteRange{}, false, nil
	}

	const prefix = "bytes="
	if !strings.HasPrefix(header, prefix) {
		return types.ByteRange{}, false, nil
	}
	spec := strings.TrimPrefix(header, prefix)
	if strings.Contains(spec, ",") {
		// multiple ranges: out of scope for this adapter's single-range path.
		return types.ByteRange{}, false, nil
	}

	parts := strings.SplitN(spec, "-", 2)
	if len(parts) != 2 {
		return types.ByteRange{}, false, nil
	}

	offset, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return types.ByteRange{}, false, fmt.Errorf("invalid range offset %q: %w", parts[0], err)
	}

	var limit int64
	if parts[1] != "" {
		end, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return types.ByteRange{}, false, fmt.Errorf("invalid range end %q: %w", parts[1], err)
		}
		limit = end + 1
	}

	return types.ByteRange{Offset: offset, Limit: limit}, true, nil
}

// Adapter positions a seekable source at a requested range and reports the
// headers needed to describe it.
type Adapter struct {
	length int64
	rang   types.ByteRange
}

// NewAdapter builds an Adapter for a source of the given total length.
// Returns ErrRangeNotSatisfiable if offset is at or past length.
func NewAdapter(length int64, r types.ByteRange) (*Adapter, error) {
	if r.Offset >= length {
		return nil, apierr.Wrap(apierr.ErrRangeNotSatisfiable, "offset %d >= length %d", r.Offset, length)
	}
	limit := r.Limit
	if limit == 0 {
		limit = length
	}
	if limit > length {
		limit = length
	}
	return &Adapter{length: length, rang: types.ByteRange{Offset: r.Offset, Limit: limit}}, nil
}

// Length returns the source's total length.
func (a *Adapter) Length() int64 { return a.length }

// CurrentRange exposes the active range for building response headers.
func (a *Adapter) CurrentRange() types.ByteRange { return a.rang }

// ContentLength returns the number of bytes the active range covers.
func (a *Adapter) ContentLength() int64 { return a.rang.Limit - a.rang.Offset }

// ContentRangeHeader builds the "Content-Range: bytes a-b/len" header value.
func (a *Adapter) ContentRangeHeader() string {
	return fmt.Sprintf("bytes %d-%d/%d", a.rang.Offset, a.rang.Limit-1, a.length)
}

// Wrap positions src at the active range's offset and returns a reader
// bounded to ContentLength bytes, for the HTTP layer to copy directly into
// a response body.
func (a *Adapter) Wrap(src io.ReadSeeker) (io.Reader, error) {
	if _, err := src.Seek(a.rang.Offset, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to seek to range offset %d: %w", a.rang.Offset, err)
	}
	return io.LimitReader(src, a.ContentLength()), nil
}

// ContentType classifies a repository-relative path per the on-disk layout:
// checksum sidecars are text, metadata is XML, everything else is opaque
// binary.
func ContentType(path string) string {
	switch {
	case coordinates.IsChecksum(path):
		return "text/plain"
	case coordinates.IsMetadata(path):
		return "application/xml"
	default:
		return "application/octet-stream"
	}
}
