// SPDX-License-Identifier: MPL-2.0

package archive

import (
	"errors"
	"io/fs"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/modist-io/modist/pkg/errkind"
)

// DefaultProbeCacheSize is the number of probe results kept by default.
const DefaultProbeCacheSize = 128

type (
	// ProbeCache remembers the outcome of VerifyIsArchive per file.
	//
	// Entries are keyed by absolute path, modification time and size, so a file
	// that is rewritten in place is probed again. Only conclusive outcomes are
	// stored: success, ErrNotAnArchive and ErrBadArchive. A ProbeCache is safe
	// for concurrent use.
	ProbeCache struct {
		entries *lru.Cache[probeKey, error]
	}

	probeKey struct {
		path    string
		modTime int64
		size    int64
	}
)

// NewProbeCache returns a cache holding at most size entries. Non-positive
// sizes select DefaultProbeCacheSize.
func NewProbeCache(size int) (*ProbeCache, error) {
	if size <= 0 {
		size = DefaultProbeCacheSize
	}
	entries, err := lru.New[probeKey, error](size)
	if err != nil {
		return nil, err
	}
	return &ProbeCache{entries: entries}, nil
}

// Len returns the number of cached outcomes.
func (c *ProbeCache) Len() int {
	return c.entries.Len()
}

// Purge drops every cached outcome.
func (c *ProbeCache) Purge() {
	c.entries.Purge()
}

func (c *ProbeCache) lookup(path string, info fs.FileInfo) (result error, ok bool) {
	return c.entries.Get(newProbeKey(path, info))
}

func (c *ProbeCache) store(path string, info fs.FileInfo, result error) {
	if result != nil && !errors.Is(result, errkind.ErrNotAnArchive) && !errors.Is(result, errkind.ErrBadArchive) {
		return
	}
	c.entries.Add(newProbeKey(path, info), result)
}

func newProbeKey(path string, info fs.FileInfo) probeKey {
	return probeKey{path: path, modTime: info.ModTime().UnixNano(), size: info.Size()}
}
