// Package modelcache memoizes compiled cost models so that a gateway serving
// many requests against the same model source doesn't pay dsl.Compile's
// parse-and-validate cost on every request. It layers an in-memory LRU
// (golang-lru/v2) in front of an optional on-disk index (msgpack) that lets a
// freshly started process skip re-discovering which model/globals pairs are
// already known-good.
package modelcache

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack"

	"github.com/ccbrown/gqlcost/costmodel"
)

// Digest identifies a (model source, globals) pair. Two identical pairs
// always hash to the same Digest, regardless of load order.
type Digest string

// Key hashes a model source and its globals JSON into a Digest suitable for
// use as a cache key.
func Key(modelSource, globalsJSON string) Digest {
	h := sha256.New()
	h.Write([]byte(modelSource))
	h.Write([]byte{0})
	h.Write([]byte(globalsJSON))
	return Digest(hex.EncodeToString(h.Sum(nil)))
}

// entry is what the on-disk index persists per digest. It intentionally
// stores only the compiler's raw inputs rather than a serialized *dsl.Statement
// tree: expr.Expr and the vendored graphql/ast types are interface-heavy and
// don't round-trip through msgpack, so a warm disk index still pays one
// dsl.Compile per entry on load, but skips re-fetching model sources that a
// prior process already validated.
type entry struct {
	ModelSource string `msgpack:"model_source"`
	GlobalsJSON string `msgpack:"globals_json"`
}

// Cache is a two-level cache of compiled cost models: an in-memory LRU of
// *costmodel.CostModel, backed by an optional on-disk index of known-good
// (model, globals) pairs. Safe for concurrent use.
type Cache struct {
	mem      *lru.Cache[Digest, *costmodel.CostModel]
	diskPath string

	mu    sync.Mutex
	index map[Digest]entry
}

// New creates a Cache holding up to maxEntries compiled models in memory. If
// diskPath is non-empty, the on-disk index is loaded from it (if present) and
// persisted back to it as entries are added.
func New(maxEntries int, diskPath string) (*Cache, error) {
	mem, err := lru.New[Digest, *costmodel.CostModel](maxEntries)
	if err != nil {
		return nil, errors.Wrap(err, "modelcache: creating LRU")
	}

	c := &Cache{
		mem:      mem,
		diskPath: diskPath,
		index:    map[Digest]entry{},
	}

	if diskPath != "" {
		if err := c.loadDiskIndex(); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// Get returns the compiled model for (modelSource, globalsJSON), compiling
// and caching it if this is the first time this pair has been seen.
func (c *Cache) Get(modelSource, globalsJSON string) (*costmodel.CostModel, error) {
	digest := Key(modelSource, globalsJSON)

	if m, ok := c.mem.Get(digest); ok {
		return m, nil
	}

	m, err := costmodel.Compile(modelSource, globalsJSON)
	if err != nil {
		return nil, err
	}

	c.mem.Add(digest, m)
	c.recordDiskEntry(digest, modelSource, globalsJSON)

	return m, nil
}

func (c *Cache) recordDiskEntry(digest Digest, modelSource, globalsJSON string) {
	if c.diskPath == "" {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.index[digest]; ok {
		return
	}
	c.index[digest] = entry{ModelSource: modelSource, GlobalsJSON: globalsJSON}

	if err := c.saveDiskIndexLocked(); err != nil {
		// The in-memory cache is still correct; losing the disk index only
		// means the next process start recompiles everything from scratch.
		_ = err
	}
}

func (c *Cache) loadDiskIndex() error {
	b, err := os.ReadFile(c.diskPath)
	if os.IsNotExist(err) {
		return nil
	} else if err != nil {
		return errors.Wrap(err, "modelcache: reading disk index")
	}

	var entries map[Digest]entry
	if err := msgpack.Unmarshal(b, &entries); err != nil {
		return errors.Wrap(err, "modelcache: decoding disk index")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for digest, e := range entries {
		c.index[digest] = e
		if m, err := costmodel.Compile(e.ModelSource, e.GlobalsJSON); err == nil {
			c.mem.Add(digest, m)
		}
	}
	return nil
}

func (c *Cache) saveDiskIndexLocked() error {
	b, err := msgpack.Marshal(c.index)
	if err != nil {
		return errors.Wrap(err, "modelcache: encoding disk index")
	}
	return os.WriteFile(c.diskPath, b, 0o644)
}

// Len returns the number of models currently held in memory.
func (c *Cache) Len() int {
	return c.mem.Len()
}

// Purge discards every cached model from memory. The on-disk index, if any,
// is left untouched.
func (c *Cache) Purge() {
	c.mem.Purge()
}
