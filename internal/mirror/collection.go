package mirror

import (
	"strconv"
	"sync"

	"github.com/talkincode/shopsync/pkg/common"
)

// Collection is an ordered set of entities where every entry has one canonical
// key and any number of external aliases (provisional and store assigned ids).
type Collection[T any] struct {
	mu         sync.RWMutex
	identities func(T) []string
	entries    map[string]*entry[T]
	order      []string
	aliases    map[string]string
	seq        uint64

	// keys of entries removed locally whose create may still echo back
	tombstones map[string]struct{}
}

type entry[T any] struct {
	key     string
	item    T
	aliases []string
}

// NewCollection creates a collection that reads external keys with identities
func NewCollection[T any](identities func(T) []string) *Collection[T] {
	return &Collection[T]{
		identities: identities,
		entries:    make(map[string]*entry[T]),
		aliases:    make(map[string]string),
		tombstones: make(map[string]struct{}),
	}
}

func (c *Collection[T]) keysOf(item T, extra ...string) []string {
	var keys []string
	for _, k := range append(c.identities(item), extra...) {
		if k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

// lookup returns the canonical key any of keys resolves to
func (c *Collection[T]) lookup(keys []string) (string, bool) {
	for _, k := range keys {
		if canon, ok := c.aliases[k]; ok {
			return canon, true
		}
	}
	return "", false
}

func (c *Collection[T]) insert(item T, keys []string) string {
	c.seq++
	canon := "c" + strconv.FormatUint(c.seq, 10)
	e := &entry[T]{key: canon, item: item}
	c.entries[canon] = e
	c.order = append(c.order, canon)
	c.bind(e, keys)
	return canon
}

func (c *Collection[T]) bind(e *entry[T], keys []string) {
	for _, k := range keys {
		if c.aliases[k] == e.key {
			continue
		}
		c.aliases[k] = e.key
		e.aliases = append(e.aliases, k)
	}
}

func (c *Collection[T]) remove(canon string) {
	e, ok := c.entries[canon]
	if !ok {
		return
	}
	for _, k := range e.aliases {
		if c.aliases[k] == canon {
			delete(c.aliases, k)
		}
	}
	delete(c.entries, canon)
	for i, k := range c.order {
		if k == canon {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// Replace drops every entry and loads items, used for bulk fetches
func (c *Collection[T]) Replace(items []T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry[T], len(items))
	c.aliases = make(map[string]string, len(items))
	c.tombstones = make(map[string]struct{})
	c.order = c.order[:0]
	for _, item := range items {
		keys := c.keysOf(item)
		if _, dup := c.lookup(keys); dup {
			continue
		}
		c.insert(item, keys)
	}
}

// Add appends item unless any of its identities or extra aliases is already
// known. It returns false when the item was discarded as a duplicate.
func (c *Collection[T]) Add(item T, extra ...string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := c.keysOf(item, extra...)
	if _, dup := c.lookup(keys); dup {
		return false
	}
	c.insert(item, keys)
	return true
}

// Update replaces the entry matched by any identity of item. Unknown items are ignored.
func (c *Collection[T]) Update(item T) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := c.keysOf(item)
	canon, ok := c.lookup(keys)
	if !ok {
		return false
	}
	e := c.entries[canon]
	e.item = item
	c.bind(e, keys)
	return true
}

// Modify applies fn to the entry known by key and returns the new value
func (c *Collection[T]) Modify(key string, fn func(*T) error) (T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var zero T
	canon, ok := c.aliases[key]
	if !ok {
		return zero, errNotInMirror
	}
	e := c.entries[canon]
	next := e.item
	if err := fn(&next); err != nil {
		return zero, err
	}
	e.item = next
	return next, nil
}

// Remove deletes the entry known by key under any alias. Its provisional
// aliases are buried so a late create echo stays out.
func (c *Collection[T]) Remove(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	canon, ok := c.aliases[key]
	if !ok {
		return false
	}
	for _, k := range c.entries[canon].aliases {
		if common.IsProvisional(k) {
			c.tombstones[k] = struct{}{}
		}
	}
	c.remove(canon)
	return true
}

// Forget removes the entry known by key after the store deleted it and
// clears the tombstone of key
func (c *Collection[T]) Forget(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.tombstones, key)
	canon, ok := c.aliases[key]
	if !ok {
		return false
	}
	c.remove(canon)
	return true
}

// Bury keeps the added echo of keys out of the collection after a local
// delete raced their create
func (c *Collection[T]) Bury(keys ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		if k != "" {
			c.tombstones[k] = struct{}{}
		}
	}
}

// Buried reports whether key holds a tombstone
func (c *Collection[T]) Buried(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.tombstones[key]
	return ok
}

// Bind attaches the identities of item to the entry known by alias and
// replaces its data. A separate entry already holding one of those identities
// is merged away. It returns false when alias is unknown.
func (c *Collection[T]) Bind(alias string, item T) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	canon, ok := c.aliases[alias]
	if !ok {
		return false
	}
	c.bindTo(canon, item)
	return true
}

func (c *Collection[T]) bindTo(canon string, item T) {
	keys := c.keysOf(item)
	for _, k := range keys {
		if other, ok := c.aliases[k]; ok && other != canon {
			c.remove(other)
		}
	}
	e := c.entries[canon]
	e.item = item
	c.bind(e, keys)
}

// Upsert reconciles an added item. A ref naming a live entry binds the item to
// it, a buried ref or identity discards the item and consumes the tombstone,
// and otherwise the item is added unless one of its identities is already known.
func (c *Collection[T]) Upsert(item T, ref string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ref != "" {
		if canon, ok := c.aliases[ref]; ok {
			c.bindTo(canon, item)
			return true
		}
	}
	keys := c.keysOf(item)
	if c.consumeTombstone(append([]string{ref}, keys...)) {
		return false
	}
	if _, dup := c.lookup(keys); dup {
		return false
	}
	if ref != "" {
		keys = append(keys, ref)
	}
	c.insert(item, keys)
	return true
}

func (c *Collection[T]) consumeTombstone(keys []string) bool {
	found := false
	for _, k := range keys {
		if _, ok := c.tombstones[k]; ok && k != "" {
			found = true
		}
	}
	if found {
		for _, k := range keys {
			delete(c.tombstones, k)
		}
	}
	return found
}

// Get returns the item known by key under any alias
func (c *Collection[T]) Get(key string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var zero T
	canon, ok := c.aliases[key]
	if !ok {
		return zero, false
	}
	return c.entries[canon].item, true
}

// Has reports whether key is a known alias
func (c *Collection[T]) Has(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.aliases[key]
	return ok
}

// Canonical returns the canonical key behind an alias
func (c *Collection[T]) Canonical(key string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	canon, ok := c.aliases[key]
	return canon, ok
}

// Aliases returns every external key of the entry known by key
func (c *Collection[T]) Aliases(key string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	canon, ok := c.aliases[key]
	if !ok {
		return nil
	}
	return append([]string(nil), c.entries[canon].aliases...)
}

// List returns the items in insertion order
func (c *Collection[T]) List() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]T, 0, len(c.order))
	for _, k := range c.order {
		out = append(out, c.entries[k].item)
	}
	return out
}

func (c *Collection[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.order)
}
