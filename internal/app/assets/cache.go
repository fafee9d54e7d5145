package assets

import (
	"container/list"
	"sync"
	"time"

	"github.com/consensys/gnark/backend/groth16"
	"golang.org/x/sync/singleflight"

	"github.com/zephis-org/zephis-core/pkg/logger"
)

// DefaultCacheCapacity bounds the number of compiled circuit shapes held in
// memory. Proving keys are large; an unbounded cache would let a stream of
// unusual data widths exhaust memory.
const DefaultCacheCapacity = 16

// Cache memoizes compiled assets by signature. Concurrent requests for the
// same signature share a single compilation; only successful compilations
// are retained. The key pairs outlive LRU eviction: proofs issued under a
// signature must keep verifying after its constraint system is recompiled.
type Cache struct {
	compiler Compiler
	capacity int
	log      *logger.Logger

	group singleflight.Group

	mu      sync.Mutex
	entries map[string]*list.Element
	order   *list.List // front = most recently used
	keys    map[string]keyPair
}

type keyPair struct {
	provingKey   groth16.ProvingKey
	verifyingKey groth16.VerifyingKey
}

type cacheItem struct {
	signature string
	entry     *Entry
	builtAt   time.Time
	lastUsed  time.Time
}

func NewCache(compiler Compiler, capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCacheCapacity
	}
	return &Cache{
		compiler: compiler,
		capacity: capacity,
		log:      logger.Default(),
		entries:  make(map[string]*list.Element),
		order:    list.New(),
		keys:     make(map[string]keyPair),
	}
}

// Get returns the compiled assets for the configuration, compiling them on
// first use.
func (c *Cache) Get(config CircuitConfig) (*Entry, error) {
	sig := config.Signature()

	if entry := c.lookup(sig); entry != nil {
		return entry, nil
	}

	v, err, shared := c.group.Do(sig, func() (interface{}, error) {
		// Double-check under the flight: a previous flight may have
		// populated the cache between lookup and Do.
		if entry := c.lookup(sig); entry != nil {
			return entry, nil
		}

		start := time.Now()
		entry, err := c.compiler.Compile(config)
		if err != nil {
			return nil, err
		}
		c.log.Infof("compiled circuit %s in %s", sig, time.Since(start).Round(time.Millisecond))

		c.adoptKeys(sig, entry)
		c.store(sig, entry)
		return entry, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		c.log.Debugf("shared in-flight compilation for %s", sig)
	}
	return v.(*Entry), nil
}

// Contains reports whether assets for the signature are cached, without
// triggering compilation.
func (c *Cache) Contains(sig string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[sig]
	return ok
}

// Len returns the number of cached asset sets.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// SweepOlderThan evicts entries not used within the given age and returns
// how many were dropped. Wired to a periodic job by the worker.
func (c *Cache) SweepOlderThan(age time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := time.Now().Add(-age)
	dropped := 0
	for el := c.order.Back(); el != nil; {
		item := el.Value.(*cacheItem)
		prev := el.Prev()
		if item.lastUsed.Before(cutoff) {
			c.order.Remove(el)
			delete(c.entries, item.signature)
			dropped++
		}
		el = prev
	}
	if dropped > 0 {
		c.log.Infof("swept %d idle circuit asset sets", dropped)
	}
	return dropped
}

// adoptKeys pins the first key pair set up for a signature. Compiling the
// same shape is deterministic, so a retained pair stays valid against a
// recompiled constraint system; a fresh setup would invalidate every proof
// issued under the old keys.
func (c *Cache) adoptKeys(sig string, entry *Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if kp, ok := c.keys[sig]; ok {
		entry.ProvingKey = kp.provingKey
		entry.VerifyingKey = kp.verifyingKey
		return
	}
	c.keys[sig] = keyPair{provingKey: entry.ProvingKey, verifyingKey: entry.VerifyingKey}
}

func (c *Cache) lookup(sig string) *Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.entries[sig]
	if !ok {
		return nil
	}
	item := el.Value.(*cacheItem)
	item.lastUsed = time.Now()
	c.order.MoveToFront(el)
	return item.entry
}

func (c *Cache) store(sig string, entry *Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[sig]; exists {
		return
	}

	now := time.Now()
	el := c.order.PushFront(&cacheItem{
		signature: sig,
		entry:     entry,
		builtAt:   now,
		lastUsed:  now,
	})
	c.entries[sig] = el

	for len(c.entries) > c.capacity {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		item := oldest.Value.(*cacheItem)
		c.order.Remove(oldest)
		delete(c.entries, item.signature)
		c.log.Infof("evicted circuit assets %s (cache at capacity %d)", item.signature, c.capacity)
	}
}
