package service

import (
	"sync"
	"time"

	"structify/internal/web/archive"

	"golang.org/x/sync/singleflight"
)

// ============================================================
// Artifact Cache
// ============================================================

type cachedSet struct {
	ref  string
	set  *archive.Set
	used time.Time
}

// ArtifactCache держит извлеченные артефакты текущего архива каждой сессии.
// Набор освобождается, когда ссылка на архив меняется, сессия очищается
// или набор не запрашивали дольше ttl (см. Sweep).
type ArtifactCache struct {
	ttl   time.Duration
	now   func() time.Time
	loads singleflight.Group

	mu      sync.Mutex
	entries map[string]*cachedSet
}

// NewArtifactCache ttl <= 0 отключает вытеснение по простою.
func NewArtifactCache(ttl time.Duration) *ArtifactCache {
	return &ArtifactCache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]*cachedSet),
	}
}

// Acquire возвращает набор для ref, загружая его при промахе.
// Загрузка идет без общей блокировки; параллельные запросы одного ref ждут одну загрузку.
func (c *ArtifactCache) Acquire(sessionID, ref string, load func() (*archive.Set, error)) (*archive.Set, error) {
	if set, ok := c.hit(sessionID, ref); ok {
		return set, nil
	}

	v, err, _ := c.loads.Do(sessionID+"|"+ref, func() (any, error) {
		if set, ok := c.hit(sessionID, ref); ok {
			return set, nil
		}
		set, err := load()
		if err != nil {
			return nil, err
		}
		c.install(sessionID, ref, set)
		return set, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*archive.Set), nil
}

func (c *ArtifactCache) hit(sessionID, ref string) (*archive.Set, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cur, ok := c.entries[sessionID]
	if !ok || cur.ref != ref || cur.set.Released() {
		return nil, false
	}
	cur.used = c.now()
	return cur.set, true
}

func (c *ArtifactCache) install(sessionID, ref string, set *archive.Set) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cur, ok := c.entries[sessionID]; ok && cur.set != set {
		cur.set.Release()
	}
	c.entries[sessionID] = &cachedSet{ref: ref, set: set, used: c.now()}
}

// Lookup возвращает набор, только если он загружен для ref.
func (c *ArtifactCache) Lookup(sessionID, ref string) (*archive.Set, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cur, ok := c.entries[sessionID]
	if !ok || cur.ref != ref || cur.set.Released() {
		return nil, false
	}
	return cur.set, true
}

// Release освобождает набор сессии.
func (c *ArtifactCache) Release(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cur, ok := c.entries[sessionID]; ok {
		cur.set.Release()
		delete(c.entries, sessionID)
	}
}

// Sweep освобождает наборы, к которым не обращались дольше ttl, и возвращает их число.
func (c *ArtifactCache) Sweep() int {
	if c.ttl <= 0 {
		return 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := c.now().Add(-c.ttl)
	evicted := 0
	for sessionID, cur := range c.entries {
		if cur.used.Before(cutoff) {
			cur.set.Release()
			delete(c.entries, sessionID)
			evicted++
		}
	}
	return evicted
}

// Len число сессий с загруженными артефактами.
func (c *ArtifactCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
