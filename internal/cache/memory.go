package cache

import (
	"context"
	"sync"
	"time"

	"github.com/JM200322/proyecto-ocr-odoo/pkg/models"
)

// MemoryCache is the in-process fallback used when no Redis address is
// configured. Entries expire lazily on read.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

type memoryEntry struct {
	job     *models.ScanJob
	expires time.Time
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (c *MemoryCache) GetScan(_ context.Context, imageHash string) (*models.ScanJob, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[scanKey(imageHash)]
	if !ok {
		return nil, false, nil
	}
	if c.now().After(entry.expires) {
		delete(c.entries, scanKey(imageHash))
		return nil, false, nil
	}
	return cloneJob(entry.job), true, nil
}

func (c *MemoryCache) PutScan(_ context.Context, imageHash string, job *models.ScanJob) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[scanKey(imageHash)] = memoryEntry{
		job:     cloneJob(job),
		expires: c.now().Add(c.ttl),
	}
	return nil
}

func (c *MemoryCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]memoryEntry)
	return nil
}

// Len reports the number of stored entries, including any not yet expired.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
