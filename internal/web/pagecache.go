package web

import (
	"context"
	"sync"
	"time"

	appLog "bellsched/internal/log"
)

const feedPath = "/ical.ics"

type cachedPage struct {
	body        []byte
	contentType string
	updatedAt   time.Time
}

// PageCache keeps rendered day, week and feed responses keyed by page
// path until the importer invalidates them.
type PageCache struct {
	mu    sync.RWMutex
	pages map[string]cachedPage
}

func NewPageCache() *PageCache {
	return &PageCache{pages: make(map[string]cachedPage)}
}

func (c *PageCache) get(path string) (cachedPage, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.pages[path]
	return p, ok
}

func (c *PageCache) put(path, contentType string, body []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pages[path] = cachedPage{body: body, contentType: contentType, updatedAt: time.Now()}
}

// Invalidate drops paths. Any invalidation also drops the exported feed,
// which renders every day.
func (c *PageCache) Invalidate(_ context.Context, paths []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	dropped := 0
	for _, p := range paths {
		if _, ok := c.pages[p]; ok {
			delete(c.pages, p)
			dropped++
		}
	}
	if len(paths) > 0 {
		delete(c.pages, feedPath)
	}
	appLog.Debug("page cache invalidated", "paths", len(paths), "dropped", dropped)
	return nil
}
