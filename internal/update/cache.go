package update

import (
	"time"

	"github.com/coocood/freecache"
	json "github.com/goccy/go-json"
)

// minCacheBytes is the smallest segment size freecache accepts.
const minCacheBytes = 512 * 1024

// resultCache keeps recent successful check results keyed by current version.
type resultCache struct {
	cache *freecache.Cache
	ttl   int
}

func newResultCache(sizeBytes int, ttl time.Duration) *resultCache {
	if ttl <= 0 {
		return nil
	}
	if sizeBytes < minCacheBytes {
		sizeBytes = minCacheBytes
	}
	return &resultCache{
		cache: freecache.NewCache(sizeBytes),
		ttl:   max(int(ttl.Seconds()), 1),
	}
}

func (c *resultCache) get(currentVersion string) (UpdateCheckResult, bool) {
	if c == nil {
		return UpdateCheckResult{}, false
	}
	data, err := c.cache.Get([]byte(currentVersion))
	if err != nil {
		return UpdateCheckResult{}, false
	}
	var result UpdateCheckResult
	if err := json.Unmarshal(data, &result); err != nil {
		c.cache.Del([]byte(currentVersion))
		return UpdateCheckResult{}, false
	}
	return result, true
}

func (c *resultCache) set(currentVersion string, result UpdateCheckResult) {
	if c == nil {
		return
	}
	data, err := json.Marshal(result)
	if err != nil {
		return
	}
	_ = c.cache.Set([]byte(currentVersion), data, c.ttl)
}

func (c *resultCache) clear() {
	if c != nil {
		c.cache.Clear()
	}
}
