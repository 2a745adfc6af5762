package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	appLog "bellsched/internal/log"
	"bellsched/internal/model"
)

// LLMCache memoizes inferred schedules per date and event content, so an
// unchanged event never reaches the model twice.
type LLMCache struct {
	kv KV
}

func NewLLMCache(kv KV) *LLMCache { return &LLMCache{kv: kv} }

type cacheFingerprint struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// CacheKey returns llm-cache:<date>:<first 16 hex of sha256 of the
// event's title and description>.
func CacheKey(stub model.EventStub) string {
	data, _ := json.Marshal(cacheFingerprint{Title: stub.Title, Description: stub.Description})
	sum := sha256.Sum256(data)
	return fmt.Sprintf("%s%s:%s", LLMCachePrefix, stub.Date, hex.EncodeToString(sum[:])[:16])
}

// Get returns the cached schedule for stub. An entry that no longer
// decodes is treated as a miss.
func (c *LLMCache) Get(ctx context.Context, stub model.EventStub) (model.DailySchedule, bool, error) {
	key := CacheKey(stub)
	raw, ok, err := c.kv.Get(ctx, key)
	if err != nil || !ok {
		return model.DailySchedule{}, false, err
	}
	s, err := model.UnmarshalSchedule([]byte(raw))
	if err != nil {
		appLog.Warn("llm cache entry ignored", "key", key, "err", err)
		return model.DailySchedule{}, false, nil
	}
	return s, true, nil
}

func (c *LLMCache) Put(ctx context.Context, stub model.EventStub, s model.DailySchedule) error {
	data, err := s.Marshal()
	if err != nil {
		return fmt.Errorf("encode cached schedule: %w", err)
	}
	return c.kv.Set(ctx, CacheKey(stub), data, 0)
}
