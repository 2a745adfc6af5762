package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
)

// CalendarHash remembers the fingerprint of the last fully imported feed.
type CalendarHash struct {
	kv KV
}

func NewCalendarHash(kv KV) *CalendarHash { return &CalendarHash{kv: kv} }

// Fingerprint is the hex sha256 of a raw feed body.
func Fingerprint(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// Changed reports whether fp differs from the stored fingerprint. With
// nothing stored every feed counts as changed.
func (c *CalendarHash) Changed(ctx context.Context, fp string) (bool, error) {
	prev, ok, err := c.kv.Get(ctx, CalendarKey)
	if err != nil {
		return false, err
	}
	return !ok || prev != fp, nil
}

func (c *CalendarHash) Store(ctx context.Context, fp string) error {
	return c.kv.Set(ctx, CalendarKey, fp, 0)
}
