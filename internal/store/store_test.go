package store

import (
	"context"
	"errors"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bellsched/internal/model"
	"bellsched/internal/schedule"
)

func backends(t *testing.T) map[string]KV {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return map[string]KV{
		"memory": NewMemoryKV(),
		"redis":  NewRedisKV(client, "test:"),
	}
}

func la(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/Los_Angeles")
	require.NoError(t, err)
	return loc
}

func TestKV(t *testing.T) {
	ctx := context.Background()
	for name, kv := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, ok, err := kv.Get(ctx, "k")
			require.NoError(t, err)
			assert.False(t, ok)

			prev, existed, err := kv.SetGet(ctx, "k", "v1")
			require.NoError(t, err)
			assert.False(t, existed)
			assert.Empty(t, prev)

			prev, existed, err = kv.SetGet(ctx, "k", "v2")
			require.NoError(t, err)
			assert.True(t, existed)
			assert.Equal(t, "v1", prev)

			v, ok, err := kv.Get(ctx, "k")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, "v2", v)

			removed, err := kv.Del(ctx, "k")
			require.NoError(t, err)
			assert.True(t, removed)

			removed, err = kv.Del(ctx, "k")
			require.NoError(t, err)
			assert.False(t, removed)
		})
	}
}

func TestMemoryKV_TTL(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)
	kv := NewMemoryKV()
	kv.now = func() time.Time { return now }

	require.NoError(t, kv.Set(ctx, "a", "1", time.Minute))
	require.NoError(t, kv.Set(ctx, "b", "2", 0))
	assert.ElementsMatch(t, []string{"a", "b"}, kv.Keys())

	now = now.Add(time.Minute)
	_, ok, err := kv.Get(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, []string{"b"}, kv.Keys())
}

func TestRedisKV_PrefixAndTTL(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	kv := NewRedisKV(client, "bell:")
	require.NoError(t, kv.Set(ctx, "workflow:x", "{}", time.Hour))
	assert.True(t, mr.Exists("bell:workflow:x"))
	assert.Equal(t, time.Hour, mr.TTL("bell:workflow:x"))

	mr.FastForward(2 * time.Hour)
	_, ok, err := kv.Get(ctx, "workflow:x")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisKV_BackendFailure(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	mr.Close()

	_, _, err = NewRedisKV(client, "").Get(context.Background(), "day:2025-09-01")
	var serr *StoreError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, "get", serr.Op)
}

func TestOpenRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	kv, err := OpenRedis(context.Background(), "redis://"+mr.Addr()+"/0", "")
	require.NoError(t, err)
	assert.NoError(t, kv.Close())

	_, err = OpenRedis(context.Background(), "not-a-url", "")
	assert.Error(t, err)
}

func TestDays(t *testing.T) {
	ctx := context.Background()
	for name, kv := range backends(t) {
		t.Run(name, func(t *testing.T) {
			days := NewDays(kv, la(t))
			monday, ok := schedule.ForWeekday(time.Monday)
			require.True(t, ok)
			s := schedule.Normalize(monday.Schedule())

			changed, err := days.Set(ctx, "2025-09-08", &s)
			require.NoError(t, err)
			assert.True(t, changed, "first write")

			changed, err = days.Set(ctx, "2025-09-08", &s)
			require.NoError(t, err)
			assert.False(t, changed, "identical rewrite")

			withMsg := s.Clone()
			withMsg.Message = "Assembly"
			changed, err = days.Set(ctx, "2025-09-08", &withMsg)
			require.NoError(t, err)
			assert.True(t, changed, "message change")

			got, err := days.Get(ctx, "2025-09-08")
			require.NoError(t, err)
			assert.Equal(t, "Assembly", got.Message)
			require.Len(t, got.Periods, len(s.Periods))
			first := got.Periods[0]
			assert.Equal(t, 2025, first.Start.Year())
			assert.Equal(t, time.September, first.Start.Month())
			assert.Equal(t, 8, first.Start.Day())
			assert.Equal(t, s.Periods[0].Span.Start.Hour, first.Start.Hour())

			changed, err = days.Set(ctx, "2025-09-08", nil)
			require.NoError(t, err)
			assert.True(t, changed, "delete existing")

			changed, err = days.Set(ctx, "2025-09-08", nil)
			require.NoError(t, err)
			assert.False(t, changed, "delete missing")

			empty, err := days.Get(ctx, "2025-09-08")
			require.NoError(t, err)
			assert.Empty(t, empty.Periods)
			assert.Empty(t, empty.Message)
		})
	}
}

func TestDays_Week(t *testing.T) {
	ctx := context.Background()
	days := NewDays(NewMemoryKV(), la(t))
	s := model.Empty()
	s.Message = "No school"
	_, err := days.Set(ctx, "2025-09-10", &s)
	require.NoError(t, err)

	week, err := days.Week(ctx, "2025-09-12")
	require.NoError(t, err)
	require.Len(t, week, 7)
	assert.Equal(t, "2025-09-08", model.FormatDate(week[0].Date))
	assert.Equal(t, "2025-09-14", model.FormatDate(week[6].Date))
	assert.Equal(t, "No school", week[2].Message)

	_, err = days.Week(ctx, "09/12/2025")
	assert.Error(t, err)
}

func TestDays_CorruptValue(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	require.NoError(t, kv.Set(ctx, "day:2025-09-08", `{"periods":[{"type":"recess","interval":["08:00:00","09:00:00"]}]}`, 0))
	_, err := NewDays(kv, la(t)).Get(ctx, "2025-09-08")
	assert.Error(t, err)
}

func TestCalendarHash(t *testing.T) {
	ctx := context.Background()
	h := NewCalendarHash(NewMemoryKV())
	fp := Fingerprint([]byte("BEGIN:VCALENDAR"))
	assert.Len(t, fp, 64)
	assert.NotEqual(t, fp, Fingerprint([]byte("BEGIN:VCALENDAR ")))

	changed, err := h.Changed(ctx, fp)
	require.NoError(t, err)
	assert.True(t, changed)

	require.NoError(t, h.Store(ctx, fp))
	changed, err = h.Changed(ctx, fp)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestLLMCache(t *testing.T) {
	ctx := context.Background()
	c := NewLLMCache(NewMemoryKV())
	stub := model.EventStub{Title: "Minimum Day", Description: "Dismissal at 12:30", Date: "2025-10-03"}

	key := CacheKey(stub)
	assert.Regexp(t, `^llm-cache:2025-10-03:[0-9a-f]{16}$`, key)
	assert.NotEqual(t, key, CacheKey(model.EventStub{Title: "Minimum Day", Date: "2025-10-03"}))
	assert.NotEqual(t, key, CacheKey(model.EventStub{Title: "Minimum Day", Description: "Dismissal at 12:30", Date: "2025-10-04"}))

	_, ok, err := c.Get(ctx, stub)
	require.NoError(t, err)
	assert.False(t, ok)

	s := model.DailySchedule{
		Periods: []model.Period{schedule.InstructionalPeriod(1, "08:30:00", "09:00:00")},
		Message: "Minimum day",
	}
	require.NoError(t, c.Put(ctx, stub, s))
	got, ok, err := c.Get(ctx, stub)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, s, got)
}
