package importer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bellsched/internal/ai"
	"bellsched/internal/ics"
	"bellsched/internal/model"
	"bellsched/internal/schedule"
	"bellsched/internal/store"
)

const weekFeed = `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//test//EN
BEGIN:VEVENT
UID:mon
DTSTART;VALUE=DATE:20250908
DTEND;VALUE=DATE:20250909
SUMMARY:Monday Schedule
END:VEVENT
BEGIN:VEVENT
UID:tue
DTSTART;VALUE=DATE:20250909
DTEND;VALUE=DATE:20250910
SUMMARY:Monday Schedule
END:VEVENT
BEGIN:VEVENT
UID:wed
DTSTART;VALUE=DATE:20250910
DTEND;VALUE=DATE:20250911
SUMMARY:Minimum Day
DESCRIPTION:8:30-12:00
END:VEVENT
END:VCALENDAR
`

type fakeFetcher struct {
	mu    sync.Mutex
	body  string
	err   error
	calls int
}

func (f *fakeFetcher) Fetch(context.Context, string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []byte(strings.ReplaceAll(f.body, "\n", "\r\n")), nil
}

type fakeInferer struct {
	mu    sync.Mutex
	err   error
	calls []model.EventStub
	used  [][]model.UsedMessage
}

var minimumDay = model.DailySchedule{
	Periods: []model.Period{
		schedule.InstructionalPeriod(1, "08:30:00", "09:30:00"),
		schedule.PassingPeriod("09:30:00", "09:40:00"),
		schedule.InstructionalPeriod(2, "09:40:00", "10:40:00"),
	},
	Message: "Minimum Day",
}

func (f *fakeInferer) Infer(_ context.Context, stub model.EventStub, used []model.UsedMessage) (model.DailySchedule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, stub)
	f.used = append(f.used, used)
	if f.err != nil {
		return model.DailySchedule{}, f.err
	}
	return minimumDay, nil
}

type recordingInvalidator struct {
	paths []string
}

func (r *recordingInvalidator) Invalidate(_ context.Context, paths []string) error {
	r.paths = append(r.paths, paths...)
	return nil
}

type fixture struct {
	kv       *store.MemoryKV
	days     *store.Days
	fetcher  *fakeFetcher
	inferer  *fakeInferer
	inv      *recordingInvalidator
	importer *Importer
}

func newFixture(t *testing.T, feed string) *fixture {
	t.Helper()
	loc, err := time.LoadLocation("America/Los_Angeles")
	require.NoError(t, err)
	year, err := model.NewSchoolYear("2025-09-08", "2025-09-15", false, loc)
	require.NoError(t, err)

	f := &fixture{
		kv:      store.NewMemoryKV(),
		fetcher: &fakeFetcher{body: feed},
		inferer: &fakeInferer{},
		inv:     &recordingInvalidator{},
	}
	f.days = store.NewDays(f.kv, loc)
	f.importer = New(Config{CalendarURL: "https://calendar.test/basic.ics", SchoolYear: year}, f.kv, f.fetcher, f.inferer, f.inv)
	return f
}

func (f *fixture) seed(t *testing.T, date, message string) {
	t.Helper()
	s := model.Empty()
	s.Message = message
	_, err := f.days.Set(context.Background(), date, &s)
	require.NoError(t, err)
}

func TestRun_EndToEnd(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, weekFeed)
	f.seed(t, "2025-09-12", "Stale")

	sum, err := f.importer.Run(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, sum.RunID)
	assert.True(t, sum.Imported)
	assert.Equal(t, 3, sum.TotalEvents)
	assert.Equal(t, 1, sum.LLMEvents)
	assert.Equal(t, []string{"2025-09-08", "2025-09-09", "2025-09-10", "2025-09-12"}, sum.ChangedDates)
	assert.Empty(t, sum.FailedDates)
	assert.Equal(t, "Calendar imported successfully (3 events processed, 1 needed LLM processing)", sum.Message)

	// Standard template used off its weekday carries the display name.
	tue, err := f.days.Get(ctx, "2025-09-09")
	require.NoError(t, err)
	assert.Equal(t, "Monday schedule", tue.Message)
	mon, err := f.days.Get(ctx, "2025-09-08")
	require.NoError(t, err)
	assert.Empty(t, mon.Message)
	assert.Len(t, mon.Periods, len(tue.Periods))

	wed, err := f.days.Get(ctx, "2025-09-10")
	require.NoError(t, err)
	assert.Equal(t, "Minimum Day", wed.Message)

	stale, err := f.days.Get(ctx, "2025-09-12")
	require.NoError(t, err)
	assert.Empty(t, stale.Message)

	require.Len(t, f.inferer.calls, 1)
	assert.Equal(t, "8:30-12:00", f.inferer.calls[0].Description)

	assert.ElementsMatch(t, []string{
		"/day/2025-09-08", "/day/2025-09-09", "/day/2025-09-10", "/day/2025-09-12",
		"/week/2025-09-08",
	}, f.inv.paths)

	// Unchanged feed: nothing is rewritten and the model is not asked again.
	f.inv.paths = nil
	again, err := f.importer.Run(ctx)
	require.NoError(t, err)
	assert.False(t, again.Imported)
	assert.Empty(t, again.ChangedDates)
	assert.Equal(t, "Calendar unchanged, skipping import", again.Message)
	assert.Len(t, f.inferer.calls, 1)
	assert.Empty(t, f.inv.paths)
}

func TestRun_ChangedFeedWithSameContent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, weekFeed)
	_, err := f.importer.Run(ctx)
	require.NoError(t, err)

	// A cosmetic feed change re-runs the import but no day changes.
	f.fetcher.body = strings.Replace(weekFeed, "PRODID:-//test//EN", "PRODID:-//test//v2//EN", 1)
	f.inv.paths = nil
	sum, err := f.importer.Run(ctx)
	require.NoError(t, err)
	assert.True(t, sum.Imported)
	assert.Empty(t, sum.ChangedDates)
	assert.Empty(t, f.inv.paths)
}

func TestRun_UsedMessagesThreaded(t *testing.T) {
	feed := strings.Replace(weekFeed, "SUMMARY:Monday Schedule\nEND:VEVENT\nBEGIN:VEVENT\nUID:wed", "SUMMARY:Rally\nEND:VEVENT\nBEGIN:VEVENT\nUID:wed", 1)
	f := newFixture(t, feed)

	sum, err := f.importer.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, sum.LLMEvents)

	require.Len(t, f.inferer.calls, 2)
	assert.Equal(t, "2025-09-09", f.inferer.calls[0].Date)
	assert.Equal(t, "2025-09-10", f.inferer.calls[1].Date)
	assert.Empty(t, f.inferer.used[0])
	assert.Equal(t, []model.UsedMessage{{Date: "2025-09-09", InputTitle: "Rally", OutputMessage: "Minimum Day"}}, f.inferer.used[1])
}

func TestRun_FailedInferenceKeepsDayAndRetries(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, weekFeed)
	f.seed(t, "2025-09-10", "Previous")
	f.inferer.err = &ai.InferenceError{Date: "2025-09-10", Attempts: 6, Err: errors.New("bad output")}

	sum, err := f.importer.Run(ctx)
	require.NoError(t, err)
	assert.True(t, sum.Imported)
	assert.Equal(t, []string{"2025-09-10"}, sum.FailedDates)
	assert.NotContains(t, sum.ChangedDates, "2025-09-10")
	assert.Contains(t, sum.Message, "1 failed")

	kept, err := f.days.Get(ctx, "2025-09-10")
	require.NoError(t, err)
	assert.Equal(t, "Previous", kept.Message)

	// The fingerprint was not stored, so the next trigger retries.
	f.inferer.err = nil
	retry, err := f.importer.Run(ctx)
	require.NoError(t, err)
	assert.True(t, retry.Imported)
	assert.Empty(t, retry.FailedDates)
	assert.Equal(t, []string{"2025-09-10"}, retry.ChangedDates)
}

func TestResume(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, weekFeed)
	f.inferer.err = errors.New("store unavailable")

	sum, err := f.importer.Run(ctx)
	require.Error(t, err)
	require.NotEmpty(t, sum.RunID)
	assert.Equal(t, 1, f.fetcher.calls)

	f.inferer.err = nil
	resumed, err := f.importer.Resume(ctx, sum.RunID)
	require.NoError(t, err)
	assert.Equal(t, sum.RunID, resumed.RunID)
	assert.True(t, resumed.Imported)
	assert.Equal(t, 1, f.fetcher.calls, "completed steps are replayed from checkpoints")
	assert.Equal(t, []string{"2025-09-08", "2025-09-09", "2025-09-10"}, resumed.ChangedDates)

	raw, ok, err := f.kv.Get(ctx, "workflow:"+sum.RunID+":"+stepStandard)
	require.NoError(t, err)
	require.True(t, ok)
	var std standardResult
	require.NoError(t, json.Unmarshal([]byte(raw), &std))
	assert.Equal(t, 3, std.TotalEvents)

	_, err = f.importer.Resume(ctx, "")
	assert.Error(t, err)
}

func TestRun_FetchFailure(t *testing.T) {
	f := newFixture(t, weekFeed)
	f.fetcher.err = &ics.FetchError{URL: "https://calendar.test/...(redacted)", StatusCode: http.StatusBadGateway}

	_, err := f.importer.Run(context.Background())
	var ferr *ics.FetchError
	require.True(t, errors.As(err, &ferr))
	assert.Empty(t, f.inferer.calls)
}

func TestRun_Exclusive(t *testing.T) {
	f := newFixture(t, weekFeed)
	f.importer.mu.Lock()
	defer f.importer.mu.Unlock()

	_, err := f.importer.Run(context.Background())
	assert.ErrorIs(t, err, ErrRunning)
}

func TestPagePaths(t *testing.T) {
	paths, err := PagePaths("2025-09-14")
	require.NoError(t, err)
	assert.Equal(t, []string{"/day/2025-09-14", "/week/2025-09-08"}, paths)

	_, err = PagePaths("Sept 14")
	assert.Error(t, err)

	assert.Equal(t, []string{"/day/2025-09-08", "/day/2025-09-09", "/week/2025-09-08"},
		pathsFor([]string{"2025-09-09", "2025-09-08", "2025-09-09"}))
}

func TestWebhookInvalidator(t *testing.T) {
	var got struct {
		Paths []string `json:"paths"`
	}
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	inv := &WebhookInvalidator{URL: srv.URL, Token: "t0k"}
	require.NoError(t, inv.Invalidate(context.Background(), []string{"/day/2025-09-08"}))
	assert.Equal(t, []string{"/day/2025-09-08"}, got.Paths)
	assert.Equal(t, "Bearer t0k", auth)

	failing := &WebhookInvalidator{URL: srv.URL + "/nowhere", Client: &http.Client{Transport: errTransport{}}}
	rec := &recordingInvalidator{}
	err := Invalidators{failing, nil, rec}.Invalidate(context.Background(), []string{"/week/2025-09-08"})
	assert.Error(t, err)
	assert.Equal(t, []string{"/week/2025-09-08"}, rec.paths)
}

type errTransport struct{}

func (errTransport) RoundTrip(*http.Request) (*http.Response, error) {
	return nil, errors.New("connection refused")
}
