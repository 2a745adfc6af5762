// Package importer reconciles the school calendar feed with the schedule
// store. A run is a fixed sequence of checkpointed steps, so an
// interrupted run can be resumed by its ID without repeating finished
// work.
package importer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"bellsched/internal/ai"
	"bellsched/internal/ics"
	appLog "bellsched/internal/log"
	"bellsched/internal/model"
	"bellsched/internal/schedule"
	"bellsched/internal/store"
)

const (
	stepCheck    = "check-calendar-changes"
	stepStandard = "parse-and-process-standard"
	stepLLM      = "process-llm-event"
	stepFinalize = "finalize-import"

	defaultConcurrency = 8

	msgUnchanged = "Calendar unchanged, skipping import"
)

// ErrRunning is returned when a run is requested while another one is in
// progress.
var ErrRunning = errors.New("an import is already running")

// Fetcher retrieves the raw calendar feed.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Inferer produces a schedule for a stub no standard template matches.
type Inferer interface {
	Infer(ctx context.Context, stub model.EventStub, used []model.UsedMessage) (model.DailySchedule, error)
}

type Config struct {
	CalendarURL string
	SchoolYear  model.SchoolYear
	// Concurrency bounds parallel store writes. Zero uses 8.
	Concurrency int
	// CheckpointTTL is how long step outputs stay resumable. Zero uses
	// seven days.
	CheckpointTTL time.Duration
}

// Summary is the outcome of a run.
type Summary struct {
	RunID        string   `json:"runId"`
	Imported     bool     `json:"imported"`
	TotalEvents  int      `json:"totalEvents"`
	LLMEvents    int      `json:"llmEvents"`
	ChangedDates []string `json:"changedDates"`
	FailedDates  []string `json:"failedDates,omitempty"`
	Message      string   `json:"message"`
}

type Importer struct {
	cfg         Config
	kv          store.KV
	days        *store.Days
	hash        *store.CalendarHash
	fetcher     Fetcher
	inferer     Inferer
	invalidator Invalidator

	mu sync.Mutex
}

// New wires an importer. invalidator may be nil.
func New(cfg Config, kv store.KV, fetcher Fetcher, inferer Inferer, invalidator Invalidator) *Importer {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	if cfg.CheckpointTTL <= 0 {
		cfg.CheckpointTTL = defaultCheckpointTTL
	}
	return &Importer{
		cfg:         cfg,
		kv:          kv,
		days:        store.NewDays(kv, cfg.SchoolYear.Location()),
		hash:        store.NewCalendarHash(kv),
		fetcher:     fetcher,
		inferer:     inferer,
		invalidator: invalidator,
	}
}

// Run starts a new run.
func (im *Importer) Run(ctx context.Context) (Summary, error) {
	return im.run(ctx, uuid.NewString())
}

// Resume continues runID, replaying the steps it already completed.
func (im *Importer) Resume(ctx context.Context, runID string) (Summary, error) {
	if runID == "" {
		return Summary{}, errors.New("resume: run ID is empty")
	}
	return im.run(ctx, runID)
}

type changeCheck struct {
	Changed     bool   `json:"changed"`
	Fingerprint string `json:"fingerprint"`
}

type standardResult struct {
	TotalEvents  int               `json:"totalEvents"`
	Dates        []string          `json:"dates"`
	LLMStubs     []model.EventStub `json:"llmStubs"`
	ChangedDates []string          `json:"changedDates"`
}

type llmResult struct {
	UsedMessages []model.UsedMessage `json:"usedMessages"`
	Changed      bool                `json:"changed"`
	Failed       bool                `json:"failed"`
}

type finalizeResult struct {
	ClearedDates []string `json:"clearedDates"`
	HashStored   bool     `json:"hashStored"`
}

func (im *Importer) run(ctx context.Context, runID string) (Summary, error) {
	if !im.mu.TryLock() {
		return Summary{}, ErrRunning
	}
	defer im.mu.Unlock()

	cp := &checkpoints{kv: im.kv, runID: runID, ttl: im.cfg.CheckpointTTL}
	sum := Summary{RunID: runID, ChangedDates: []string{}}
	appLog.Info("calendar import started", "run", runID)

	var body []byte
	check, err := runStep(ctx, cp, stepCheck, func(ctx context.Context) (changeCheck, error) {
		b, err := im.fetcher.Fetch(ctx, im.cfg.CalendarURL)
		if err != nil {
			return changeCheck{}, err
		}
		body = b
		fp := store.Fingerprint(b)
		changed, err := im.hash.Changed(ctx, fp)
		return changeCheck{Changed: changed, Fingerprint: fp}, err
	})
	if err != nil {
		return sum, err
	}
	if !check.Changed {
		sum.Message = msgUnchanged
		appLog.Info("calendar import skipped", "run", runID, "reason", "unchanged")
		return sum, nil
	}

	std, err := runStep(ctx, cp, stepStandard, func(ctx context.Context) (standardResult, error) {
		if body == nil {
			b, err := im.fetcher.Fetch(ctx, im.cfg.CalendarURL)
			if err != nil {
				return standardResult{}, err
			}
			body = b
		}
		return im.processStandard(ctx, body)
	})
	if err != nil {
		return sum, err
	}

	changed := append([]string(nil), std.ChangedDates...)
	used := []model.UsedMessage{}
	for i, stub := range std.LLMStubs {
		res, err := runStep(ctx, cp, fmt.Sprintf("%s-%d", stepLLM, i), func(ctx context.Context) (llmResult, error) {
			return im.processLLM(ctx, stub, used)
		})
		if err != nil {
			return sum, err
		}
		used = res.UsedMessages
		if res.Changed {
			changed = append(changed, stub.Date)
		}
		if res.Failed {
			sum.FailedDates = append(sum.FailedDates, stub.Date)
		}
	}

	final, err := runStep(ctx, cp, stepFinalize, func(ctx context.Context) (finalizeResult, error) {
		return im.finalize(ctx, std.Dates, changed, check.Fingerprint, len(sum.FailedDates) == 0)
	})
	if err != nil {
		return sum, err
	}

	sum.Imported = true
	sum.TotalEvents = std.TotalEvents
	sum.LLMEvents = len(std.LLMStubs)
	sum.ChangedDates = uniqueSorted(append(changed, final.ClearedDates...))
	sum.Message = fmt.Sprintf("Calendar imported successfully (%d events processed, %d needed LLM processing)", sum.TotalEvents, sum.LLMEvents)
	if n := len(sum.FailedDates); n > 0 {
		sum.Message += fmt.Sprintf(", %d failed and will be retried", n)
	}
	appLog.Info("calendar import finished",
		"run", runID,
		"events", sum.TotalEvents,
		"llm_events", sum.LLMEvents,
		"changed", len(sum.ChangedDates),
		"failed", len(sum.FailedDates),
	)
	return sum, nil
}

type dayWrite struct {
	date string
	s    *model.DailySchedule
}

// processStandard expands the feed, writes every stub matching a
// standard template and returns the stubs left for inference in date
// order.
func (im *Importer) processStandard(ctx context.Context, body []byte) (standardResult, error) {
	year := im.cfg.SchoolYear
	events, err := ics.ParseICS(body, year.Location())
	if err != nil {
		return standardResult{}, err
	}
	expanded, err := ics.ExpandStubs(events, ics.ExpandConfig{SchoolYear: year})
	if err != nil {
		return standardResult{}, err
	}
	stubs := expanded.Stubs()

	res := standardResult{
		TotalEvents: len(stubs),
		Dates:       make([]string, 0, len(stubs)),
		LLMStubs:    []model.EventStub{},
	}
	var writes []dayWrite
	for _, stub := range stubs {
		res.Dates = append(res.Dates, stub.Date)
		s, ok, err := schedule.Match(stub)
		if err != nil {
			return standardResult{}, err
		}
		if !ok {
			res.LLMStubs = append(res.LLMStubs, stub)
			continue
		}
		writes = append(writes, dayWrite{date: stub.Date, s: &s})
	}

	res.ChangedDates, err = im.writeDays(ctx, writes)
	if err != nil {
		return standardResult{}, err
	}
	appLog.Info("standard schedules written",
		"stubs", len(stubs),
		"standard", len(writes),
		"needs_llm", len(res.LLMStubs),
		"changed", len(res.ChangedDates),
	)
	return res, nil
}

// writeDays applies writes concurrently and returns the changed dates in
// order.
func (im *Importer) writeDays(ctx context.Context, writes []dayWrite) ([]string, error) {
	var (
		mu      sync.Mutex
		changed = []string{}
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(im.cfg.Concurrency)
	for _, w := range writes {
		g.Go(func() error {
			c, err := im.days.Set(gctx, w.date, w.s)
			if err != nil {
				return err
			}
			if c {
				mu.Lock()
				changed = append(changed, w.date)
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	sort.Strings(changed)
	return changed, nil
}

// processLLM infers and stores one stub. An inference failure is not
// fatal: the date keeps its stored value and is reported as failed.
func (im *Importer) processLLM(ctx context.Context, stub model.EventStub, used []model.UsedMessage) (llmResult, error) {
	s, err := im.inferer.Infer(ctx, stub, used)
	if err != nil {
		var ierr *ai.InferenceError
		if errors.As(err, &ierr) {
			appLog.Error("schedule inference gave up; keeping stored day", err, "date", stub.Date, "title", stub.Title)
			return llmResult{UsedMessages: used, Failed: true}, nil
		}
		return llmResult{}, err
	}

	changed, err := im.days.Set(ctx, stub.Date, &s)
	if err != nil {
		return llmResult{}, err
	}
	return llmResult{
		UsedMessages: ai.NextUsedMessages(used, stub, s),
		Changed:      changed,
	}, nil
}

// finalize clears window days absent from the feed, records the feed
// fingerprint when every stub was resolved, and invalidates the pages of
// every changed date.
func (im *Importer) finalize(ctx context.Context, present, changed []string, fingerprint string, storeHash bool) (finalizeResult, error) {
	keep := make(map[string]bool, len(present))
	for _, d := range present {
		keep[d] = true
	}
	var clears []dayWrite
	for _, day := range im.cfg.SchoolYear.Days() {
		date := model.FormatDate(day)
		if !keep[date] {
			clears = append(clears, dayWrite{date: date})
		}
	}
	cleared, err := im.writeDays(ctx, clears)
	if err != nil {
		return finalizeResult{}, err
	}

	res := finalizeResult{ClearedDates: cleared}
	if storeHash {
		if err := im.hash.Store(ctx, fingerprint); err != nil {
			return finalizeResult{}, err
		}
		res.HashStored = true
	} else {
		appLog.Warn("calendar fingerprint not stored; failed dates will be retried on the next run")
	}

	if im.invalidator != nil {
		paths := pathsFor(append(append([]string(nil), changed...), cleared...))
		if len(paths) > 0 {
			if err := im.invalidator.Invalidate(ctx, paths); err != nil {
				appLog.Error("page invalidation failed", err, "paths", len(paths))
			} else {
				appLog.Info("pages invalidated", "paths", len(paths))
			}
		}
	}
	return res, nil
}

func uniqueSorted(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}
