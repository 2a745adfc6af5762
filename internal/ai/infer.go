package ai

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	appLog "bellsched/internal/log"
	"bellsched/internal/model"
	"bellsched/internal/schedule"
)

// DefaultMaxRetries is the retry ceiling per stub.
const DefaultMaxRetries = 5

// Cache memoizes inferred schedules by stub content.
type Cache interface {
	Get(ctx context.Context, stub model.EventStub) (model.DailySchedule, bool, error)
	Put(ctx context.Context, stub model.EventStub, s model.DailySchedule) error
}

// Inferer turns non-standard stubs into schedules with a language model.
type Inferer struct {
	gen        Generator
	cache      Cache
	maxRetries int
	newBackOff func() backoff.BackOff
}

type Option func(*Inferer)

// WithMaxRetries sets the number of retries after the first attempt.
func WithMaxRetries(n int) Option {
	return func(in *Inferer) {
		if n >= 0 {
			in.maxRetries = n
		}
	}
}

// WithBackOff replaces the exponential retry policy.
func WithBackOff(f func() backoff.BackOff) Option {
	return func(in *Inferer) { in.newBackOff = f }
}

func NewInferer(gen Generator, cache Cache, opts ...Option) *Inferer {
	in := &Inferer{
		gen:        gen,
		cache:      cache,
		maxRetries: DefaultMaxRetries,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = time.Second
			b.MaxInterval = 30 * time.Second
			b.MaxElapsedTime = 0
			return b
		},
	}
	for _, o := range opts {
		o(in)
	}
	return in
}

// Infer returns the normalized schedule for stub. A cached result is
// returned without contacting the model; a fresh result is cached before
// it is returned.
func (in *Inferer) Infer(ctx context.Context, stub model.EventStub, used []model.UsedMessage) (model.DailySchedule, error) {
	if in.cache != nil {
		s, ok, err := in.cache.Get(ctx, stub)
		if err != nil {
			return model.DailySchedule{}, err
		}
		if ok {
			appLog.Debug("llm cache hit", "date", stub.Date)
			return s, nil
		}
	}

	day, err := stub.Day(time.UTC)
	if err != nil {
		return model.DailySchedule{}, err
	}
	var normal *schedule.Template
	if t, ok := schedule.ForWeekday(day.Weekday()); ok {
		normal = &t
	}
	prompt, err := BuildPrompt(stub, normal, used)
	if err != nil {
		return model.DailySchedule{}, err
	}

	var (
		result   model.DailySchedule
		attempts int
	)
	op := func() error {
		attempts++
		raw, err := in.gen.Generate(ctx, prompt)
		if err != nil {
			var apiErr *APIError
			if errors.As(err, &apiErr) && !apiErr.Retryable() {
				return backoff.Permanent(err)
			}
			return err
		}
		s, err := DecodeSchedule(RepairText(raw))
		if err != nil {
			return err
		}
		result = schedule.Normalize(s)
		return nil
	}
	notify := func(err error, wait time.Duration) {
		appLog.Warn("schedule inference failed; retrying", "date", stub.Date, "attempt", attempts, "wait", wait, "err", err)
	}

	b := backoff.WithContext(backoff.WithMaxRetries(in.newBackOff(), uint64(in.maxRetries)), ctx)
	if err := backoff.RetryNotify(op, b, notify); err != nil {
		return model.DailySchedule{}, &InferenceError{Date: stub.Date, Attempts: attempts, Err: err}
	}

	if in.cache != nil {
		if err := in.cache.Put(ctx, stub, result); err != nil {
			return model.DailySchedule{}, err
		}
	}
	appLog.Info("schedule inferred", "date", stub.Date, "title", stub.Title, "periods", len(result.Periods), "message", result.Message, "attempts", attempts)
	return result, nil
}
