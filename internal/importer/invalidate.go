package importer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"bellsched/internal/model"
)

// Invalidator drops cached renderings of the given page paths.
type Invalidator interface {
	Invalidate(ctx context.Context, paths []string) error
}

// PagePaths returns the pages that render date: its day page and the
// page of the week that contains it.
func PagePaths(date string) ([]string, error) {
	day, err := model.ParseDate(date, time.UTC)
	if err != nil {
		return nil, err
	}
	return []string{
		"/day/" + date,
		"/week/" + model.FormatDate(model.WeekStart(day)),
	}, nil
}

// pathsFor returns the unique page paths of dates, sorted.
func pathsFor(dates []string) []string {
	seen := make(map[string]bool)
	for _, d := range dates {
		paths, err := PagePaths(d)
		if err != nil {
			continue
		}
		for _, p := range paths {
			seen[p] = true
		}
	}
	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Invalidators fans one invalidation out to several collaborators.
type Invalidators []Invalidator

func (is Invalidators) Invalidate(ctx context.Context, paths []string) error {
	var errs []error
	for _, inv := range is {
		if inv == nil {
			continue
		}
		if err := inv.Invalidate(ctx, paths); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// WebhookInvalidator posts {"paths": [...]} to an external revalidation
// endpoint, such as a frontend's on-demand revalidation hook.
type WebhookInvalidator struct {
	URL    string
	Token  string
	Client *http.Client
}

func (w *WebhookInvalidator) Invalidate(ctx context.Context, paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	body, err := json.Marshal(map[string][]string{"paths": paths})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("revalidation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if w.Token != "" {
		req.Header.Set("Authorization", "Bearer "+w.Token)
	}
	client := w.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("revalidation request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("revalidation request: status %d", resp.StatusCode)
	}
	return nil
}
