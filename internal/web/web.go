package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"bellsched/internal/ics"
	"bellsched/internal/importer"
	appLog "bellsched/internal/log"
	"bellsched/internal/model"
	"bellsched/internal/store"
)

// Importer triggers calendar imports.
type Importer interface {
	Run(ctx context.Context) (importer.Summary, error)
	Resume(ctx context.Context, runID string) (importer.Summary, error)
}

type Options struct {
	Days       *store.Days
	SchoolYear model.SchoolYear
	Importer   Importer
	Pages      *PageCache
	// FeedName is the calendar name of the exported ICS feed.
	FeedName string
}

// Server exposes the import trigger and read-only schedule APIs.
type Server struct {
	days     *store.Days
	year     model.SchoolYear
	importer Importer
	pages    *PageCache
	feedName string
	router   chi.Router
}

func NewServer(opts Options) *Server {
	s := &Server{
		days:     opts.Days,
		year:     opts.SchoolYear,
		importer: opts.Importer,
		pages:    opts.Pages,
		feedName: opts.FeedName,
	}
	if s.pages == nil {
		s.pages = NewPageCache()
	}
	if s.feedName == "" {
		s.feedName = "Bell Schedule"
	}
	s.router = s.routes()
	return s
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler { return s.router }

// Pages returns the cache the importer should invalidate.
func (s *Server) Pages() *PageCache { return s.pages }

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Get(feedPath, s.handleFeed)
	r.Route("/api", func(r chi.Router) {
		r.Post("/workflows/import-calendar", s.handleImport)
		r.Get("/day/{date}", s.handleDay)
		r.Get("/week/{date}", s.handleWeek)
	})
	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		appLog.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"elapsed", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleImport runs an import, or resumes one with ?run=<id>. The run is
// detached from the client connection so a dropped request does not
// abort it halfway.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	if s.importer == nil {
		writeError(w, http.StatusServiceUnavailable, "importer not configured")
		return
	}
	ctx := context.WithoutCancel(r.Context())

	var (
		sum importer.Summary
		err error
	)
	if runID := r.URL.Query().Get("run"); runID != "" {
		sum, err = s.importer.Resume(ctx, runID)
	} else {
		sum, err = s.importer.Run(ctx)
	}
	if err != nil {
		var ferr *ics.FetchError
		switch {
		case errors.Is(err, importer.ErrRunning):
			writeError(w, http.StatusConflict, err.Error())
		case errors.As(err, &ferr):
			appLog.Error("import failed: calendar fetch", err, "run", sum.RunID)
			writeJSON(w, http.StatusBadGateway, importFailure{RunID: sum.RunID, Error: err.Error()})
		default:
			appLog.Error("import failed", err, "run", sum.RunID)
			writeJSON(w, http.StatusInternalServerError, importFailure{RunID: sum.RunID, Error: err.Error()})
		}
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

type importFailure struct {
	RunID string `json:"runId,omitempty"`
	Error string `json:"error"`
}

type periodDTO struct {
	Type  model.PeriodType `json:"type"`
	ID    string           `json:"id,omitempty"`
	Name  string           `json:"name,omitempty"`
	Start time.Time        `json:"start"`
	End   time.Time        `json:"end"`
}

type dayDTO struct {
	Date    string      `json:"date"`
	Periods []periodDTO `json:"periods"`
	Message string      `json:"message,omitempty"`
}

func toDayDTO(ds model.DatedSchedule) dayDTO {
	out := dayDTO{
		Date:    model.FormatDate(ds.Date),
		Periods: make([]periodDTO, 0, len(ds.Periods)),
		Message: ds.Message,
	}
	for _, p := range ds.Periods {
		out.Periods = append(out.Periods, periodDTO(p))
	}
	return out
}

func (s *Server) handleDay(w http.ResponseWriter, r *http.Request) {
	date := chi.URLParam(r, "date")
	day, err := model.ParseDate(date, s.days.Location())
	if err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}
	key := "/day/" + model.FormatDate(day)
	if s.serveCached(w, key) {
		return
	}

	ds, err := s.days.Get(r.Context(), model.FormatDate(day))
	if err != nil {
		appLog.Error("api day: read failed", err, "date", date)
		writeError(w, http.StatusInternalServerError, "failed to read schedule")
		return
	}
	s.writeCachedJSON(w, key, toDayDTO(ds))
}

func (s *Server) handleWeek(w http.ResponseWriter, r *http.Request) {
	date := chi.URLParam(r, "date")
	day, err := model.ParseDate(date, s.days.Location())
	if err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}
	monday := model.FormatDate(model.WeekStart(day))
	key := "/week/" + monday
	if s.serveCached(w, key) {
		return
	}

	week, err := s.days.Week(r.Context(), monday)
	if err != nil {
		appLog.Error("api week: read failed", err, "date", date)
		writeError(w, http.StatusInternalServerError, "failed to read schedule")
		return
	}
	out := make([]dayDTO, 0, len(week))
	for _, ds := range week {
		out = append(out, toDayDTO(ds))
	}
	s.writeCachedJSON(w, key, out)
}

// handleFeed exports the instructional periods of the school year as an
// ICS subscription.
func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	if s.serveCached(w, feedPath) {
		return
	}
	days := make([]model.DatedSchedule, 0, 200)
	for _, d := range s.year.Days() {
		ds, err := s.days.Get(r.Context(), model.FormatDate(d))
		if err != nil {
			appLog.Error("ical feed: read failed", err, "date", model.FormatDate(d))
			writeError(w, http.StatusInternalServerError, "failed to read schedule")
			return
		}
		if len(ds.Periods) > 0 {
			days = append(days, ds)
		}
	}
	body := []byte(ics.ExportFeed(days, s.feedName, time.Now()))
	s.pages.put(feedPath, "text/calendar; charset=utf-8", body)
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (s *Server) serveCached(w http.ResponseWriter, key string) bool {
	p, ok := s.pages.get(key)
	if !ok {
		return false
	}
	w.Header().Set("Content-Type", p.contentType)
	w.Header().Set("X-Cache", "HIT")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(p.body)
	return true
}

func (s *Server) writeCachedJSON(w http.ResponseWriter, key string, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		appLog.Error("failed to encode JSON response", err)
		writeError(w, http.StatusInternalServerError, "encode failed")
		return
	}
	body = append(body, '\n')
	const ct = "application/json; charset=utf-8"
	s.pages.put(key, ct, body)
	w.Header().Set("Content-Type", ct)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
