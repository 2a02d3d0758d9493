package web

import (
	"context"
	"net/http"
	"time"

	"calendarrecords/internal/adapters/http/middleware"
	"calendarrecords/internal/adapters/http/perf"
	calendarStore "calendarrecords/internal/adapters/storage/calendar"
)

// Pinger reports whether the backing database is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Deps holds the collaborators the handlers use.
type Deps struct {
	Store      calendarStore.Store
	DB         Pinger
	Collector  *perf.Collector // may be nil; /v1/debug/perf then reports nothing
	Authorizer *middleware.Authorizer
}

// Options configures the middleware chain.
type Options struct {
	RateLimitPerSecond int
	SlowRequest        time.Duration
}

// Server serves the calendar record API.
type Server struct {
	store     calendarStore.Store
	db        Pinger
	collector *perf.Collector
	auth      *middleware.Authorizer
	limiter   *middleware.RateLimiter
	handler   http.Handler
}

// NewServer wires routes and middleware.
// PRE: deps.Store, deps.DB and deps.Authorizer are non-nil; opts.RateLimitPerSecond > 0
// POST: Handler is ready to serve; Close must be called to stop background work
func NewServer(deps Deps, opts Options) *Server {
	s := &Server{
		store:     deps.Store,
		db:        deps.DB,
		collector: deps.Collector,
		auth:      deps.Authorizer,
		limiter:   middleware.NewRateLimiter(opts.RateLimitPerSecond, time.Second),
	}

	mux := http.NewServeMux()
	s.registerRoutes(mux)

	// Timing -> SecurityHeaders -> RateLimit -> Mux
	s.handler = middleware.Chain(mux,
		middleware.Timing(s.collector, opts.SlowRequest),
		middleware.SecurityHeaders,
		middleware.RateLimit(s.limiter),
	)
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Close stops the rate limiter sweep.
func (s *Server) Close() {
	s.limiter.Stop()
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	read := s.auth.Require(middleware.CapGetCalendarRecords)
	manage := s.auth.Require(middleware.CapManageCalendarRecords)

	mux.Handle("POST /v1/calendar", manage(http.HandlerFunc(s.handleCreateCalendarRecord)))
	mux.Handle("GET /v1/calendar", read(http.HandlerFunc(s.handleListCalendarRecords)))
	mux.Handle("GET /v1/calendar/{id}", read(http.HandlerFunc(s.handleGetCalendarRecord)))
	mux.Handle("PATCH /v1/calendar/{id}", manage(http.HandlerFunc(s.handleUpdateCalendarRecord)))
	mux.Handle("DELETE /v1/calendar/{id}", manage(http.HandlerFunc(s.handleDeleteCalendarRecord)))

	mux.Handle("GET /v1/calendar/{id}/ics", read(http.HandlerFunc(s.handleGetCalendarRecordICS)))
	mux.Handle("GET /v1/calendar.ics", read(http.HandlerFunc(s.handleListCalendarRecordsICS)))

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /v1/debug/perf", s.auth.Require(middleware.CapViewPerformance)(http.HandlerFunc(s.handlePerf)))
}
