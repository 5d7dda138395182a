// Package web exposes the pipeline over HTTP: the iCal subscription
// endpoint, the JSON schedule API consumed by the UI, the rate-limited
// upstream passthrough, and the protected-user login gate.
package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"edtcal/internal/config"
	"edtcal/internal/ical"
	appLog "edtcal/internal/log"
	"edtcal/internal/model"
	"edtcal/internal/portal"
	"edtcal/internal/ratelimit"
	"edtcal/internal/schedule"
	"edtcal/internal/timewindow"
)

var (
	userRe = regexp.MustCompile(`^[a-zA-Z]+\.[a-zA-Z]+\d*$`)
	dateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
)

// calendarCacheTTL bounds how stale a served iCal document may be.
// Subscription clients poll on the order of the advertised PT1H refresh
// hint, so minutes of staleness are invisible to them.
const calendarCacheTTL = 15 * time.Minute

type calendarCache struct {
	doc       string
	updatedAt time.Time
}

// Server wires the HTTP handlers to the aggregation pipeline.
type Server struct {
	cfg     *config.Config
	agg     *schedule.Aggregator
	portal  *portal.Fetcher
	limiter *ratelimit.Limiter
	loc     *time.Location
	mux     *http.ServeMux

	calMu    sync.RWMutex
	calCache map[string]calendarCache
}

// NewServer constructs the server. loc is the display timezone already
// resolved from cfg.Timezone.
func NewServer(cfg *config.Config, agg *schedule.Aggregator, p *portal.Fetcher, loc *time.Location) *Server {
	s := &Server{
		cfg:    cfg,
		agg:    agg,
		portal: p,
		limiter: ratelimit.NewLimiter(
			cfg.RateLimit.Max,
			time.Duration(cfg.RateLimit.WindowMinutes)*time.Minute,
		),
		loc:      loc,
		mux:      http.NewServeMux(),
		calCache: make(map[string]calendarCache),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/calendar", s.handleCalendar)
	s.mux.HandleFunc("/proxy", s.handleProxy)
	s.mux.HandleFunc("/api/schedule", s.handleSchedule)
	s.mux.HandleFunc("/api/login", s.handleLogin)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleCalendar serves the iCal subscription document covering the
// configured number of weeks from the current week's Monday.
//
// GET /calendar?user=<firstname.lastname>
func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", "")
		return
	}
	user := r.URL.Query().Get("user")
	if !userRe.MatchString(user) {
		writeError(w, http.StatusBadRequest, "invalid 'user' parameter, expected 'firstname.lastname'", "")
		return
	}

	doc, err := s.calendarFor(r.Context(), user)
	if err != nil {
		appLog.Error("calendar generation failed", err, "user", user)
		writeError(w, http.StatusInternalServerError, "failed to generate calendar", err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="schedule-`+user+`.ics"`)
	w.Header().Set("Cache-Control", "public, max-age=3600, s-maxage=3600")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(doc))
}

// calendarFor returns the cached document for user, regenerating it when
// the cache entry is missing or stale. Regeneration fans out one portal
// fetch per date of the export window, so the cache is what keeps
// subscription polls cheap.
func (s *Server) calendarFor(ctx context.Context, user string) (string, error) {
	now := time.Now()

	s.calMu.RLock()
	entry, ok := s.calCache[user]
	s.calMu.RUnlock()
	if ok && now.Sub(entry.updatedAt) < calendarCacheTTL {
		return entry.doc, nil
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}

	today := timewindow.Today(s.loc)
	sched := s.agg.Window(ctx, user, today, s.cfg.ExportWeeks)
	doc := ical.BuildCalendar(sched, user, s.loc)

	s.calMu.Lock()
	s.calCache[user] = calendarCache{doc: doc, updatedAt: time.Now()}
	s.calMu.Unlock()

	appLog.Info("calendar generated", "user", user, "days", len(sched), "weeks", s.cfg.ExportWeeks)
	return doc, nil
}

// WarmCalendars regenerates the cached calendar for every protected
// user. Driven by the refresh cron so subscription polls hit the cache.
func (s *Server) WarmCalendars(ctx context.Context) {
	for _, user := range s.cfg.ProtectedUsers {
		if !userRe.MatchString(user) {
			appLog.Error("skipping malformed protected user", nil, "user", user)
			continue
		}
		s.calMu.Lock()
		delete(s.calCache, user)
		s.calMu.Unlock()
		if _, err := s.calendarFor(ctx, user); err != nil {
			appLog.Error("calendar warm failed", err, "user", user)
		}
	}
	s.limiter.Prune()
}

// handleProxy forwards one raw portal day request, rate limited per
// client IP.
//
// GET /proxy?tel=<id>&date=<YYYY-MM-DD>&time=<H:MM>
func (s *Server) handleProxy(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", "")
		return
	}

	if !s.limiter.Allow(clientIP(r)) {
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded", "")
		return
	}

	q := r.URL.Query()
	tel := q.Get("tel")
	dateStr := q.Get("date")
	clock := q.Get("time")

	if !userRe.MatchString(tel) {
		writeError(w, http.StatusBadRequest, "invalid 'tel' format", "")
		return
	}
	if !dateRe.MatchString(dateStr) {
		writeError(w, http.StatusBadRequest, "invalid 'date' format (expected YYYY-MM-DD)", "")
		return
	}
	date, err := model.ParseCivilDate(dateStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid 'date' value", err.Error())
		return
	}
	if clock == "" {
		clock = portal.DefaultClock
	} else if _, err := model.ParseClock(clock); err != nil {
		writeError(w, http.StatusBadRequest, "invalid 'time' format (expected H:MM)", "")
		return
	}

	html, status, err := s.portal.FetchRaw(r.Context(), tel, date, clock)
	if err != nil {
		if status != 0 {
			appLog.Error("proxy upstream non-success", err, "tel", tel, "status", status)
			writeError(w, http.StatusBadGateway, "upstream error", strconv.Itoa(status))
			return
		}
		appLog.Error("proxy fetch failed", err, "tel", tel)
		writeError(w, http.StatusInternalServerError, "proxy fetch failed", "")
		return
	}

	w.Header().Set("Cache-Control", "public, max-age=300, s-maxage=300")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(html))
}

// scheduleResponse is the JSON shape consumed by the calendar UI.
type scheduleResponse struct {
	User     string         `json:"user"`
	Week     int            `json:"week"`
	Timezone string         `json:"timezone"`
	Schedule model.Schedule `json:"schedule"`
	Subjects []string       `json:"subjects"`
	Sources  []string       `json:"sources"`
}

// handleSchedule serves one merged, colored week of the schedule.
//
// GET /api/schedule?user=<id>&week=<offset>  (offset may be negative)
func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", "")
		return
	}
	q := r.URL.Query()
	user := q.Get("user")
	if !userRe.MatchString(user) {
		writeError(w, http.StatusBadRequest, "invalid 'user' parameter, expected 'firstname.lastname'", "")
		return
	}
	week := 0
	if v := q.Get("week"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid 'week' offset", "")
			return
		}
		week = n
	}

	sched := s.agg.Week(r.Context(), user, timewindow.Today(s.loc), week)
	writeJSON(w, http.StatusOK, scheduleResponse{
		User:     user,
		Week:     week,
		Timezone: s.loc.String(),
		Schedule: sched,
		Subjects: schedule.Subjects(sched),
		Sources:  schedule.Sources(sched),
	})
}

type loginRequest struct {
	User string `json:"user"`
	PIN  string `json:"pin"`
}

// handleLogin checks the secondary PIN gate for protected users.
//
// POST /api/login {"user": "...", "pin": "..."}
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", "")
		return
	}
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", "")
		return
	}
	if !s.isProtected(req.User) {
		// Unprotected users need no PIN at all.
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true, "protected": false})
		return
	}
	if s.cfg.PIN == "" || !secureCompare(req.PIN, s.cfg.PIN) {
		writeError(w, http.StatusUnauthorized, "invalid PIN", "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true, "protected": true})
}

func (s *Server) isProtected(user string) bool {
	for _, u := range s.cfg.ProtectedUsers {
		if strings.EqualFold(u, user) {
			return true
		}
	}
	return false
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// clientIP extracts the caller's address, honoring the first hop of
// X-Forwarded-For when present.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg, details string) {
	type errResp struct {
		Error   string `json:"error"`
		Details string `json:"details,omitempty"`
	}
	writeJSON(w, status, errResp{Error: msg, Details: details})
}
