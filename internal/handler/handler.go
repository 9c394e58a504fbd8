// Package handler exposes the assessment engine as a JSON API.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/assessor/internal/assessment"
	"github.com/pavelanni/assessor/internal/bank"
	"github.com/pavelanni/assessor/internal/i18n"
	"github.com/pavelanni/assessor/internal/llm"
	"github.com/pavelanni/assessor/internal/model"
	"github.com/pavelanni/assessor/internal/store"
)

const defaultCourseTimeout = 2 * time.Minute

// Config holds handler settings.
type Config struct {
	// AdminPasswordHash is the bcrypt hash guarding the admin routes.
	// Admin routes answer 401 when it is empty.
	AdminPasswordHash []byte
	// CourseTimeout bounds one course generation, retries included.
	CourseTimeout time.Duration
	BasePath      string
}

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	engine   *assessment.Engine
	registry *bank.Registry
	store    *store.Store
	courses  llm.Generator
	config   Config
	sessions *sessions
}

// New creates a new Handler. courses may be nil, in which case completed
// assessments only return the course payload.
func New(e *assessment.Engine, reg *bank.Registry, s *store.Store, courses llm.Generator, cfg Config) *Handler {
	if cfg.CourseTimeout <= 0 {
		cfg.CourseTimeout = defaultCourseTimeout
	}
	return &Handler{
		engine:   e,
		registry: reg,
		store:    s,
		courses:  courses,
		config:   cfg,
		sessions: newSessions(),
	}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/healthz", h.handleHealth)
	r.Get("/subjects", h.handleSubjects)

	r.Route("/assessments", func(r chi.Router) {
		r.Post("/", h.handleCreate)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.handleGet)
			r.Delete("/", h.handleCancel)
			r.Post("/start", h.handleStart)
			r.Put("/answers/{questionID}", h.handleSelect)
			r.Post("/submit", h.handleSubmit)
			r.Post("/reset", h.handleReset)
			r.Post("/continue", h.handleContinue)
		})
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(h.requireAdmin)
		r.Put("/banks/{subject}", h.handleUploadBank)
		r.Delete("/banks/{subject}", h.handleDeleteBank)
	})
}

// BasePathMiddleware stores the configured base path in the request context.
func (h *Handler) BasePathMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := model.ContextWithBasePath(r.Context(), h.config.BasePath)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Sweep drops assessments idle for longer than ttl.
func (h *Handler) Sweep(ttl time.Duration) int {
	n := h.sessions.sweep(ttl)
	if n > 0 {
		slog.Info("swept idle assessments", "count", n, "remaining", h.sessions.len())
	}
	return n
}

// RunSweeper calls Sweep every interval until ctx is done.
func (h *Handler) RunSweeper(ctx context.Context, ttl, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			h.Sweep(ttl)
		}
	}
}

type assessmentResponse struct {
	model.SessionView
	LevelLabel  string               `json:"experience_level_label,omitempty"`
	Outcome     string               `json:"outcome,omitempty"`
	AbortedAt   model.State          `json:"aborted_at,omitempty"`
	Payload     *model.CoursePayload `json:"payload,omitempty"`
	Course      json.RawMessage      `json:"course,omitempty"`
	CourseError string               `json:"course_error,omitempty"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Missing []int  `json:"missing,omitempty"`
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleSubjects(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"subjects": h.registry.Names()})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Subject string `json:"subject"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, r, http.StatusBadRequest, "bad_request", "BadRequest")
		return
	}

	sess := h.engine.NewSession(req.Subject)
	e := h.sessions.add(sess)
	slog.Info("assessment created", "session", sess.ID(), "subject", sess.Subject(), "bank", sess.BankName())

	e.mu.Lock()
	defer e.mu.Unlock()
	w.Header().Set("Location", model.BasePathFromContext(r.Context())+"/assessments/"+sess.ID())
	writeJSON(w, http.StatusCreated, h.view(r.Context(), e))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, func(e *entry) error { return nil })
}

func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, func(e *entry) error { return e.sess.Start() })
}

func (h *Handler) handleSelect(w http.ResponseWriter, r *http.Request) {
	qid, err := strconv.Atoi(chi.URLParam(r, "questionID"))
	if err != nil {
		writeMessage(w, r, http.StatusNotFound, "unknown_question", "UnknownQuestion")
		return
	}
	var req struct {
		Option *int `json:"option"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Option == nil {
		writeMessage(w, r, http.StatusBadRequest, "bad_request", "BadRequest")
		return
	}
	h.withSession(w, r, func(e *entry) error { return e.sess.Select(qid, *req.Option) })
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, func(e *entry) error {
		_, err := e.sess.Submit()
		return err
	})
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, func(e *entry) error { return e.sess.Reset() })
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, func(e *entry) error { return e.sess.Cancel() })
}

// handleContinue advances the session. A course for a completed assessment
// is generated with the session unlocked.
func (h *Handler) handleContinue(w http.ResponseWriter, r *http.Request) {
	e, ok := h.sessions.get(chi.URLParam(r, "id"))
	if !ok {
		writeMessage(w, r, http.StatusNotFound, "unknown_session", "UnknownSession")
		return
	}

	e.mu.Lock()
	if err := e.sess.Continue(); err != nil {
		e.mu.Unlock()
		writeError(w, r, err)
		return
	}
	p, completed := e.sess.Payload()
	id := e.sess.ID()
	e.mu.Unlock()

	if completed {
		h.generateCourse(r.Context(), e, id, p)
	}

	e.mu.Lock()
	resp := h.view(r.Context(), e)
	e.mu.Unlock()
	writeJSON(w, http.StatusOK, resp)
}

// generateCourse asks the course service for a course and stores the result
// on e. Failures are logged and reported in the response; the assessment
// itself stays completed. It must be called without e.mu held.
func (h *Handler) generateCourse(ctx context.Context, e *entry, id string, p model.CoursePayload) {
	if h.courses == nil {
		return
	}
	genCtx, cancel := context.WithTimeout(ctx, h.config.CourseTimeout)
	defer cancel()

	raw, err := h.courses.GenerateCourse(genCtx, p)

	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		slog.Error("course generation failed", "session", id, "subject", p.Subject, "error", err)
		e.courseError = i18n.T(ctx, "CourseUnavailable")
		return
	}
	e.course = raw
	slog.Info("course generated", "session", id, "subject", p.Subject, "level", p.ExperienceLevel)
}

// withSession looks up the session named in the URL, runs fn under the
// session lock and answers with the resulting view or the mapped error.
func (h *Handler) withSession(w http.ResponseWriter, r *http.Request, fn func(*entry) error) {
	e, ok := h.sessions.get(chi.URLParam(r, "id"))
	if !ok {
		writeMessage(w, r, http.StatusNotFound, "unknown_session", "UnknownSession")
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := fn(e); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.view(r.Context(), e))
}

func (h *Handler) view(ctx context.Context, e *entry) assessmentResponse {
	resp := assessmentResponse{
		SessionView: e.sess.Snapshot(),
		Course:      e.course,
		CourseError: e.courseError,
	}
	o, ok := e.sess.Outcome()
	if !ok {
		return resp
	}
	switch o := o.(type) {
	case assessment.Completed:
		resp.Outcome = "completed"
		resp.LevelLabel = i18n.Level(ctx, o.Level)
		if p, ok := e.sess.Payload(); ok {
			resp.Payload = &p
		}
	case assessment.Aborted:
		resp.Outcome = "aborted"
		resp.AbortedAt = o.At
	}
	return resp
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var incomplete *assessment.IncompleteRoundError
	switch {
	case errors.As(err, &incomplete):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
			Error:   "incomplete_round",
			Message: i18n.Tp(r.Context(), "IncompleteRound", len(incomplete.Missing)),
			Missing: incomplete.Missing,
		})
	case errors.Is(err, assessment.ErrInvalidTransition):
		writeMessage(w, r, http.StatusConflict, "invalid_transition", "InvalidTransition")
	case errors.Is(err, assessment.ErrUnknownQuestion):
		writeMessage(w, r, http.StatusNotFound, "unknown_question", "UnknownQuestion")
	case errors.Is(err, assessment.ErrOptionOutOfRange):
		writeMessage(w, r, http.StatusBadRequest, "option_out_of_range", "OptionOutOfRange")
	default:
		slog.Error("request failed", "path", r.URL.Path, "error", err)
		writeMessage(w, r, http.StatusInternalServerError, "internal", "InternalError")
	}
}

func writeMessage(w http.ResponseWriter, r *http.Request, status int, code, msgID string) {
	writeJSON(w, status, errorResponse{Error: code, Message: i18n.T(r.Context(), msgID)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}
