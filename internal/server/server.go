// Package server exposes practice sessions over HTTP: a JSON API for the
// dictation workflow and a websocket endpoint that bridges the browser's
// audio element to the segment playback controller.
package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/manhtienmai/dailyfluent/internal/dictation"
	"github.com/manhtienmai/dailyfluent/internal/feedback"
	"github.com/manhtienmai/dailyfluent/internal/health"
	"github.com/manhtienmai/dailyfluent/internal/observe"
	"github.com/manhtienmai/dailyfluent/internal/segment"
	"github.com/manhtienmai/dailyfluent/pkg/audio"
	"github.com/manhtienmai/dailyfluent/pkg/stt"
)

// draftSampleRate is the mono sample rate draft audio is converted to
// before transcription; whisper.cpp accepts nothing else.
const draftSampleRate = 16000

// maxDraftBody caps the request body for draft uploads.
const maxDraftBody = 100 << 20

// Server serves the practice API. Construct with [New] and mount via
// [Server.Handler].
type Server struct {
	manager     *Manager
	library     *segment.Library
	health      *health.Handler
	metrics     *observe.Metrics
	transcriber stt.Transcriber
}

// ServerConfig holds the dependencies for a [Server].
type ServerConfig struct {
	// Manager owns the practice sessions. Required.
	Manager *Manager

	// Library is the loaded exercise set. Required.
	Library *segment.Library

	// Health serves /healthz and /readyz. When nil a checker-less handler
	// is used.
	Health *health.Handler

	// Metrics instruments the HTTP handlers. When nil,
	// [observe.DefaultMetrics] is used.
	Metrics *observe.Metrics

	// Transcriber backs the exercise drafting endpoint. When nil the
	// endpoint responds 503.
	Transcriber stt.Transcriber
}

// New creates a Server over the given manager and exercise library.
func New(cfg ServerConfig) *Server {
	h := cfg.Health
	if h == nil {
		h = health.New()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	return &Server{
		manager:     cfg.Manager,
		library:     cfg.Library,
		health:      h,
		metrics:     metrics,
		transcriber: cfg.Transcriber,
	}
}

// Handler returns the root http.Handler:
//
//	GET    /api/exercises                   — list exercises
//	GET    /api/exercises/{slug}            — one exercise with its segments
//	POST   /api/practice                    — start (or resume) a practice run
//	GET    /api/practice/{id}               — session snapshot
//	DELETE /api/practice/{id}               — end the session
//	POST   /api/practice/{id}/check         — grade an answer
//	POST   /api/practice/{id}/reveal        — give up, get the reference text
//	POST   /api/practice/{id}/next          — advance to the next segment
//	POST   /api/practice/{id}/play          — replay the current segment
//	POST   /api/practice/{id}/transcript    — transcript-mode playback
//	POST   /api/practice/{id}/stop          — stop all playback
//	POST   /api/practice/{id}/feedback      — LLM mistake explanation
//	POST   /api/draft                       — transcribe a WAV into a draft exercise
//	GET    /ws/practice/{id}/media          — browser media bridge
//
// plus /healthz, /readyz, and /metrics.
func (s *Server) Handler() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("GET /api/exercises", s.handleListExercises)
	api.HandleFunc("GET /api/exercises/{slug}", s.handleGetExercise)
	api.HandleFunc("POST /api/practice", s.handleCreate)
	api.HandleFunc("GET /api/practice/{id}", s.handleGet)
	api.HandleFunc("DELETE /api/practice/{id}", s.handleClose)
	api.HandleFunc("POST /api/practice/{id}/check", s.handleCheck)
	api.HandleFunc("POST /api/practice/{id}/reveal", s.handleReveal)
	api.HandleFunc("POST /api/practice/{id}/next", s.handleNext)
	api.HandleFunc("POST /api/practice/{id}/play", s.handlePlay)
	api.HandleFunc("POST /api/practice/{id}/transcript", s.handleTranscript)
	api.HandleFunc("POST /api/practice/{id}/stop", s.handleStop)
	api.HandleFunc("POST /api/practice/{id}/feedback", s.handleFeedback)
	api.HandleFunc("POST /api/draft", s.handleDraft)

	root := http.NewServeMux()
	root.Handle("/api/", observe.Middleware(s.metrics)(api))
	root.HandleFunc("GET /ws/practice/{id}/media", s.handleMedia)
	root.Handle("GET /metrics", promhttp.Handler())
	s.health.Register(root)
	return root
}

// ── JSON views ───────────────────────────────────────────────────────────────

type exerciseSummary struct {
	Slug     string `json:"slug"`
	Title    string `json:"title"`
	Level    string `json:"level,omitempty"`
	Segments int    `json:"segments"`
}

type practiceView struct {
	ID           string `json:"id"`
	ExerciseSlug string `json:"exercise_slug"`
	Index        int    `json:"index"`
	Total        int    `json:"total"`
	Attempts     int    `json:"attempts"`
	Checked      bool   `json:"checked"`
	Correct      int    `json:"correct"`
	Done         bool   `json:"done"`
	MediaReady   bool   `json:"media_ready"`
}

func toPracticeView(info PracticeInfo) practiceView {
	return practiceView{
		ID:           info.ID,
		ExerciseSlug: info.ExerciseSlug,
		Index:        info.Index,
		Total:        info.Total,
		Attempts:     info.Attempts,
		Checked:      info.Checked,
		Correct:      info.Correct,
		Done:         info.Done,
		MediaReady:   info.MediaReady,
	}
}

type itemView struct {
	Kind    string `json:"kind"`
	User    string `json:"user,omitempty"`
	Correct string `json:"correct,omitempty"`
}

type checkView struct {
	Outcome         string     `json:"outcome"`
	Score           float64    `json:"score"`
	Attempts        int        `json:"attempts"`
	RevealAvailable bool       `json:"reveal_available"`
	Items           []itemView `json:"items"`
}

func toCheckView(res dictation.CheckResult) checkView {
	items := make([]itemView, len(res.Items))
	for i, it := range res.Items {
		items[i] = itemView{Kind: it.Kind.String(), User: it.User, Correct: it.Correct}
	}
	return checkView{
		Outcome:         res.Outcome.String(),
		Score:           res.Score,
		Attempts:        res.Attempts,
		RevealAvailable: res.RevealAvailable,
		Items:           items,
	}
}

// ── Exercise handlers ────────────────────────────────────────────────────────

func (s *Server) handleListExercises(w http.ResponseWriter, _ *http.Request) {
	slugs := s.library.Slugs()
	out := make([]exerciseSummary, 0, len(slugs))
	for _, slug := range slugs {
		ex := s.library.Get(slug)
		if ex == nil {
			continue
		}
		out = append(out, exerciseSummary{
			Slug:     ex.Slug,
			Title:    ex.Title,
			Level:    ex.Level,
			Segments: len(ex.Segments),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetExercise(w http.ResponseWriter, r *http.Request) {
	ex := s.library.Get(r.PathValue("slug"))
	if ex == nil {
		http.Error(w, "exercise not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, ex)
}

// ── Practice handlers ────────────────────────────────────────────────────────

type createRequest struct {
	UserID       string `json:"user_id"`
	ExerciseSlug string `json:"exercise_slug"`
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.UserID == "" || req.ExerciseSlug == "" {
		http.Error(w, "user_id and exercise_slug are required", http.StatusBadRequest)
		return
	}

	info, err := s.manager.Create(r.Context(), req.UserID, req.ExerciseSlug)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPracticeView(info))
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	info, err := s.manager.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPracticeView(info))
}

func (s *Server) handleClose(w http.ResponseWriter, r *http.Request) {
	if err := s.manager.Close(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type checkRequest struct {
	Answer string `json:"answer"`
}

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	var req checkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	res, err := s.manager.Check(r.Context(), r.PathValue("id"), req.Answer)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCheckView(res))
}

type revealResponse struct {
	Text string `json:"text"`
}

func (s *Server) handleReveal(w http.ResponseWriter, r *http.Request) {
	text, err := s.manager.Reveal(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, revealResponse{Text: text})
}

func (s *Server) handleNext(w http.ResponseWriter, r *http.Request) {
	info, err := s.manager.Next(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPracticeView(info))
}

func (s *Server) handlePlay(w http.ResponseWriter, r *http.Request) {
	if err := s.manager.PlaySegment(r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

type transcriptRequest struct {
	// Target is "all", "track", or "segment".
	Target string `json:"target"`

	// Segment is the index played when Target is "segment".
	Segment int `json:"segment"`
}

func (s *Server) handleTranscript(w http.ResponseWriter, r *http.Request) {
	var req transcriptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	var target TranscriptTarget
	switch req.Target {
	case "all":
		target.All = true
	case "track":
		target.Track = true
	case "segment":
		idx := req.Segment
		target.Segment = &idx
	default:
		http.Error(w, "target must be one of: all, track, segment", http.StatusBadRequest)
		return
	}

	if err := s.manager.PlayTranscript(r.PathValue("id"), target); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if err := s.manager.StopPlayback(r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type feedbackResponse struct {
	Text string `json:"text"`
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	text, err := s.manager.Explain(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, feedbackResponse{Text: text})
}

// handleDraft transcribes an uploaded WAV track into a draft exercise for
// author review. The response is a complete exercise document; segments
// carry recognised text and timestamps but no hints.
func (s *Server) handleDraft(w http.ResponseWriter, r *http.Request) {
	if s.transcriber == nil {
		http.Error(w, "drafting unavailable: no transcription model configured", http.StatusServiceUnavailable)
		return
	}

	clip, err := audio.DecodeWAV(http.MaxBytesReader(w, r.Body, maxDraftBody))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	samples := audio.Float32Mono(clip, draftSampleRate)

	segs, err := segment.Draft(r.Context(), s.transcriber, samples, draftSampleRate)
	if err != nil {
		observe.Logger(r.Context()).Error("server: draft transcription failed", "err", err)
		http.Error(w, "transcription failed", http.StatusBadGateway)
		return
	}

	slug := r.URL.Query().Get("slug")
	if slug == "" {
		slug = "draft"
	}
	title := r.URL.Query().Get("title")
	if title == "" {
		title = "Draft exercise"
	}
	observe.Logger(r.Context()).Info("server: exercise drafted",
		"slug", slug, "segments", len(segs),
		"duration_s", clip.Duration())

	writeJSON(w, http.StatusOK, segment.Exercise{
		Slug:     slug,
		Title:    title,
		Segments: segs,
	})
}

// ── Media bridge ─────────────────────────────────────────────────────────────

// handleMedia upgrades the request to a websocket, wraps it in a [Bridge],
// and hands it to the practice session. The handler blocks until the
// connection ends so the bridge lifetime matches the request lifetime.
func (s *Server) handleMedia(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.manager.Get(id); err != nil {
		writeError(w, err)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		slog.Warn("server: websocket accept failed", "practice_id", id, "err", err)
		return
	}

	bridge := NewBridge(conn)
	if err := s.manager.AttachBridge(r.Context(), id, bridge); err != nil {
		bridge.Close()
		slog.Warn("server: bridge attach rejected", "practice_id", id, "err", err)
		return
	}

	<-bridge.Done()
	s.manager.DetachBridge(r.Context(), id)
	conn.Close(websocket.StatusNormalClosure, "session over")
}

// ── Helpers ──────────────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("server: write response", "err", err)
	}
}

// writeError maps domain errors onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrPracticeNotFound), errors.Is(err, ErrExerciseNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, ErrNoMedia), errors.Is(err, ErrMediaAttached):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, dictation.ErrSessionDone),
		errors.Is(err, dictation.ErrAlreadyChecked),
		errors.Is(err, dictation.ErrRevealUnavailable):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, dictation.ErrSegmentOutOfRange):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, feedback.ErrUnavailable):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
