// Package httpapi exposes the verification service over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"agent-trust-lab/internal/domain"
	"agent-trust-lab/internal/identity"
	"agent-trust-lab/internal/observability"
	"agent-trust-lab/internal/storage"
	"agent-trust-lab/internal/verdict"
	"agent-trust-lab/internal/verification"
)

// VerificationService is the slice of the verifier the API needs.
type VerificationService interface {
	Verify(ctx context.Context, req verification.Request) (*domain.VerificationRecord, error)
	Discover(ctx context.Context, query string) (*domain.VerificationRecord, error)
}

// Options for creating a Server.
type Options struct {
	Records  storage.RecordStore
	Activity storage.ActivityStore
	Verifier VerificationService

	// Verdicts enables the comparison endpoint. Nil disables it gracefully.
	Verdicts verdict.Generator

	Logger *log.Logger
}

// Server is the HTTP API server.
type Server struct {
	records  storage.RecordStore
	activity storage.ActivityStore
	verifier VerificationService
	verdicts verdict.Generator
	logger   *log.Logger
}

// NewServer creates a Server.
func NewServer(opts Options) *Server {
	if opts.Verdicts == nil {
		opts.Verdicts = verdict.Disabled{}
	}
	if opts.Logger == nil {
		opts.Logger = log.New(os.Stdout, "[api] ", log.LstdFlags)
	}
	return &Server{
		records:  opts.Records,
		activity: opts.Activity,
		verifier: opts.Verifier,
		verdicts: opts.Verdicts,
		logger:   opts.Logger,
	}
}

// Router builds the chi router with all routes mounted.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", observability.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/agents/{id}", s.handleGetAgent)
		r.Post("/verify/{id}", s.handleVerify)
		r.Post("/scan/{address}", s.handleScan)
		r.Get("/listings", s.handleListings)
		r.Get("/activity", s.handleActivity)
		r.Post("/vote/{id}", s.handleVote)
		r.Get("/factions", s.handleFactions)
		r.Get("/compare", s.handleCompare)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleGetAgent returns the stored record without triggering verification.
// Records are keyed by normalized identifier, so the raw path parameter is
// normalized first.
func (s *Server) handleGetAgent(w http.ResponseWriter, r *http.Request) {
	id := identity.Normalize(chi.URLParam(r, "id"))

	record, err := s.records.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "identity not found")
			return
		}
		s.logger.Printf("get agent %s: %v", id, err)
		writeError(w, http.StatusInternalServerError, "storage error")
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// verifyResponse wraps a record with a degradation warning when persistence
// failed but the verification itself completed.
type verifyResponse struct {
	*domain.VerificationRecord
	Warning string `json:"warning,omitempty"`
}

// handleVerify runs an interactive verification.
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	force, _ := strconv.ParseBool(r.URL.Query().Get("force"))

	s.runVerification(w, r, verification.Request{Identifier: id, Force: force})
}

// handleScan verifies an on-chain address. Same pipeline as verify; the
// identity detector routes addresses to the market sources.
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	addr := chi.URLParam(r, "address")

	s.runVerification(w, r, verification.Request{Identifier: addr, Force: true})
}

func (s *Server) runVerification(w http.ResponseWriter, r *http.Request, req verification.Request) {
	record, err := s.verifier.Verify(r.Context(), req)
	if err != nil {
		var persistErr *verification.PersistenceError
		switch {
		case errors.As(err, &persistErr):
			// The verdict stands; only durability failed.
			writeJSON(w, http.StatusOK, verifyResponse{
				VerificationRecord: record,
				Warning:            "record could not be persisted",
			})
			return
		case errors.Is(err, verification.ErrUnknownIdentity):
			writeError(w, http.StatusNotFound, "identity unknown to all sources")
			return
		case errors.Is(err, storage.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, "invalid identifier")
			return
		default:
			s.logger.Printf("verify %s: %v", req.Identifier, err)
			writeError(w, http.StatusBadGateway, "verification failed")
			return
		}
	}
	writeJSON(w, http.StatusOK, verifyResponse{VerificationRecord: record})
}

// handleListings returns filtered record listings. A search that matches
// nothing locally falls through to network discovery.
func (s *Server) handleListings(w http.ResponseWriter, r *http.Request) {
	q := storage.ListingsQuery{
		Search: r.URL.Query().Get("search"),
		SortBy: r.URL.Query().Get("sort"),
	}
	if v := r.URL.Query().Get("min_score"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			q.MinScore = f
		}
	}
	q.VerifiedOnly, _ = strconv.ParseBool(r.URL.Query().Get("verified"))
	q.Limit = intQuery(r, "limit", 50)
	q.Offset = intQuery(r, "offset", 0)

	records, err := s.records.List(r.Context(), q)
	if err != nil {
		s.logger.Printf("listings: %v", err)
		writeError(w, http.StatusInternalServerError, "storage error")
		return
	}

	if len(records) == 0 && q.Search != "" {
		if record, err := s.verifier.Discover(r.Context(), q.Search); err == nil {
			records = []*domain.VerificationRecord{record}
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"agents": records,
		"count":  len(records),
	})
}

// handleActivity returns the merged activity feed, newest first.
func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	limit := intQuery(r, "limit", 50)

	events, err := s.activity.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Printf("activity: %v", err)
		writeError(w, http.StatusInternalServerError, "storage error")
		return
	}

	type eventView struct {
		ID         string    `json:"id"`
		Type       string    `json:"type"`
		Identifier string    `json:"identifier"`
		Label      string    `json:"label"`
		Timestamp  time.Time `json:"timestamp"`
	}
	views := make([]eventView, 0, len(events))
	for _, e := range events {
		views = append(views, eventView{
			ID:         e.ID,
			Type:       string(e.Type),
			Identifier: e.Identifier,
			Label:      e.Label,
			Timestamp:  e.Timestamp,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": views})
}

type voteRequest struct {
	VoterID string `json:"voter_id"`
	Upvote  bool   `json:"upvote"`
}

// handleVote registers one community vote and logs it to the activity feed.
func (s *Server) handleVote(w http.ResponseWriter, r *http.Request) {
	id := identity.Normalize(chi.URLParam(r, "id"))

	var req voteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.VoterID == "" {
		writeError(w, http.StatusBadRequest, "invalid vote body")
		return
	}

	err := s.records.AddVote(r.Context(), id, req.VoterID, req.Upvote)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "identity not found")
	case errors.Is(err, storage.ErrDuplicateKey):
		writeError(w, http.StatusConflict, "voter has already voted on this identity")
	case err != nil:
		s.logger.Printf("vote %s: %v", id, err)
		writeError(w, http.StatusInternalServerError, "storage error")
	default:
		direction := "upvoted"
		if !req.Upvote {
			direction = "downvoted"
		}
		if err := s.activity.Append(r.Context(), &domain.ActivityEvent{
			ID:         uuid.NewString(),
			Type:       domain.ActivityVote,
			Identifier: id,
			Label:      direction + " by " + req.VoterID,
			Timestamp:  time.Now().UTC(),
		}); err != nil {
			// The vote is already counted; a missing feed entry is tolerable.
			s.logger.Printf("vote activity %s: %v", id, err)
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "recorded"})
	}
}

// handleFactions returns per-faction aggregates.
func (s *Server) handleFactions(w http.ResponseWriter, r *http.Request) {
	stats, err := s.records.FactionStats(r.Context())
	if err != nil {
		s.logger.Printf("factions: %v", err)
		writeError(w, http.StatusInternalServerError, "storage error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"factions": stats})
}

// handleCompare produces a side-by-side analyst briefing for two stored
// records.
func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	idA := identity.Normalize(r.URL.Query().Get("a"))
	idB := identity.Normalize(r.URL.Query().Get("b"))
	if idA == "" || idB == "" || idA == idB {
		writeError(w, http.StatusBadRequest, "compare requires two distinct identifiers")
		return
	}

	recordA, err := s.records.Get(r.Context(), idA)
	if err != nil {
		writeError(w, http.StatusNotFound, "identity not found: "+idA)
		return
	}
	recordB, err := s.records.Get(r.Context(), idB)
	if err != nil {
		writeError(w, http.StatusNotFound, "identity not found: "+idB)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"a":       recordA,
		"b":       recordB,
		"verdict": s.verdicts.Compare(r.Context(), recordA, recordB),
	})
}

func intQuery(r *http.Request, key string, fallback int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return fallback
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
