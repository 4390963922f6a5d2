// ABOUTME: HTTP API for the gateway: the SubmitPost endpoint and health checks
// ABOUTME: Verifies signed-protocol headers before any request body is trusted

package gateway

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/2389/relay-gateway/internal/session"
	"github.com/2389/relay-gateway/internal/sign"
)

const maxBodySize = 64 * 1024

// routes builds the HTTP router.
func (s *Service) routes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	if s.cfg.Metrics.Enabled {
		r.Handle(s.cfg.Metrics.Path, promhttp.Handler())
	}

	r.Get("/healthz", s.handleHealth)
	r.Post("/SubmitPost", s.handleSubmitPost)

	return r
}

// healthResponse is the JSON body for GET /healthz.
type healthResponse struct {
	Status string `json:"status"`
	Routes int    `json:"routes"`
}

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Routes: s.manager.Len()})
}

// handleSubmitPost decodes one submit envelope, authenticates it when
// signing is enabled, and dispatches it through the session manager. The
// response body is always a SubmitResponse; the real outcome is the status
// code.
func (s *Service) handleSubmitPost(w http.ResponseWriter, r *http.Request) {
	logger := s.logger.With("request_id", requestID(r))

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable request body")
		return
	}

	if s.signer.Enabled() {
		if status, reason := s.authenticate(r, body); status != 0 {
			logger.Warn("rejected unauthenticated submit", "reason", reason)
			writeError(w, status, reason)
			return
		}
	}

	var post session.SubmitPost
	if err := json.Unmarshal(body, &post); err != nil {
		writeError(w, http.StatusBadRequest, "malformed JSON body")
		return
	}
	if post.NameId == "" || post.Category == "" || post.Text == "" {
		writeError(w, http.StatusBadRequest, "NameId, Category, and Text are required")
		return
	}

	status, resp := s.manager.Dispatch(r.Context(), &post)
	logger.Info("submit dispatched",
		"name_id", post.NameId,
		"category", post.Category,
		"status", status,
	)
	writeJSON(w, status, resp)
}

// authenticate checks the four signed-protocol headers. A missing header
// rejects before any signature computation. Returns (0, "") when the
// request is authentic.
func (s *Service) authenticate(r *http.Request, body []byte) (int, string) {
	publicID := r.Header.Get(sign.HeaderPublicID)
	nonce := r.Header.Get(sign.HeaderNonce)
	timestamp := r.Header.Get(sign.HeaderTimestamp)
	signature := r.Header.Get(sign.HeaderSignature)

	if publicID == "" || nonce == "" || timestamp == "" || signature == "" {
		return http.StatusUnauthorized, "missing authentication header"
	}

	if err := s.signer.Verify(publicID, timestamp, nonce, signature, body); err != nil {
		return http.StatusUnauthorized, err.Error()
	}
	return 0, ""
}

// requestID returns chi's request id, falling back to a fresh uuid when the
// middleware did not run (direct handler tests).
func requestID(r *http.Request) string {
	if id := chimw.GetReqID(r.Context()); id != "" {
		return id
	}
	return uuid.New().String()
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, reason string) {
	writeJSON(w, status, session.SubmitResponse{ErrorReason: reason})
}
