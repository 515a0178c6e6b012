// Package server exposes the engine over HTTP: JSON REST endpoints plus
// streaming ask over server-sent events and over websocket.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/mementohq/memento-go/core"
	"github.com/mementohq/memento-go/engine"
)

// Server is the HTTP surface over one engine.
type Server struct {
	engine *engine.Engine
	mux    *http.ServeMux
}

// New builds the server and registers all routes.
func New(e *engine.Engine) *Server {
	s := &Server{engine: e, mux: http.NewServeMux()}

	s.mux.HandleFunc("GET /healthz", s.handleHealth)

	s.mux.HandleFunc("POST /api/memories", s.handleIngest)
	s.mux.HandleFunc("GET /api/memories", s.handleListMemories)
	s.mux.HandleFunc("GET /api/memories/{id}", s.handleGetMemory)
	s.mux.HandleFunc("DELETE /api/memories/{id}", s.handleDeleteMemory)

	s.mux.HandleFunc("POST /api/search", s.handleSearch)
	s.mux.HandleFunc("GET /api/search/popular", s.handlePopularSearches)

	s.mux.HandleFunc("POST /api/ask", s.handleAsk)
	s.mux.HandleFunc("POST /api/ask/stream", s.handleAskSSE)
	s.mux.HandleFunc("GET /api/ask/ws", s.handleAskWS)

	s.mux.HandleFunc("GET /api/conversations", s.handleListConversations)
	s.mux.HandleFunc("GET /api/conversations/{id}", s.handleGetConversation)
	s.mux.HandleFunc("GET /api/conversations/{id}/messages", s.handleMessages)

	s.mux.HandleFunc("GET /api/preferences", s.handleGetPreferences)
	s.mux.HandleFunc("POST /api/preferences/boost", s.handlePrefMutation(e.AddBoost))
	s.mux.HandleFunc("DELETE /api/preferences/boost", s.handlePrefMutation(e.RemoveBoost))
	s.mux.HandleFunc("POST /api/preferences/suppress", s.handlePrefMutation(e.AddSuppress))
	s.mux.HandleFunc("DELETE /api/preferences/suppress", s.handlePrefMutation(e.RemoveSuppress))
	s.mux.HandleFunc("POST /api/preferences/reset", s.handleResetPreferences)

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// ListenAndServe blocks serving on addr.
func (s *Server) ListenAndServe(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.Printf("[SERVER] listening on %s", addr)
	return srv.ListenAndServe()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req engine.IngestRequest
	if !decode(w, r, &req) {
		return
	}
	m, err := s.engine.Ingest(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{
		"memory_id": m.ID,
		"status":    string(m.Status),
	})
}

func (s *Server) handleListMemories(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	memories, err := s.engine.ListMemories(r.Context(), owner, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"memories": memoriesJSON(memories)})
}

func (s *Server) handleGetMemory(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}
	m, err := s.engine.GetMemory(r.Context(), owner, r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, memoryJSON(m))
}

func (s *Server) handleDeleteMemory(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}
	if err := s.engine.DeleteMemory(r.Context(), owner, r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req engine.SearchRequest
	if !decode(w, r, &req) {
		return
	}
	results, err := s.engine.Search(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	if results == nil {
		results = []engine.SearchResult{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (s *Server) handlePopularSearches(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	popular, err := s.engine.PopularSearches(r.Context(), owner, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"popular": popular})
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req engine.AskRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := s.engine.Ask(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	if res.Sources == nil {
		res.Sources = []core.Source{}
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}
	convs, err := s.engine.ListConversations(r.Context(), owner)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"conversations": conversationsJSON(convs)})
}

func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}
	conv, err := s.engine.GetConversation(r.Context(), owner, r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, conversationJSON(conv))
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}
	msgs, err := s.engine.ConversationMessages(r.Context(), owner, r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": messagesJSON(msgs)})
}

func (s *Server) handleGetPreferences(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}
	prefs, err := s.engine.Preferences(r.Context(), owner)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"owner_id": prefs.OwnerID,
		"boost":    orEmpty(prefs.BoostTopics),
		"suppress": orEmpty(prefs.SuppressTopics),
	})
}

type prefRequest struct {
	OwnerID string `json:"owner_id"`
	Topic   string `json:"topic"`
}

func (s *Server) handlePrefMutation(mutate func(ctx context.Context, ownerID, topic string) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req prefRequest
		if !decode(w, r, &req) {
			return
		}
		if err := mutate(r.Context(), req.OwnerID, req.Topic); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleResetPreferences(w http.ResponseWriter, r *http.Request) {
	var req prefRequest
	if !decode(w, r, &req) {
		return
	}
	if req.OwnerID == "" {
		writeError(w, core.Validationf("empty owner id"))
		return
	}
	if err := s.engine.ResetPreferences(r.Context(), req.OwnerID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func ownerID(w http.ResponseWriter, r *http.Request) (string, bool) {
	owner := r.URL.Query().Get("owner_id")
	if owner == "" {
		writeError(w, core.Validationf("missing owner_id"))
		return "", false
	}
	return owner, true
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, core.Validationf("invalid request body: %v", err))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[SERVER] encoding response: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, core.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, core.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, core.ErrModelUnavailable):
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func orEmpty(topics []string) []string {
	if topics == nil {
		return []string{}
	}
	return topics
}
