package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/mementohq/memento-go/core"
	"github.com/mementohq/memento-go/engine"
)

// Streamed ask events. The sequencing contract holds on both transports:
// fragments in generation order, then exactly one terminal event ("done" or
// "error"), nothing after the terminal.
type streamEvent struct {
	Type           string        `json:"type"` // fragment | done | error
	Text           string        `json:"text,omitempty"`
	ConversationID string        `json:"conversation_id,omitempty"`
	Sources        []core.Source `json:"sources,omitempty"`
	Error          string        `json:"error,omitempty"`
}

func fragmentEvent(text string) streamEvent {
	return streamEvent{Type: "fragment", Text: text}
}

func terminalEvent(res engine.AskResult) streamEvent {
	if res.Err != nil {
		return streamEvent{Type: "error", ConversationID: res.ConversationID, Error: res.Err.Error()}
	}
	sources := res.Sources
	if sources == nil {
		sources = []core.Source{}
	}
	return streamEvent{Type: "done", ConversationID: res.ConversationID, Sources: sources}
}

func (s *Server) handleAskSSE(w http.ResponseWriter, r *http.Request) {
	var req engine.AskRequest
	if !decode(w, r, &req) {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, fmt.Errorf("streaming unsupported by transport"))
		return
	}

	stream, err := s.engine.AskStream(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	for f := range stream.Fragments() {
		writeSSE(w, fragmentEvent(f))
		flusher.Flush()
	}
	writeSSE(w, terminalEvent(<-stream.Done()))
	flusher.Flush()
}

func writeSSE(w http.ResponseWriter, ev streamEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		log.Printf("[SERVER] encoding sse event: %v", err)
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
}

var upgrader = websocket.Upgrader{
	// Owner identity is carried in the request; origin policy is left to
	// a fronting proxy.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleAskWS serves one ask per websocket message: the client sends an
// ask request as JSON and receives fragment events followed by one
// terminal event.
func (s *Server) handleAskWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[SERVER] websocket upgrade: %v", err)
		return
	}
	defer conn.Close()

	for {
		var req engine.AskRequest
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		if !s.streamAskWS(r.Context(), conn, req) {
			return
		}
	}
}

// streamAskWS runs one ask over the connection. A hijacked websocket gets
// no request-context cancellation on disconnect, so a failed write cancels
// the ask itself: generation stops and no message is persisted. Returns
// false when the connection is unusable.
func (s *Server) streamAskWS(parent context.Context, conn *websocket.Conn, req engine.AskRequest) bool {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	stream, err := s.engine.AskStream(ctx, req)
	if err != nil {
		return conn.WriteJSON(streamEvent{Type: "error", Error: err.Error()}) == nil
	}

	for f := range stream.Fragments() {
		if err := conn.WriteJSON(fragmentEvent(f)); err != nil {
			cancel()
			for range stream.Fragments() {
			}
			<-stream.Done()
			return false
		}
	}
	return conn.WriteJSON(terminalEvent(<-stream.Done())) == nil
}
