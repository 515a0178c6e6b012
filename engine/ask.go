package engine

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/mementohq/memento-go/core"
	"github.com/mementohq/memento-go/generate"
	"github.com/mementohq/memento-go/prompt"
	"github.com/mementohq/memento-go/rank"
)

// AskRequest is one question against the owner's memory. Leaving
// ConversationID empty starts a new conversation titled from the question.
type AskRequest struct {
	OwnerID        string            `json:"owner_id"`
	Question       string            `json:"question"`
	ConversationID string            `json:"conversation_id,omitempty"`
	K              int               `json:"k,omitempty"`
	ContentType    *core.ContentType `json:"content_type,omitempty"`
}

// AskResult is the terminal outcome of an ask. On success Answer is the full
// generated text and Sources lists the chunks the answer drew on.
type AskResult struct {
	ConversationID string        `json:"conversation_id"`
	Answer         string        `json:"answer"`
	Sources        []core.Source `json:"sources"`
	Err            error         `json:"-"`
}

// AnswerStream delivers answer fragments in generation order, then exactly
// one terminal AskResult after the fragment channel closes. No fragment
// follows the terminal result.
type AnswerStream struct {
	fragments chan string
	done      chan AskResult
}

// Fragments returns the fragment channel, closed when generation ends.
func (s *AnswerStream) Fragments() <-chan string {
	return s.fragments
}

// Done returns the terminal channel. Exactly one AskResult arrives on it.
func (s *AnswerStream) Done() <-chan AskResult {
	return s.done
}

const (
	titleLen     = 50
	streamBuffer = 16
)

// Ask answers a question without streaming: it drains the stream internally
// and returns the terminal result.
func (e *Engine) Ask(ctx context.Context, req AskRequest) (AskResult, error) {
	stream, err := e.AskStream(ctx, req)
	if err != nil {
		return AskResult{}, err
	}
	for range stream.Fragments() {
	}
	res := <-stream.Done()
	return res, res.Err
}

// AskStream retrieves context for the question, starts a streamed
// generation and returns the stream. The user and assistant messages are
// persisted only after the generation completes successfully; cancellation
// before the terminal result persists nothing.
func (e *Engine) AskStream(ctx context.Context, req AskRequest) (*AnswerStream, error) {
	question := strings.TrimSpace(req.Question)
	if req.OwnerID == "" {
		return nil, core.Validationf("empty owner id")
	}
	if question == "" {
		return nil, core.Validationf("empty question")
	}
	if req.ContentType != nil && !req.ContentType.Valid() {
		return nil, core.Validationf("unknown content type %q", *req.ContentType)
	}
	k := req.K
	if k <= 0 {
		k = e.opts.SearchK
	}

	conv, history, err := e.resolveConversation(ctx, req.OwnerID, req.ConversationID, question)
	if err != nil {
		return nil, err
	}

	pctx, err := e.retrieve(ctx, req.OwnerID, question, k, req.ContentType)
	if err != nil {
		return nil, err
	}

	inner, err := e.generator.Generate(ctx, generate.Request{
		System:   prompt.System(pctx),
		History:  history,
		Question: question,
	})
	if err != nil {
		return nil, err
	}

	out := &AnswerStream{
		fragments: make(chan string, streamBuffer),
		done:      make(chan AskResult, 1),
	}
	go e.finishAsk(ctx, inner, out, conv, question, pctx)
	return out, nil
}

// finishAsk forwards fragments, waits for the generator's terminal result,
// and commits the conversation turn on success.
func (e *Engine) finishAsk(ctx context.Context, inner *generate.Stream, out *AnswerStream, conv core.Conversation, question string, pctx prompt.Context) {
	for f := range inner.Fragments() {
		select {
		case out.fragments <- f:
		case <-ctx.Done():
			// Stop forwarding but keep draining so the producer can
			// finish and deliver its terminal result.
		}
	}

	res := <-inner.Done()
	outcome := AskResult{ConversationID: conv.ID}
	if res.Err != nil {
		outcome.Err = res.Err
		close(out.fragments)
		out.done <- outcome
		return
	}

	outcome.Answer = res.Text
	outcome.Sources = prompt.ExtractSources(res.Text, pctx)

	// Commit on a detached context: the answer is complete, so a consumer
	// hanging up between terminal and commit must not lose the turn.
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := e.commitTurn(cctx, conv, question, outcome); err != nil {
		log.Printf("[ENGINE] persisting conversation %s turn: %v", conv.ID, err)
		outcome.Err = fmt.Errorf("persist answer: %w", err)
	}

	close(out.fragments)
	out.done <- outcome
}

func (e *Engine) commitTurn(ctx context.Context, conv core.Conversation, question string, outcome AskResult) error {
	if _, err := e.store.AppendMessage(ctx, conv.OwnerID, core.Message{
		ConversationID: conv.ID,
		Role:           core.RoleUser,
		Content:        question,
	}); err != nil {
		return err
	}

	cited := make([]string, len(outcome.Sources))
	for i, s := range outcome.Sources {
		cited[i] = s.ChunkID
	}
	_, err := e.store.AppendMessage(ctx, conv.OwnerID, core.Message{
		ConversationID: conv.ID,
		Role:           core.RoleAssistant,
		Content:        outcome.Answer,
		CitedChunkIDs:  cited,
	})
	return err
}

// resolveConversation loads an existing conversation and its trailing
// history, or creates a fresh one titled from the question.
func (e *Engine) resolveConversation(ctx context.Context, ownerID, conversationID, question string) (core.Conversation, []core.Message, error) {
	if conversationID == "" {
		conv, err := e.store.CreateConversation(ctx, ownerID, title(question))
		return conv, nil, err
	}

	conv, err := e.store.GetConversation(ctx, ownerID, conversationID)
	if err != nil {
		return core.Conversation{}, nil, err
	}
	history, err := e.store.Messages(ctx, ownerID, conversationID)
	if err != nil {
		return core.Conversation{}, nil, err
	}
	if len(history) > e.opts.HistoryWindow {
		history = history[len(history)-e.opts.HistoryWindow:]
	}
	return conv, history, nil
}

// retrieve runs the search half of an ask: embed, query, rank, assemble.
func (e *Engine) retrieve(ctx context.Context, ownerID, question string, k int, contentType *core.ContentType) (prompt.Context, error) {
	prefs, err := e.store.GetPreferences(ctx, ownerID)
	if err != nil {
		return prompt.Context{}, err
	}
	vector, err := e.embedQuery(ctx, question)
	if err != nil {
		return prompt.Context{}, err
	}
	candidates, err := e.index.Query(ctx, ownerID, vector, k*overFetchFactor, contentType)
	if err != nil {
		return prompt.Context{}, err
	}
	candidates, err = e.readyCandidates(ctx, ownerID, candidates)
	if err != nil {
		return prompt.Context{}, err
	}
	ranked := rank.Rank(candidates, prefs)
	if len(ranked) > k {
		ranked = ranked[:k]
	}
	return prompt.Assemble(ranked, e.opts.ContextBudget), nil
}

// ListConversations returns the owner's conversations, most recently active
// first.
func (e *Engine) ListConversations(ctx context.Context, ownerID string) ([]core.Conversation, error) {
	return e.store.ListConversations(ctx, ownerID)
}

// GetConversation returns one of the owner's conversations.
func (e *Engine) GetConversation(ctx context.Context, ownerID, conversationID string) (core.Conversation, error) {
	return e.store.GetConversation(ctx, ownerID, conversationID)
}

// ConversationMessages returns a conversation's messages in append order.
func (e *Engine) ConversationMessages(ctx context.Context, ownerID, conversationID string) ([]core.Message, error) {
	return e.store.Messages(ctx, ownerID, conversationID)
}

func title(question string) string {
	if len(question) <= titleLen {
		return question
	}
	keep := titleLen
	for keep > 0 && !utf8.RuneStart(question[keep]) {
		keep--
	}
	return question[:keep]
}
