package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/mementohq/memento-go/core"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "memento.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testMemory(owner, id string) (core.Memory, []core.Chunk) {
	m := core.Memory{
		ID:          id,
		OwnerID:     owner,
		ContentType: core.ContentTypeText,
		Content:     "alpha beta gamma",
		Status:      core.IngestPending,
		CreatedAt:   time.Now().UTC(),
	}
	chunks := []core.Chunk{
		{ID: id + "-c0", MemoryID: id, Index: 0, Text: "alpha beta"},
		{ID: id + "-c1", MemoryID: id, Index: 1, Text: "beta gamma"},
	}
	return m, chunks
}

func TestMemoryRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	m, chunks := testMemory("alice", "mem-1")
	if err := s.InsertMemory(ctx, m, chunks); err != nil {
		t.Fatalf("InsertMemory: %v", err)
	}

	got, err := s.GetMemory(ctx, "alice", "mem-1")
	if err != nil {
		t.Fatalf("GetMemory: %v", err)
	}
	if got.Content != m.Content || got.Status != core.IngestPending {
		t.Errorf("got %+v", got)
	}

	gotChunks, err := s.Chunks(ctx, "mem-1")
	if err != nil {
		t.Fatalf("Chunks: %v", err)
	}
	if len(gotChunks) != 2 || gotChunks[0].Index != 0 || gotChunks[1].Index != 1 {
		t.Errorf("chunks out of order: %+v", gotChunks)
	}
}

func TestGetMemoryWrongOwnerIsNotFound(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	m, chunks := testMemory("alice", "mem-1")
	if err := s.InsertMemory(ctx, m, chunks); err != nil {
		t.Fatalf("InsertMemory: %v", err)
	}

	_, err := s.GetMemory(ctx, "bob", "mem-1")
	if !errors.Is(err, core.ErrNotFound) {
		t.Errorf("want ErrNotFound for foreign owner, got %v", err)
	}
}

func TestSetMemoryStatus(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	m, chunks := testMemory("alice", "mem-1")
	if err := s.InsertMemory(ctx, m, chunks); err != nil {
		t.Fatalf("InsertMemory: %v", err)
	}
	if err := s.SetMemoryStatus(ctx, "mem-1", core.IngestReady); err != nil {
		t.Fatalf("SetMemoryStatus: %v", err)
	}
	got, _ := s.GetMemory(ctx, "alice", "mem-1")
	if got.Status != core.IngestReady {
		t.Errorf("status = %q, want ready", got.Status)
	}

	if err := s.SetMemoryStatus(ctx, "nope", core.IngestReady); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("missing memory: got %v, want ErrNotFound", err)
	}
}

func TestDeleteMemoryCascadesChunks(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	m, chunks := testMemory("alice", "mem-1")
	if err := s.InsertMemory(ctx, m, chunks); err != nil {
		t.Fatalf("InsertMemory: %v", err)
	}
	if err := s.DeleteMemory(ctx, "alice", "mem-1"); err != nil {
		t.Fatalf("DeleteMemory: %v", err)
	}

	gotChunks, err := s.Chunks(ctx, "mem-1")
	if err != nil {
		t.Fatalf("Chunks: %v", err)
	}
	if len(gotChunks) != 0 {
		t.Errorf("chunks survived delete: %+v", gotChunks)
	}

	if err := s.DeleteMemory(ctx, "alice", "mem-1"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("second delete: got %v, want ErrNotFound", err)
	}
}

func TestListMemoriesNewestFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC()
	for i, id := range []string{"old", "mid", "new"} {
		m, chunks := testMemory("alice", id)
		m.CreatedAt = base.Add(time.Duration(i) * time.Second)
		if err := s.InsertMemory(ctx, m, chunks); err != nil {
			t.Fatalf("InsertMemory %s: %v", id, err)
		}
	}

	got, err := s.ListMemories(ctx, "alice", 0)
	if err != nil {
		t.Fatalf("ListMemories: %v", err)
	}
	var ids []string
	for _, m := range got {
		ids = append(ids, m.ID)
	}
	want := []string{"new", "mid", "old"}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("order = %v, want %v", ids, want)
		}
	}
}

func TestPreferencesDefaultEmpty(t *testing.T) {
	s := openTestStore(t)

	prefs, err := s.GetPreferences(context.Background(), "alice")
	if err != nil {
		t.Fatalf("GetPreferences: %v", err)
	}
	if len(prefs.BoostTopics) != 0 || len(prefs.SuppressTopics) != 0 {
		t.Errorf("fresh user has topics: %+v", prefs)
	}
}

func TestPreferencesDisjointSets(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.AddBoost(ctx, "alice", "Cooking"); err != nil {
		t.Fatalf("AddBoost: %v", err)
	}
	// Moving the topic to suppress must remove it from boost.
	if err := s.AddSuppress(ctx, "alice", "cooking"); err != nil {
		t.Fatalf("AddSuppress: %v", err)
	}

	prefs, err := s.GetPreferences(ctx, "alice")
	if err != nil {
		t.Fatalf("GetPreferences: %v", err)
	}
	if len(prefs.BoostTopics) != 0 {
		t.Errorf("boost still holds topic: %v", prefs.BoostTopics)
	}
	if len(prefs.SuppressTopics) != 1 || prefs.SuppressTopics[0] != "cooking" {
		t.Errorf("suppress = %v, want [cooking]", prefs.SuppressTopics)
	}
}

func TestPreferencesIdempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for range 3 {
		if err := s.AddBoost(ctx, "alice", "jazz"); err != nil {
			t.Fatalf("AddBoost: %v", err)
		}
	}
	if err := s.RemoveSuppress(ctx, "alice", "never-added"); err != nil {
		t.Fatalf("RemoveSuppress of absent topic: %v", err)
	}

	prefs, _ := s.GetPreferences(ctx, "alice")
	if len(prefs.BoostTopics) != 1 {
		t.Errorf("boost = %v, want exactly one entry", prefs.BoostTopics)
	}
}

func TestPreferencesReset(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	s.AddBoost(ctx, "alice", "jazz")
	s.AddSuppress(ctx, "alice", "sports")
	if err := s.ResetPreferences(ctx, "alice"); err != nil {
		t.Fatalf("ResetPreferences: %v", err)
	}

	prefs, _ := s.GetPreferences(ctx, "alice")
	if len(prefs.BoostTopics) != 0 || len(prefs.SuppressTopics) != 0 {
		t.Errorf("reset left topics: %+v", prefs)
	}
}

func TestConversationAppendOrder(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	conv, err := s.CreateConversation(ctx, "alice", "first chat")
	if err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}

	contents := []string{"what did I eat", "you ate pasta", "when"}
	roles := []core.Role{core.RoleUser, core.RoleAssistant, core.RoleUser}
	for i := range contents {
		_, err := s.AppendMessage(ctx, "alice", core.Message{
			ConversationID: conv.ID,
			Role:           roles[i],
			Content:        contents[i],
		})
		if err != nil {
			t.Fatalf("AppendMessage %d: %v", i, err)
		}
	}

	msgs, err := s.Messages(ctx, "alice", conv.ID)
	if err != nil {
		t.Fatalf("Messages: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("got %d messages, want 3", len(msgs))
	}
	for i := range contents {
		if msgs[i].Content != contents[i] || msgs[i].Role != roles[i] {
			t.Errorf("message %d = %q/%q, want %q/%q", i, msgs[i].Role, msgs[i].Content, roles[i], contents[i])
		}
	}
}

func TestAppendMessageBumpsUpdatedAt(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	conv, err := s.CreateConversation(ctx, "alice", "chat")
	if err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	if _, err := s.AppendMessage(ctx, "alice", core.Message{
		ConversationID: conv.ID, Role: core.RoleUser, Content: "hi",
	}); err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}

	got, err := s.GetConversation(ctx, "alice", conv.ID)
	if err != nil {
		t.Fatalf("GetConversation: %v", err)
	}
	if !got.UpdatedAt.After(got.CreatedAt) {
		t.Errorf("updated_at %v not after created_at %v", got.UpdatedAt, got.CreatedAt)
	}
}

func TestAppendMessageForeignConversation(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	conv, err := s.CreateConversation(ctx, "alice", "private")
	if err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}

	_, err = s.AppendMessage(ctx, "bob", core.Message{
		ConversationID: conv.ID, Role: core.RoleUser, Content: "let me in",
	})
	if !errors.Is(err, core.ErrNotFound) {
		t.Errorf("foreign append: got %v, want ErrNotFound", err)
	}

	// The refused append must not leave a message behind.
	msgs, err := s.Messages(ctx, "alice", conv.ID)
	if err != nil {
		t.Fatalf("Messages: %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("foreign append persisted %d messages", len(msgs))
	}
}

func TestMessageCitationsRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	conv, _ := s.CreateConversation(ctx, "alice", "chat")
	cited := []string{"chunk-a", "chunk-b"}
	if _, err := s.AppendMessage(ctx, "alice", core.Message{
		ConversationID: conv.ID,
		Role:           core.RoleAssistant,
		Content:        "answer",
		CitedChunkIDs:  cited,
	}); err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}

	msgs, _ := s.Messages(ctx, "alice", conv.ID)
	if len(msgs) != 1 || len(msgs[0].CitedChunkIDs) != 2 {
		t.Fatalf("citations lost: %+v", msgs)
	}
	if msgs[0].CitedChunkIDs[0] != "chunk-a" || msgs[0].CitedChunkIDs[1] != "chunk-b" {
		t.Errorf("citations = %v, want %v", msgs[0].CitedChunkIDs, cited)
	}
}

func TestListConversationsMostRecentFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	first, _ := s.CreateConversation(ctx, "alice", "first")
	time.Sleep(5 * time.Millisecond)
	second, _ := s.CreateConversation(ctx, "alice", "second")
	time.Sleep(5 * time.Millisecond)

	// Activity on the older conversation moves it to the front.
	if _, err := s.AppendMessage(ctx, "alice", core.Message{
		ConversationID: first.ID, Role: core.RoleUser, Content: "bump",
	}); err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}

	convs, err := s.ListConversations(ctx, "alice")
	if err != nil {
		t.Fatalf("ListConversations: %v", err)
	}
	if len(convs) != 2 || convs[0].ID != first.ID || convs[1].ID != second.ID {
		t.Errorf("order wrong: %+v", convs)
	}
}

func TestPopularSearches(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, q := range []string{"pasta recipe", "Pasta Recipe", "jazz bars", "pasta recipe", "jazz bars", "one off"} {
		if err := s.RecordSearchEvent(ctx, "alice", q); err != nil {
			t.Fatalf("RecordSearchEvent(%q): %v", q, err)
		}
	}
	// Another owner's searches must not leak into the report.
	s.RecordSearchEvent(ctx, "bob", "pasta recipe")

	got, err := s.PopularSearches(ctx, "alice", 2)
	if err != nil {
		t.Fatalf("PopularSearches: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d rows, want 2", len(got))
	}
	if got[0].Query != "pasta recipe" || got[0].Count != 3 {
		t.Errorf("top = %+v, want pasta recipe x3", got[0])
	}
	if got[1].Query != "jazz bars" || got[1].Count != 2 {
		t.Errorf("second = %+v, want jazz bars x2", got[1])
	}
}
