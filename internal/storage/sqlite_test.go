package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/athenslab/athens/internal/conversation"
	"github.com/athenslab/athens/internal/core"
)

func setupTestStorage(t *testing.T) (*SQLiteStorage, func()) {
	t.Helper()
	tmpDir, err := os.MkdirTemp("", "athens-storage-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}

	store, err := NewSQLiteStorage(filepath.Join(tmpDir, "test.db"))
	if err != nil {
		os.RemoveAll(tmpDir)
		t.Fatalf("failed to create storage: %v", err)
	}

	if err := store.Initialize(); err != nil {
		store.Close()
		os.RemoveAll(tmpDir)
		t.Fatalf("failed to initialize storage: %v", err)
	}

	cleanup := func() {
		store.Close()
		os.RemoveAll(tmpDir)
	}
	return store, cleanup
}

func sampleRecord(id string) *DebateRecord {
	metrics := core.NewDebateMetrics()
	metrics.RecordMessage("pro", time.Second, 0.8)
	metrics.RecordMessage("con", 2*time.Second, 0.6)
	metrics.Finish()

	round := core.NewDebateRound(1, "pro")
	round.AddMessage("m1")
	round.AddMessage("m2")
	round.Complete()

	return &DebateRecord{
		ID:           id,
		Topic:        "Should cities invest in transit?",
		State:        core.StateCompleted,
		Reason:       core.ReasonMaxRoundsReached,
		Participants: [2]string{"pro", "con"},
		Rounds:       []*core.DebateRound{round},
		Metrics:      metrics,
	}
}

func TestSaveAndGetDebate(t *testing.T) {
	store, cleanup := setupTestStorage(t)
	defer cleanup()

	rec := sampleRecord("debate_1")
	if err := store.SaveDebate(rec); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	got, err := store.GetDebate("debate_1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got == nil {
		t.Fatal("saved debate not found")
	}
	if got.Topic != rec.Topic {
		t.Errorf("topic changed: %s", got.Topic)
	}
	if got.State != core.StateCompleted {
		t.Errorf("state changed: %s", got.State)
	}
	if got.Reason != core.ReasonMaxRoundsReached {
		t.Errorf("reason changed: %s", got.Reason)
	}
	if got.Participants != [2]string{"pro", "con"} {
		t.Errorf("participants changed: %v", got.Participants)
	}
	if len(got.Rounds) != 1 || len(got.Rounds[0].MessageIDs) != 2 {
		t.Error("rounds not round-tripped")
	}
	if got.Metrics == nil || got.Metrics.TotalMessages != 2 {
		t.Error("metrics not round-tripped")
	}
}

func TestGetMissingDebate(t *testing.T) {
	store, cleanup := setupTestStorage(t)
	defer cleanup()

	got, err := store.GetDebate("nope")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Error("missing debate should return nil")
	}
}

func TestSaveDebateUpsert(t *testing.T) {
	store, cleanup := setupTestStorage(t)
	defer cleanup()

	rec := sampleRecord("debate_1")
	rec.State = core.StateActive
	rec.Reason = ""
	if err := store.SaveDebate(rec); err != nil {
		t.Fatal(err)
	}

	rec.State = core.StateCompleted
	rec.Reason = core.ReasonConsensusReached
	if err := store.SaveDebate(rec); err != nil {
		t.Fatal(err)
	}

	got, err := store.GetDebate("debate_1")
	if err != nil {
		t.Fatal(err)
	}
	if got.State != core.StateCompleted || got.Reason != core.ReasonConsensusReached {
		t.Errorf("upsert did not apply: %s/%s", got.State, got.Reason)
	}

	debates, err := store.ListDebates(10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(debates) != 1 {
		t.Errorf("upsert created a duplicate row: %d", len(debates))
	}
}

func TestListDebates(t *testing.T) {
	store, cleanup := setupTestStorage(t)
	defer cleanup()

	old := sampleRecord("debate_old")
	old.CreatedAt = time.Now().Add(-time.Hour)
	if err := store.SaveDebate(old); err != nil {
		t.Fatal(err)
	}
	recent := sampleRecord("debate_recent")
	recent.CreatedAt = time.Now()
	if err := store.SaveDebate(recent); err != nil {
		t.Fatal(err)
	}

	debates, err := store.ListDebates(10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(debates) != 2 {
		t.Fatalf("expected 2 debates, got %d", len(debates))
	}
	if debates[0].ID != "debate_recent" {
		t.Errorf("newest should come first, got %s", debates[0].ID)
	}

	page, err := store.ListDebates(1, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 1 || page[0].ID != "debate_old" {
		t.Errorf("pagination wrong: %v", page)
	}
}

func TestDeleteDebate(t *testing.T) {
	store, cleanup := setupTestStorage(t)
	defer cleanup()

	if err := store.SaveDebate(sampleRecord("debate_1")); err != nil {
		t.Fatal(err)
	}
	if err := store.DeleteDebate("debate_1"); err != nil {
		t.Fatal(err)
	}
	got, err := store.GetDebate("debate_1")
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Error("debate survived deletion")
	}
}

func TestConversationRoundTrip(t *testing.T) {
	store, cleanup := setupTestStorage(t)
	defer cleanup()

	if err := store.SaveDebate(sampleRecord("debate_1")); err != nil {
		t.Fatal(err)
	}

	conv := conversation.New("conv_test")
	m1 := core.NewArgument("pro", "Transit reduces congestion measurably.", "con")
	m2 := core.NewCounter("con", "Only on corridors with real density.", m1.ID, "pro")
	m2.SetContext("round", 1)
	for _, m := range []*core.Message{m1, m2} {
		if err := conv.Append(m); err != nil {
			t.Fatal(err)
		}
	}

	if err := store.SaveConversation("debate_1", conv); err != nil {
		t.Fatalf("save conversation failed: %v", err)
	}

	got, err := store.LoadConversation("debate_1")
	if err != nil {
		t.Fatalf("load conversation failed: %v", err)
	}
	if got == nil {
		t.Fatal("conversation not found")
	}
	if got.ID != "conv_test" {
		t.Errorf("conversation id changed: %s", got.ID)
	}
	if got.Len() != 2 {
		t.Fatalf("expected 2 messages, got %d", got.Len())
	}

	msgs := got.Messages()
	if msgs[0].ID != m1.ID || msgs[1].ID != m2.ID {
		t.Error("message order changed")
	}
	if msgs[1].Recipient != "pro" {
		t.Errorf("recipient lost: %q", msgs[1].Recipient)
	}
	// Indices are rebuilt on load.
	if replies := got.Replies(m1.ID); len(replies) != 1 || replies[0].ID != m2.ID {
		t.Error("reference graph lost across round trip")
	}
	if v, ok := msgs[1].GetContext("round"); !ok || v != float64(1) {
		t.Errorf("context lost across round trip: %v", v)
	}

	t.Run("Resave", func(t *testing.T) {
		m3 := core.NewCounter("pro", "Density follows the lines that get built.", m2.ID, "con")
		if err := conv.Append(m3); err != nil {
			t.Fatal(err)
		}
		if err := store.SaveConversation("debate_1", conv); err != nil {
			t.Fatal(err)
		}
		again, err := store.LoadConversation("debate_1")
		if err != nil {
			t.Fatal(err)
		}
		if again.Len() != 3 {
			t.Errorf("resave did not replace snapshot: %d messages", again.Len())
		}
	})
}

func TestLoadMissingConversation(t *testing.T) {
	store, cleanup := setupTestStorage(t)
	defer cleanup()

	got, err := store.LoadConversation("nope")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Error("missing conversation should return nil")
	}
}

func TestMessageCountInListing(t *testing.T) {
	store, cleanup := setupTestStorage(t)
	defer cleanup()

	if err := store.SaveDebate(sampleRecord("debate_1")); err != nil {
		t.Fatal(err)
	}
	conv := conversation.New("conv_1")
	if err := conv.Append(core.NewArgument("pro", "A single stored message.", "con")); err != nil {
		t.Fatal(err)
	}
	if err := store.SaveConversation("debate_1", conv); err != nil {
		t.Fatal(err)
	}

	debates, err := store.ListDebates(10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(debates) != 1 || debates[0].MessageCount != 1 {
		t.Errorf("message count wrong: %+v", debates[0])
	}
}
