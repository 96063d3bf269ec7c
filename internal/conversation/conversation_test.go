package conversation

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/athenslab/athens/internal/core"
)

func buildConversation(t *testing.T) (*Conversation, []*core.Message) {
	t.Helper()
	c := New("test_conv")

	base := time.Now().Add(-time.Hour)
	msgs := make([]*core.Message, 0, 4)

	m1 := core.NewArgument("alice", "Renewable energy is the only viable path forward.", "bob")
	m1.CreatedAt = base
	m2 := core.NewCounter("bob", "Storage costs make renewables unreliable at scale.", m1.ID, "alice")
	m2.CreatedAt = base.Add(time.Minute)
	m3 := core.NewCounter("alice", "Battery prices have fallen ninefold in a decade.", m2.ID, "bob")
	m3.CreatedAt = base.Add(2 * time.Minute)
	m4 := core.NewUserInput("user", "Please address grid stability.")
	m4.CreatedAt = base.Add(3 * time.Minute)

	for _, m := range []*core.Message{m1, m2, m3, m4} {
		if err := c.Append(m); err != nil {
			t.Fatalf("append failed: %v", err)
		}
		msgs = append(msgs, m)
	}
	return c, msgs
}

func TestAppend(t *testing.T) {
	t.Run("MaintainsOrder", func(t *testing.T) {
		c, msgs := buildConversation(t)
		got := c.Messages()
		if len(got) != len(msgs) {
			t.Fatalf("expected %d messages, got %d", len(msgs), len(got))
		}
		for i := range msgs {
			if got[i].ID != msgs[i].ID {
				t.Errorf("message %d out of order", i)
			}
		}
	})

	t.Run("DuplicateIDRejected", func(t *testing.T) {
		c, msgs := buildConversation(t)
		before := c.Len()

		dup := core.NewMessage("alice", "Another point entirely.", core.CategoryArgument)
		dup.ID = msgs[0].ID
		err := c.Append(dup)
		if !errors.Is(err, ErrDuplicateID) {
			t.Fatalf("expected ErrDuplicateID, got %v", err)
		}
		if c.Len() != before {
			t.Errorf("failed append mutated the log: %d -> %d", before, c.Len())
		}
		if len(c.BySender("alice", 0)) != 2 {
			t.Errorf("failed append mutated the sender index")
		}
	})
}

func TestIndices(t *testing.T) {
	c, msgs := buildConversation(t)

	t.Run("BySender", func(t *testing.T) {
		alice := c.BySender("alice", 0)
		if len(alice) != 2 {
			t.Fatalf("expected 2 messages from alice, got %d", len(alice))
		}
		if limited := c.BySender("alice", 1); len(limited) != 1 || limited[0].ID != msgs[2].ID {
			t.Errorf("limit should keep the most recent message")
		}
	})

	t.Run("ByCategory", func(t *testing.T) {
		if got := c.ByCategory(core.CategoryCounter, 0); len(got) != 2 {
			t.Errorf("expected 2 counters, got %d", len(got))
		}
		if got := c.ByCategory(core.CategoryUserInput, 0); len(got) != 1 {
			t.Errorf("expected 1 user input, got %d", len(got))
		}
	})

	t.Run("ReferencesAndReplies", func(t *testing.T) {
		refs := c.References(msgs[1].ID)
		if len(refs) != 1 || refs[0].ID != msgs[0].ID {
			t.Errorf("m2 should reference m1")
		}
		replies := c.Replies(msgs[0].ID)
		if len(replies) != 1 || replies[0].ID != msgs[1].ID {
			t.Errorf("m1 should have m2 as its reply")
		}
	})

	t.Run("Recent", func(t *testing.T) {
		recent := c.Recent(2)
		if len(recent) != 2 || recent[1].ID != msgs[3].ID {
			t.Errorf("Recent should return the trailing messages in order")
		}
		if got := c.Recent(100); len(got) != c.Len() {
			t.Errorf("oversized n should return everything")
		}
	})

	t.Run("Timeframe", func(t *testing.T) {
		start := msgs[1].CreatedAt
		end := msgs[2].CreatedAt
		got := c.InTimeframe(start, end)
		if len(got) != 2 {
			t.Errorf("expected 2 messages in timeframe, got %d", len(got))
		}
		if since := c.Since(msgs[2].CreatedAt); len(since) != 1 {
			t.Errorf("Since should be strictly after, got %d", len(since))
		}
	})
}

func TestThread(t *testing.T) {
	t.Run("FollowsBothDirections", func(t *testing.T) {
		c, msgs := buildConversation(t)
		// Starting from the middle finds both the referenced message and
		// the reply.
		thread := c.Thread(msgs[1].ID)
		if len(thread) != 3 {
			t.Fatalf("expected thread of 3, got %d", len(thread))
		}
		for i := 1; i < len(thread); i++ {
			if thread[i].CreatedAt.Before(thread[i-1].CreatedAt) {
				t.Errorf("thread not sorted by timestamp")
			}
		}
	})

	t.Run("TerminatesOnCycle", func(t *testing.T) {
		c := New("cycle")
		a := core.NewMessage("x", "First in the loop.", core.CategoryGeneral)
		b := core.NewMessage("y", "Second in the loop.", core.CategoryGeneral)
		a.AddReference(b.ID)
		b.AddReference(a.ID)
		if err := c.Append(a); err != nil {
			t.Fatal(err)
		}
		if err := c.Append(b); err != nil {
			t.Fatal(err)
		}

		thread := c.Thread(a.ID)
		if len(thread) != 2 {
			t.Errorf("cycle should yield each message once, got %d", len(thread))
		}
	})

	t.Run("UnknownID", func(t *testing.T) {
		c, _ := buildConversation(t)
		if got := c.Thread("missing"); len(got) != 0 {
			t.Errorf("unknown id should yield an empty thread")
		}
	})
}

func TestSearch(t *testing.T) {
	c, _ := buildConversation(t)

	if got := c.Search("battery", false); len(got) != 1 {
		t.Errorf("case-insensitive search failed: got %d", len(got))
	}
	if got := c.Search("Battery", true); len(got) != 1 {
		t.Errorf("case-sensitive search with exact case failed")
	}
	if got := c.Search("battery", true); len(got) != 0 {
		t.Errorf("case-sensitive search should not match different case")
	}
}

func TestRemove(t *testing.T) {
	c, msgs := buildConversation(t)

	if !c.Remove(msgs[1].ID) {
		t.Fatal("remove reported false for an existing message")
	}
	if c.Remove(msgs[1].ID) {
		t.Error("second remove should report false")
	}
	if c.Get(msgs[1].ID) != nil {
		t.Error("removed message still retrievable")
	}
	if got := c.BySender("bob", 0); len(got) != 0 {
		t.Errorf("sender index not pruned: %d entries", len(got))
	}
	if got := c.Replies(msgs[0].ID); len(got) != 0 {
		t.Errorf("backlink not pruned: %d replies", len(got))
	}
	if c.Len() != 3 {
		t.Errorf("expected 3 messages after removal, got %d", c.Len())
	}
}

func TestContextFor(t *testing.T) {
	c, msgs := buildConversation(t)

	ctx := c.ContextFor("alice", 2)
	seen := make(map[string]bool)
	for _, m := range ctx {
		if seen[m.ID] {
			t.Fatalf("duplicate message %s in context", m.ID)
		}
		seen[m.ID] = true
	}
	// Messages addressed to alice must be present even outside the
	// recent tail.
	if !seen[msgs[1].ID] {
		t.Error("message addressed to alice missing from her context")
	}
	for i := 1; i < len(ctx); i++ {
		if ctx[i].CreatedAt.Before(ctx[i-1].CreatedAt) {
			t.Error("context not in timestamp order")
		}
	}
}

func TestRecentExchanges(t *testing.T) {
	c, msgs := buildConversation(t)

	exchanges := c.RecentExchanges(10)
	if len(exchanges) == 0 {
		t.Fatal("expected at least one exchange")
	}
	var found bool
	for _, ex := range exchanges {
		if ex.Message.ID == msgs[0].ID {
			found = true
			if len(ex.Replies) != 1 || ex.Replies[0].ID != msgs[1].ID {
				t.Errorf("m1 exchange should carry m2 as reply")
			}
		}
	}
	if !found {
		t.Error("opening message missing from exchanges")
	}
}

func TestStats(t *testing.T) {
	t.Run("Empty", func(t *testing.T) {
		stats := New("empty").Stats()
		if stats.TotalMessages != 0 || stats.FirstMessageAt != nil {
			t.Errorf("empty conversation should produce zero stats")
		}
	})

	t.Run("Populated", func(t *testing.T) {
		c, _ := buildConversation(t)
		stats := c.Stats()
		if stats.TotalMessages != 4 {
			t.Errorf("expected 4 total, got %d", stats.TotalMessages)
		}
		if stats.BySender["alice"] != 2 {
			t.Errorf("expected 2 from alice, got %d", stats.BySender["alice"])
		}
		if stats.WithReferences != 2 {
			t.Errorf("expected 2 with references, got %d", stats.WithReferences)
		}
		if stats.ReplyRate != 0.5 {
			t.Errorf("expected reply rate 0.5, got %f", stats.ReplyRate)
		}
		if stats.DurationSeconds <= 0 {
			t.Errorf("expected positive duration")
		}
	})
}

func TestExportImport(t *testing.T) {
	c, msgs := buildConversation(t)

	data, err := c.ExportJSON()
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}

	restored, err := ImportJSON(data)
	if err != nil {
		t.Fatalf("import failed: %v", err)
	}

	if restored.ID != c.ID {
		t.Errorf("conversation id changed: %s", restored.ID)
	}
	if restored.Len() != c.Len() {
		t.Fatalf("message count changed: %d -> %d", c.Len(), restored.Len())
	}
	for i, m := range restored.Messages() {
		if m.ID != msgs[i].ID {
			t.Errorf("message %d order changed", i)
		}
	}
	// Indices are rebuilt by replaying appends.
	if got := restored.Replies(msgs[0].ID); len(got) != 1 {
		t.Errorf("reference graph lost on import: %d replies", len(got))
	}
	if got := restored.BySender("alice", 0); len(got) != 2 {
		t.Errorf("sender index lost on import")
	}
}

func TestClearAndFilter(t *testing.T) {
	c, _ := buildConversation(t)

	counters := c.Filter(func(m *core.Message) bool {
		return m.Category == core.CategoryCounter
	})
	if len(counters) != 2 {
		t.Errorf("filter returned %d, want 2", len(counters))
	}

	c.Clear()
	if !c.IsEmpty() {
		t.Error("conversation not empty after Clear")
	}
	if got := c.BySender("alice", 0); len(got) != 0 {
		t.Error("indices survived Clear")
	}
}

func TestNewGeneratesID(t *testing.T) {
	c := New("")
	if c.ID == "" {
		t.Error("expected a generated conversation id")
	}
	if fmt.Sprintf("%.5s", c.ID) != "conv_" {
		t.Errorf("generated id should carry the conv_ prefix: %s", c.ID)
	}
}
