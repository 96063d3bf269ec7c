package window

import (
	"strings"
	"testing"
	"time"

	"github.com/athenslab/athens/internal/conversation"
	"github.com/athenslab/athens/internal/core"
)

func seedConversation(t *testing.T, contents map[string]string) (*conversation.Conversation, map[string]*core.Message) {
	t.Helper()
	c := conversation.New("window_test")
	msgs := make(map[string]*core.Message, len(contents))

	base := time.Now().Add(-time.Hour)
	i := 0
	for _, key := range []string{"a", "b", "c", "d"} {
		content, ok := contents[key]
		if !ok {
			continue
		}
		m := core.NewMessage("speaker_"+key, content, core.CategoryArgument)
		m.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		if err := c.Append(m); err != nil {
			t.Fatal(err)
		}
		msgs[key] = m
		i++
	}
	return c, msgs
}

func TestEstimateTokens(t *testing.T) {
	if got := EstimateTokens(strings.Repeat("x", 400)); got != 100 {
		t.Errorf("expected 100 tokens for 400 chars, got %d", got)
	}
	if got := EstimateTokens(""); got != 0 {
		t.Errorf("empty text should cost nothing, got %d", got)
	}
}

func TestScore(t *testing.T) {
	c := conversation.New("score_test")
	arg := core.NewMessage("alice", "A plain argument without replies.", core.CategoryArgument)
	userMsg := core.NewUserInput("user", "Steer the debate this way please.")
	reply := core.NewCounter("bob", "Responding to the argument above.", arg.ID, "alice")
	for _, m := range []*core.Message{arg, userMsg, reply} {
		if err := c.Append(m); err != nil {
			t.Fatal(err)
		}
	}
	a := New(c, 1000)

	if got := a.Score(reply); got != 1.0 {
		t.Errorf("unreferenced argument should score 1.0, got %f", got)
	}
	if got := a.Score(userMsg); got != 2.0 {
		t.Errorf("user input should score 2.0, got %f", got)
	}
	if got := a.Score(arg); got != 1.5 {
		t.Errorf("referenced message should score 1.5, got %f", got)
	}
}

func TestScoreWeightsCompound(t *testing.T) {
	c := conversation.New("compound_test")
	userMsg := core.NewUserInput("user", "Address the cost question directly.")
	reply := core.NewCounter("bob", "The cost question has three parts.", userMsg.ID, "")
	if err := c.Append(userMsg); err != nil {
		t.Fatal(err)
	}
	if err := c.Append(reply); err != nil {
		t.Fatal(err)
	}

	a := New(c, 1000, WithUserInputWeight(3.0), WithReferencedWeight(2.0))
	if got := a.Score(userMsg); got != 6.0 {
		t.Errorf("weights should multiply: expected 6.0, got %f", got)
	}
}

func TestBuild(t *testing.T) {
	t.Run("RespectsBudget", func(t *testing.T) {
		c, _ := seedConversation(t, map[string]string{
			"a": strings.Repeat("a", 400), // 100 tokens
			"b": strings.Repeat("b", 400),
			"c": strings.Repeat("c", 400),
			"d": strings.Repeat("d", 400),
		})
		a := New(c, 250)

		selected := a.Build("anyone", 0)
		total := 0
		for _, m := range selected {
			total += EstimateTokens(m.Content)
		}
		if total > 250 {
			t.Errorf("window exceeds budget: %d tokens", total)
		}
		if len(selected) != 2 {
			t.Errorf("expected 2 messages within budget, got %d", len(selected))
		}
	})

	t.Run("SkipsOversizedAndContinues", func(t *testing.T) {
		c, msgs := seedConversation(t, map[string]string{
			"a": strings.Repeat("a", 4000), // 1000 tokens, never fits
			"b": strings.Repeat("b", 200),  // 50 tokens
			"c": strings.Repeat("c", 200),
		})
		a := New(c, 120)

		selected := a.Build("anyone", 0)
		for _, m := range selected {
			if m.ID == msgs["a"].ID {
				t.Error("oversized message selected")
			}
		}
		if len(selected) != 2 {
			t.Errorf("smaller messages should still be selected, got %d", len(selected))
		}
	})

	t.Run("ChronologicalOutput", func(t *testing.T) {
		c, _ := seedConversation(t, map[string]string{
			"a": "The first argument raised.",
			"b": "The second argument raised.",
			"c": "The third argument raised.",
		})
		a := New(c, 10000)

		selected := a.Build("anyone", 0)
		for i := 1; i < len(selected); i++ {
			if selected[i].CreatedAt.Before(selected[i-1].CreatedAt) {
				t.Fatal("window not in chronological order")
			}
		}
	})

	t.Run("MessageCap", func(t *testing.T) {
		c, _ := seedConversation(t, map[string]string{
			"a": "First of several arguments.",
			"b": "Second of several arguments.",
			"c": "Third of several arguments.",
		})
		a := New(c, 10000)
		if got := a.Build("anyone", 2); len(got) != 2 {
			t.Errorf("expected cap of 2, got %d", len(got))
		}
	})

	t.Run("ImportantOldMessageSurvives", func(t *testing.T) {
		c := conversation.New("survival_test")
		base := time.Now().Add(-time.Hour)

		userMsg := core.NewUserInput("user", strings.Repeat("focus on safety ", 10))
		userMsg.CreatedAt = base
		if err := c.Append(userMsg); err != nil {
			t.Fatal(err)
		}
		for i := 0; i < 5; i++ {
			m := core.NewMessage("alice", strings.Repeat("later filler text ", 10), core.CategoryArgument)
			m.CreatedAt = base.Add(time.Duration(i+1) * time.Minute)
			if err := c.Append(m); err != nil {
				t.Fatal(err)
			}
		}

		// Budget fits only two messages; the weighted user input must be
		// one of them despite being oldest.
		a := New(c, 2*EstimateTokens(userMsg.Content)+1)
		selected := a.Build("alice", 0)
		found := false
		for _, m := range selected {
			if m.ID == userMsg.ID {
				found = true
			}
		}
		if !found {
			t.Error("high-importance old message dropped from window")
		}
		if len(selected) > 0 && selected[0].ID != userMsg.ID {
			t.Error("oldest selected message should come first")
		}
	})

	t.Run("EmptyConversation", func(t *testing.T) {
		a := New(conversation.New("empty"), 100)
		if got := a.Build("anyone", 0); got != nil {
			t.Errorf("expected nil window, got %d messages", len(got))
		}
	})
}

func TestFormat(t *testing.T) {
	c, _ := seedConversation(t, map[string]string{
		"a": "A formatted line of argument.",
	})
	a := New(c, 10000)

	got := a.Format("anyone", 0)
	want := "speaker_a (argument): A formatted line of argument."
	if got != want {
		t.Errorf("format mismatch:\n got: %s\nwant: %s", got, want)
	}
}

func TestCompressNotImplemented(t *testing.T) {
	a := New(conversation.New("compress"), 100)
	if _, err := a.Compress(nil); err == nil {
		t.Fatal("expected an error from Compress")
	}
}

func TestSetMaxTokens(t *testing.T) {
	a := New(conversation.New("budget"), 100)
	a.SetMaxTokens(7)
	if a.MaxTokens() != 7 {
		t.Errorf("budget not updated: %d", a.MaxTokens())
	}
	if got := New(conversation.New("zero"), 0).MaxTokens(); got != core.DefaultContextTokens {
		t.Errorf("zero budget should fall back to default, got %d", got)
	}
}
