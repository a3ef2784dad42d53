package chat

import (
	"strings"
	"testing"

	"github.com/firebase/genkit/go/ai"

	"github.com/studybuddy/biochem/internal/log"
)

func testChat(budget TokenBudget) *Chat {
	return &Chat{logger: log.NewNop(), tokenBudget: budget}
}

func textMessage(role ai.Role, text string) *ai.Message {
	return &ai.Message{Role: role, Content: []*ai.Part{ai.NewTextPart(text)}}
}

func TestEstimateTokens(t *testing.T) {
	if got := estimateTokens(""); got != 0 {
		t.Errorf("estimateTokens(\"\") = %d, want 0", got)
	}
	if got := estimateTokens("abcdefgh"); got != 4 {
		t.Errorf("estimateTokens(8 runes) = %d, want 4", got)
	}
}

func TestTruncateHistory_UnderBudgetUnchanged(t *testing.T) {
	c := testChat(DefaultTokenBudget())
	msgs := []*ai.Message{
		textMessage(ai.RoleUser, "short question"),
		textMessage(ai.RoleModel, "short answer"),
	}

	got := c.truncateHistory(msgs, 1000)
	if len(got) != 2 {
		t.Errorf("len = %d, want 2", len(got))
	}
}

func TestTruncateHistory_DropsOldest(t *testing.T) {
	c := testChat(DefaultTokenBudget())

	// Each message estimates to 50 tokens; budget fits only two.
	big := strings.Repeat("ab", 50)
	msgs := []*ai.Message{
		textMessage(ai.RoleUser, "oldest "+big),
		textMessage(ai.RoleModel, "middle "+big),
		textMessage(ai.RoleUser, "newest "+big),
	}

	got := c.truncateHistory(msgs, 120)
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if !strings.HasPrefix(got[0].Content[0].Text, "middle") {
		t.Errorf("got[0] = %q, want middle message", got[0].Content[0].Text)
	}
	if !strings.HasPrefix(got[1].Content[0].Text, "newest") {
		t.Errorf("got[1] = %q, want newest message", got[1].Content[0].Text)
	}
}

func TestTruncateHistory_KeepsSystemMessage(t *testing.T) {
	c := testChat(DefaultTokenBudget())

	big := strings.Repeat("ab", 200)
	msgs := []*ai.Message{
		textMessage(ai.RoleSystem, "persona"),
		textMessage(ai.RoleUser, big),
		textMessage(ai.RoleModel, big),
		textMessage(ai.RoleUser, "latest"),
	}

	got := c.truncateHistory(msgs, 50)
	if len(got) < 2 {
		t.Fatalf("len = %d, want at least system + latest", len(got))
	}
	if got[0].Role != ai.RoleSystem {
		t.Errorf("got[0].Role = %v, want system", got[0].Role)
	}
	if got[len(got)-1].Content[0].Text != "latest" {
		t.Errorf("last = %q, want latest", got[len(got)-1].Content[0].Text)
	}
}

func TestTruncateHistory_Empty(t *testing.T) {
	c := testChat(DefaultTokenBudget())
	if got := c.truncateHistory(nil, 100); len(got) != 0 {
		t.Errorf("got = %v, want empty", got)
	}
}
