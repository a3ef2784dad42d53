package chat

import (
	"testing"

	"github.com/firebase/genkit/go/ai"
)

func TestGenerationConfig(t *testing.T) {
	t.Run("unset knobs keep the prompt file's config", func(t *testing.T) {
		if cfg := generationConfig(0, 0); cfg != nil {
			t.Errorf("generationConfig(0, 0) = %+v, want nil", cfg)
		}
	})

	t.Run("temperature only", func(t *testing.T) {
		cfg := generationConfig(0.3, 0)
		if cfg == nil || cfg.Temperature == nil || *cfg.Temperature != 0.3 {
			t.Fatalf("generationConfig(0.3, 0) = %+v, want Temperature 0.3", cfg)
		}
		if cfg.MaxOutputTokens != 0 {
			t.Errorf("MaxOutputTokens = %d, want 0", cfg.MaxOutputTokens)
		}
	})

	t.Run("max tokens only", func(t *testing.T) {
		cfg := generationConfig(0, 2048)
		if cfg == nil || cfg.MaxOutputTokens != 2048 {
			t.Fatalf("generationConfig(0, 2048) = %+v, want MaxOutputTokens 2048", cfg)
		}
		if cfg.Temperature != nil {
			t.Errorf("Temperature = %v, want nil", *cfg.Temperature)
		}
	})

	t.Run("both knobs", func(t *testing.T) {
		cfg := generationConfig(0.7, 4096)
		if cfg == nil || cfg.Temperature == nil || *cfg.Temperature != 0.7 {
			t.Fatalf("generationConfig(0.7, 4096) = %+v, want Temperature 0.7", cfg)
		}
		if cfg.MaxOutputTokens != 4096 {
			t.Errorf("MaxOutputTokens = %d, want 4096", cfg.MaxOutputTokens)
		}
	})
}

func TestConfigValidate(t *testing.T) {
	// A fully valid Config needs a live Genkit instance, so only the
	// rejection paths are checked here. The happy path is covered by the
	// integration tests.
	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "empty config", cfg: Config{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.validate(); err == nil {
				t.Error("validate() = nil, want error")
			}
		})
	}
}

func TestDeepCopyMessages(t *testing.T) {
	original := []*ai.Message{
		{
			Role: ai.RoleUser,
			Content: []*ai.Part{
				ai.NewTextPart("calculate the pH"),
			},
			Metadata: map[string]any{"k": "v"},
		},
		{
			Role: ai.RoleModel,
			Content: []*ai.Part{
				{Kind: ai.PartToolRequest, ToolRequest: &ai.ToolRequest{Name: "calculate_ph", Input: map[string]any{"pka": 4.76}}},
			},
		},
	}

	copied := deepCopyMessages(original)
	if len(copied) != len(original) {
		t.Fatalf("len = %d, want %d", len(copied), len(original))
	}

	// Mutating the copy must not touch the original.
	copied[0].Content[0] = ai.NewTextPart("mutated")
	copied[0].Metadata["k"] = "changed"
	if original[0].Content[0].Text != "calculate the pH" {
		t.Error("original content mutated through copy")
	}
	if original[0].Metadata["k"] != "v" {
		t.Error("original metadata mutated through copy")
	}

	if copied[1].Content[0].ToolRequest.Name != "calculate_ph" {
		t.Errorf("tool request name = %q", copied[1].Content[0].ToolRequest.Name)
	}
	if copied[1].Content[0].ToolRequest == original[1].Content[0].ToolRequest {
		t.Error("tool request pointer shared with original")
	}
}

func TestDeepCopyMessages_Nil(t *testing.T) {
	if deepCopyMessages(nil) != nil {
		t.Error("deepCopyMessages(nil) != nil")
	}
	if deepCopyPart(nil) != nil {
		t.Error("deepCopyPart(nil) != nil")
	}
}
