package cmd

import (
	"strings"
	"testing"
	"time"

	"github.com/firebase/genkit/go/ai"

	"github.com/studybuddy/biochem/internal/session"
)

func TestDeriveTitle(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "short question unchanged",
			input: "What is the pKa of acetic acid?",
			want:  "What is the pKa of acetic acid?",
		},
		{
			name:  "whitespace collapsed",
			input: "  buffer   pH\n question ",
			want:  "buffer pH question",
		},
		{
			name:  "long question truncated",
			input: strings.Repeat("enzyme kinetics ", 10),
			want:  strings.Repeat("enzyme kinetics ", 10)[:57] + "...",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := deriveTitle(tt.input)
			if got != tt.want {
				t.Errorf("deriveTitle(%q) = %q, want %q", tt.input, got, tt.want)
			}
			if len([]rune(got)) > 60 {
				t.Errorf("title length = %d runes, want <= 60", len([]rune(got)))
			}
		})
	}
}

func TestFormatTime(t *testing.T) {
	t.Parallel()

	now := time.Now()
	tests := []struct {
		name string
		t    time.Time
		want string
	}{
		{name: "just now", t: now.Add(-30 * time.Second), want: "just now"},
		{name: "minutes", t: now.Add(-5 * time.Minute), want: "5 minutes ago"},
		{name: "hours", t: now.Add(-3 * time.Hour), want: "3 hours ago"},
		{name: "days", t: now.Add(-48 * time.Hour), want: "2 days ago"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := formatTime(tt.t); got != tt.want {
				t.Errorf("formatTime() = %q, want %q", got, tt.want)
			}
		})
	}

	old := now.Add(-30 * 24 * time.Hour)
	if got := formatTime(old); got != old.Format("2006-01-02 15:04") {
		t.Errorf("formatTime(old) = %q, want absolute date", got)
	}
}

func TestParseRateBurst(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  int
	}{
		{name: "unset", value: "", want: 0},
		{name: "valid", value: "120", want: 120},
		{name: "non-numeric", value: "abc", want: 0},
		{name: "negative", value: "-5", want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("BIOCHEM_RATE_BURST", tt.value)
			if got := parseRateBurst(); got != tt.want {
				t.Errorf("parseRateBurst() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestAPIKeyStatus(t *testing.T) {
	t.Parallel()

	if got := apiKeyStatus(""); got != "not set" {
		t.Errorf("apiKeyStatus(empty) = %q", got)
	}
	if got := apiKeyStatus("short"); got != "configured" {
		t.Errorf("apiKeyStatus(short) = %q", got)
	}
	got := apiKeyStatus("AIzaSyExampleKey1234")
	if !strings.HasPrefix(got, "AIza") || !strings.Contains(got, "...") {
		t.Errorf("apiKeyStatus(long) = %q, want masked prefix and suffix", got)
	}
	if strings.Contains(got, "ExampleKey") {
		t.Errorf("apiKeyStatus leaked key body: %q", got)
	}
}

func TestMessageText(t *testing.T) {
	t.Parallel()

	msg := &session.Message{
		Role: session.RoleModel,
		Content: []*ai.Part{
			ai.NewTextPart("The isoelectric point "),
			ai.NewTextPart("is 5.68."),
		},
	}

	if got := messageText(msg); got != "The isoelectric point is 5.68." {
		t.Errorf("messageText() = %q", got)
	}
}
