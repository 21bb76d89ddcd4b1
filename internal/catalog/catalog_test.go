package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/fitwellhq/supportchat/internal/models"
)

func testCatalog() *Catalog {
	return New([]models.Command{
		{ID: "1", Title: "greeting", Kind: models.CommandText, Body: "Hello! How can we help?"},
		{ID: "2", Title: "great-job", Kind: models.CommandText, Body: "Keep it up!"},
		{ID: "3", Title: "welcome-audio", Kind: models.CommandAudio, AudioRef: "uploads/welcome.mp3"},
	})
}

func TestSuggestSubstring(t *testing.T) {
	cat := testCatalog()

	tests := []struct {
		query string
		want  []string
	}{
		{"gre", []string{"greeting", "great-job"}},
		{"GRE", []string{"greeting", "great-job"}},
		{"audio", []string{"welcome-audio"}},
		{"come", []string{"welcome-audio"}},
		{"", []string{"greeting", "great-job", "welcome-audio"}},
		{"zzz", nil},
	}

	for _, tt := range tests {
		got := cat.Suggest(tt.query)
		if len(got) != len(tt.want) {
			t.Fatalf("Suggest(%q) returned %d matches, want %d", tt.query, len(got), len(tt.want))
		}
		for i, cmd := range got {
			if cmd.Title != tt.want[i] {
				t.Fatalf("Suggest(%q)[%d] = %q, want %q", tt.query, i, cmd.Title, tt.want[i])
			}
		}
	}
}

func TestGet(t *testing.T) {
	cat := testCatalog()
	if cmd := cat.Get("3"); cmd == nil || cmd.Title != "welcome-audio" {
		t.Fatalf("Get(3) = %+v", cmd)
	}
	if cmd := cat.Get("nope"); cmd != nil {
		t.Fatalf("Get(nope) = %+v, want nil", cmd)
	}
}

func TestParseTrigger(t *testing.T) {
	if q, ok := ParseTrigger("/gre"); !ok || q != "gre" {
		t.Fatalf("ParseTrigger(/gre) = %q, %v", q, ok)
	}
	if _, ok := ParseTrigger("hello"); ok {
		t.Fatal("plain text must not trigger suggestions")
	}
	if q, ok := ParseTrigger("/"); !ok || q != "" {
		t.Fatalf("ParseTrigger(/) = %q, %v", q, ok)
	}
}

type fakeLister struct {
	commands []models.Command
	err      error
}

func (f *fakeLister) ListCommands(ctx context.Context) ([]models.Command, error) {
	return f.commands, f.err
}

func TestLoad(t *testing.T) {
	cat, err := Load(context.Background(), &fakeLister{commands: testCatalog().Commands()})
	if err != nil {
		t.Fatal(err)
	}
	if len(cat.Commands()) != 3 {
		t.Fatalf("expected 3 commands, got %d", len(cat.Commands()))
	}

	if _, err := Load(context.Background(), &fakeLister{err: errors.New("backend down")}); err == nil {
		t.Fatal("expected load error")
	}
}
