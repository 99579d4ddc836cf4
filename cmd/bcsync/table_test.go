package main

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cn3rd/bcsync/internal/model"
	"github.com/cn3rd/bcsync/internal/pipeline"
)

func TestRenderTable(t *testing.T) {
	out := renderTable([]string{"ID", "Title"}, [][]string{
		{"p1", "First"},
		{"p2"},
	})

	for _, want := range []string{"ID", "Title", "p1", "First", "p2"} {
		if !strings.Contains(out, want) {
			t.Errorf("table output missing %q:\n%s", want, out)
		}
	}

	if renderTable(nil, nil) != "" {
		t.Error("headerless table should render empty")
	}
}

func TestRenderSummary(t *testing.T) {
	s := &pipeline.Summary{}
	s.Results = []model.Result{
		{ItemID: "p1", Outcome: model.OutcomeSuccess},
		{ItemID: "p2", Title: "Album", Artist: "Artist", Outcome: model.OutcomeFailed, Err: errors.New("boom")},
	}
	s.Total = 2
	s.Succeeded = 1
	s.Failed = 1

	out := renderSummary(s)
	if !strings.Contains(out, "2 release(s): 1 downloaded, 0 skipped, 1 failed") {
		t.Errorf("summary line missing:\n%s", out)
	}
	for _, want := range []string{"p2", "Artist", "Album", "boom"} {
		if !strings.Contains(out, want) {
			t.Errorf("failure table missing %q:\n%s", want, out)
		}
	}

	clean := &pipeline.Summary{Total: 3, Skipped: 3}
	out = renderSummary(clean)
	if strings.Contains(out, "Error") {
		t.Errorf("clean summary should have no failure table:\n%s", out)
	}
}

func TestLoadSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	if err := os.WriteFile(path, []byte(`{"username":"someone"}`), 0644); err != nil {
		t.Fatal(err)
	}

	settings, gotPath, err := loadSettings(path)
	if err != nil {
		t.Fatalf("loadSettings failed: %v", err)
	}
	if gotPath != path {
		t.Errorf("path = %q, want %q", gotPath, path)
	}
	if settings.Username != "someone" {
		t.Errorf("Username = %q, want someone", settings.Username)
	}
}
