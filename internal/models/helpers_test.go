package models

import (
	"testing"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

func TestRecordIDString(t *testing.T) {
	id := surrealmodels.RecordID{Table: "review", ID: "abc123"}
	s, err := RecordIDString(id)
	if err != nil {
		t.Fatalf("RecordIDString failed: %v", err)
	}
	if s != "abc123" {
		t.Errorf("expected abc123, got %q", s)
	}
}

func TestRecordIDStringNonString(t *testing.T) {
	id := surrealmodels.RecordID{Table: "review", ID: 42}
	if _, err := RecordIDString(id); err == nil {
		t.Error("expected error for non-string ID")
	}
}

func TestStatusTerminal(t *testing.T) {
	tests := []struct {
		status   ReviewStatus
		terminal bool
	}{
		{StatusPending, false},
		{StatusCompleted, true},
		{StatusFailed, true},
	}
	for _, tt := range tests {
		if got := tt.status.Terminal(); got != tt.terminal {
			t.Errorf("Terminal(%s) = %v, want %v", tt.status, got, tt.terminal)
		}
	}
}

func TestFeedbackHasValidScore(t *testing.T) {
	tests := []struct {
		name  string
		fb    *Feedback
		valid bool
	}{
		{"nil feedback", nil, false},
		{"score 1", &Feedback{Score: 1}, true},
		{"score 10", &Feedback{Score: 10}, true},
		{"score 0", &Feedback{Score: 0}, false},
		{"score 11", &Feedback{Score: 11}, false},
		{"negative", &Feedback{Score: -3}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.fb.HasValidScore(); got != tt.valid {
				t.Errorf("HasValidScore() = %v, want %v", got, tt.valid)
			}
		})
	}
}
