package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/qlconsole/qlconsole-go/pkg/qlconsole"
	"github.com/qlconsole/qlconsole-go/pkg/qlconsole/event"
)

func TestOutputLoop_Results(t *testing.T) {
	results := make(chan event.Result, 2)
	errs := make(chan error, 1)
	results <- event.Result{Kind: event.PlayerConnected, PlayerName: "Lucy"}
	results <- event.Result{Kind: event.MapLoaded}
	errs <- errors.New("tail hiccup")
	close(results)

	var out, errOut bytes.Buffer
	// Selection between ready channels is random, so drain until results close.
	err := outputLoop(context.Background(), "pretty", results, nil, errs, &out, &errOut)
	if err != nil {
		t.Fatalf("outputLoop() error = %v", err)
	}
	if got, want := out.String(), "+ Lucy connected\n> map loaded\n"; got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}

func TestOutputLoop_DeltasReplaceResults(t *testing.T) {
	results := make(chan event.Result, 1)
	deltas := make(chan qlconsole.RosterDelta, 1)
	results <- event.Result{Kind: event.PlayerConnected, PlayerName: "Lucy"}
	deltas <- qlconsole.RosterDelta{Generation: 1, Joined: []event.Player{{ID: event.PendingID, Name: "Lucy"}}}

	ctx, cancel := context.WithCancel(context.Background())
	var out bytes.Buffer
	done := make(chan error, 1)
	go func() {
		done <- outputLoop(ctx, "pretty", results, deltas, nil, &out, &bytes.Buffer{})
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("outputLoop() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("outputLoop did not return after cancel")
	}

	if got := out.String(); got != "[gen 1] +Lucy\n" {
		t.Errorf("output = %q, want only the delta", got)
	}
}

func TestRunTail_InvalidFlags(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"bad format", []string{"tail", "--format", "xml"}, "invalid format"},
		{"bad type", []string{"tail", "--format", "jsonl", "--types", "player_join"}, "--types"},
		{"overlap", []string{"tail", "--format", "jsonl", "--types", "players", "--exclude-types", "players"}, "both included and excluded"},
		{"missing dir", []string{"tail", "--format", "jsonl", "--log-dir", "/nonexistent/qlconsole/dir"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, "", tt.args...)
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.want != "" && !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want %q", err, tt.want)
			}
		})
	}
}
