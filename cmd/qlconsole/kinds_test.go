package main

import (
	"reflect"
	"strings"
	"testing"

	"github.com/qlconsole/qlconsole-go/pkg/qlconsole/event"
)

func TestNormalizeKinds(t *testing.T) {
	tests := []struct {
		name    string
		input   []string
		want    []event.Kind
		wantErr string
	}{
		{
			name:  "nil",
			input: nil,
			want:  nil,
		},
		{
			name:  "single",
			input: []string{"player_connected"},
			want:  []event.Kind{event.PlayerConnected},
		},
		{
			name:  "case and whitespace",
			input: []string{" Player_Kicked ", "MAP_LOADED"},
			want:  []event.Kind{event.PlayerKicked, event.MapLoaded},
		},
		{
			name:  "duplicates removed",
			input: []string{"players", "players", "PLAYERS"},
			want:  []event.Kind{event.Players},
		},
		{
			name:    "empty entry",
			input:   []string{"players", " "},
			wantErr: "empty kind",
		},
		{
			name:    "unknown",
			input:   []string{"player_join"},
			wantErr: "unknown kind",
		},
		{
			name:    "ignored is not selectable",
			input:   []string{"ignored"},
			wantErr: "unknown kind",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeKinds(tt.input)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("NormalizeKinds() error = %v, want %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("NormalizeKinds() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("NormalizeKinds() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNormalizeKinds_ErrorListsValidNames(t *testing.T) {
	_, err := NormalizeKinds([]string{"nope"})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "player_ragequit") {
		t.Errorf("error %q should list valid kinds", err)
	}
}

func TestParseHint(t *testing.T) {
	k, err := ParseHint("")
	if err != nil || k != event.Ignored {
		t.Errorf("ParseHint(\"\") = %v, %v; want ignored, nil", k, err)
	}
	k, err = ParseHint("ConfigStrings")
	if err == nil {
		t.Errorf("ParseHint(ConfigStrings) = %v, want error", k)
	}
	k, err = ParseHint("config_strings")
	if err != nil || k != event.ConfigStrings {
		t.Errorf("ParseHint(config_strings) = %v, %v", k, err)
	}
}

func TestRejectOverlap(t *testing.T) {
	if err := RejectOverlap([]event.Kind{event.Players}, []event.Kind{event.MapLoaded}); err != nil {
		t.Errorf("RejectOverlap() error = %v", err)
	}
	if err := RejectOverlap(nil, []event.Kind{event.MapLoaded}); err != nil {
		t.Errorf("RejectOverlap() error = %v", err)
	}
	err := RejectOverlap([]event.Kind{event.Players, event.MapLoaded}, []event.Kind{event.MapLoaded})
	if err == nil || !strings.Contains(err.Error(), "map_loaded") {
		t.Errorf("RejectOverlap() error = %v, want overlap on map_loaded", err)
	}
}
