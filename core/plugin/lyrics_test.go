package plugin

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"audiowave/core/playback"
	"audiowave/model"
)

func TestParseLRC(t *testing.T) {
	text := "[ti:Test]\n" +
		"[00:12.00]First line\n" +
		"[00:01.50]Early line\n" +
		"[01:03]No fraction\n" +
		"\n" +
		"plain text without stamp\n" +
		"[00:30.00][00:45.00]Chorus\n"

	lines := ParseLRC(text)
	want := []LyricLine{
		{At: 1500 * time.Millisecond, Text: "Early line"},
		{At: 12 * time.Second, Text: "First line"},
		{At: 30 * time.Second, Text: "Chorus"},
		{At: 45 * time.Second, Text: "Chorus"},
		{At: 63 * time.Second, Text: "No fraction"},
	}

	if len(lines) != len(want) {
		t.Fatalf("ParseLRC returned %d lines, want %d: %v", len(lines), len(want), lines)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Fatalf("line %d = %+v, want %+v", i, lines[i], want[i])
		}
	}
}

func TestParseLRCFractionUnits(t *testing.T) {
	cases := []struct {
		stamp string
		want  time.Duration
	}{
		{"[00:10.5]x", 10*time.Second + 500*time.Millisecond},
		{"[00:10.50]x", 10*time.Second + 500*time.Millisecond},
		{"[00:10.500]x", 10*time.Second + 500*time.Millisecond},
	}
	for _, tc := range cases {
		lines := ParseLRC(tc.stamp)
		if len(lines) != 1 || lines[0].At != tc.want {
			t.Fatalf("ParseLRC(%q) = %v, want At=%s", tc.stamp, lines, tc.want)
		}
	}
}

func TestParseLRCEmpty(t *testing.T) {
	if lines := ParseLRC(""); len(lines) != 0 {
		t.Fatalf("ParseLRC(\"\") = %v, want empty", lines)
	}
	if lines := ParseLRC("[ar:Band]\n[al:Album]"); len(lines) != 0 {
		t.Fatalf("metadata-only document parsed as %v", lines)
	}
}

func TestCurrentLine(t *testing.T) {
	lrc := "[00:00.00]intro\n[00:10.00]verse\n[00:20.00]chorus"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"lrc": map[string]string{"lyric": lrc},
		})
	}))
	defer srv.Close()

	l := NewLyrics(srv.URL)
	l.HandleEvent(playback.Event{
		Kind:  playback.EventTrackChanged,
		Track: &model.Track{URI: "a", Title: "Song", Artist: "Band"},
	})

	// The fetch runs in the background.
	deadline := time.Now().Add(2 * time.Second)
	for len(l.Lines("a")) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("lyrics never fetched")
		}
		time.Sleep(10 * time.Millisecond)
	}

	cases := []struct {
		pos  time.Duration
		want string
	}{
		{0, "intro"},
		{5 * time.Second, "intro"},
		{10 * time.Second, "verse"},
		{11 * time.Second, "verse"},
		{25 * time.Second, "chorus"},
	}
	for _, tc := range cases {
		line, ok := l.CurrentLine("a", tc.pos)
		if !ok || line.Text != tc.want {
			t.Fatalf("CurrentLine(a, %s) = %+v ok=%v, want %q", tc.pos, line, ok, tc.want)
		}
	}

	if _, ok := l.CurrentLine("other", time.Second); ok {
		t.Fatal("CurrentLine matched a different track")
	}
}
