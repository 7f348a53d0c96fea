package plugin

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"audiowave/core/playback"
	"audiowave/logger"
)

// LyricLine is one timestamped line of an LRC document.
type LyricLine struct {
	At   time.Duration `json:"at"`
	Text string        `json:"text"`
}

// Lyrics fetches timed lyrics on track changes and serves the line
// matching the playback position. Fetching runs in a background
// goroutine so dispatch never waits on the network.
type Lyrics struct {
	baseURL string
	client  *http.Client

	mu       sync.Mutex
	trackURI string
	lines    []LyricLine
	fetching bool
}

// NewLyrics creates a lyrics plugin against an LRC lyrics service.
func NewLyrics(baseURL string) *Lyrics {
	return &Lyrics{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (l *Lyrics) ID() string             { return "lyrics" }
func (l *Lyrics) Capability() Capability { return CapLyrics }

// Configure accepts {"baseUrl": "..."}.
func (l *Lyrics) Configure(cfg json.RawMessage) error {
	var c struct {
		BaseURL string `json:"baseUrl"`
	}
	if err := json.Unmarshal(cfg, &c); err != nil {
		return fmt.Errorf("lyrics config: %w", err)
	}
	if c.BaseURL != "" {
		l.mu.Lock()
		l.baseURL = strings.TrimRight(c.BaseURL, "/")
		l.mu.Unlock()
	}
	return nil
}

func (l *Lyrics) HandleEvent(ev playback.Event) error {
	switch ev.Kind {
	case playback.EventTrackChanged:
		if ev.Track == nil {
			return nil
		}
		l.startFetch(ev.Track.URI, ev.Track.Artist, ev.Track.Title)
	case playback.EventPositionUpdate:
		// Position tracking is read-side; CurrentLine does the lookup.
	}
	return nil
}

// startFetch kicks off a background fetch unless one for the same track
// is already running.
func (l *Lyrics) startFetch(uri, artist, title string) {
	l.mu.Lock()
	if l.baseURL == "" || (l.trackURI == uri && (l.lines != nil || l.fetching)) {
		l.mu.Unlock()
		return
	}
	l.trackURI = uri
	l.lines = nil
	l.fetching = true
	l.mu.Unlock()

	go func() {
		lines, err := l.fetch(artist, title)
		l.mu.Lock()
		defer l.mu.Unlock()
		l.fetching = false
		if l.trackURI != uri {
			// Track changed while fetching; drop the result.
			return
		}
		if err != nil {
			logger.Warn("lyrics fetch failed",
				logger.String("artist", artist),
				logger.String("title", title),
				logger.ErrorField(err))
			return
		}
		l.lines = lines
	}()
}

func (l *Lyrics) fetch(artist, title string) ([]LyricLine, error) {
	q := url.Values{}
	q.Set("artist", artist)
	q.Set("title", title)
	resp, err := l.client.Get(fmt.Sprintf("%s/lyric?%s", l.baseURL, q.Encode()))
	if err != nil {
		return nil, fmt.Errorf("lyrics request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("lyrics service returned %d", resp.StatusCode)
	}

	var result struct {
		Lrc struct {
			Lyric string `json:"lyric"`
		} `json:"lrc"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode lyrics response: %w", err)
	}
	return ParseLRC(result.Lrc.Lyric), nil
}

// CurrentLine returns the lyric line active at pos for the given track,
// or empty when lyrics are unavailable.
func (l *Lyrics) CurrentLine(trackURI string, pos time.Duration) (LyricLine, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.trackURI != trackURI || len(l.lines) == 0 {
		return LyricLine{}, false
	}
	idx := sort.Search(len(l.lines), func(i int) bool {
		return l.lines[i].At > pos
	}) - 1
	if idx < 0 {
		return LyricLine{}, false
	}
	return l.lines[idx], true
}

// Lines returns all lines for the given track.
func (l *Lyrics) Lines(trackURI string) []LyricLine {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.trackURI != trackURI {
		return nil
	}
	return append([]LyricLine(nil), l.lines...)
}

var lrcTimestamp = regexp.MustCompile(`\[(\d+):(\d+)(?:\.(\d+))?\]`)

// ParseLRC parses LRC text into sorted timestamped lines. Lines with
// multiple timestamps are expanded; metadata tags like [ar:...] are
// skipped.
func ParseLRC(text string) []LyricLine {
	var lines []LyricLine
	for _, raw := range strings.Split(text, "\n") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		stamps := lrcTimestamp.FindAllStringSubmatch(raw, -1)
		if len(stamps) == 0 {
			continue
		}
		content := strings.TrimSpace(lrcTimestamp.ReplaceAllString(raw, ""))
		for _, m := range stamps {
			mins, _ := strconv.Atoi(m[1])
			secs, _ := strconv.Atoi(m[2])
			at := time.Duration(mins)*time.Minute + time.Duration(secs)*time.Second
			if m[3] != "" {
				// Fraction may be centiseconds or milliseconds.
				frac, _ := strconv.Atoi(m[3])
				switch len(m[3]) {
				case 1:
					at += time.Duration(frac) * 100 * time.Millisecond
				case 2:
					at += time.Duration(frac) * 10 * time.Millisecond
				default:
					at += time.Duration(frac) * time.Millisecond
				}
			}
			lines = append(lines, LyricLine{At: at, Text: content})
		}
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].At < lines[j].At })
	return lines
}
