// Package intake turns the messages currently on the chat page into an
// ordered batch of utterances.
package intake

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/chattts/internal/control"
	"github.com/dgnsrekt/chattts/internal/filter"
	"github.com/dgnsrekt/chattts/internal/source"
)

// Utterance is one line queued to be spoken.
type Utterance struct {
	Speaker string
	Text    string
}

// String returns the sentence handed to the synthesizer.
func (u Utterance) String() string {
	return u.Text
}

// SeenSet tracks message IDs that have already been handled.
type SeenSet interface {
	Contains(id string) bool
	MarkSeen(id string)
}

// Stats counts what happened to the records of one or more cycles.
type Stats struct {
	Fetched   int
	Malformed int
	Duplicate int
	Muted     int
	NoPrefix  int
	Empty     int // prefix with nothing after it
	Filtered  int
	Queued    int
}

// Add accumulates o into s.
func (s *Stats) Add(o Stats) {
	s.Fetched += o.Fetched
	s.Malformed += o.Malformed
	s.Duplicate += o.Duplicate
	s.Muted += o.Muted
	s.NoPrefix += o.NoPrefix
	s.Empty += o.Empty
	s.Filtered += o.Filtered
	s.Queued += o.Queued
}

// Cycle performs one polling pass.
type Cycle struct {
	Source  source.Source
	Seen    SeenSet
	Filter  *filter.Filter
	Control *control.Control
}

// Run fetches the current records and returns the utterances to speak, in
// source order. Every well-formed record not seen before is marked seen,
// whether or not it ends up being spoken.
func (c *Cycle) Run(ctx context.Context) ([]Utterance, Stats, error) {
	recs, err := c.Source.Fetch(ctx)
	if err != nil {
		return nil, Stats{}, fmt.Errorf("fetch messages: %w", err)
	}
	batch, stats := c.Process(recs)
	return batch, stats, nil
}

// Process applies dedup, control state and content rules to recs.
func (c *Cycle) Process(recs []source.Record) ([]Utterance, Stats) {
	stats := Stats{Fetched: len(recs)}
	state := c.Control.Snapshot()

	var batch []Utterance
	for _, r := range recs {
		id := strings.TrimSpace(r.ID)
		author := strings.TrimSpace(r.Author)
		body := strings.TrimSpace(r.Body)
		if id == "" || author == "" || body == "" {
			stats.Malformed++
			continue
		}

		if c.Seen.Contains(id) {
			stats.Duplicate++
			continue
		}
		c.Seen.MarkSeen(id)

		if !state.SpeechEnabled {
			stats.Muted++
			continue
		}

		if state.PrefixEnabled {
			rest, ok := cutPrefixFold(body, state.ActivePrefix)
			if !ok {
				stats.NoPrefix++
				continue
			}
			// A bare prefix carries nothing to say.
			body = strings.TrimSpace(rest)
			if body == "" {
				stats.Empty++
				continue
			}
		}

		if reason, ok := c.Filter.Check(body); !ok {
			stats.Filtered++
			log.Info("Filtered message", "author", author, "text", body, "reason", reason)
			continue
		}

		u := Utterance{Speaker: author, Text: fmt.Sprintf("%s said %s", author, body)}
		log.Info("Queued TTS", "text", u.Text)
		batch = append(batch, u)
		stats.Queued++
	}
	return batch, stats
}

// cutPrefixFold is strings.CutPrefix with case-insensitive matching.
func cutPrefixFold(s, prefix string) (string, bool) {
	if len(s) < len(prefix) || !strings.EqualFold(s[:len(prefix)], prefix) {
		return s, false
	}
	return s[len(prefix):], true
}
