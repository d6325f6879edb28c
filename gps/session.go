package gps

import (
	"errors"
	"strings"
	"time"
)

// Stats counts what a Session did with its input.
type Stats struct {
	Lines       int `json:"lines"`
	Decoded     int `json:"decoded"`
	Rejected    int `json:"rejected"`
	Unsupported int `json:"unsupported"`
	Filtered    int `json:"filtered"`
	Overflows   int `json:"overflows"`
}

func (s *Stats) add(o Stats) {
	s.Lines += o.Lines
	s.Decoded += o.Decoded
	s.Rejected += o.Rejected
	s.Unsupported += o.Unsupported
	s.Filtered += o.Filtered
	s.Overflows += o.Overflows
}

// Hooks are optional callbacks invoked synchronously from Feed.
type Hooks struct {
	OnSentence   func(s Sentence)
	OnSatellites func(c Constellation, table []SatelliteRecord)
	OnFix        func(fix FixRecord)
	OnFiltered   func(rec SatelliteRecord)
	OnError      func(line string, err error)
}

// Session connects one byte stream to a Tracker: bytes are assembled into
// lines, decoded, and merged. A bad line is counted and skipped; nothing in
// the stream can stop a Session. Like the assembler, a Session has a
// single writer.
type Session struct {
	assembler *LineAssembler
	decoder   Decoder
	tracker   *Tracker
	hooks     Hooks
	total     Stats
	now       func() time.Time
}

// NewSession creates a session that feeds tracker.
func NewSession(config Config, tracker *Tracker) *Session {
	return &Session{
		assembler: NewLineAssembler(config.MaxLineLength),
		decoder:   Decoder{RequireChecksum: config.RequireChecksum},
		tracker:   tracker,
		now:       time.Now,
	}
}

// SetHooks replaces the session callbacks.
func (s *Session) SetHooks(h Hooks) {
	s.hooks = h
}

// Tracker returns the tracker the session feeds.
func (s *Session) Tracker() *Tracker {
	return s.tracker
}

// Feed processes one chunk of the stream and returns what happened to it.
func (s *Session) Feed(chunk []byte) Stats {
	before := s.assembler.Overflows()
	lines := s.assembler.Feed(chunk)

	var st Stats
	st.Overflows = s.assembler.Overflows() - before
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		st.Lines++
		s.handle(line, &st)
	}

	s.total.add(st)
	return st
}

func (s *Session) handle(line string, st *Stats) {
	res, err := s.decoder.Decode(line)
	if err != nil {
		if errors.Is(err, ErrUnsupportedSentence) {
			st.Unsupported++
		} else {
			st.Rejected++
		}
		if s.hooks.OnError != nil {
			s.hooks.OnError(line, err)
		}
		return
	}
	st.Decoded++
	if s.hooks.OnSentence != nil {
		s.hooks.OnSentence(res.Sentence)
	}

	if res.Fix != nil {
		fix := *res.Fix
		fix.Time = s.now()
		s.tracker.UpdateFix(fix)
		if s.hooks.OnFix != nil {
			s.hooks.OnFix(fix)
		}
	}

	if len(res.Satellites) == 0 {
		return
	}
	groups := GroupByConstellation(res.Satellites)
	if unknown := groups[ConstellationUnknown]; len(unknown) > 0 {
		st.Filtered += len(unknown)
		s.tracker.Update(ConstellationUnknown, unknown)
		if s.hooks.OnFiltered != nil {
			for _, rec := range unknown {
				s.hooks.OnFiltered(rec)
			}
		}
	}
	for _, c := range Constellations {
		batch, ok := groups[c]
		if !ok {
			continue
		}
		table := s.tracker.Update(c, batch)
		if s.hooks.OnSatellites != nil {
			s.hooks.OnSatellites(c, table)
		}
	}
}

// Stats returns the totals since the session was created.
func (s *Session) Stats() Stats {
	return s.total
}

// Pending returns the unterminated tail held by the assembler.
func (s *Session) Pending() string {
	return s.assembler.Pending()
}

// Reset drops the partial line and all tracked state, as on a disconnect.
func (s *Session) Reset() {
	s.assembler.Reset()
	s.tracker.Reset()
}
