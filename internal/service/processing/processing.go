// Package processing drives the progress shown while a transaction is in
// flight. The progress is a client-side simulation; it says nothing about
// the actual state of the submission.
package processing

import (
	"sync"
	"time"

	"github.com/iliamunaev/Payment-Flow-Orchestration/internal/service/shared"
)

const (
	DefaultInterval = 150 * time.Millisecond
	Step            = 5
)

// Milestone is one checklist line of the processing view.
type Milestone struct {
	Label string `json:"label"`
	At    int    `json:"at"`
	Done  bool   `json:"done"`
}

var milestones = []Milestone{
	{Label: "Verifying credentials", At: 30},
	{Label: "Processing transaction", At: 60},
	{Label: "Confirming with recipient", At: 90},
	{Label: "Finalizing payment", At: 100},
}

// View is the processing screen state.
type View struct {
	Percent    int         `json:"percent"`
	Milestones []Milestone `json:"milestones"`
}

// Simulator advances by Step percent every interval until it reaches 100.
type Simulator struct {
	clock    shared.Clock
	interval time.Duration
	onTick   func(View)

	mu      sync.Mutex
	percent int
	stop    func() bool
	stopped bool
}

// New returns a stopped Simulator. onTick, when set, observes every step.
func New(clock shared.Clock, interval time.Duration, onTick func(View)) *Simulator {
	return &Simulator{
		clock:    shared.ClockOr(clock),
		interval: shared.DurationOr(interval, DefaultInterval),
		onTick:   onTick,
	}
}

// Start begins ticking from the current percent.
func (s *Simulator) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil || s.percent >= 100 {
		return
	}
	s.stopped = false
	s.scheduleLocked()
}

func (s *Simulator) scheduleLocked() {
	s.stop = s.clock.AfterFunc(s.interval, s.tick)
}

func (s *Simulator) tick() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.percent = min(s.percent+Step, 100)
	if s.percent < 100 {
		s.scheduleLocked()
	} else {
		s.stop = nil
	}
	v := s.viewLocked()
	s.mu.Unlock()

	if s.onTick != nil {
		s.onTick(v)
	}
}

// Stop halts the simulation; the percent reached is kept.
func (s *Simulator) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	if s.stop != nil {
		s.stop()
		s.stop = nil
	}
}

// Complete jumps to 100 and stops.
func (s *Simulator) Complete() {
	s.Stop()
	s.mu.Lock()
	s.percent = 100
	v := s.viewLocked()
	s.mu.Unlock()
	if s.onTick != nil {
		s.onTick(v)
	}
}

// View returns the current percent and milestone checklist.
func (s *Simulator) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

func (s *Simulator) viewLocked() View {
	ms := make([]Milestone, len(milestones))
	for i, m := range milestones {
		m.Done = s.percent >= m.At
		ms[i] = m
	}
	return View{Percent: s.percent, Milestones: ms}
}
