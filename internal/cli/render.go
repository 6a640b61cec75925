// Package cli renders payment flow snapshots on a terminal.
package cli

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/iliamunaev/Payment-Flow-Orchestration/internal/flow"
	"github.com/iliamunaev/Payment-Flow-Orchestration/internal/model"
	"github.com/iliamunaev/Payment-Flow-Orchestration/internal/service/processing"
	"github.com/iliamunaev/Payment-Flow-Orchestration/internal/service/result"
)

// Color codes for terminal output
const (
	ColorReset  = "\033[0m"
	ColorRed    = "\033[31m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorBold   = "\033[1m"
)

// ProgressBar draws the processing view on one line, redrawn in place.
type ProgressBar struct {
	mu       sync.Mutex
	w        io.Writer
	width    int
	colorize bool
	last     int
}

// NewProgressBar returns a bar writing to w.
func NewProgressBar(w io.Writer, colorize bool) *ProgressBar {
	return &ProgressBar{w: w, width: 40, colorize: colorize, last: -1}
}

// Render draws v. Repeated percents are not redrawn.
func (pb *ProgressBar) Render(v processing.View) {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	if v.Percent == pb.last {
		return
	}
	pb.last = v.Percent

	filled := pb.width * v.Percent / 100
	bar := strings.Repeat("█", filled) + strings.Repeat("░", pb.width-filled)
	if pb.colorize {
		bar = ColorGreen + bar + ColorReset
	}
	fmt.Fprintf(pb.w, "\r%s %3d%%  %-26s", bar, v.Percent, currentMilestone(v))
}

// Finish ends the bar's line.
func (pb *ProgressBar) Finish() {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	fmt.Fprintln(pb.w)
}

// currentMilestone is the first milestone not yet reached.
func currentMilestone(v processing.View) string {
	for _, m := range v.Milestones {
		if !m.Done {
			return m.Label
		}
	}
	if n := len(v.Milestones); n > 0 {
		return v.Milestones[n-1].Label
	}
	return ""
}

// PINCells renders the four PIN cells as masked dots.
func PINCells(filled [4]bool) string {
	var b strings.Builder
	for i, f := range filled {
		if i > 0 {
			b.WriteByte(' ')
		}
		if f {
			b.WriteString("[•]")
		} else {
			b.WriteString("[ ]")
		}
	}
	return b.String()
}

// Summary writes the result screen.
func Summary(w io.Writer, s result.Summary, colorize bool) {
	title := s.Title
	if colorize {
		color := ColorYellow
		switch s.Status {
		case model.StatusSuccess:
			color = ColorGreen
		case model.StatusFailed:
			color = ColorRed
		}
		title = ColorBold + color + title + ColorReset
	}

	fmt.Fprintf(w, "\n%s\n%s\n\n", title, s.Message)
	row := func(k, v string) {
		if v != "" {
			fmt.Fprintf(w, "  %-15s %s\n", k, v)
		}
	}
	row("Amount", s.Amount)
	row("To", s.Account)
	row("Recipient", s.RecipientName)
	row("Note", s.Note)
	row("Transaction ID", s.TransactionID)
	row("Time", s.Time)
	row("Error", s.Error)
	row("Return to", s.ReturnURL)
}

// Burst draws one celebration burst as a row of sparks.
func Burst(w io.Writer, b result.Burst) {
	n := max(b.Particles/5, 1)
	fmt.Fprintf(w, "%s\n", strings.Repeat("✦ ", n))
}

// Header writes the step line of a snapshot.
func Header(w io.Writer, s flow.Snapshot) {
	fmt.Fprintf(w, "\n== Step %d of 5: %s ==\n", int(s.Step), stepTitle(s.Step))
	if s.Draft.Recipient != "" {
		fmt.Fprintf(w, "   to %s %s  %s\n", s.Draft.Recipient, s.Draft.RecipientName, s.Draft.Amount)
	}
}

func stepTitle(s model.Step) string {
	switch s {
	case model.StepSelectMethod:
		return "Choose payment method"
	case model.StepEnterDetails:
		return "Enter payment details"
	case model.StepEnterPIN:
		return "Enter PIN"
	case model.StepProcessing:
		return "Processing"
	case model.StepResult:
		return "Result"
	default:
		return s.String()
	}
}
