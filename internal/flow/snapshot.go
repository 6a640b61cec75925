package flow

import (
	"github.com/iliamunaev/Payment-Flow-Orchestration/internal/format"
	"github.com/iliamunaev/Payment-Flow-Orchestration/internal/model"
	"github.com/iliamunaev/Payment-Flow-Orchestration/internal/service/account"
	"github.com/iliamunaev/Payment-Flow-Orchestration/internal/service/pin"
	"github.com/iliamunaev/Payment-Flow-Orchestration/internal/service/processing"
	"github.com/iliamunaev/Payment-Flow-Orchestration/internal/service/qrscan"
	"github.com/iliamunaev/Payment-Flow-Orchestration/internal/service/result"
)

// DraftView is the draft as shown to renderers. The PIN never appears.
type DraftView struct {
	Recipient     string `json:"recipient,omitempty"`
	RecipientName string `json:"recipient_name,omitempty"`
	Amount        string `json:"amount,omitempty"`
	Note          string `json:"note,omitempty"`
}

// Snapshot is a read-only copy of the flow and of its current leaf.
type Snapshot struct {
	Step     model.Step    `json:"step_index"`
	StepName string        `json:"step"`
	Method   model.Method  `json:"method,omitempty"`
	Status   model.Status  `json:"status"`
	Draft    DraftView     `json:"draft"`
	Outcome  model.Outcome `json:"-"`

	Account  *account.View    `json:"account,omitempty"`
	Scanner  *qrscan.View     `json:"scanner,omitempty"`
	PIN      *pin.View        `json:"pin,omitempty"`
	Progress *processing.View `json:"progress,omitempty"`
	Result   *result.Summary  `json:"result,omitempty"`
}

// Snapshot returns the current state.
func (f *Flow) Snapshot() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()

	d := f.draft.Redacted()
	s := Snapshot{
		Step:     f.step,
		StepName: f.step.String(),
		Method:   d.Method,
		Status:   f.outcome.Status,
		Draft: DraftView{
			Recipient:     d.Recipient,
			RecipientName: d.RecipientName,
			Note:          d.Note,
		},
		Outcome: f.outcome,
	}
	if !d.Amount.IsZero() {
		s.Draft.Amount = format.Rupees(d.Amount)
	}

	switch f.step {
	case model.StepEnterDetails:
		if f.account != nil {
			v := f.account.View()
			s.Account = &v
		}
		if f.scanner != nil {
			v := f.scanner.View()
			s.Scanner = &v
		}
	case model.StepEnterPIN:
		if f.pin != nil {
			v := f.pin.View()
			s.PIN = &v
		}
	case model.StepProcessing:
		if f.progress != nil {
			v := f.progress.View()
			s.Progress = &v
		}
	case model.StepResult:
		sum := result.Build(d, f.outcome, f.opts.loc)
		s.Result = &sum
	}
	return s
}
