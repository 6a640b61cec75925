// Package result renders the terminal step of the payment flow and runs the
// success celebration. Nothing here feeds back into flow state.
package result

import (
	"math/rand"
	"sync"
	"time"

	"github.com/iliamunaev/Payment-Flow-Orchestration/internal/apperr"
	"github.com/iliamunaev/Payment-Flow-Orchestration/internal/format"
	"github.com/iliamunaev/Payment-Flow-Orchestration/internal/model"
	"github.com/iliamunaev/Payment-Flow-Orchestration/internal/service/shared"
)

// Summary is what the result screen shows.
type Summary struct {
	Status        model.Status `json:"status"`
	Title         string       `json:"title"`
	Message       string       `json:"message"`
	Amount        string       `json:"amount"`
	Account       string       `json:"account"`
	RecipientName string       `json:"recipient_name,omitempty"`
	Note          string       `json:"note,omitempty"`
	TransactionID string       `json:"transaction_id,omitempty"`
	Time          string       `json:"time"`
	ServerTime    bool         `json:"server_time"`
	Error         string       `json:"error,omitempty"`
	ReturnURL     string       `json:"return_url,omitempty"`
}

// Build formats draft and outcome for display in loc (nil means the time's
// own location).
func Build(d model.Draft, o model.Outcome, loc *time.Location) Summary {
	s := Summary{
		Status:        o.Status,
		Amount:        format.Rupees(d.Amount),
		Account:       format.MaskAccount(d.Recipient),
		RecipientName: d.RecipientName,
		Note:          d.Note,
		TransactionID: o.TransactionID,
		ServerTime:    o.ServerTime,
		ReturnURL:     o.ReturnURL,
	}
	if !o.OccurredAt.IsZero() {
		s.Time = format.Timestamp(o.OccurredAt, loc)
	}

	switch o.Status {
	case model.StatusSuccess:
		s.Title = "Payment Successful"
		s.Message = "Your payment has been processed successfully."
	case model.StatusFailed:
		s.Title = "Payment Failed"
		s.Message = "We couldn't process your payment. Please try again."
		if o.Err != nil {
			s.Error = apperr.Message(o.Err)
		}
	default:
		s.Title = "Processing Payment"
		s.Message = "Please wait while we securely process your transaction"
	}
	return s
}

// Origin is where a burst of particles starts, in screen fractions.
type Origin struct {
	X, Y float64
}

// Burst is one emission of the celebration.
type Burst struct {
	Particles int
	Origins   [2]Origin
}

const (
	CelebrationDuration = 3 * time.Second
	BurstInterval       = 250 * time.Millisecond
	maxParticles        = 50
)

// Celebration emits bursts to a sink until its duration runs out.
type Celebration struct {
	clock    shared.Clock
	duration time.Duration
	interval time.Duration
	sink     func(Burst)

	mu      sync.Mutex
	end     time.Time
	stop    func() bool
	stopped bool
	done    chan struct{}
}

// Celebrate starts a celebration on clock. Zero durations take the
// defaults. The returned Celebration must be stopped if abandoned early.
func Celebrate(clock shared.Clock, duration, interval time.Duration, sink func(Burst)) *Celebration {
	if sink == nil {
		panic("result.Celebrate: nil sink")
	}
	c := &Celebration{
		clock:    shared.ClockOr(clock),
		duration: shared.DurationOr(duration, CelebrationDuration),
		interval: shared.DurationOr(interval, BurstInterval),
		sink:     sink,
		done:     make(chan struct{}),
	}
	c.end = c.clock.Now().Add(c.duration)

	c.mu.Lock()
	c.stop = c.clock.AfterFunc(c.interval, c.tick)
	c.mu.Unlock()
	return c
}

func (c *Celebration) tick() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	left := c.end.Sub(c.clock.Now())
	if left <= 0 {
		c.finishLocked()
		c.mu.Unlock()
		return
	}
	c.stop = c.clock.AfterFunc(c.interval, c.tick)
	c.mu.Unlock()

	n := int(float64(maxParticles) * float64(left) / float64(c.duration))
	c.sink(Burst{
		Particles: n,
		Origins: [2]Origin{
			{X: 0.1 + 0.2*rand.Float64(), Y: rand.Float64() - 0.2},
			{X: 0.7 + 0.2*rand.Float64(), Y: rand.Float64() - 0.2},
		},
	})
}

func (c *Celebration) finishLocked() {
	if c.stopped {
		return
	}
	c.stopped = true
	if c.stop != nil {
		c.stop()
		c.stop = nil
	}
	close(c.done)
}

// Stop ends the celebration early.
func (c *Celebration) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.finishLocked()
}

// Done is closed when the celebration has ended.
func (c *Celebration) Done() <-chan struct{} { return c.done }
