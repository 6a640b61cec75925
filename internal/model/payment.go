// Package model defines the payment draft, outcome and step types shared by
// the flow, its leaf steps and the transport layer.
package model

import (
	"net/url"
	"time"

	"github.com/shopspring/decimal"
)

// Method is the way the recipient and amount are collected in step 2.
type Method string

const (
	MethodAccount Method = "account"
	MethodQRCode  Method = "qrcode"
)

// ParseMethod reports whether s names a known payment method.
func ParseMethod(s string) (Method, bool) {
	switch Method(s) {
	case MethodAccount, MethodQRCode:
		return Method(s), true
	default:
		return "", false
	}
}

// Step is the position of the payment wizard.
type Step int

const (
	StepSelectMethod Step = iota + 1
	StepEnterDetails
	StepEnterPIN
	StepProcessing
	StepResult
)

func (s Step) String() string {
	switch s {
	case StepSelectMethod:
		return "select_method"
	case StepEnterDetails:
		return "enter_details"
	case StepEnterPIN:
		return "enter_pin"
	case StepProcessing:
		return "processing"
	case StepResult:
		return "result"
	default:
		return "unknown"
	}
}

// Status is the state of a transaction submission.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusProcessing Status = "processing"
	StatusSuccess    Status = "success"
	StatusFailed     Status = "failed"
)

// Details is what step 2 reports to the orchestrator.
type Details struct {
	Recipient string
	Name      string
	Amount    decimal.Decimal
	Note      string
}

// Draft is the in-progress payment owned by the orchestrator.
type Draft struct {
	Method        Method
	Recipient     string
	RecipientName string
	Amount        decimal.Decimal
	Note          string
	PIN           string
}

// Redacted returns a copy safe to hand to renderers and logs.
func (d Draft) Redacted() Draft {
	d.PIN = ""
	return d
}

// Empty reports whether no field of the draft has been filled.
func (d Draft) Empty() bool {
	return d.Method == "" && d.Recipient == "" && d.RecipientName == "" &&
		d.Amount.IsZero() && d.Note == "" && d.PIN == ""
}

// Outcome is the terminal result of a submitted draft.
type Outcome struct {
	Status        Status
	TransactionID string
	OccurredAt    time.Time
	// ServerTime is false when OccurredAt is the local fallback.
	ServerTime bool
	Err        error
	ReturnURL  string
}

// AccountVerification is the account service's answer for one number.
type AccountVerification struct {
	Exists   bool
	Name     string
	FullName string
}

// TransactionRequest is what the transaction endpoint receives.
type TransactionRequest struct {
	ReceiverAccount string
	Amount          decimal.Decimal
	Note            string
	PIN             string
}

// Receipt is the decoded body of a transaction submission response.
type Receipt struct {
	TxnID   string
	Time    time.Time
	HasTime bool
}

// DeepLink carries the query parameters a payment page can be opened with.
type DeepLink struct {
	Account  string
	Amount   string
	Note     string
	ScanQR   bool
	Manual   bool
	Callback string
}

// ParseDeepLink reads acc, amt, note, scan-qr, manual and callback.
func ParseDeepLink(q url.Values) DeepLink {
	return DeepLink{
		Account:  q.Get("acc"),
		Amount:   q.Get("amt"),
		Note:     q.Get("note"),
		ScanQR:   q.Get("scan-qr") != "",
		Manual:   q.Get("manual") != "",
		Callback: q.Get("callback"),
	}
}
