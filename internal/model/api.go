package model

// Request and response payloads of the payment API.

// CreateSessionRequest opens a payment session. The fields mirror the deep
// link query parameters; all are optional.
type CreateSessionRequest struct {
	Account  string `json:"acc,omitempty"`
	Amount   string `json:"amt,omitempty"`
	Note     string `json:"note,omitempty"`
	ScanQR   bool   `json:"scan_qr,omitempty"`
	Manual   bool   `json:"manual,omitempty"`
	Callback string `json:"callback,omitempty"`
}

// DeepLink converts the request to the link it stands for.
func (r CreateSessionRequest) DeepLink() DeepLink {
	return DeepLink{
		Account:  r.Account,
		Amount:   r.Amount,
		Note:     r.Note,
		ScanQR:   r.ScanQR,
		Manual:   r.Manual,
		Callback: r.Callback,
	}
}

// MethodRequest picks the step-2 method.
type MethodRequest struct {
	Method string `json:"method"`
}

// AccountRequest replaces the typed account number.
type AccountRequest struct {
	AccountNumber string `json:"account_number"`
}

// DetailsRequest carries the amount and note of step 2.
type DetailsRequest struct {
	Amount string `json:"amount"`
	Note   string `json:"note,omitempty"`
}

// PINRequest carries the four PIN digits.
type PINRequest struct {
	PIN string `json:"pin"`
}

// ErrorPayload describes an error response.
type ErrorPayload struct {
	Kind    string `json:"kind"`              // "pin_rejected", "wrong_step"
	Message string `json:"message,omitempty"` // text for the offending control
}
