// Package merchant builds the URL a merchant-initiated payment returns to
// once it has succeeded.
package merchant

import (
	"fmt"
	"net/url"

	"github.com/iliamunaev/Payment-Flow-Orchestration/internal/model"
)

// CheckCallback accepts absolute http(s) URLs only.
func CheckCallback(callback string) error {
	u, err := url.Parse(callback)
	if err != nil {
		return fmt.Errorf("merchant: parse callback: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("merchant: callback must be an absolute http(s) url: %q", callback)
	}
	return nil
}

// ReturnURL appends amount, notes, name and accountNumber to callback,
// keeping any query the merchant already put there.
func ReturnURL(callback string, d model.Draft) (string, error) {
	if err := CheckCallback(callback); err != nil {
		return "", err
	}
	u, _ := url.Parse(callback)

	q := u.Query()
	q.Set("amount", d.Amount.String())
	q.Set("notes", d.Note)
	q.Set("name", d.RecipientName)
	q.Set("accountNumber", d.Recipient)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
