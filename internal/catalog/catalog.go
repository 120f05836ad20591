// Package catalog stores the card pages served by the development lookup API.
package catalog

import (
	"context"
	"errors"
	"strings"
)

// ErrNotFound is returned when no card matches a query.
var ErrNotFound = errors.New("card not in catalog")

// Card is one catalog entry.
type Card struct {
	SetCode    string `json:"setCode"`
	CardNumber string `json:"cardNumber"`
	Name       string `json:"name,omitempty"`
	URL        string `json:"url"`
}

// Key returns the normalized lookup key of the card.
func (c Card) Key() string { return Key(c.SetCode, c.CardNumber) }

// Key normalizes a set code and card number into a lookup key.
func Key(setCode, cardNumber string) string {
	return strings.ToUpper(strings.TrimSpace(setCode)) + "/" + strings.TrimSpace(cardNumber)
}

// Store finds cards by set code and card number.
type Store interface {
	Find(ctx context.Context, setCode, cardNumber string) (Card, error)
	Close() error
}
