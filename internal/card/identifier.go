// Package card turns recognized text into the identifier printed in the bottom
// corner of a trading card and builds the lookup query for it.
package card

import (
	"fmt"
	"net/url"
	"strings"
)

// Identifier is the set code and collector number printed on a card.
type Identifier struct {
	CardNumber string `json:"cardNumber"`
	SetCode    string `json:"setCode"`
}

// String renders the identifier as "SSP 002".
func (id Identifier) String() string {
	return id.SetCode + " " + id.CardNumber
}

// Query builds the lookup URL for the identifier below base, e.g.
// https://host/api/cards?setCode=SSP&cardNumber=002. The result is also the key used
// to remember failed lookups.
func (id Identifier) Query(base string) (string, error) {
	u, err := url.Parse(strings.TrimRight(base, "/") + "/cards")
	if err != nil {
		return "", fmt.Errorf("invalid lookup base %q: %w", base, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("invalid lookup base %q: missing scheme or host", base)
	}
	// Parameter order is part of the query key, so it is written by hand rather than
	// through url.Values.Encode, which sorts.
	u.RawQuery = "setCode=" + url.QueryEscape(id.SetCode) +
		"&cardNumber=" + url.QueryEscape(id.CardNumber)
	return u.String(), nil
}
