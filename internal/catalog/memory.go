package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
)

// MemoryStore keeps the catalog in a map. It is safe for concurrent use and can
// be swapped wholesale by Replace.
type MemoryStore struct {
	mu    sync.RWMutex
	cards map[string]Card
}

// NewMemoryStore creates a store holding cards.
func NewMemoryStore(cards ...Card) *MemoryStore {
	s := &MemoryStore{}
	s.Replace(cards)
	return s
}

// Find implements Store.
func (s *MemoryStore) Find(ctx context.Context, setCode, cardNumber string) (Card, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.cards[Key(setCode, cardNumber)]
	if !ok {
		return Card{}, fmt.Errorf("%s %s: %w", setCode, cardNumber, ErrNotFound)
	}
	return c, nil
}

// Put adds or replaces one card.
func (s *MemoryStore) Put(c Card) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cards[c.Key()] = c
}

// Replace swaps the whole catalog.
func (s *MemoryStore) Replace(cards []Card) {
	m := make(map[string]Card, len(cards))
	for _, c := range cards {
		m[c.Key()] = c
	}
	s.mu.Lock()
	s.cards = m
	s.mu.Unlock()
}

// Len returns the number of cards.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.cards)
}

// Close implements Store.
func (s *MemoryStore) Close() error { return nil }

// DecodeJSON reads a catalog file: a JSON array of cards.
func DecodeJSON(r io.Reader) ([]Card, error) {
	var cards []Card
	if err := json.NewDecoder(r).Decode(&cards); err != nil {
		return nil, fmt.Errorf("failed to decode catalog: %w", err)
	}
	for i, c := range cards {
		if c.SetCode == "" || c.CardNumber == "" || c.URL == "" {
			return nil, fmt.Errorf("catalog entry %d: setCode, cardNumber and url are required", i)
		}
	}
	return cards, nil
}

// LoadFile reads a JSON catalog file.
func LoadFile(path string) ([]Card, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	defer f.Close()
	return DecodeJSON(f)
}
