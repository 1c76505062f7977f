package token

import "sync"

// MemoryStorage keeps the token store in process memory. Used as the
// last link of the fallback chain and heavily in tests.
type MemoryStorage struct {
	mu     sync.Mutex
	tokens map[string]Token
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{tokens: make(map[string]Token)}
}

func (s *MemoryStorage) GetAll() (map[string]Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]Token, len(s.tokens))
	for k, v := range s.tokens {
		out[k] = v
	}
	return out, nil
}

func (s *MemoryStorage) SetAll(tokens map[string]Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = make(map[string]Token, len(tokens))
	for k, v := range tokens {
		s.tokens[k] = v
	}
	return nil
}

func (s *MemoryStorage) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = make(map[string]Token)
	return nil
}
