package token

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/habedi/oidckit/pkg/autherr"
)

// EntryStore is a small-entry key/value medium with a per-entry size
// limit (think cookies, OS keyring slots). ChunkedStorage adapts it to
// the full Storage contract.
type EntryStore interface {
	Get(name string) (string, bool)
	Set(name, value string) error
	Delete(name string)
	Names() ([]string, error)
	MaxValueLen() int
}

// ChunkedStorage splits each token's serialized form across numbered
// entries ("<key>.0", "<key>.1", ...) so no single entry exceeds the
// medium's limit, and merges them back on read. Entries belonging to
// keys no longer present, and trailing chunks from a previously larger
// value, are pruned on every write.
type ChunkedStorage struct {
	mu      sync.Mutex
	entries EntryStore
}

func NewChunkedStorage(entries EntryStore) *ChunkedStorage {
	return &ChunkedStorage{entries: entries}
}

func chunkName(key string, n int) string { return key + "." + strconv.Itoa(n) }

// splitEntry returns the logical key and chunk index for an entry name,
// or ok=false for names that do not follow the chunk scheme.
func splitEntry(name string) (key string, n int, ok bool) {
	i := strings.LastIndex(name, ".")
	if i <= 0 {
		return "", 0, false
	}
	n, err := strconv.Atoi(name[i+1:])
	if err != nil || n < 0 {
		return "", 0, false
	}
	return name[:i], n, true
}

func (s *ChunkedStorage) GetAll() (map[string]Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	names, err := s.entries.Names()
	if err != nil {
		return nil, err
	}
	chunks := make(map[string]map[int]string)
	for _, name := range names {
		key, n, ok := splitEntry(name)
		if !ok {
			continue
		}
		value, ok := s.entries.Get(name)
		if !ok {
			continue
		}
		if chunks[key] == nil {
			chunks[key] = make(map[int]string)
		}
		chunks[key][n] = value
	}

	tokens := make(map[string]Token, len(chunks))
	for key, parts := range chunks {
		indexes := make([]int, 0, len(parts))
		for n := range parts {
			indexes = append(indexes, n)
		}
		sort.Ints(indexes)
		var b strings.Builder
		for _, n := range indexes {
			b.WriteString(parts[n])
		}
		var tok Token
		if err := json.Unmarshal([]byte(b.String()), &tok); err != nil {
			return nil, fmt.Errorf("corrupt chunked entry for key %q: %w", key, err)
		}
		tokens[key] = tok
	}
	return tokens, nil
}

func (s *ChunkedStorage) SetAll(tokens map[string]Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	names, err := s.entries.Names()
	if err != nil {
		return err
	}

	written := make(map[string]bool)
	limit := s.entries.MaxValueLen()
	if limit <= 0 {
		return autherr.New(autherr.Validation,
			fmt.Sprintf("entry store reports non-positive max value length %d", limit), nil)
	}
	for key, tok := range tokens {
		payload, err := json.Marshal(tok)
		if err != nil {
			return err
		}
		for n := 0; len(payload) > 0; n++ {
			size := len(payload)
			if size > limit {
				size = limit
			}
			name := chunkName(key, n)
			if err := s.entries.Set(name, string(payload[:size])); err != nil {
				return err
			}
			written[name] = true
			payload = payload[size:]
		}
	}

	// Prune entries for absent keys and stale trailing chunks.
	for _, name := range names {
		if _, _, ok := splitEntry(name); ok && !written[name] {
			s.entries.Delete(name)
		}
	}
	return nil
}

func (s *ChunkedStorage) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	names, err := s.entries.Names()
	if err != nil {
		return err
	}
	for _, name := range names {
		if _, _, ok := splitEntry(name); ok {
			s.entries.Delete(name)
		}
	}
	return nil
}
