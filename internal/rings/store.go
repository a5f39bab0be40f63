package rings

import (
	"context"
	"fmt"
	"regexp"

	"github.com/puzpuzpuz/xsync/v4"

	"liquor-dashboard/internal/errors"
)

// Store publishes ring documents under a filter key so a consumer outside
// the building request can fetch them. The document returned by Builder is
// authoritative; a Store is only a hand-off.
type Store interface {
	Put(ctx context.Context, key string, doc *Document) error
	Get(ctx context.Context, key string) (*Document, error)
	Close() error
}

var validKey = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// ValidateKey rejects keys that could escape a store's namespace.
func ValidateKey(key string) error {
	if !validKey.MatchString(key) {
		return errors.BadRequest(fmt.Sprintf("invalid ring document key %q", key))
	}
	return nil
}

func notFound(key string) error {
	return errors.NotFound(fmt.Sprintf("no ring document published under %q", key))
}

// MemoryStore keeps documents in process. Documents are shared, not copied;
// callers must not mutate a document after Put.
type MemoryStore struct {
	docs *xsync.Map[string, *Document]
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: xsync.NewMap[string, *Document]()}
}

func (s *MemoryStore) Put(_ context.Context, key string, doc *Document) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	s.docs.Store(key, doc)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, key string) (*Document, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	doc, ok := s.docs.Load(key)
	if !ok {
		return nil, notFound(key)
	}
	return doc, nil
}

func (s *MemoryStore) Len() int {
	return s.docs.Size()
}

func (s *MemoryStore) Close() error {
	s.docs.Clear()
	return nil
}
