package artifact

import (
	"bytes"
	"context"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemStore is an in-memory Store for tests and local development.
type MemStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{objects: make(map[string][]byte)}
}

func (st *MemStore) Put(_ context.Context, accountID, exportID uuid.UUID, contentType string, body io.Reader) (*Artifact, error) {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, body); err != nil {
		return nil, err
	}

	key := Key(accountID, exportID)

	st.mu.Lock()
	st.objects[key] = buf.Bytes()
	st.mu.Unlock()

	return &Artifact{
		Key:         key,
		Size:        int64(buf.Len()),
		ContentType: contentType,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

func (st *MemStore) Delete(_ context.Context, key string) error {
	st.mu.Lock()
	delete(st.objects, key)
	st.mu.Unlock()
	return nil
}

// Get returns a stored document, for assertions in tests.
func (st *MemStore) Get(key string) ([]byte, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	data, ok := st.objects[key]
	return data, ok
}
