package artifact

import (
	"errors"
	"fmt"
	"sync"
)

// ErrNotFound is returned by Get when no artifact exists under the
// requested session/name pair. It signals a usage error, not a
// transient fault: callers must not retry.
var ErrNotFound = errors.New("artifact not found")

// Artifact is a named binary blob scoped to a session. It lives outside
// the typed pipeline data flow so large payloads are never threaded
// through every stage.
type Artifact struct {
	SessionID string
	Name      string
	Bytes     []byte
	MIMEType  string
}

// Ref is a lightweight handle to a stored artifact, suitable for
// returning in result manifests.
type Ref struct {
	SessionID string `json:"session_id"`
	Name      string `json:"name"`
	MIMEType  string `json:"mime_type"`
	Size      int    `json:"size"`
}

// Store is the session-scoped blob store capability consumed by the
// orchestrator.
type Store interface {
	// Put saves the blob under the session/name pair. Repeated saves
	// with the same name overwrite (last write wins).
	Put(sessionID, name string, data []byte, mimeType string) Ref
	// Get returns the stored artifact or ErrNotFound.
	Get(sessionID, name string) (*Artifact, error)
}

// MemoryStore keeps artifacts in process memory for the lifetime of the
// session. It is the only shared resource touched by concurrent
// pipeline runs, hence the mutex.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string]*Artifact
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string]*Artifact)}
}

func (s *MemoryStore) Put(sessionID, name string, data []byte, mimeType string) Ref {
	copied := make([]byte, len(data))
	copy(copied, data)

	s.mu.Lock()
	s.blobs[blobKey(sessionID, name)] = &Artifact{
		SessionID: sessionID,
		Name:      name,
		Bytes:     copied,
		MIMEType:  mimeType,
	}
	s.mu.Unlock()

	return Ref{SessionID: sessionID, Name: name, MIMEType: mimeType, Size: len(copied)}
}

func (s *MemoryStore) Get(sessionID, name string) (*Artifact, error) {
	s.mu.RLock()
	blob, ok := s.blobs[blobKey(sessionID, name)]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, sessionID, name)
	}

	return blob, nil
}

// DropSession removes every artifact belonging to the session.
func (s *MemoryStore) DropSession(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, blob := range s.blobs {
		if blob.SessionID == sessionID {
			delete(s.blobs, key)
		}
	}
}

func blobKey(sessionID, name string) string {
	return sessionID + "/" + name
}
