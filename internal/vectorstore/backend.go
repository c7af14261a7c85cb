package vectorstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"github.com/tutorlab/tutor-rag/internal/atomicfile"
	"github.com/tutorlab/tutor-rag/pkg/types"
)

// FileBackend stores the snapshot as a JSON array of {id, text, source, embedding}
type FileBackend struct {
	path string
}

// NewFileBackend returns a backend writing to path. The parent directory is created on first save.
func NewFileBackend(path string) *FileBackend {
	return &FileBackend{path: path}
}

func (f *FileBackend) Name() string {
	return "json"
}

// Path returns the snapshot location
func (f *FileBackend) Path() string {
	return f.path
}

func (f *FileBackend) Load(ctx context.Context) ([]types.DocumentChunk, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []types.DocumentChunk{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	if len(data) == 0 {
		return []types.DocumentChunk{}, nil
	}

	var chunks []types.DocumentChunk
	if err := json.Unmarshal(data, &chunks); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", f.path, err)
	}
	if chunks == nil {
		chunks = []types.DocumentChunk{}
	}
	return chunks, nil
}

func (f *FileBackend) Save(ctx context.Context, chunks []types.DocumentChunk) error {
	if chunks == nil {
		chunks = []types.DocumentChunk{}
	}
	data, err := json.Marshal(chunks)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return atomicfile.Write(f.path, data, 0o644)
}

func (f *FileBackend) Close() error {
	return nil
}

// MemoryBackend keeps the snapshot in memory. Useful for tests and ephemeral runs.
type MemoryBackend struct {
	mu      sync.Mutex
	chunks  []types.DocumentChunk
	saves   int
	SaveErr error
}

func NewMemoryBackend(initial ...types.DocumentChunk) *MemoryBackend {
	return &MemoryBackend{chunks: initial}
}

func (m *MemoryBackend) Name() string {
	return "memory"
}

func (m *MemoryBackend) Load(ctx context.Context) ([]types.DocumentChunk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.DocumentChunk, len(m.chunks))
	for i := range m.chunks {
		out[i] = m.chunks[i].Clone()
	}
	return out, nil
}

func (m *MemoryBackend) Save(ctx context.Context, chunks []types.DocumentChunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.chunks = make([]types.DocumentChunk, len(chunks))
	for i := range chunks {
		m.chunks[i] = chunks[i].Clone()
	}
	m.saves++
	return nil
}

// Saves returns how many snapshots have been written
func (m *MemoryBackend) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

func (m *MemoryBackend) Close() error {
	return nil
}
