package memory

import (
	"fmt"
	"sort"
	"sync"

	"github.com/Layr-Labs/inclusion-proof-go/pkg/merkle"
	"github.com/Layr-Labs/inclusion-proof-go/pkg/persistence"
)

// MemoryPersistence is an in-memory implementation of IProofStore.
//
// All data is stored in memory and will be lost when the process exits.
// Thread-safe using sync.RWMutex for concurrent access.
// Deep copies records to prevent external mutation.
type MemoryPersistence struct {
	mu sync.RWMutex

	// root -> leaf -> record
	proofs map[merkle.Hash]map[merkle.Hash]*persistence.ProofRecord

	closed bool
}

var _ persistence.IProofStore = (*MemoryPersistence)(nil)

// NewMemoryPersistence creates a new in-memory proof store.
func NewMemoryPersistence() *MemoryPersistence {
	return &MemoryPersistence{
		proofs: make(map[merkle.Hash]map[merkle.Hash]*persistence.ProofRecord),
	}
}

// SaveProof persists a proof record.
func (m *MemoryPersistence) SaveProof(record *persistence.ProofRecord) error {
	if err := record.Validate(); err != nil {
		return fmt.Errorf("invalid proof record: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return persistence.ErrClosed
	}

	byLeaf, ok := m.proofs[record.Root]
	if !ok {
		byLeaf = make(map[merkle.Hash]*persistence.ProofRecord)
		m.proofs[record.Root] = byLeaf
	}

	// Deep copy to prevent external mutation
	byLeaf[record.Leaf] = record.Clone()

	return nil
}

// LoadProof retrieves the record for (root, leaf).
func (m *MemoryPersistence) LoadProof(root, leaf merkle.Hash) (*persistence.ProofRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, persistence.ErrClosed
	}

	record, exists := m.proofs[root][leaf]
	if !exists {
		return nil, nil // Not found is not an error
	}

	return record.Clone(), nil
}

// ListProofs returns all records under root sorted by leaf index.
func (m *MemoryPersistence) ListProofs(root merkle.Hash) ([]*persistence.ProofRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, persistence.ErrClosed
	}

	records := make([]*persistence.ProofRecord, 0, len(m.proofs[root]))
	for _, record := range m.proofs[root] {
		records = append(records, record.Clone())
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].LeafIndex < records[j].LeafIndex
	})

	return records, nil
}

// DeleteProof removes the record for (root, leaf).
func (m *MemoryPersistence) DeleteProof(root, leaf merkle.Hash) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return persistence.ErrClosed
	}

	byLeaf, ok := m.proofs[root]
	if !ok {
		return nil
	}
	delete(byLeaf, leaf)
	if len(byLeaf) == 0 {
		delete(m.proofs, root)
	}

	return nil
}

// Close marks the store as closed.
func (m *MemoryPersistence) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	return nil
}

// HealthCheck reports whether the store is still open.
func (m *MemoryPersistence) HealthCheck() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return persistence.ErrClosed
	}
	return nil
}
