package persistence

import "github.com/Layr-Labs/inclusion-proof-go/pkg/merkle"

// IProofStore persists generated inclusion proofs so they can be served and re-verified later.
// All implementations must be thread-safe; proofs for many leaves are generated concurrently.
//
// Records are keyed by (root, leaf). If a tree contains the same leaf value more than once, the
// record saved last for that pair wins.
type IProofStore interface {
	// SaveProof persists a proof record, overwriting any record with the same (root, leaf).
	// Returns error only on storage failure or an invalid record.
	SaveProof(record *ProofRecord) error

	// LoadProof retrieves the record for (root, leaf).
	// Returns nil if it doesn't exist, error only on storage failure.
	LoadProof(root, leaf merkle.Hash) (*ProofRecord, error)

	// ListProofs returns every record stored under root, sorted by LeafIndex (ascending).
	// Returns empty slice if none exist, error only on storage failure.
	ListProofs(root merkle.Hash) ([]*ProofRecord, error)

	// DeleteProof removes the record for (root, leaf).
	// Idempotent - returns nil if it doesn't exist.
	DeleteProof(root, leaf merkle.Hash) error

	// Close cleanly shuts down the store.
	// Idempotent - safe to call multiple times.
	// After Close(), all other operations return errors.
	Close() error

	// HealthCheck verifies the store is operational.
	HealthCheck() error
}
