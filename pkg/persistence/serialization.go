package persistence

import (
	"encoding/json"
	"fmt"
)

// MarshalProofRecord serializes a ProofRecord to JSON bytes.
// Hashes are encoded as 0x-prefixed hex via merkle.Hash's TextMarshaler.
func MarshalProofRecord(record *ProofRecord) ([]byte, error) {
	if record == nil {
		return nil, fmt.Errorf("cannot marshal nil ProofRecord")
	}

	data, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal ProofRecord to JSON: %w", err)
	}

	return data, nil
}

// UnmarshalProofRecord deserializes a ProofRecord from JSON bytes.
func UnmarshalProofRecord(data []byte) (*ProofRecord, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("cannot unmarshal empty data")
	}

	var record ProofRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON to ProofRecord: %w", err)
	}

	return &record, nil
}
