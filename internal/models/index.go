package models

import (
	"encoding/json"
	"fmt"
)

// ChunkRef identifies one chunk by document ID and chunk position.
// The vector index keeps one ChunkRef per stored vector, in vector order.
type ChunkRef struct {
	DocID      string
	ChunkIndex int
}

// MarshalJSON serializes the ref as a two-element ["doc_id", index] tuple.
// The chunk map file is a flat list of these tuples.
func (r ChunkRef) MarshalJSON() ([]byte, error) {
	return json.Marshal([]interface{}{r.DocID, r.ChunkIndex})
}

// UnmarshalJSON parses the ["doc_id", index] tuple form.
func (r *ChunkRef) UnmarshalJSON(data []byte) error {
	var tuple []json.RawMessage
	if err := json.Unmarshal(data, &tuple); err != nil {
		return err
	}
	if len(tuple) != 2 {
		return fmt.Errorf("chunk ref must have 2 elements, got %d", len(tuple))
	}
	if err := json.Unmarshal(tuple[0], &r.DocID); err != nil {
		return fmt.Errorf("invalid chunk ref doc id: %w", err)
	}
	if err := json.Unmarshal(tuple[1], &r.ChunkIndex); err != nil {
		return fmt.Errorf("invalid chunk ref index: %w", err)
	}
	return nil
}

// SearchHit is one nearest-neighbor result from the vector index,
// ordered by ascending L2 distance.
type SearchHit struct {
	Ref      ChunkRef `json:"ref"`
	Distance float32  `json:"distance"`
}
