// -----------------------------------------------------------------------
// Last Modified: Tuesday, 23rd June 2026 1:48:55 pm
// Modified By: Bob McAllan
// -----------------------------------------------------------------------

package index

import (
	"context"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/memoro/internal/common"
	"github.com/ternarybob/memoro/internal/interfaces"
	"github.com/ternarybob/memoro/internal/models"
)

const (
	vectorsFile  = "vectors.gob"
	chunkMapFile = "chunk_map.json"
)

// Service is a flat exact-L2 vector index with a positionally matched
// chunk map. Invariant: len(chunkMap) == len(vectors) after every
// mutation and load; the map entry at position i describes the vector at
// position i.
//
// One RWMutex serializes all mutations and persistence; searches hold the
// read lock so they run concurrently with each other but never against a
// mutation.
type Service struct {
	embedder interfaces.EmbeddingService
	dir      string
	logger   arbor.ILogger

	mu        sync.RWMutex
	vectors   [][]float32
	chunkMap  []models.ChunkRef
	dimension int
}

// vectorSnapshot is the gob-encoded on-disk form of the vector store.
type vectorSnapshot struct {
	Dimension int
	Vectors   [][]float32
}

// NewService creates a vector index persisting into dir.
func NewService(embedder interfaces.EmbeddingService, dir string, logger arbor.ILogger) (interfaces.VectorIndex, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create index directory: %w", err)
	}
	return &Service{
		embedder: embedder,
		dir:      dir,
		logger:   logger,
	}, nil
}

// AddChunks embeds the chunk texts and appends them with refs
// (docID, 0..n-1) in input order. Empty input is a no-op. Embedding is
// all-or-nothing: a failure leaves the index untouched.
func (s *Service) AddChunks(ctx context.Context, docID string, chunks []string) error {
	if len(chunks) == 0 {
		return nil
	}
	if docID == "" {
		return fmt.Errorf("%w: document ID is required", common.ErrInvalidInput)
	}

	// Embed outside the lock: the index stays searchable during the
	// (potentially slow) backend round trip.
	vectors, err := s.embedder.EmbedBatch(ctx, chunks)
	if err != nil {
		return fmt.Errorf("failed to embed chunks: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Validate the whole batch before committing anything, so a bad
	// vector can never fix the index dimension.
	expected := s.dimension
	if expected == 0 {
		expected = len(vectors[0])
	}
	for i, vector := range vectors {
		if len(vector) == 0 {
			return fmt.Errorf("chunk %d: empty embedding vector", i)
		}
		if len(vector) != expected {
			return fmt.Errorf("chunk %d: embedding dimension mismatch: index has %d, got %d", i, expected, len(vector))
		}
	}
	s.dimension = expected

	for i, vector := range vectors {
		s.vectors = append(s.vectors, vector)
		s.chunkMap = append(s.chunkMap, models.ChunkRef{DocID: docID, ChunkIndex: i})
	}

	if err := s.saveLocked(); err != nil {
		return err
	}

	s.logger.Info().
		Str("doc_id", docID).
		Int("chunks", len(chunks)).
		Int("index_size", len(s.vectors)).
		Msg("Chunks added to index")

	return nil
}

// RemoveDocument removes all vectors belonging to docID, preserving the
// order of everything kept. Returns true when vectors were removed.
func (s *Service) RemoveDocument(ctx context.Context, docID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	keptVectors := make([][]float32, 0, len(s.vectors))
	keptMap := make([]models.ChunkRef, 0, len(s.chunkMap))
	for i, ref := range s.chunkMap {
		if ref.DocID == docID {
			continue
		}
		keptVectors = append(keptVectors, s.vectors[i])
		keptMap = append(keptMap, ref)
	}

	removed := len(s.vectors) - len(keptVectors)
	if removed == 0 {
		return false, nil
	}

	// Dimension survives a full reset so re-adding keeps the same contract.
	s.vectors = keptVectors
	s.chunkMap = keptMap

	if err := s.saveLocked(); err != nil {
		return false, err
	}

	s.logger.Info().
		Str("doc_id", docID).
		Int("removed", removed).
		Int("index_size", len(s.vectors)).
		Msg("Document removed from index")

	return true, nil
}

// Search returns up to topK nearest chunks by ascending L2 distance.
// An empty index returns an empty result and no error.
func (s *Service) Search(ctx context.Context, query string, topK int) ([]models.SearchHit, error) {
	if topK < 1 {
		return nil, fmt.Errorf("%w: top_k must be at least 1, got %d", common.ErrInvalidInput, topK)
	}

	s.mu.RLock()
	empty := len(s.vectors) == 0
	s.mu.RUnlock()
	if empty {
		return []models.SearchHit{}, nil
	}

	queryVector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	// Index emptied between the embed and the read lock.
	if len(s.vectors) == 0 {
		return []models.SearchHit{}, nil
	}
	if len(queryVector) != s.dimension {
		return nil, fmt.Errorf("query dimension mismatch: index has %d, query has %d", s.dimension, len(queryVector))
	}

	type scored struct {
		position int
		distance float32
	}
	results := make([]scored, len(s.vectors))
	for i, vector := range s.vectors {
		results[i] = scored{position: i, distance: l2Distance(queryVector, vector)}
	}

	sort.Slice(results, func(a, b int) bool {
		if results[a].distance != results[b].distance {
			return results[a].distance < results[b].distance
		}
		// Stable tie-break on insertion order
		return results[a].position < results[b].position
	})

	if topK > len(results) {
		topK = len(results)
	}

	hits := make([]models.SearchHit, topK)
	for i := 0; i < topK; i++ {
		hits[i] = models.SearchHit{
			Ref:      s.chunkMap[results[i].position],
			Distance: results[i].distance,
		}
	}
	return hits, nil
}

// Size returns the number of stored vectors.
func (s *Service) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.vectors)
}

// Dimension returns the embedding dimension, 0 before the first add.
func (s *Service) Dimension() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dimension
}

// Save persists the vector store and chunk map as a matched pair.
func (s *Service) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked()
}

// saveLocked writes both artifacts through temp files and renames, so a
// crash mid-write never leaves a truncated artifact behind.
func (s *Service) saveLocked() error {
	if err := s.writeVectors(); err != nil {
		return fmt.Errorf("failed to save vectors: %w", err)
	}
	if err := s.writeChunkMap(); err != nil {
		return fmt.Errorf("failed to save chunk map: %w", err)
	}
	return nil
}

func (s *Service) writeVectors() error {
	path := filepath.Join(s.dir, vectorsFile)
	tmp, err := os.CreateTemp(s.dir, vectorsFile+".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	snapshot := vectorSnapshot{Dimension: s.dimension, Vectors: s.vectors}
	if err := gob.NewEncoder(tmp).Encode(&snapshot); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func (s *Service) writeChunkMap() error {
	path := filepath.Join(s.dir, chunkMapFile)
	tmp, err := os.CreateTemp(s.dir, chunkMapFile+".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	// The file is a flat JSON list of ["doc_id", chunk_index] tuples.
	data, err := json.Marshal(s.chunkMap)
	if err != nil {
		tmp.Close()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Load restores a previously saved index. Both artifacts missing is a
// clean empty start. One missing while the other exists, or a length
// mismatch between them, is corruption: the caller must not serve
// queries from a half-restored index.
func (s *Service) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	vectorsPath := filepath.Join(s.dir, vectorsFile)
	chunkMapPath := filepath.Join(s.dir, chunkMapFile)

	_, vectorsErr := os.Stat(vectorsPath)
	_, chunkMapErr := os.Stat(chunkMapPath)
	vectorsExist := vectorsErr == nil
	chunkMapExists := chunkMapErr == nil

	if !vectorsExist && !chunkMapExists {
		s.vectors = nil
		s.chunkMap = nil
		s.dimension = 0
		s.logger.Info().Str("dir", s.dir).Msg("No persisted index found, starting empty")
		return nil
	}

	if vectorsExist != chunkMapExists {
		return fmt.Errorf("%w: found one of %s/%s without the other in %s",
			common.ErrCorruptIndex, vectorsFile, chunkMapFile, s.dir)
	}

	f, err := os.Open(vectorsPath)
	if err != nil {
		return fmt.Errorf("failed to open vector store: %w", err)
	}
	defer f.Close()

	var snapshot vectorSnapshot
	if err := gob.NewDecoder(f).Decode(&snapshot); err != nil {
		return fmt.Errorf("%w: unreadable vector store: %v", common.ErrCorruptIndex, err)
	}

	data, err := os.ReadFile(chunkMapPath)
	if err != nil {
		return fmt.Errorf("failed to read chunk map: %w", err)
	}
	var chunkMap []models.ChunkRef
	if err := json.Unmarshal(data, &chunkMap); err != nil {
		return fmt.Errorf("%w: unreadable chunk map: %v", common.ErrCorruptIndex, err)
	}

	if len(chunkMap) != len(snapshot.Vectors) {
		return fmt.Errorf("%w: %d vectors but %d chunk map entries",
			common.ErrCorruptIndex, len(snapshot.Vectors), len(chunkMap))
	}
	for i, vector := range snapshot.Vectors {
		if len(vector) != snapshot.Dimension {
			return fmt.Errorf("%w: vector %d has dimension %d, expected %d",
				common.ErrCorruptIndex, i, len(vector), snapshot.Dimension)
		}
	}

	s.vectors = snapshot.Vectors
	s.chunkMap = chunkMap
	s.dimension = snapshot.Dimension

	s.logger.Info().
		Int("vectors", len(s.vectors)).
		Int("dimension", s.dimension).
		Msg("Vector index loaded")

	return nil
}

// Verify checks the vector/chunk-map pairing invariant.
func (s *Service) Verify() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.vectors) != len(s.chunkMap) {
		return fmt.Errorf("%w: %d vectors but %d chunk map entries",
			common.ErrCorruptIndex, len(s.vectors), len(s.chunkMap))
	}
	for i, vector := range s.vectors {
		if len(vector) != s.dimension {
			return fmt.Errorf("%w: vector %d has dimension %d, expected %d",
				common.ErrCorruptIndex, i, len(vector), s.dimension)
		}
	}
	return nil
}

// l2Distance computes the Euclidean distance between two vectors.
func l2Distance(a, b []float32) float32 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return float32(math.Sqrt(sum))
}
