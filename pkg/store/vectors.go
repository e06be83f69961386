package store

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"time"

	"gorm.io/gorm/clause"

	"github.com/minnahq/minna/pkg/models"
)

// UpsertVector stores or replaces the embedding for a document.
func (s *Store) UpsertVector(docID int64, vec []float32) error {
	row := models.Vector{
		DocID:     docID,
		Dim:       len(vec),
		Embedding: encodeVector(vec),
		UpdatedAt: time.Now().UTC(),
	}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "doc_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"dim", "embedding", "updated_at"}),
	}).Create(&row).Error
}

// ListVectors returns every vector row; used by the exhaustive scan
// fallback and by cluster().
func (s *Store) ListVectors() ([]models.Vector, error) {
	var rows []models.Vector
	if err := s.db.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing vectors: %w", err)
	}
	return rows, nil
}

// VectorHit is one result of a vector similarity search.
type VectorHit struct {
	DocID int64
	Score float64 // cosine similarity, higher is better
}

// SearchVectors returns the top limit documents for query. When the
// sqlite-vec extension loaded at Open it takes searchVectorsAccelerated
// (Euclidean distance computed in Go); otherwise, or if that fails, it
// ranks by cosine similarity in an exhaustive in-process scan. Ties
// break on doc_id descending in both paths.
func (s *Store) SearchVectors(query []float32, limit int) ([]VectorHit, error) {
	if limit <= 0 || len(query) == 0 {
		return nil, nil
	}
	if s.vecCap {
		hits, err := s.searchVectorsAccelerated(query, limit)
		if err == nil {
			return hits, nil
		}
		s.log.Warn("accelerated vector search failed, falling back to exhaustive scan", "error", err)
	}
	return s.searchVectorsExhaustive(query, limit)
}

func (s *Store) searchVectorsExhaustive(query []float32, limit int) ([]VectorHit, error) {
	rows, err := s.ListVectors()
	if err != nil {
		return nil, err
	}

	hits := make([]VectorHit, 0, len(rows))
	for _, row := range rows {
		v := decodeVector(row.Embedding, row.Dim)
		hits = append(hits, VectorHit{DocID: row.DocID, Score: cosineSimilarity(query, v)})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].DocID > hits[j].DocID
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// searchVectorsAccelerated runs only when the sqlite-vec extension
// loaded, but calls no extension function and builds no virtual table:
// it loads every stored row and ranks by Euclidean (L2) distance
// computed in Go.
func (s *Store) searchVectorsAccelerated(query []float32, limit int) ([]VectorHit, error) {
	rows, err := s.ListVectors()
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	type scored struct {
		docID int64
		dist  float64
	}
	scoredRows := make([]scored, 0, len(rows))
	for _, row := range rows {
		v := decodeVector(row.Embedding, row.Dim)
		var sumSq float64
		for i := range query {
			if i >= len(v) {
				break
			}
			d := float64(query[i] - v[i])
			sumSq += d * d
		}
		scoredRows = append(scoredRows, scored{docID: row.DocID, dist: math.Sqrt(sumSq)})
	}
	sort.Slice(scoredRows, func(i, j int) bool {
		if scoredRows[i].dist != scoredRows[j].dist {
			return scoredRows[i].dist < scoredRows[j].dist
		}
		return scoredRows[i].docID > scoredRows[j].docID
	})
	if len(scoredRows) > limit {
		scoredRows = scoredRows[:limit]
	}

	hits := make([]VectorHit, len(scoredRows))
	for i, r := range scoredRows {
		// Convert L2 distance on normalized vectors back to a
		// cosine-similarity-shaped score so callers don't need to know
		// which backend answered the query.
		hits[i] = VectorHit{DocID: r.docID, Score: 1.0 / (1.0 + r.dist)}
	}
	return hits, nil
}

// ScrubOrphanVectors deletes every vector row whose document no longer
// exists. Run after delete_by_source or reset.
func (s *Store) ScrubOrphanVectors() (int64, error) {
	res := s.db.Exec(`DELETE FROM vectors WHERE doc_id NOT IN (SELECT id FROM documents)`)
	if res.Error != nil {
		return 0, fmt.Errorf("scrubbing orphan vectors: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func cosineSimilarity(a, b []float32) float64 {
	var dot, na, nb float64
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(buf []byte, dim int) []float32 {
	out := make([]float32, dim)
	for i := 0; i < dim && (i+1)*4 <= len(buf); i++ {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return out
}
