package store

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/minnahq/minna/pkg/models"
)

// UpsertDocument inserts or updates by URI; all columns are replaced on
// conflict. The FTS index is kept consistent via the triggers created by
// the bootstrap migration.
func (s *Store) UpsertDocument(doc *models.Document) (int64, error) {
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = time.Now().UTC()
	}
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "uri"}},
		DoUpdates: clause.AssignmentColumns([]string{"source", "title", "body", "updated_at"}),
	}).Create(doc).Error
	if err != nil {
		return 0, fmt.Errorf("upserting document %q: %w", doc.URI, err)
	}
	if doc.ID == 0 {
		// OnConflict path doesn't populate ID on every sqlite driver version;
		// look it up explicitly.
		var existing models.Document
		if err := s.db.Where("uri = ?", doc.URI).First(&existing).Error; err != nil {
			return 0, fmt.Errorf("resolving id after upsert for %q: %w", doc.URI, err)
		}
		doc.ID = existing.ID
	}
	return doc.ID, nil
}

// GetByURI fetches a document by its natural key.
func (s *Store) GetByURI(uri string) (*models.Document, error) {
	var doc models.Document
	if err := s.db.Where("uri = ?", uri).First(&doc).Error; err != nil {
		return nil, err
	}
	return &doc, nil
}

// FetchByIDs returns documents for the given ids, in no particular
// order; callers that need result ordering re-sort by id afterward.
func (s *Store) FetchByIDs(ids []int64) ([]models.Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var docs []models.Document
	if err := s.db.Where("id IN ?", ids).Find(&docs).Error; err != nil {
		return nil, fmt.Errorf("fetching documents by id: %w", err)
	}
	return docs, nil
}

// KeywordHit is one result of a full-text search.
type KeywordHit struct {
	DocID int64
	Score float64 // higher is better; derived from FTS5 bm25(), which is lower-is-better
	Rank  int      // 0-based position in the result set, used by hybrid fusion
}

// SearchKeyword runs the FTS5 match ordered by bm25 relevance, converted
// to a higher-is-better score. Ties break on doc_id descending.
func (s *Store) SearchKeyword(query string, limit int) ([]KeywordHit, error) {
	if query == "" || limit <= 0 {
		return nil, nil
	}

	rows, err := s.db.Raw(`
		SELECT rowid, bm25(fts_documents) AS rank
		FROM fts_documents
		WHERE fts_documents MATCH ?
		ORDER BY rank ASC, rowid DESC
		LIMIT ?
	`, query, limit).Rows()
	if err != nil {
		return nil, fmt.Errorf("searching fts index: %w", err)
	}
	defer rows.Close()

	var hits []KeywordHit
	for rows.Next() {
		var id int64
		var bm25 float64
		if err := rows.Scan(&id, &bm25); err != nil {
			return nil, fmt.Errorf("scanning fts result: %w", err)
		}
		hits = append(hits, KeywordHit{
			DocID: id,
			Score: bm25Nonnegative(bm25) / (1.0 + bm25Nonnegative(bm25)),
			Rank:  len(hits),
		})
	}
	return hits, rows.Err()
}

// bm25Nonnegative returns the magnitude of an FTS5 bm25() value. FTS5
// reports bm25 as a negative number, more negative for stronger matches,
// so the magnitude grows with relevance.
func bm25Nonnegative(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// DeleteBySource mass-deletes every document from a given provider.
// Callers must follow with a vector scrub (see vectors.go).
func (s *Store) DeleteBySource(source string) error {
	if err := s.db.Where("source = ?", source).Delete(&models.Document{}).Error; err != nil {
		return fmt.Errorf("deleting documents for source %q: %w", source, err)
	}
	return nil
}

// SetCursor advances a provider's sync cursor. Cursors only move forward
// on a successful sync; callers are responsible for that discipline.
func (s *Store) SetCursor(name, value string) error {
	cur := models.Cursor{Name: name, Value: value, UpdatedAt: time.Now().UTC()}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&cur).Error
}

// GetCursor returns the cursor value for name, or "" if none has been
// recorded yet (first sync).
func (s *Store) GetCursor(name string) (string, error) {
	var cur models.Cursor
	err := s.db.Where("name = ?", name).First(&cur).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return "", nil
	case err != nil:
		return "", fmt.Errorf("reading cursor %q: %w", name, err)
	}
	return cur.Value, nil
}
