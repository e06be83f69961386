package provider

import (
	"github.com/minnahq/minna/pkg/models"
	"github.com/minnahq/minna/pkg/store"
)

func newDocumentRow(doc Document) *models.Document {
	row := &models.Document{
		URI:    doc.URI,
		Source: doc.Source,
		Body:   doc.Body,
	}
	if doc.Title != "" {
		title := doc.Title
		row.Title = &title
	}
	return row
}

func edgeRefFrom(e Edge, weight float64) store.EdgeRef {
	return store.EdgeRef{
		From:       e.From,
		To:         e.To,
		Relation:   e.Relation,
		Provider:   e.From.Provider,
		ObservedAt: e.ObservedAt,
		Weight:     weight,
	}
}
