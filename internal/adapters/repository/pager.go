package repository

import (
	"context"

	"github.com/jasonherngwang/peoples-court/internal/domain/model"
	"github.com/jasonherngwang/peoples-court/internal/domain/search"
)

// Each pages through sel in id order and calls fn once per page. It stops at
// the first error from the store or fn.
func Each(ctx context.Context, store Store, q PageQuery, fn func([]model.Submission) error) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		page, err := store.Page(ctx, q)
		if err != nil {
			return err
		}
		if len(page) == 0 {
			return nil
		}
		if err := fn(page); err != nil {
			return err
		}
		if len(page) < q.Limit {
			return nil
		}
		q.AfterID = page[len(page)-1].ID
	}
}

// Loader feeds the indexable corpus to an index build.
type Loader struct {
	store    Store
	pageSize int
}

var _ search.Loader = (*Loader)(nil)

// NewLoader creates a Loader reading pageSize rows at a time.
func NewLoader(store Store, pageSize int) *Loader {
	if pageSize <= 0 {
		pageSize = 1000
	}
	return &Loader{store: store, pageSize: pageSize}
}

// Documents implements search.Loader.
func (l *Loader) Documents(ctx context.Context, fn func(search.Document) error) error {
	q := PageQuery{Selection: SelectIndexable, Limit: l.pageSize}
	return Each(ctx, l.store, q, func(page []model.Submission) error {
		for _, s := range page {
			if !s.Indexable() {
				continue
			}
			doc := search.Document{ID: s.ID, Title: s.Title, Body: s.Body, Embedding: s.Embedding}
			if err := fn(doc); err != nil {
				return err
			}
		}
		return nil
	})
}
