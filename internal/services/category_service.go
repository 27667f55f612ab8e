package services

import (
	"context"
	"fmt"

	"kakeibo/internal/core"
	"kakeibo/internal/storage"
)

// ConfirmFunc answers whether a guarded operation may proceed. The UI
// layer supplies it (typically a confirmation dialog); tests supply a
// constant.
type ConfirmFunc func() bool

// CategoryService manages the classification labels. The record
// store's category field is a soft reference: removing a category does
// not cascade to records that still carry its name.
type CategoryService struct {
	repo *storage.SQLiteRepository
}

func NewCategoryService(repo *storage.SQLiteRepository) *CategoryService {
	return &CategoryService{repo: repo}
}

// Add appends a trimmed, non-duplicate category name.
func (s *CategoryService) Add(ctx context.Context, name string) error {
	return s.repo.AddCategory(ctx, name)
}

// List returns categories in insertion order.
func (s *CategoryService) List(ctx context.Context) ([]string, error) {
	return s.repo.ListCategories(ctx)
}

// Remove deletes a category. If any record still references the name,
// the caller must confirm the removal; without confirmation the store
// is left unchanged and core.ErrCategoryInUse is reported.
func (s *CategoryService) Remove(ctx context.Context, name string, confirm ConfirmFunc) error {
	count, err := s.repo.CountRecordsWithCategory(ctx, name)
	if err != nil {
		return fmt.Errorf("check category references: %w", err)
	}
	if count > 0 && (confirm == nil || !confirm()) {
		return fmt.Errorf("category %q referenced by %d records: %w", name, count, core.ErrCategoryInUse)
	}
	return s.repo.RemoveCategory(ctx, name)
}
