package repository

import (
	"context"

	"crawlcast/internal/domain/entity"
)

// KeywordGroupRepository persists keyword groups and their terms, the
// source of truth internal/usecase/keyword.Matcher is built from.
type KeywordGroupRepository interface {
	// ListActive returns every active keyword group with its keywords
	// populated.
	ListActive(ctx context.Context) ([]entity.KeywordGroup, error)
	Create(ctx context.Context, group *entity.KeywordGroup) error
	Update(ctx context.Context, group *entity.KeywordGroup) error
	Delete(ctx context.Context, id int64) error
}
