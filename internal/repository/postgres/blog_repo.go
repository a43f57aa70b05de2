package postgres

import (
	"context"

	"github.com/dom/nutrition-practice/internal/domain"
	"github.com/dom/nutrition-practice/internal/repository"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type blogRepository struct {
	db *gorm.DB
}

func NewBlogRepository(db *gorm.DB) *blogRepository {
	return &blogRepository{db: db}
}

func (r *blogRepository) Create(ctx context.Context, post *domain.BlogPost) error {
	return translate(r.db.WithContext(ctx).Create(post).Error)
}

func (r *blogRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.BlogPost, error) {
	var post domain.BlogPost
	err := r.db.WithContext(ctx).
		Preload("Author").
		First(&post, "id = ?", id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &post, nil
}

func (r *blogRepository) GetBySlug(ctx context.Context, slug string, publishedOnly bool) (*domain.BlogPost, error) {
	query := r.db.WithContext(ctx).Preload("Author").Where("slug = ?", slug)
	if publishedOnly {
		query = query.Where("published = ?", true)
	}

	var post domain.BlogPost
	if err := query.First(&post).Error; err != nil {
		return nil, translate(err)
	}
	return &post, nil
}

// SlugExists also counts soft-deleted posts since the unique index covers them
func (r *blogRepository) SlugExists(ctx context.Context, slug string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Unscoped().
		Model(&domain.BlogPost{}).
		Where("slug = ?", slug).
		Count(&count).Error
	return count > 0, err
}

func (r *blogRepository) List(ctx context.Context, publishedOnly bool, authorID uuid.UUID, page repository.Page) ([]*domain.BlogPost, int64, error) {
	query := r.db.WithContext(ctx).Model(&domain.BlogPost{})
	if publishedOnly {
		query = query.Where("published = ?", true)
	}
	if authorID != uuid.Nil {
		query = query.Where("author_id = ?", authorID)
	}
	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var posts []*domain.BlogPost
	err := query.
		Preload("Author").
		Order("published_at DESC NULLS LAST, created_at DESC").
		Scopes(paginate(page)).
		Find(&posts).Error
	if err != nil {
		return nil, 0, err
	}
	return posts, total, nil
}

func (r *blogRepository) Update(ctx context.Context, post *domain.BlogPost) error {
	return translate(r.db.WithContext(ctx).Omit("Author").Save(post).Error)
}

func (r *blogRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&domain.BlogPost{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
