package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/dom/nutrition-practice/internal/domain"
	"github.com/dom/nutrition-practice/internal/repository"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/samber/lo"
	"gorm.io/datatypes"
)

const maxSlugAttempts = 50

type BlogService struct {
	posts   repository.BlogRepository
	content *bluemonday.Policy
	plain   *bluemonday.Policy
	now     func() time.Time
}

func NewBlogService(posts repository.BlogRepository) *BlogService {
	return &BlogService{
		posts:   posts,
		content: bluemonday.UGCPolicy(),
		plain:   bluemonday.StrictPolicy(),
		now:     time.Now,
	}
}

type BlogPostInput struct {
	Title     string   `json:"title" validate:"required,max=200"`
	Summary   string   `json:"summary" validate:"max=500"`
	Content   string   `json:"content" validate:"required"`
	Tags      []string `json:"tags" validate:"max=10,dive,max=40"`
	Published *bool    `json:"published"`
}

// ListPublished is the public blog index
func (s *BlogService) ListPublished(ctx context.Context, page repository.Page) ([]*domain.BlogPost, int64, error) {
	return s.posts.List(ctx, true, uuid.Nil, page)
}

// GetPublished returns a published post by slug
func (s *BlogService) GetPublished(ctx context.Context, slug string) (*domain.BlogPost, error) {
	return s.posts.GetBySlug(ctx, slug, true)
}

// ListManaged returns drafts and published posts: all of them for admins, the
// author's own for nutritionists
func (s *BlogService) ListManaged(ctx context.Context, actor Actor, page repository.Page) ([]*domain.BlogPost, int64, error) {
	authorID := actor.UserID
	if actor.IsAdmin() {
		authorID = uuid.Nil
	}
	return s.posts.List(ctx, false, authorID, page)
}

func (s *BlogService) Create(ctx context.Context, actor Actor, input BlogPostInput) (*domain.BlogPost, error) {
	post := &domain.BlogPost{ID: uuid.New(), AuthorID: actor.UserID}
	if err := s.apply(input, post); err != nil {
		return nil, err
	}

	slug, err := s.uniqueSlug(ctx, post.Title)
	if err != nil {
		return nil, err
	}
	post.Slug = slug

	if err := s.posts.Create(ctx, post); err != nil {
		return nil, err
	}
	return post, nil
}

// Update edits a post. The slug stays the same so published links keep working.
func (s *BlogService) Update(ctx context.Context, actor Actor, id uuid.UUID, input BlogPostInput) (*domain.BlogPost, error) {
	post, err := s.editable(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if err := s.apply(input, post); err != nil {
		return nil, err
	}
	if err := s.posts.Update(ctx, post); err != nil {
		return nil, err
	}
	return post, nil
}

func (s *BlogService) SetPublished(ctx context.Context, actor Actor, id uuid.UUID, published bool) (*domain.BlogPost, error) {
	post, err := s.editable(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	s.setPublished(post, published)
	if err := s.posts.Update(ctx, post); err != nil {
		return nil, err
	}
	return post, nil
}

func (s *BlogService) Delete(ctx context.Context, actor Actor, id uuid.UUID) error {
	if _, err := s.editable(ctx, actor, id); err != nil {
		return err
	}
	return s.posts.Delete(ctx, id)
}

func (s *BlogService) editable(ctx context.Context, actor Actor, id uuid.UUID) (*domain.BlogPost, error) {
	post, err := s.posts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if post.AuthorID != actor.UserID && !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	return post, nil
}

func (s *BlogService) apply(in BlogPostInput, post *domain.BlogPost) error {
	in.Title = strings.TrimSpace(in.Title)
	if err := validateStruct(in).Err(); err != nil {
		return err
	}

	content := strings.TrimSpace(s.content.Sanitize(in.Content))
	if content == "" {
		return domain.NewValidationError("content", "is empty after removing unsafe markup")
	}

	post.Title = in.Title
	post.Summary = strings.TrimSpace(s.plain.Sanitize(in.Summary))
	post.Content = content
	post.Tags = datatypes.JSONSlice[string](normalizeTags(in.Tags))
	if in.Published != nil {
		s.setPublished(post, *in.Published)
	}
	return nil
}

func (s *BlogService) setPublished(post *domain.BlogPost, published bool) {
	if published && !post.Published {
		now := s.now()
		post.PublishedAt = &now
	}
	if !published {
		post.PublishedAt = nil
	}
	post.Published = published
}

func (s *BlogService) uniqueSlug(ctx context.Context, title string) (string, error) {
	base := Slugify(title)
	candidate := base
	for i := 2; i <= maxSlugAttempts+1; i++ {
		exists, err := s.posts.SlugExists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}
	return fmt.Sprintf("%s-%s", base, uuid.NewString()[:8]), nil
}

// Slugify lower-cases the title and joins its letters and digits with dashes
func Slugify(title string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(title) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
			dash = false
		case b.Len() > 0 && !dash:
			b.WriteByte('-')
			dash = true
		}
	}
	slug := strings.TrimSuffix(b.String(), "-")
	if slug == "" {
		return "post"
	}
	if len(slug) > 80 {
		slug = strings.TrimSuffix(slug[:80], "-")
	}
	return slug
}

func normalizeTags(tags []string) []string {
	cleaned := lo.Map(tags, func(tag string, _ int) string {
		return strings.ToLower(strings.TrimSpace(tag))
	})
	return lo.Uniq(lo.Compact(cleaned))
}
