package service_test

import (
	"context"
	"testing"

	"github.com/dom/nutrition-practice/internal/domain"
	"github.com/dom/nutrition-practice/internal/repository"
	"github.com/dom/nutrition-practice/internal/repository/postgres"
	"github.com/dom/nutrition-practice/internal/service"
	"github.com/dom/nutrition-practice/internal/testutil"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		title string
		want  string
	}{
		{"Hello World", "hello-world"},
		{"  Eat   more greens!  ", "eat-more-greens"},
		{"Protein: 101 (basics)", "protein-101-basics"},
		{"Café com leite", "caf-com-leite"},
		{"!!!", "post"},
		{"", "post"},
	}

	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			assert.Equal(t, tt.want, service.Slugify(tt.title))
		})
	}
}

func TestBlogService(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repos := postgres.NewRepositories(testDB.DB)
	blog := service.NewBlogService(repos.Blog)
	ctx := context.Background()
	page := repository.Page{Page: 1, Limit: 10}

	setup := func(t *testing.T) (service.Actor, service.Actor) {
		testDB.Truncate(t)
		author, _ := testutil.NewUserBuilder().WithRole(domain.RoleNutritionist).Build(t, testDB.DB)
		other, _ := testutil.NewUserBuilder().WithRole(domain.RoleNutritionist).Build(t, testDB.DB)
		return service.Actor{UserID: author.ID, Role: domain.RoleNutritionist},
			service.Actor{UserID: other.ID, Role: domain.RoleNutritionist}
	}

	t.Run("content is sanitized and tags normalized", func(t *testing.T) {
		author, _ := setup(t)

		post, err := blog.Create(ctx, author, service.BlogPostInput{
			Title:   "Hydration",
			Summary: "<b>Drink</b> water",
			Content: `<p>Hello</p><script>alert(1)</script>`,
			Tags:    []string{" Water ", "water", "", "Health"},
		})
		require.NoError(t, err)
		assert.Equal(t, "hydration", post.Slug)
		assert.Equal(t, "Drink water", post.Summary)
		assert.Equal(t, "<p>Hello</p>", post.Content)
		assert.Equal(t, []string{"water", "health"}, []string(post.Tags))
		assert.False(t, post.Published)
	})

	t.Run("only unsafe markup is rejected", func(t *testing.T) {
		author, _ := setup(t)

		_, err := blog.Create(ctx, author, service.BlogPostInput{
			Title:   "Empty",
			Content: "<script>alert(1)</script>",
		})
		var verr *domain.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "content", verr.Fields[0].Field)
	})

	t.Run("duplicate titles get numbered slugs", func(t *testing.T) {
		author, _ := setup(t)

		slugs := make([]string, 0, 3)
		for i := 0; i < 3; i++ {
			post, err := blog.Create(ctx, author, service.BlogPostInput{Title: "Meal Prep", Content: "<p>x</p>"})
			require.NoError(t, err)
			slugs = append(slugs, post.Slug)
		}
		assert.Equal(t, []string{"meal-prep", "meal-prep-2", "meal-prep-3"}, slugs)
	})

	t.Run("drafts are hidden from the public index", func(t *testing.T) {
		author, _ := setup(t)

		draft, err := blog.Create(ctx, author, service.BlogPostInput{Title: "Draft", Content: "<p>x</p>"})
		require.NoError(t, err)
		published, err := blog.Create(ctx, author, service.BlogPostInput{
			Title:     "Live",
			Content:   "<p>x</p>",
			Published: lo.ToPtr(true),
		})
		require.NoError(t, err)
		require.NotNil(t, published.PublishedAt)

		posts, total, err := blog.ListPublished(ctx, page)
		require.NoError(t, err)
		assert.EqualValues(t, 1, total)
		require.Len(t, posts, 1)
		assert.Equal(t, published.ID, posts[0].ID)

		_, err = blog.GetPublished(ctx, draft.Slug)
		assert.ErrorIs(t, err, domain.ErrNotFound)

		_, err = blog.SetPublished(ctx, author, draft.ID, true)
		require.NoError(t, err)
		got, err := blog.GetPublished(ctx, draft.Slug)
		require.NoError(t, err)
		assert.Equal(t, draft.ID, got.ID)

		unpublished, err := blog.SetPublished(ctx, author, published.ID, false)
		require.NoError(t, err)
		assert.Nil(t, unpublished.PublishedAt)
	})

	t.Run("only the author or an admin edits a post", func(t *testing.T) {
		author, other := setup(t)
		admin := service.Actor{UserID: other.UserID, Role: domain.RoleAdmin}

		post, err := blog.Create(ctx, author, service.BlogPostInput{Title: "Mine", Content: "<p>x</p>"})
		require.NoError(t, err)

		_, err = blog.Update(ctx, other, post.ID, service.BlogPostInput{Title: "Stolen", Content: "<p>y</p>"})
		assert.ErrorIs(t, err, service.ErrForbidden)
		assert.ErrorIs(t, blog.Delete(ctx, other, post.ID), service.ErrForbidden)

		updated, err := blog.Update(ctx, admin, post.ID, service.BlogPostInput{Title: "Renamed", Content: "<p>y</p>"})
		require.NoError(t, err)
		assert.Equal(t, "mine", updated.Slug, "slug survives a title change")

		managed, total, err := blog.ListManaged(ctx, other, page)
		require.NoError(t, err)
		assert.EqualValues(t, 0, total)
		assert.Empty(t, managed)

		require.NoError(t, blog.Delete(ctx, author, post.ID))
		_, err = repos.Blog.GetByID(ctx, post.ID)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}
