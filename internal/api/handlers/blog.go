package handlers

import (
	"net/http"

	"github.com/dom/nutrition-practice/internal/service"
	"github.com/go-chi/chi/v5"
)

type BlogHandler struct {
	blogService *service.BlogService
	rs          *Responder
}

func NewBlogHandler(blogService *service.BlogService, rs *Responder) *BlogHandler {
	return &BlogHandler{blogService: blogService, rs: rs}
}

func (h *BlogHandler) ListPublished(w http.ResponseWriter, r *http.Request) {
	page := h.rs.Page(r)
	posts, total, err := h.blogService.ListPublished(r.Context(), page)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	h.rs.List(w, "posts retrieved", posts, total, page)
}

func (h *BlogHandler) GetPublished(w http.ResponseWriter, r *http.Request) {
	post, err := h.blogService.GetPublished(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	h.rs.OK(w, "post retrieved", post)
}

// ListManaged lists drafts and published posts the caller may edit
func (h *BlogHandler) ListManaged(w http.ResponseWriter, r *http.Request) {
	act, err := actor(r)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}

	page := h.rs.Page(r)
	posts, total, err := h.blogService.ListManaged(r.Context(), act, page)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	h.rs.List(w, "posts retrieved", posts, total, page)
}

func (h *BlogHandler) Create(w http.ResponseWriter, r *http.Request) {
	act, err := actor(r)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	var input service.BlogPostInput
	if err := decodeJSON(w, r, &input); err != nil {
		h.rs.Error(w, r, err)
		return
	}

	post, err := h.blogService.Create(r.Context(), act, input)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	h.rs.Created(w, "post created", post)
}

func (h *BlogHandler) Update(w http.ResponseWriter, r *http.Request) {
	act, id, err := actorAndID(r)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	var input service.BlogPostInput
	if err := decodeJSON(w, r, &input); err != nil {
		h.rs.Error(w, r, err)
		return
	}

	post, err := h.blogService.Update(r.Context(), act, id, input)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	h.rs.OK(w, "post updated", post)
}

func (h *BlogHandler) Publish(w http.ResponseWriter, r *http.Request) {
	h.setPublished(w, r, true)
}

func (h *BlogHandler) Unpublish(w http.ResponseWriter, r *http.Request) {
	h.setPublished(w, r, false)
}

func (h *BlogHandler) setPublished(w http.ResponseWriter, r *http.Request, published bool) {
	act, id, err := actorAndID(r)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}

	post, err := h.blogService.SetPublished(r.Context(), act, id, published)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	message := "post unpublished"
	if published {
		message = "post published"
	}
	h.rs.OK(w, message, post)
}

func (h *BlogHandler) Delete(w http.ResponseWriter, r *http.Request) {
	act, id, err := actorAndID(r)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}

	if err := h.blogService.Delete(r.Context(), act, id); err != nil {
		h.rs.Error(w, r, err)
		return
	}
	h.rs.OK(w, "post deleted", nil)
}
