package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pribylovaa/go-blog/internal/http/apierrors"
	imodels "github.com/pribylovaa/go-blog/internal/models"
	"github.com/pribylovaa/go-blog/pkg/models"
)

func (h *Handlers) ListPosts(w http.ResponseWriter, r *http.Request) {
	q := parseQuery(r.URL.Query(), "page", "limit", "categoryId", "tagId", "featured", "published", "search")

	f := imodels.PostFilter{
		Page:       q.Page(h.limits.Default, h.limits.Max),
		CategoryID: q.UUID("categoryId"),
		TagID:      q.UUID("tagId"),
		Featured:   q.Bool("featured"),
		Published:  q.Bool("published"),
		Search:     q.String("search"),
	}
	if err := q.Err(); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	list, err := h.svc.ListPosts(r.Context(), principal(r), f)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeList(w, list)
}

func (h *Handlers) GetPost(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.GetPost(r.Context(), principal(r), chi.URLParam(r, "id"))
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeData(w, http.StatusOK, p)
}

func (h *Handlers) CreatePost(w http.ResponseWriter, r *http.Request) {
	var in models.CreatePostInput
	if err := h.decodeStrict(w, r, &in); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	p, err := h.svc.CreatePost(r.Context(), principal(r), in)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeData(w, http.StatusCreated, p)
}

func (h *Handlers) UpdatePost(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	var in models.UpdatePostInput
	if err := h.decodeStrict(w, r, &in); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	p, err := h.svc.UpdatePost(r.Context(), principal(r), id, in)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeData(w, http.StatusOK, p)
}

func (h *Handlers) DeletePost(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	if err := h.svc.DeletePost(r.Context(), principal(r), id); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) Search(w http.ResponseWriter, r *http.Request) {
	q := parseQuery(r.URL.Query(), "q", "page", "limit")
	page := q.Page(h.limits.Default, h.limits.Max)
	if err := q.Err(); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	list, err := h.svc.Search(r.Context(), q.String("q"), page)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeList(w, list)
}
