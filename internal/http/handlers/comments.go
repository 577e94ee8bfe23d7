package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pribylovaa/go-blog/internal/http/apierrors"
	"github.com/pribylovaa/go-blog/pkg/models"
)

// ListComments — одобренные корневые комментарии поста с одобренными ответами.
func (h *Handlers) ListComments(w http.ResponseWriter, r *http.Request) {
	q := parseQuery(r.URL.Query(), "page", "limit")
	page := q.Page(h.limits.Default, h.limits.Max)
	if err := q.Err(); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	list, err := h.svc.ListComments(r.Context(), principal(r), chi.URLParam(r, "id"), page)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeList(w, list)
}

func (h *Handlers) CreateComment(w http.ResponseWriter, r *http.Request) {
	var in models.CreateCommentInput
	if err := h.decodeStrict(w, r, &in); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	c, err := h.svc.CreateComment(r.Context(), principal(r), chi.URLParam(r, "id"), in)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeData(w, http.StatusCreated, c)
}

func (h *Handlers) ListPendingComments(w http.ResponseWriter, r *http.Request) {
	q := parseQuery(r.URL.Query(), "page", "limit")
	page := q.Page(h.limits.Default, h.limits.Max)
	if err := q.Err(); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	list, err := h.svc.ListPendingComments(r.Context(), principal(r), page)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeList(w, list)
}

func (h *Handlers) ApproveComment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	c, err := h.svc.ApproveComment(r.Context(), principal(r), id)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeData(w, http.StatusOK, c)
}

func (h *Handlers) DeleteComment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	if err := h.svc.DeleteComment(r.Context(), principal(r), id); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
