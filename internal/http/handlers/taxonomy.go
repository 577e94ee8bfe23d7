package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pribylovaa/go-blog/internal/http/apierrors"
	"github.com/pribylovaa/go-blog/pkg/models"
)

func (h *Handlers) ListCategories(w http.ResponseWriter, r *http.Request) {
	if err := parseQuery(r.URL.Query()).Err(); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	list, err := h.svc.ListCategories(r.Context())
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeData(w, http.StatusOK, list)
}

func (h *Handlers) GetCategory(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.GetCategory(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeData(w, http.StatusOK, c)
}

func (h *Handlers) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var in models.CategoryInput
	if err := h.decodeStrict(w, r, &in); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	c, err := h.svc.CreateCategory(r.Context(), principal(r), in)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeData(w, http.StatusCreated, c)
}

func (h *Handlers) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	var in models.UpdateCategoryInput
	if err := h.decodeStrict(w, r, &in); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	c, err := h.svc.UpdateCategory(r.Context(), principal(r), id, in)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeData(w, http.StatusOK, c)
}

func (h *Handlers) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	if err := h.svc.DeleteCategory(r.Context(), principal(r), id); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) ListTags(w http.ResponseWriter, r *http.Request) {
	if err := parseQuery(r.URL.Query()).Err(); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	list, err := h.svc.ListTags(r.Context())
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeData(w, http.StatusOK, list)
}

func (h *Handlers) GetTag(w http.ResponseWriter, r *http.Request) {
	t, err := h.svc.GetTag(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeData(w, http.StatusOK, t)
}

func (h *Handlers) CreateTag(w http.ResponseWriter, r *http.Request) {
	var in models.TagInput
	if err := h.decodeStrict(w, r, &in); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	t, err := h.svc.CreateTag(r.Context(), principal(r), in)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeData(w, http.StatusCreated, t)
}

func (h *Handlers) DeleteTag(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	if err := h.svc.DeleteTag(r.Context(), principal(r), id); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
