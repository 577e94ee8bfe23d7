package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pribylovaa/go-blog/internal/http/apierrors"
	imodels "github.com/pribylovaa/go-blog/internal/models"
	"github.com/pribylovaa/go-blog/pkg/models"
)

func (h *Handlers) ListWorks(w http.ResponseWriter, r *http.Request) {
	q := parseQuery(r.URL.Query(), "page", "limit", "featured")

	f := imodels.WorkFilter{
		Page:     q.Page(h.limits.Default, h.limits.Max),
		Featured: q.Bool("featured"),
	}
	if err := q.Err(); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	list, err := h.svc.ListWorks(r.Context(), f)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeList(w, list)
}

func (h *Handlers) GetWork(w http.ResponseWriter, r *http.Request) {
	work, err := h.svc.GetWork(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeData(w, http.StatusOK, work)
}

func (h *Handlers) CreateWork(w http.ResponseWriter, r *http.Request) {
	var in models.WorkInput
	if err := h.decodeStrict(w, r, &in); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	work, err := h.svc.CreateWork(r.Context(), principal(r), in)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeData(w, http.StatusCreated, work)
}

func (h *Handlers) UpdateWork(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	var in models.UpdateWorkInput
	if err := h.decodeStrict(w, r, &in); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	work, err := h.svc.UpdateWork(r.Context(), principal(r), id, in)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeData(w, http.StatusOK, work)
}

func (h *Handlers) DeleteWork(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	if err := h.svc.DeleteWork(r.Context(), principal(r), id); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
