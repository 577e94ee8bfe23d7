package handlers

import (
	"net/http"

	"github.com/pribylovaa/go-blog/internal/http/apierrors"
	"github.com/pribylovaa/go-blog/pkg/models"
)

func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	u, err := h.svc.Me(r.Context(), principal(r))
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeData(w, http.StatusOK, u)
}

func (h *Handlers) UpdateMe(w http.ResponseWriter, r *http.Request) {
	var in models.UpdateProfileInput
	if err := h.decodeStrict(w, r, &in); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	u, err := h.svc.UpdateProfile(r.Context(), principal(r), in)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeData(w, http.StatusOK, u)
}
