package handlers

import (
	"net/http"

	"github.com/pribylovaa/go-blog/internal/http/apierrors"
	"github.com/pribylovaa/go-blog/pkg/models"
)

func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var in models.RegisterInput
	if err := h.decodeStrict(w, r, &in); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	res, err := h.svc.Register(r.Context(), in)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeData(w, http.StatusCreated, res)
}

func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var in models.LoginInput
	if err := h.decodeStrict(w, r, &in); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	res, err := h.svc.Login(r.Context(), in)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeData(w, http.StatusOK, res)
}

func (h *Handlers) Refresh(w http.ResponseWriter, r *http.Request) {
	var in models.RefreshInput
	if err := h.decodeStrict(w, r, &in); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	tokens, err := h.svc.Refresh(r.Context(), in.RefreshToken)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeData(w, http.StatusOK, tokens)
}

func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	var in models.RefreshInput
	if err := h.decodeStrict(w, r, &in); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	if err := h.svc.Logout(r.Context(), in.RefreshToken); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
