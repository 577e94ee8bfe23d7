package handlers

import (
	"net/http"

	"github.com/pribylovaa/go-blog/internal/http/apierrors"
	"github.com/pribylovaa/go-blog/pkg/models"
)

// PresignMedia выдаёт presigned PUT для загрузки обложки или аватара напрямую в S3.
func (h *Handlers) PresignMedia(w http.ResponseWriter, r *http.Request) {
	var in models.PresignInput
	if err := h.decodeStrict(w, r, &in); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	res, err := h.svc.PresignUpload(r.Context(), principal(r), in)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeData(w, http.StatusOK, res)
}

// ConfirmMedia проверяет загруженный объект и возвращает его публичный URL.
func (h *Handlers) ConfirmMedia(w http.ResponseWriter, r *http.Request) {
	var in models.ConfirmInput
	if err := h.decodeStrict(w, r, &in); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	res, err := h.svc.ConfirmUpload(r.Context(), principal(r), in)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeData(w, http.StatusOK, res)
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, h.svc.Health(r.Context()))
}
