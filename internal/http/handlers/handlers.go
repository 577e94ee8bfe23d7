// handlers — REST-обработчики /api/v1 поверх service.Service.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/pribylovaa/go-blog/internal/config"
	"github.com/pribylovaa/go-blog/internal/http/middleware"
	imodels "github.com/pribylovaa/go-blog/internal/models"
	"github.com/pribylovaa/go-blog/internal/service"
	"github.com/pribylovaa/go-blog/pkg/envelope"
)

// Handlers агрегирует зависимости обработчиков.
type Handlers struct {
	svc       *service.Service
	limits    config.LimitsConfig
	bodyLimit int64
}

func New(svc *service.Service, limits config.LimitsConfig, bodyLimit int64) *Handlers {
	return &Handlers{svc: svc, limits: limits, bodyLimit: bodyLimit}
}

// writeJSON — единый ответ JSON с нужным Content-Type.
// Ошибки выводим через apierrors.WriteError.
func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeData[T any](w http.ResponseWriter, status int, v T) {
	writeJSON(w, status, envelope.Response[T]{Data: v})
}

func writeList[T any](w http.ResponseWriter, l *imodels.List[T]) {
	writeJSON(w, http.StatusOK, envelope.NewPaginated(l.Items, l.Total, l.Page.Page, l.Page.Limit))
}

// decodeStrict — строгий JSON-декодер: неизвестные поля, хвост после
// объекта и тело больше лимита отклоняются.
func (h *Handlers) decodeStrict(w http.ResponseWriter, r *http.Request, value any) error {
	body := r.Body
	if h.bodyLimit > 0 {
		body = http.MaxBytesReader(w, r.Body, h.bodyLimit)
	}

	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(value); err != nil {
		return decodeErr(err)
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return err
		}

		return service.Invalid("body", "must contain a single JSON object")
	}

	return nil
}

func decodeErr(err error) error {
	var (
		mbe     *http.MaxBytesError
		typeErr *json.UnmarshalTypeError
		synErr  *json.SyntaxError
	)

	switch {
	case errors.As(err, &mbe):
		return err
	case errors.Is(err, io.EOF):
		return service.Invalid("body", "required")
	case errors.Is(err, io.ErrUnexpectedEOF), errors.As(err, &synErr):
		return service.Invalid("body", "malformed JSON")
	case errors.As(err, &typeErr):
		field := typeErr.Field
		if field == "" {
			field = "body"
		}
		return service.Invalid(field, "must be "+jsonKind(typeErr.Type.Kind().String()))
	}

	if name, ok := strings.CutPrefix(err.Error(), "json: unknown field "); ok {
		return service.Invalid(strings.Trim(name, `"`), "unknown field")
	}

	return service.Invalid("body", "invalid value")
}

func jsonKind(k string) string {
	switch k {
	case "string":
		return "a string"
	case "bool":
		return "a boolean"
	case "slice", "array":
		return "an array"
	case "struct", "map":
		return "an object"
	case "int", "int64", "int32", "float64":
		return "a number"
	}

	return "a valid value"
}

// pathID — uuid из параметра маршрута.
func pathID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, service.Invalid(name, "must be a valid UUID")
	}

	return id, nil
}

func principal(r *http.Request) *imodels.Principal {
	return middleware.PrincipalFrom(r.Context())
}
