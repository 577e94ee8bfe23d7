// apierrors приводит ошибки сервиса и хранилищ к HTTP-статусу и телу
// envelope.Error. Наружу уходит только безопасное сообщение; полная
// цепочка ошибки для 5xx пишется в лог запроса.
package apierrors

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/pribylovaa/go-blog/internal/pkg/log"
	"github.com/pribylovaa/go-blog/internal/service"
	"github.com/pribylovaa/go-blog/internal/storage"
	"github.com/pribylovaa/go-blog/pkg/envelope"
)

// StatusClientClosedRequest — нестандартный статус «клиент закрыл соединение».
const StatusClientClosedRequest = 499

// Problem — результат маппинга ошибки.
type Problem struct {
	Status  int
	Code    string
	Message string
	Details map[string]string
}

// ToHTTP маппит ошибку на статус, код и сообщение.
//
//   - *service.ValidationError -> 400 VALIDATION_ERROR с details;
//   - сентинелы service и storage -> 400/401/403/404/409/503;
//   - *http.MaxBytesError -> 413;
//   - *pgconn.PgError и pgx.ErrNoRows, дошедшие до транспорта -> по коду Postgres;
//   - context.DeadlineExceeded -> 504, context.Canceled -> 499;
//   - прочее (и nil) -> 500 без деталей.
func ToHTTP(err error) Problem {
	if err == nil {
		return internal()
	}

	var ve *service.ValidationError
	if errors.As(err, &ve) {
		return Problem{
			Status:  http.StatusBadRequest,
			Code:    envelope.CodeValidation,
			Message: "Validation failed",
			Details: map[string]string{ve.Field: ve.Reason},
		}
	}

	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return Problem{http.StatusRequestEntityTooLarge, envelope.CodePayloadTooLarge, "Request body too large", nil}
	}

	switch {
	case errors.Is(err, service.ErrInvalidArgument):
		return Problem{http.StatusBadRequest, envelope.CodeValidation, "Validation failed", nil}
	case errors.Is(err, service.ErrInvalidCredentials):
		return Problem{http.StatusUnauthorized, envelope.CodeInvalidCredentials, "Invalid email or password", nil}
	case errors.Is(err, service.ErrTokenExpired):
		return Problem{http.StatusUnauthorized, envelope.CodeTokenExpired, "Token expired", nil}
	case errors.Is(err, service.ErrInvalidToken),
		errors.Is(err, service.ErrTokenRevoked),
		errors.Is(err, service.ErrUnauthorized):
		return Problem{http.StatusUnauthorized, envelope.CodeUnauthorized, "Unauthorized", nil}
	case errors.Is(err, service.ErrForbidden):
		return Problem{http.StatusForbidden, envelope.CodeForbidden, "Forbidden", nil}
	case errors.Is(err, service.ErrNotFound),
		errors.Is(err, storage.ErrNotFound),
		errors.Is(err, pgx.ErrNoRows):
		return Problem{http.StatusNotFound, envelope.CodeNotFound, "Record not found", nil}
	case errors.Is(err, service.ErrAlreadyExists),
		errors.Is(err, storage.ErrAlreadyExists):
		return Problem{http.StatusConflict, envelope.CodeAlreadyExists, "Record already exists", nil}
	case errors.Is(err, storage.ErrInvalidReference):
		return Problem{http.StatusBadRequest, envelope.CodeValidation, "Foreign key constraint failed", nil}
	case errors.Is(err, storage.ErrValueTooLong):
		return Problem{http.StatusBadRequest, envelope.CodeValidation, "Value too long for column", nil}
	case errors.Is(err, service.ErrMediaDisabled):
		return Problem{http.StatusServiceUnavailable, envelope.CodeServiceUnavailable, "Media storage is not configured", nil}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return fromPostgres(pgErr)
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return Problem{http.StatusGatewayTimeout, envelope.CodeTimeout, "Request timeout", nil}
	case errors.Is(err, context.Canceled):
		return Problem{StatusClientClosedRequest, envelope.CodeClientClosedRequest, "Client closed request", nil}
	}

	return internal()
}

// fromPostgres — таблица кодов Postgres.
func fromPostgres(e *pgconn.PgError) Problem {
	switch e.Code {
	case pgerrcode.StringDataRightTruncationDataException:
		return Problem{http.StatusBadRequest, envelope.CodeValidation, "Value too long for column", nil}
	case pgerrcode.UniqueViolation:
		return Problem{http.StatusConflict, envelope.CodeAlreadyExists, "Record already exists", nil}
	case pgerrcode.ForeignKeyViolation:
		return Problem{http.StatusBadRequest, envelope.CodeValidation, "Foreign key constraint failed", nil}
	case pgerrcode.NoDataFound:
		return Problem{http.StatusNotFound, envelope.CodeNotFound, "Record not found", nil}
	}

	return Problem{http.StatusInternalServerError, envelope.CodeInternal, "Database error", nil}
}

func internal() Problem {
	return Problem{http.StatusInternalServerError, envelope.CodeInternal, "Internal server error", nil}
}

// WriteError пишет конверт ошибки. Для 5xx полная ошибка уходит в лог.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	p := ToHTTP(err)

	lg := log.From(r.Context())
	switch {
	case p.Status >= http.StatusInternalServerError:
		msg := "<nil>"
		if err != nil {
			msg = err.Error()
		}
		lg.Error("request_failed",
			slog.Int("status", p.Status),
			slog.String("err", msg),
		)
	case p.Status == StatusClientClosedRequest:
		lg.Debug("request_canceled")
	}

	Write(w, r, p)
}

// Write пишет готовую Problem.
func Write(w http.ResponseWriter, r *http.Request, p Problem) {
	body := envelope.NewError(p.Status, p.Code, p.Message, r.URL.Path, time.Now())
	body.Details = p.Details

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(body)
}

// Status — короткая форма Write для ошибок, которые формирует сам транспорт.
func Status(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	Write(w, r, Problem{Status: status, Code: code, Message: message})
}
