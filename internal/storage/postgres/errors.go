package postgres

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/pribylovaa/go-blog/internal/storage"
)

// wrap сводит ошибки драйвера к ошибкам storage и добавляет op.
//   - pgx.ErrNoRows -> storage.ErrNotFound;
//   - 23505 unique_violation -> storage.ErrAlreadyExists;
//   - 23503 foreign_key_violation -> storage.ErrInvalidReference;
//   - 22001 string_data_right_truncation -> storage.ErrValueTooLong.
//
// Прочие ошибки возвращаются как есть.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.UniqueViolation:
			return fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
		case pgerrcode.ForeignKeyViolation:
			return fmt.Errorf("%s: %w", op, storage.ErrInvalidReference)
		case pgerrcode.StringDataRightTruncationDataException:
			return fmt.Errorf("%s: %w", op, storage.ErrValueTooLong)
		}
	}

	return fmt.Errorf("%s: %w", op, err)
}

// mustAffect превращает UPDATE/DELETE без затронутых строк в ErrNotFound.
func mustAffect(op string, tag pgconn.CommandTag, err error) error {
	if err != nil {
		return wrap(op, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePattern — подстрока для ILIKE с экранированием спецсимволов.
func likePattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}
