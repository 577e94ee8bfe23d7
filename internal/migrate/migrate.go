// migrate применяет встроенные SQL-миграции при старте.
package migrate

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/pribylovaa/go-blog/migrations"
)

// Up накатывает все ожидающие миграции и возвращает итоговую версию схемы.
func Up(ctx context.Context, dsn string) (int64, error) {
	const op = "migrate.Up"

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	defer db.Close()

	goose.SetBaseFS(migrations.FS)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect("postgres"); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	if err := goose.UpContext(ctx, db, "."); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	version, err := goose.GetDBVersionContext(ctx, db)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return version, nil
}
