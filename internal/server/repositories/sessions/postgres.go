package sessions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/passshare/internal/dbx"
	"github.com/dmitrijs2005/passshare/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

// PostgresRepository implements Repository over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, s *models.Session) error {
	query :=
		`INSERT INTO sessions (passkey, owner)
		 VALUES ($1, $2)
		 RETURNING created_at
		 `

	err := r.db.QueryRowContext(ctx, query, s.Passkey, s.Owner).Scan(&s.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrDuplicatePasskey
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, passkey string) (*models.Session, error) {
	query := `SELECT passkey, owner, created_at FROM sessions WHERE passkey = $1`

	s := &models.Session{}
	if err := r.db.QueryRowContext(ctx, query, passkey).Scan(&s.Passkey, &s.Owner, &s.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return s, nil
}

func (r *PostgresRepository) AddMember(ctx context.Context, passkey, username string) error {
	query :=
		`INSERT INTO session_members (passkey, username)
		 VALUES ($1, $2)
		 ON CONFLICT (passkey, username) DO NOTHING
		 `

	if _, err := r.db.ExecContext(ctx, query, passkey, username); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) AddFile(ctx context.Context, f *models.File) error {
	query :=
		`INSERT INTO files (passkey, uploader_id, file_name, storage_key, size)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		f.Passkey, f.UploaderID, f.FileName, f.StorageKey, f.Size).Scan(&f.ID, &f.CreatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListFiles(ctx context.Context, passkey string) ([]*models.File, error) {
	query :=
		`SELECT id, passkey, uploader_id, file_name, storage_key, size, created_at FROM files
		 WHERE passkey = $1
		 ORDER BY id
		 `

	rows, err := r.db.QueryContext(ctx, query, passkey)
	if err != nil {
		return nil, fmt.Errorf("failed to select files: %w", err)
	}
	defer rows.Close()

	result := []*models.File{}
	for rows.Next() {
		var f models.File
		if err := rows.Scan(&f.ID, &f.Passkey, &f.UploaderID, &f.FileName, &f.StorageKey, &f.Size, &f.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, &f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) GetFile(ctx context.Context, id int64) (*models.File, error) {
	query :=
		`SELECT id, passkey, uploader_id, file_name, storage_key, size, created_at FROM files
		 WHERE id = $1
		 `

	f := &models.File{}
	err := r.db.QueryRowContext(ctx, query, id).
		Scan(&f.ID, &f.Passkey, &f.UploaderID, &f.FileName, &f.StorageKey, &f.Size, &f.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return f, nil
}
