package files

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/passshare/internal/client/models"
	"github.com/dmitrijs2005/passshare/internal/dbx"
)

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// ReplaceAll is not atomic by itself; run it on a *sql.Tx (see dbx.WithTx).
func (r *SQLiteRepository) ReplaceAll(ctx context.Context, passkey string, list []models.SharedFile) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM shared_files WHERE passkey = ?`, passkey); err != nil {
		return fmt.Errorf("failed to clear files[%s]: %w", passkey, err)
	}

	for i, f := range list {
		_, err := r.db.ExecContext(ctx,
			`INSERT INTO shared_files (passkey, position, file_id, file_name) VALUES (?, ?, ?, ?)`,
			passkey, i, f.ID.String(), f.FileName)
		if err != nil {
			return fmt.Errorf("failed to insert file %s: %w", f.ID, err)
		}
	}
	return nil
}

func (r *SQLiteRepository) List(ctx context.Context, passkey string) ([]models.SharedFile, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT file_id, file_name FROM shared_files WHERE passkey = ? ORDER BY position`, passkey)
	if err != nil {
		return nil, fmt.Errorf("failed to list files[%s]: %w", passkey, err)
	}
	defer rows.Close()

	result := make([]models.SharedFile, 0)
	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("failed to scan file row: %w", err)
		}
		result = append(result, models.SharedFile{ID: models.FileID(id), FileName: name})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate file rows: %w", err)
	}
	return result, nil
}

func (r *SQLiteRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM shared_files`); err != nil {
		return fmt.Errorf("failed to clear files: %w", err)
	}
	return nil
}
