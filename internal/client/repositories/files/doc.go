// Package files persists the last known file list of each session so the CLI
// can show it again after a restart, before the first refresh completes.
//
// The list is always stored as a whole: ReplaceAll swaps the previous rows of
// a passkey for the new ones, preserving server order.
//
//	err := dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
//	    return files.NewSQLiteRepository(tx).ReplaceAll(ctx, passkey, list)
//	})
package files
