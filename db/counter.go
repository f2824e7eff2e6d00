package db

import (
	"context"
	"database/sql"
)

// getNextSubmissionID reads the current submission id and increments it inside tx.
func getNextSubmissionID(ctx context.Context, tx *sql.Tx) (int, error) {
	var currentID int
	err := tx.QueryRowContext(ctx, "SELECT current_value FROM id_counter WHERE counter_name = 'submission_id'").Scan(&currentID)
	if err != nil {
		return 0, err
	}

	newID := currentID + 1
	_, err = tx.ExecContext(ctx, "UPDATE id_counter SET current_value = ? WHERE counter_name = 'submission_id'", newID)
	if err != nil {
		return 0, err
	}

	return newID, nil
}
