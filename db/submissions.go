package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/cancetinn/ldm-discord/model"
)

// rowScanner is an interface that can be satisfied by *sql.Row or *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

const selectSubmission = `SELECT id, submitted_at, status, team_name, members, fields FROM submissions`

// scanSubmission scans a row into a Submission struct.
func scanSubmission(scanner rowScanner) (model.Submission, error) {
	var (
		sub                 model.Submission
		submittedAt         int64
		status              string
		membersJSON, fields string
	)
	if err := scanner.Scan(&sub.ID, &submittedAt, &status, &sub.TeamName, &membersJSON, &fields); err != nil {
		return model.Submission{}, err
	}
	sub.SubmittedAt = time.Unix(submittedAt, 0).UTC()
	sub.Status = model.Status(status)
	if err := json.Unmarshal([]byte(membersJSON), &sub.Members); err != nil {
		return model.Submission{}, fmt.Errorf("decode members of %s: %w", sub.ID, err)
	}
	if err := json.Unmarshal([]byte(fields), &sub.Fields); err != nil {
		return model.Submission{}, fmt.Errorf("decode fields of %s: %w", sub.ID, err)
	}
	if len(sub.Fields) == 0 {
		sub.Fields = nil
	}
	return sub, nil
}

// AddSubmission stores sub under the next sequential id and returns it.
// A zero SubmittedAt is replaced with the current time.
func (s *Store) AddSubmission(ctx context.Context, sub model.Submission) (model.Submission, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Submission{}, err
	}
	defer tx.Rollback() // Rollback on error

	newID, err := getNextSubmissionID(ctx, tx)
	if err != nil {
		return model.Submission{}, fmt.Errorf("next submission id: %w", err)
	}
	sub.ID = strconv.Itoa(newID)
	if sub.SubmittedAt.IsZero() {
		sub.SubmittedAt = time.Now().UTC().Truncate(time.Second)
	}
	if !sub.Status.Valid() {
		sub.Status = model.StatusPending
	}

	members, err := json.Marshal(orEmpty(sub.Members))
	if err != nil {
		return model.Submission{}, err
	}
	fields, err := json.Marshal(sub.Fields)
	if err != nil {
		return model.Submission{}, err
	}
	if sub.Fields == nil {
		fields = []byte("{}")
	}

	_, err = tx.ExecContext(ctx, `INSERT INTO submissions(id, submitted_at, status, team_name, members, fields)
		VALUES(?, ?, ?, ?, ?, ?)`,
		sub.ID, sub.SubmittedAt.Unix(), string(sub.Status), sub.TeamName, string(members), string(fields))
	if err != nil {
		return model.Submission{}, fmt.Errorf("insert submission: %w", err)
	}
	return sub, tx.Commit()
}

// ListSubmissions returns every submission, newest first.
func (s *Store) ListSubmissions(ctx context.Context) ([]model.Submission, error) {
	rows, err := s.db.QueryContext(ctx, selectSubmission+` ORDER BY submitted_at DESC, CAST(id AS INTEGER) DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	subs := []model.Submission{}
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// GetSubmission retrieves a submission by its ID.
func (s *Store) GetSubmission(ctx context.Context, id string) (model.Submission, error) {
	sub, err := scanSubmission(s.db.QueryRowContext(ctx, selectSubmission+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Submission{}, ErrNotFound
	}
	return sub, err
}

// UpdateSubmissionStatus updates the status of a submission.
func (s *Store) UpdateSubmissionStatus(ctx context.Context, id string, status model.Status) error {
	if !status.Valid() {
		return fmt.Errorf("invalid status %q", status)
	}
	res, err := s.db.ExecContext(ctx, "UPDATE submissions SET status = ?, updated_at = ? WHERE id = ?",
		string(status), time.Now().Unix(), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
