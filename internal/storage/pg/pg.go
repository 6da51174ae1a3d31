// Package pg implements the storage backend on Postgres via pgx. It is the
// designated primary; the deleted column is the soft-delete partition key.
package pg

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"respondr/internal/domain"
	"respondr/internal/storage"
)

type Store struct {
	DB *pgxpool.Pool
}

func New(db *pgxpool.Pool) *Store { return &Store{DB: db} }

const recordColumns = `id, group_id, name, text, received_at, vehicle,
       COALESCE(eta_raw,''), eta_at, arrival_status, status_confidence, deleted, updated_at`

func (s *Store) Upsert(ctx context.Context, rec domain.ResponderMessage) error {
	_, err := s.DB.Exec(ctx, `
		INSERT INTO responder_messages
			(id, group_id, name, text, received_at, vehicle, eta_raw, eta_at, arrival_status, status_confidence, deleted, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		ON CONFLICT (id) DO UPDATE SET
			group_id=$2, name=$3, received_at=$5, vehicle=$6, eta_raw=$7, eta_at=$8,
			arrival_status=$9, status_confidence=$10, deleted=$11, updated_at=$12
	`, rec.ID, rec.GroupID, rec.Name, rec.Text, rec.ReceivedAt, rec.Vehicle,
		nullIfEmpty(rec.ETARaw), rec.ETAAt, string(rec.ArrivalStatus), rec.StatusConfidence, rec.Deleted, rec.UpdatedAt)
	return err
}

func (s *Store) Get(ctx context.Context, id string) (domain.ResponderMessage, bool, error) {
	row := s.DB.QueryRow(ctx, `
		SELECT `+recordColumns+` FROM responder_messages WHERE id=$1
	`, id)
	rec, err := scanRecord(row)
	if err != nil {
		if err.Error() == "no rows in result set" {
			return domain.ResponderMessage{}, false, nil
		}
		return domain.ResponderMessage{}, false, err
	}
	return rec, true, nil
}

func (s *Store) List(ctx context.Context, groupID string, includeDeleted bool) ([]domain.ResponderMessage, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT `+recordColumns+`
		FROM responder_messages
		WHERE ($1='' OR group_id=$1) AND (NOT deleted OR $2)
		ORDER BY received_at DESC
	`, groupID, includeDeleted)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ResponderMessage
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Store) SoftDelete(ctx context.Context, id string) error {
	ct, err := s.DB.Exec(ctx, `
		UPDATE responder_messages SET deleted=true, updated_at=$2 WHERE id=$1 AND NOT deleted
	`, id, time.Now().UTC())
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) Undelete(ctx context.Context, id string) error {
	ct, err := s.DB.Exec(ctx, `
		UPDATE responder_messages SET deleted=false, updated_at=$2 WHERE id=$1 AND deleted
	`, id, time.Now().UTC())
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) Purge(ctx context.Context, id string) error {
	ct, err := s.DB.Exec(ctx, `DELETE FROM responder_messages WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error { return s.DB.Ping(ctx) }

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (domain.ResponderMessage, error) {
	var rec domain.ResponderMessage
	var status string
	err := row.Scan(&rec.ID, &rec.GroupID, &rec.Name, &rec.Text, &rec.ReceivedAt, &rec.Vehicle,
		&rec.ETARaw, &rec.ETAAt, &status, &rec.StatusConfidence, &rec.Deleted, &rec.UpdatedAt)
	if err != nil {
		return domain.ResponderMessage{}, err
	}
	rec.ArrivalStatus = domain.ArrivalStatus(status)
	return rec, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
