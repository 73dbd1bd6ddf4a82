// internal/database/room.go
package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dkwon/codepair/internal/models"
)

// RoomRepo is the durable persistence collaborator behind the room state store.
// Methods hang off a struct (rather than package funcs) so the store can accept
// an interface and tests can substitute an in-memory implementation.
type RoomRepo struct{}

// InsertRoom writes the room row and its host participant row in one transaction.
func (RoomRepo) InsertRoom(ctx context.Context, room *models.Room) error {
	return pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		q := `
		INSERT INTO rooms (id, problem_id, created_by, max_participants, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		`
		if _, err := tx.Exec(ctx, q,
			room.ID, room.ProblemID, room.CreatedBy,
			room.MaxParticipants, room.Status, room.CreatedAt,
		); err != nil {
			return err
		}
		for _, p := range room.Participants {
			if err := insertParticipantTx(ctx, tx, room.ID, p); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetRoom fetches a room and its participants ordered by join time.
// Returns pgx.ErrNoRows if the room does not exist.
func (RoomRepo) GetRoom(ctx context.Context, roomID uuid.UUID) (*models.Room, error) {
	var room models.Room
	q := `
	SELECT id, problem_id, created_by, max_participants, status, created_at
	FROM rooms
	WHERE id = $1
	`
	err := DB.QueryRow(ctx, q, roomID).Scan(
		&room.ID, &room.ProblemID, &room.CreatedBy,
		&room.MaxParticipants, &room.Status, &room.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	pq := `
	SELECT p.user_id, COALESCE(u.name, ''), p.role, p.code, p.language, p.joined_at
	FROM room_participants p
	LEFT JOIN users u ON u.id = p.user_id
	WHERE p.room_id = $1
	ORDER BY p.joined_at
	`
	rows, err := DB.Query(ctx, pq, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var p models.Participant
		if err := rows.Scan(&p.UserID, &p.Username, &p.Role, &p.Code, &p.Language, &p.JoinedAt); err != nil {
			return nil, err
		}
		room.Participants = append(room.Participants, p)
	}
	return &room, rows.Err()
}

// InsertParticipant appends a participant row for an admitted user.
func (RoomRepo) InsertParticipant(ctx context.Context, roomID uuid.UUID, p models.Participant) error {
	return pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		return insertParticipantTx(ctx, tx, roomID, p)
	})
}

func insertParticipantTx(ctx context.Context, tx pgx.Tx, roomID uuid.UUID, p models.Participant) error {
	q := `
	INSERT INTO room_participants (room_id, user_id, role, code, language, joined_at)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (room_id, user_id) DO NOTHING
	`
	_, err := tx.Exec(ctx, q, roomID, p.UserID, p.Role, p.Code, p.Language, p.JoinedAt)
	return err
}

// UpdateParticipantCode persists a participant's buffer and language selection.
func (RoomRepo) UpdateParticipantCode(ctx context.Context, roomID, userID uuid.UUID, code, language string) error {
	q := `
	UPDATE room_participants
	SET code = $1, language = $2
	WHERE room_id = $3 AND user_id = $4
	`
	return pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, q, code, language, roomID, userID)
		return err
	})
}

// DeleteParticipant frees a seat on explicit leave.
func (RoomRepo) DeleteParticipant(ctx context.Context, roomID, userID uuid.UUID) error {
	q := `DELETE FROM room_participants WHERE room_id = $1 AND user_id = $2`
	return pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, q, roomID, userID)
		return err
	})
}

// UpdateRoomStatus records a lifecycle transition.
func (RoomRepo) UpdateRoomStatus(ctx context.Context, roomID uuid.UUID, status models.RoomStatus) error {
	q := `UPDATE rooms SET status = $1 WHERE id = $2`
	return pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, q, status, roomID)
		return err
	})
}
