// internal/database/event.go
package database

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"

	"github.com/dkwon/codepair/internal/cache"
)

// InsertRoomEventTx persists a single queued room event inside the caller's
// transaction. Used by the historian when draining the Redis queue.
func InsertRoomEventTx(ctx context.Context, tx pgx.Tx, rec cache.RoomEventRecord) error {
	payload, err := json.Marshal(rec.Payload)
	if err != nil {
		return err
	}
	q := `
	INSERT INTO room_events (room_id, actor_user_id, event_type, payload, created_at)
	VALUES ($1, $2, $3, $4, to_timestamp($5 / 1000.0))
	`
	_, err = tx.Exec(ctx, q, rec.RoomID, rec.ActorUserID, rec.EventType, payload, rec.Timestamp)
	return err
}

// MarkInactiveRoomsCompleted flips rooms with no recorded events in the given
// window from waiting/in-progress to completed. This is the seat-reaping rule
// that keeps abandoned rooms from holding capacity forever.
func MarkInactiveRoomsCompleted(ctx context.Context, inactiveSec int) (int64, error) {
	q := `
	UPDATE rooms r
	SET status = 'completed'
	WHERE r.status IN ('waiting', 'in-progress')
	  AND NOT EXISTS (
		SELECT 1 FROM room_events e
		WHERE e.room_id = r.id
		  AND e.created_at > NOW() - make_interval(secs => $1)
	  )
	  AND r.created_at < NOW() - make_interval(secs => $1)
	`
	var affected int64
	err := pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, q, inactiveSec)
		if err != nil {
			return err
		}
		affected = tag.RowsAffected()
		return nil
	})
	return affected, err
}
