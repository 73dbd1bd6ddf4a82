// internal/presence/presence.go
package presence

import (
	"sync"

	"github.com/google/uuid"

	"github.com/dkwon/codepair/internal/models"
)

// Tracker keeps the ephemeral per-room line-authorship snapshots used for
// "who wrote this line" overlays. It is deliberately decoupled from the
// durable room state: losing it is harmless, and nothing here survives a
// restart. Each update replaces the whole snapshot (last writer wins at room
// granularity).
type Tracker struct {
	mu      sync.Mutex
	authors map[uuid.UUID][]models.LineAuthor
}

func NewTracker() *Tracker {
	return &Tracker{
		authors: make(map[uuid.UUID][]models.LineAuthor),
	}
}

// SetAuthors replaces the room's stored snapshot with a copy of list.
func (t *Tracker) SetAuthors(roomID uuid.UUID, list []models.LineAuthor) {
	cp := make([]models.LineAuthor, len(list))
	copy(cp, list)

	t.mu.Lock()
	defer t.mu.Unlock()
	t.authors[roomID] = cp
}

// Authors returns the room's current snapshot. A room with no recorded
// updates yields an empty (non-nil) slice, never an error.
func (t *Tracker) Authors(roomID uuid.UUID) []models.LineAuthor {
	t.mu.Lock()
	defer t.mu.Unlock()

	stored := t.authors[roomID]
	cp := make([]models.LineAuthor, len(stored))
	copy(cp, stored)
	return cp
}

// ClearIfOwnedBy drops the room's snapshot if any recorded line belongs to
// userID. A coarse heuristic carried over from the original behavior: in a
// multi-author room one departure wipes everyone's attribution, and peers
// re-send a fresh snapshot on their next edit. Returns true if cleared.
func (t *Tracker) ClearIfOwnedBy(roomID, userID uuid.UUID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, a := range t.authors[roomID] {
		if a.UserID == userID {
			delete(t.authors, roomID)
			return true
		}
	}
	return false
}

// Drop discards the room's snapshot unconditionally. Called when the last
// connection attributable to the room disconnects.
func (t *Tracker) Drop(roomID uuid.UUID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.authors, roomID)
}
