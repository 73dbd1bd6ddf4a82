// internal/presence/presence_test.go
package presence

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkwon/codepair/internal/models"
)

func TestAuthorsDefaultsEmpty(t *testing.T) {
	tr := NewTracker()
	got := tr.Authors(uuid.New())
	require.NotNil(t, got, "unknown room must yield an empty list, not nil")
	assert.Empty(t, got)
}

func TestSetAuthorsReplacesWholesale(t *testing.T) {
	tr := NewTracker()
	roomID := uuid.New()
	alice := uuid.New()
	bob := uuid.New()

	tr.SetAuthors(roomID, []models.LineAuthor{
		{LineIndex: 0, UserID: alice},
		{LineIndex: 1, UserID: alice},
	})
	tr.SetAuthors(roomID, []models.LineAuthor{
		{LineIndex: 0, UserID: bob},
	})

	got := tr.Authors(roomID)
	require.Len(t, got, 1)
	assert.Equal(t, bob, got[0].UserID)
}

func TestAuthorsReturnsCopy(t *testing.T) {
	tr := NewTracker()
	roomID := uuid.New()
	alice := uuid.New()

	in := []models.LineAuthor{{LineIndex: 0, UserID: alice}}
	tr.SetAuthors(roomID, in)

	// Mutating either the input slice or the returned slice must not leak
	// into the tracker's snapshot.
	in[0].LineIndex = 99
	out := tr.Authors(roomID)
	require.Len(t, out, 1)
	assert.Equal(t, 0, out[0].LineIndex)

	out[0].LineIndex = 42
	again := tr.Authors(roomID)
	assert.Equal(t, 0, again[0].LineIndex)
}

func TestClearIfOwnedBy(t *testing.T) {
	tr := NewTracker()
	roomID := uuid.New()
	alice := uuid.New()
	bob := uuid.New()

	tr.SetAuthors(roomID, []models.LineAuthor{
		{LineIndex: 0, UserID: alice},
		{LineIndex: 1, UserID: bob},
	})

	// Bob appears in the snapshot, so his departure invalidates it.
	assert.True(t, tr.ClearIfOwnedBy(roomID, bob))
	assert.Empty(t, tr.Authors(roomID))

	tr.SetAuthors(roomID, []models.LineAuthor{{LineIndex: 0, UserID: alice}})

	// A user with no authored lines leaves the snapshot alone.
	assert.False(t, tr.ClearIfOwnedBy(roomID, bob))
	assert.Len(t, tr.Authors(roomID), 1)
}

func TestDrop(t *testing.T) {
	tr := NewTracker()
	roomID := uuid.New()

	tr.SetAuthors(roomID, []models.LineAuthor{{LineIndex: 0, UserID: uuid.New()}})
	tr.Drop(roomID)
	assert.Empty(t, tr.Authors(roomID))
}
