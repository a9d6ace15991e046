package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSessionIsFresh(t *testing.T) {
	r := NewSession()
	assert.True(t, r.IsFresh())
	assert.NotNil(t, r.SessionState())
}

func TestMarkInstalledClearsFresh(t *testing.T) {
	r := NewSession()
	r.MarkInstalled()
	assert.False(t, r.IsFresh())
}

func TestHasSessionStateMatchesCurrentAndArchive(t *testing.T) {
	r := NewSession()
	r.SessionState().Version = 3
	r.SessionState().AliceBaseKey = []byte("base-key-one")
	r.MarkInstalled()

	assert.True(t, r.HasSessionState(3, []byte("base-key-one")))
	assert.False(t, r.HasSessionState(3, []byte("base-key-two")))
	assert.False(t, r.HasSessionState(2, []byte("base-key-one")))

	r.ArchiveCurrentState()
	r.SessionState().Version = 3
	r.SessionState().AliceBaseKey = []byte("base-key-two")
	r.MarkInstalled()

	assert.True(t, r.HasSessionState(3, []byte("base-key-one")), "archived state must still match")
	assert.True(t, r.HasSessionState(3, []byte("base-key-two")))
}

func TestArchiveIsBoundedAndEvictsOldest(t *testing.T) {
	r := NewSession()
	for i := 0; i < MaxArchivedStates+5; i++ {
		r.SessionState().Version = i
		r.SessionState().AliceBaseKey = []byte{byte(i)}
		r.ArchiveCurrentState()
	}

	archived := r.ArchivedStates()
	require.Len(t, archived, MaxArchivedStates)
	// front is most recent: the 5 oldest archived states should have been
	// evicted from the back, leaving versions [5, MaxArchivedStates+4].
	assert.Equal(t, MaxArchivedStates+4, archived[0].Version)
	assert.Equal(t, 5, archived[len(archived)-1].Version)
}

func TestArchiveCurrentStateResetsCurrent(t *testing.T) {
	r := NewSession()
	r.SessionState().Version = 3
	r.ArchiveCurrentState()

	assert.Equal(t, 0, r.SessionState().Version)
}
