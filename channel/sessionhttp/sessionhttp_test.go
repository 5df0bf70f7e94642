package sessionhttp

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/offchain/paych/channel"
)

type snapshotterFunc func() channel.Snapshot

func (f snapshotterFunc) Snapshot() channel.Snapshot {
	return f()
}

func TestHandlerServesSnapshot(t *testing.T) {
	h := New(snapshotterFunc(func() channel.Snapshot {
		return channel.Snapshot{
			ID:                "abc123",
			Role:              "beneficiary",
			Status:            channel.StatusOpen,
			ChannelID:         42,
			Accepted:          2,
			LastAcceptedValue: 15,
		}
	}))

	r := httptest.NewRequest("GET", "/", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	require.Equal(t, 200, w.Code)

	got := channel.Snapshot{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "abc123", got.ID)
	assert.Equal(t, channel.StatusOpen, got.Status)
	assert.Equal(t, uint64(42), got.ChannelID)
	assert.Equal(t, int64(15), got.LastAcceptedValue)
}
