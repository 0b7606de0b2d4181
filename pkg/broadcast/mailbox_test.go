package broadcast_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/pulse/pkg/broadcast"
)

func TestMailbox(t *testing.T) {
	t.Parallel()

	m := broadcast.NewMailbox("poll-1", 2)
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, m.Send(ctx, broadcast.Frame{ID: id}))
	}

	got := m.Drain()
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].ID)
	assert.Equal(t, "c", got[1].ID)
	assert.Empty(t, m.Drain())

	m.Close()
	m.Close()
	<-m.Done()
	var closed broadcast.ErrHandleClosed
	assert.ErrorAs(t, m.Send(ctx, broadcast.Frame{ID: "d"}), &closed)
}
