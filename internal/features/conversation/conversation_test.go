package conversation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"confession-bot-backend/internal/platform/redis/redistest"
)

func TestEncodeDecodeVariants(t *testing.T) {
	flows := []Flow{
		AwaitingUsername{OriginChatID: 42},
		AwaitingBio{},
		AwaitingConfession{},
		AwaitingComment{ConfessionID: "confess_1_2"},
		AwaitingRejectionReason{ConfessionID: "confess_3_4"},
		AwaitingBlockTarget{},
		AwaitingMessageTarget{},
		AwaitingMessageBody{TargetUserID: 99},
		AwaitingBroadcastBody{},
	}
	for _, f := range flows {
		data, err := Encode(f)
		require.NoError(t, err)
		got, err := Decode(data)
		require.NoError(t, err, "kind %s", f.Kind())
		assert.Equal(t, f, got)
	}
}

func TestDecodeUnknownKind(t *testing.T) {
	_, err := Decode([]byte(`{"kind":"awaiting_miracle","payload":{}}`))
	assert.ErrorIs(t, err, ErrUnknownFlow)
}

func TestAdminOnly(t *testing.T) {
	assert.False(t, AwaitingComment{}.AdminOnly())
	assert.True(t, AwaitingRejectionReason{}.AdminOnly())
	assert.True(t, AwaitingBroadcastBody{}.AdminOnly())
}

func TestStoreReplaceAndClear(t *testing.T) {
	rdb, mr := redistest.New(t)
	s := NewStore(rdb, time.Hour)
	ctx := context.Background()

	f, err := s.Get(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, f)

	require.NoError(t, s.Set(ctx, 1, AwaitingConfession{}))
	require.NoError(t, s.Set(ctx, 1, AwaitingComment{ConfessionID: "c1"}))

	f, err = s.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, AwaitingComment{ConfessionID: "c1"}, f, "new flow replaces the previous one")

	other, err := s.Get(ctx, 2)
	require.NoError(t, err)
	assert.Nil(t, other)

	mr.FastForward(2 * time.Hour)
	f, err = s.Get(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, f, "abandoned flow expires")

	require.NoError(t, s.Set(ctx, 1, AwaitingBio{}))
	require.NoError(t, s.Clear(ctx, 1))
	f, err = s.Get(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, f)
}

func TestStoreDropsCorruptState(t *testing.T) {
	rdb, mr := redistest.New(t)
	s := NewStore(rdb, 0)
	ctx := context.Background()

	require.NoError(t, mr.Set("state:5", "not json"))
	f, err := s.Get(ctx, 5)
	require.NoError(t, err)
	assert.Nil(t, f)
	assert.False(t, mr.Exists("state:5"))
}
