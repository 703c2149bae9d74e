package storage

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/jwebster45206/modforge/pkg/mod"
	"github.com/jwebster45206/modforge/pkg/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStorage(t *testing.T) (*RedisStorage, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	rs, err := NewRedisStorage("redis://"+mr.Addr(), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rs.Close() })
	return rs, mr
}

func TestRedisStorage_SaveAndLoad(t *testing.T) {
	rs, mr := setupTestStorage(t)
	ctx := context.Background()

	s := state.NewSession(true)
	s.AppendUnit(*mod.NewGeneratedUnit("tank", "[core]\nname: tank\n", []mod.Asset{{Name: "tank.png", DataURL: "data:image/png;base64,iVBORw=="}}, nil, "a tank"))
	require.NoError(t, rs.SaveSession(ctx, s))

	assert.True(t, mr.Exists("session:"+s.ID.String()))
	assert.Equal(t, SessionTTL, mr.TTL("session:"+s.ID.String()))

	loaded, err := rs.LoadSession(ctx, s.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, s.ID, loaded.ID)
	assert.True(t, loaded.AutoFix)
	require.NotNil(t, loaded.Mod)
	assert.Equal(t, mod.DefaultModName, loaded.Mod.Name)
	require.Len(t, loaded.Mod.Units, 1)
	assert.Equal(t, "tank", loaded.Mod.Units[0].UnitName)
	assert.Equal(t, "[core]\nname: tank\n", loaded.Mod.Units[0].IniFile.Content)
}

func TestRedisStorage_LoadMissing(t *testing.T) {
	rs, _ := setupTestStorage(t)

	loaded, err := rs.LoadSession(context.Background(), uuid.New())
	assert.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestRedisStorage_Expiry(t *testing.T) {
	rs, mr := setupTestStorage(t)
	ctx := context.Background()

	s := state.NewSession(false)
	require.NoError(t, rs.SaveSession(ctx, s))
	mr.FastForward(SessionTTL + time.Second)

	loaded, err := rs.LoadSession(ctx, s.ID)
	assert.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestRedisStorage_Delete(t *testing.T) {
	rs, _ := setupTestStorage(t)
	ctx := context.Background()

	s := state.NewSession(false)
	require.NoError(t, rs.SaveSession(ctx, s))
	require.NoError(t, rs.DeleteSession(ctx, s.ID))

	loaded, err := rs.LoadSession(ctx, s.ID)
	assert.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestRedisStorage_CorruptDocument(t *testing.T) {
	rs, mr := setupTestStorage(t)
	id := uuid.New()
	require.NoError(t, mr.Set("session:"+id.String(), "{not json"))

	_, err := rs.LoadSession(context.Background(), id)
	assert.Error(t, err)
}

func TestRedisStorage_Ping(t *testing.T) {
	rs, mr := setupTestStorage(t)
	assert.NoError(t, rs.Ping(context.Background()))

	mr.Close()
	assert.Error(t, rs.Ping(context.Background()))
}

func TestNewRedisStorage_BareAddress(t *testing.T) {
	mr := miniredis.RunT(t)
	rs, err := NewRedisStorage(mr.Addr(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	defer func() { _ = rs.Close() }()
	assert.NoError(t, rs.WaitForConnection(context.Background()))
}
