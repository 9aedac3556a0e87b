package kv

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore implements Store for testing.
type memStore struct {
	entries map[string]Entry
	getErr  error
}

func newMemStore() *memStore {
	return &memStore{entries: make(map[string]Entry)}
}

func (m *memStore) Get(_ context.Context, key string) (Entry, error) {
	if m.getErr != nil {
		return Entry{}, m.getErr
	}
	e, ok := m.entries[key]
	if !ok {
		return Entry{}, ErrKeyNotFound
	}
	return e, nil
}

func (m *memStore) Set(_ context.Context, key, value string) error {
	now := time.Now()
	m.entries[key] = Entry{Key: key, Value: value, CreatedAt: now, UpdatedAt: now}
	return nil
}

func (m *memStore) Delete(_ context.Context, key string) error {
	if _, ok := m.entries[key]; !ok {
		return ErrKeyNotFound
	}
	delete(m.entries, key)
	return nil
}

func (m *memStore) List(_ context.Context, _ string) ([]Entry, error) {
	var out []Entry
	for _, e := range m.entries {
		out = append(out, e)
	}
	return out, nil
}

type item struct {
	ID  int `json:"id"`
	Qty int `json:"quantity"`
}

func TestReadList_Absent(t *testing.T) {
	a := NewAdapter(newMemStore(), zerolog.Nop())

	got, found := ReadList[item](context.Background(), a, KeyCart)
	assert.False(t, found)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestReadList_RoundTripPreservesOrder(t *testing.T) {
	a := NewAdapter(newMemStore(), zerolog.Nop())
	ctx := context.Background()

	in := []item{{ID: 3, Qty: 1}, {ID: 1, Qty: 4}, {ID: 2, Qty: 2}}
	require.NoError(t, WriteList(ctx, a, KeyCart, in))

	got, found := ReadList[item](ctx, a, KeyCart)
	assert.True(t, found)
	assert.Equal(t, in, got)
}

func TestReadList_MalformedDegradesToEmpty(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "invalid json", raw: "[{"},
		{name: "wrong shape", raw: `{"id":1}`},
		{name: "null", raw: "null"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			a := NewAdapter(store, zerolog.Nop())
			ctx := context.Background()
			require.NoError(t, store.Set(ctx, KeyCart, tt.raw))

			got, found := ReadList[item](ctx, a, KeyCart)
			assert.True(t, found)
			assert.Empty(t, got)
		})
	}
}

func TestReadList_CorruptHookFires(t *testing.T) {
	store := newMemStore()
	a := NewAdapter(store, zerolog.Nop())
	ctx := context.Background()

	var keys []string
	a.OnCorrupt(func(key string, _ error) { keys = append(keys, key) })

	require.NoError(t, store.Set(ctx, KeySelection, "not json"))
	_, _ = ReadList[int](ctx, a, KeySelection)

	store.getErr = ErrCorrupt
	_, found := ReadList[int](ctx, a, KeyCart)
	assert.True(t, found)

	assert.Equal(t, []string{KeySelection, KeyCart}, keys)
}

func TestReadList_StoreFailureTreatedAsAbsent(t *testing.T) {
	store := newMemStore()
	store.getErr = errors.New("disk on fire")
	a := NewAdapter(store, zerolog.Nop())

	got, found := ReadList[item](context.Background(), a, KeyCart)
	assert.False(t, found)
	assert.Empty(t, got)
}

func TestLoadList(t *testing.T) {
	readErr := errors.New("disk on fire")

	tests := []struct {
		name      string
		raw       string
		getErr    error
		wantFound bool
		wantLen   int
		wantErr   error
	}{
		{name: "absent"},
		{name: "present", raw: `[{"id":1,"quantity":2}]`, wantFound: true, wantLen: 1},
		{name: "malformed", raw: "[{", wantFound: true},
		{name: "corrupt store", getErr: ErrCorrupt, wantFound: true},
		{name: "read failure", getErr: readErr, wantErr: readErr},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			a := NewAdapter(store, zerolog.Nop())
			ctx := context.Background()
			if tt.raw != "" {
				require.NoError(t, store.Set(ctx, KeyCart, tt.raw))
			}
			store.getErr = tt.getErr

			got, found, err := LoadList[item](ctx, a, KeyCart)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.False(t, found)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantFound, found)
			assert.Len(t, got, tt.wantLen)
		})
	}
}

func TestAdapter_ValueAndString(t *testing.T) {
	a := NewAdapter(newMemStore(), zerolog.Nop())
	ctx := context.Background()

	type user struct {
		ID       int64  `json:"id"`
		Username string `json:"username"`
	}

	require.NoError(t, a.WriteValue(ctx, KeyCurrentUser, user{ID: 7, Username: "dom"}))
	var u user
	require.True(t, a.ReadValue(ctx, KeyCurrentUser, &u))
	assert.Equal(t, user{ID: 7, Username: "dom"}, u)

	require.NoError(t, a.WriteString(ctx, KeyAuthToken, "abc"))
	tok, ok := a.ReadString(ctx, KeyAuthToken)
	assert.True(t, ok)
	assert.Equal(t, "abc", tok)
}

func TestAdapter_RemoveIsIdempotent(t *testing.T) {
	a := NewAdapter(newMemStore(), zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, a.WriteString(ctx, KeyRedirectLogin, "checkout"))
	require.NoError(t, a.Remove(ctx, KeyRedirectLogin))
	require.NoError(t, a.Remove(ctx, KeyRedirectLogin))

	_, ok := a.ReadString(ctx, KeyRedirectLogin)
	assert.False(t, ok)
}
