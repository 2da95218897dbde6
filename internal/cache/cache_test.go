package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetThenGetHits(t *testing.T) {
	s := New()
	require.NoError(t, s.Set(context.Background(), "k", []byte("v"), 60))
	v, ok := s.Get(context.Background(), "k")
	require.True(t, ok)
	assert.Equal(t, []byte("v"), v)
}

func TestGetMissesUnknownKey(t *testing.T) {
	s := New()
	_, ok := s.Get(context.Background(), "missing")
	assert.False(t, ok)
}

func TestEntryExpiresAfterTTL(t *testing.T) {
	s := New()
	frozen := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return frozen }

	require.NoError(t, s.Set(context.Background(), "k", []byte("v"), 1))
	s.now = func() time.Time { return frozen.Add(2 * time.Second) }

	_, ok := s.Get(context.Background(), "k")
	assert.False(t, ok)
}

func TestJanitorSweepsExpiredEntries(t *testing.T) {
	s := New()
	frozen := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return frozen }
	require.NoError(t, s.Set(context.Background(), "k", []byte("v"), 1))

	s.now = func() time.Time { return frozen.Add(2 * time.Second) }
	s.sweep()
	assert.Equal(t, 0, s.Len())
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	type payload struct {
		Total string `msgpack:"total"`
	}
	encoded, err := Encode(payload{Total: "123.45"})
	require.NoError(t, err)

	var decoded payload
	require.NoError(t, Decode(encoded, &decoded))
	assert.Equal(t, "123.45", decoded.Total)
}
