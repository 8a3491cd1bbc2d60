package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

func TestSink(t *testing.T) {
	srv := miniredis.RunT(t)
	s, err := Open(context.Background(), "redis://"+srv.Addr()+"/0", "rawlog:blocks")
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.WriteBlock([]byte{0xb5, 0x62, 0}))
	require.NoError(t, s.WriteBlock([]byte{1, 2}))
	items, err := srv.List("rawlog:blocks")
	require.NoError(t, err)
	require.Equal(t, []string{"\xb5\x62\x00", "\x01\x02"}, items)
}

func TestSinkMaxLen(t *testing.T) {
	srv := miniredis.RunT(t)
	s, err := Open(context.Background(), "redis://"+srv.Addr(), "blocks")
	require.NoError(t, err)
	defer s.Close()
	s.MaxLen = 2
	for i := byte(0); i < 5; i++ {
		require.NoError(t, s.WriteBlock([]byte{i}))
	}
	items, err := srv.List("blocks")
	require.NoError(t, err)
	require.Equal(t, []string{"\x03", "\x04"}, items)
}

func TestOpenErrors(t *testing.T) {
	_, err := Open(context.Background(), "http://bad", "k")
	require.Error(t, err)

	srv := miniredis.RunT(t)
	addr := srv.Addr()
	srv.Close()
	_, err = Open(context.Background(), "redis://"+addr, "k")
	require.Error(t, err)
}
