package memcache

import (
	"context"
	"testing"

	"github.com/Shopify/async-memcache/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(response string) (*Client, *testutils.ConnectionMock) {
	mock := testutils.NewConnectionMock(response)
	return NewClient(NewConn(mock)), mock
}

func TestClientGetHit(t *testing.T) {
	client, mock := newTestClient("VALUE foo 0 3\r\nbar\r\nEND\r\n")

	v, err := client.Get(context.Background(), "foo")
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, []byte("bar"), v.Data)
	assert.Equal(t, "get foo\r\n", mock.GetWrittenRequest())
}

func TestClientGetMiss(t *testing.T) {
	client, _ := newTestClient("END\r\n")

	v, err := client.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestClientGetMulti(t *testing.T) {
	client, mock := newTestClient("VALUE a 0 1\r\nx\r\nVALUE b 0 1\r\ny\r\nEND\r\n")

	values, err := client.GetMulti(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, values, 2)
	assert.Equal(t, []byte("x"), values[0].Data)
	assert.Equal(t, []byte("y"), values[1].Data)
	assert.Equal(t, "get a b\r\n", mock.GetWrittenRequest())
}

func TestClientSet(t *testing.T) {
	client, mock := newTestClient("STORED\r\n")

	err := client.Set(context.Background(), "foo", Bytes("bar"), 0, 0)
	require.NoError(t, err)
	assert.Equal(t, "set foo 0 0 3\r\nbar\r\n", mock.GetWrittenRequest())
}

func TestClientAddNotStored(t *testing.T) {
	client, _ := newTestClient("NOT_STORED\r\n")

	err := client.Add(context.Background(), "foo", Bytes("bar"), 0, 0)
	assert.True(t, IsNotStored(err))
}

func TestClientDelete(t *testing.T) {
	client, mock := newTestClient("DELETED\r\n")

	err := client.Delete(context.Background(), "foo")
	require.NoError(t, err)
	assert.Equal(t, "delete foo\r\n", mock.GetWrittenRequest())
}

func TestClientDeleteNotFound(t *testing.T) {
	client, _ := newTestClient("NOT_FOUND\r\n")

	err := client.Delete(context.Background(), "foo")
	assert.True(t, IsNotFound(err))
}

func TestClientIncrement(t *testing.T) {
	client, mock := newTestClient("6\r\n")

	n, err := client.Increment(context.Background(), "counter", 5)
	require.NoError(t, err)
	assert.Equal(t, uint64(6), n)
	assert.Equal(t, "incr counter 5\r\n", mock.GetWrittenRequest())
}

func TestClientVersion(t *testing.T) {
	client, _ := newTestClient("VERSION 1.6.21\r\n")

	v, err := client.Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1.6.21", v)
}

func TestClientStats(t *testing.T) {
	client, _ := newTestClient("STAT pid 123\r\nSTAT uptime 456\r\nEND\r\n")

	stats, err := client.Stats(context.Background())
	require.NoError(t, err)
	require.Len(t, stats, 2)
	assert.Equal(t, "pid", stats[0].Key)
	assert.Equal(t, "123", stats[0].Value)
}

func TestClientErrorClosesOnProtocolMismatch(t *testing.T) {
	client, _ := newTestClient("GARBAGE\r\n")

	_, err := client.Get(context.Background(), "foo")
	require.Error(t, err)
	assert.True(t, ShouldCloseConnection(err))
	assert.True(t, client.Broken())
}

func TestValidateClassicKeyRejectsEmptyAndLongKeys(t *testing.T) {
	assert.Error(t, validateClassicKey(""))

	long := make([]byte, 251)
	for i := range long {
		long[i] = 'a'
	}
	assert.Error(t, validateClassicKey(string(long)))

	assert.Error(t, validateClassicKey("bad key"))
	assert.NoError(t, validateClassicKey("goodkey"))
}
