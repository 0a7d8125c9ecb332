package dns

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreferIPv4(t *testing.T) {
	ip, err := preferIPv4([]string{"::1", "127.0.0.1"})
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", ip)

	ip, err = preferIPv4([]string{"::1"})
	require.NoError(t, err)
	assert.Equal(t, "::1", ip)

	_, err = preferIPv4(nil)
	assert.Error(t, err)
}

func TestLookupLiteralIP(t *testing.T) {
	ip, err := Lookup(context.Background(), "10.1.2.3")
	require.NoError(t, err)
	assert.Equal(t, "10.1.2.3", ip)
}

func TestDialContextLocalListener(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err == nil {
			conn.Close()
		}
	}()

	conn, err := DialContext(context.Background(), "tcp", ln.Addr().String())
	require.NoError(t, err)
	conn.Close()
}
