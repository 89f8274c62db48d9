package helpers

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsurePortAvailable(t *testing.T) {
	t.Run("Should fail while another listener holds the port", func(t *testing.T) {
		listener, port := listenOnFreePort(t)
		defer listener.Close()
		ctx, cancel := context.WithTimeout(t.Context(), time.Second)
		defer cancel()
		err := EnsurePortAvailable(ctx, "127.0.0.1", port)
		require.Error(t, err)
		assert.Contains(t, err.Error(), strconv.Itoa(port))
	})

	t.Run("Should succeed once the port is released", func(t *testing.T) {
		listener, port := listenOnFreePort(t)
		require.NoError(t, listener.Close())
		require.Eventually(t, func() bool {
			ctx, cancel := context.WithTimeout(t.Context(), 50*time.Millisecond)
			defer cancel()
			return EnsurePortAvailable(ctx, "127.0.0.1", port) == nil
		}, time.Second, 25*time.Millisecond)
	})
}

func TestFormatAddress(t *testing.T) {
	t.Run("Should bracket IPv6 hosts", func(t *testing.T) {
		assert.Equal(t, "[::1]:5001", formatAddress("::1", 5001))
	})

	t.Run("Should join IPv4 hosts as is", func(t *testing.T) {
		assert.Equal(t, "0.0.0.0:5001", formatAddress("0.0.0.0", 5001))
	})
}

func listenOnFreePort(t *testing.T) (net.Listener, int) {
	t.Helper()
	var lc net.ListenConfig
	listener, err := lc.Listen(t.Context(), "tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr, ok := listener.Addr().(*net.TCPAddr)
	require.True(t, ok)
	return listener, addr.Port
}
