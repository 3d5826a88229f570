package destination

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kvrouter/kvrouter/network"
)

func newAP(t *testing.T, desc string) *network.AccessPoint {
	t.Helper()
	ap, err := network.NewAccessPoint(desc, network.ProtocolASCII, network.SecurityNone, 0, false)
	require.NoError(t, err)

	return ap
}

func TestRegistryEmplaceDedup(t *testing.T) {
	r := NewRegistry(nil)

	ap := newAP(t, "10.0.0.1:11211")
	d1, err := r.Emplace(TransportAsyncClient, ap, time.Second, 0, 0)
	require.NoError(t, err)

	// An equivalent key must yield the same handle, even from a freshly
	// parsed AccessPoint.
	d2, err := r.Emplace(TransportAsyncClient, newAP(t, "10.0.0.1:11211"), time.Second, 0, 0)
	require.NoError(t, err)
	assert.Same(t, d1, d2)
	assert.Equal(t, 1, r.Len())

	// Any differing key component creates a new destination.
	d3, err := r.Emplace(TransportThrift, ap, time.Second, 0, 0)
	require.NoError(t, err)
	assert.NotSame(t, d1, d3)

	d4, err := r.Emplace(TransportAsyncClient, ap, 2*time.Second, 0, 0)
	require.NoError(t, err)
	assert.NotSame(t, d1, d4)

	d5, err := r.Emplace(TransportAsyncClient, ap, time.Second, 1, 0)
	require.NoError(t, err)
	assert.NotSame(t, d1, d5)

	assert.Equal(t, 4, r.Len())
}

func TestRegistryConcurrentEmplace(t *testing.T) {
	r := NewRegistry(nil)

	const workers = 16
	got := make([]*Destination, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			d, err := r.Emplace(TransportAsyncClient, newAP(t, "10.0.0.1:11211"), time.Second, 0, 0)
			if err != nil {
				panic(err)
			}
			got[i] = d
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, r.Len())
	for i := 1; i < workers; i++ {
		assert.Same(t, got[0], got[i])
	}
}

func TestUpdateShortestTimeout(t *testing.T) {
	r := NewRegistry(nil)
	d, err := r.Emplace(TransportAsyncClient, newAP(t, "10.0.0.1:11211"), time.Second, 0, 0)
	require.NoError(t, err)

	d.UpdateShortestTimeout(500*time.Millisecond, time.Second)
	d.UpdateShortestTimeout(800*time.Millisecond, 200*time.Millisecond)
	d.UpdateShortestTimeout(0, 0) // zero never tightens

	connect, request := d.ShortestTimeouts()
	assert.Equal(t, 500*time.Millisecond, connect)
	assert.Equal(t, 200*time.Millisecond, request)
}

func TestRequestCounter(t *testing.T) {
	r := NewRegistry(nil)
	d, err := r.Emplace(TransportAsyncClient, newAP(t, "10.0.0.1:11211"), time.Second, 0, 0)
	require.NoError(t, err)

	d.MarkRequest()
	d.MarkRequest()
	assert.Equal(t, int64(2), d.Requests())
}

type closeConn struct {
	closed bool
	err    error
}

func (c *closeConn) Close() error {
	c.closed = true
	return c.err
}

func TestTransportFactory(t *testing.T) {
	t.Run("constructed once per key", func(t *testing.T) {
		calls := 0
		conn := &closeConn{}
		r := NewRegistry(func(kind TransportKind, ap *network.AccessPoint, timeout time.Duration, qosClass, qosPath uint64) (Conn, error) {
			calls++
			return conn, nil
		})

		d1, err := r.Emplace(TransportAsyncClient, newAP(t, "10.0.0.1:11211"), time.Second, 0, 0)
		require.NoError(t, err)
		_, err = r.Emplace(TransportAsyncClient, newAP(t, "10.0.0.1:11211"), time.Second, 0, 0)
		require.NoError(t, err)

		assert.Equal(t, 1, calls)
		assert.Same(t, Conn(conn), d1.Conn())

		require.NoError(t, r.Close())
		assert.True(t, conn.closed)
		assert.Equal(t, 0, r.Len())
	})

	t.Run("factory failure surfaces", func(t *testing.T) {
		r := NewRegistry(func(TransportKind, *network.AccessPoint, time.Duration, uint64, uint64) (Conn, error) {
			return nil, errors.New("dial refused")
		})

		_, err := r.Emplace(TransportAsyncClient, newAP(t, "10.0.0.1:11211"), time.Second, 0, 0)
		assert.ErrorContains(t, err, "dial refused")
		assert.Equal(t, 0, r.Len())
	})
}
