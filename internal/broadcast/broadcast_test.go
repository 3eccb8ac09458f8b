package broadcast

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/talkincode/shopsync/internal/domain"
)

func TestKinds(t *testing.T) {
	assert.Len(t, Kinds, 9)
	assert.Equal(t, TrackingDeleted, KindOf(domain.KindTracking, OpDeleted))
	assert.Equal(t, domain.KindOrder, OrderUpdated.Entity())
	assert.Equal(t, OpAdded, ProductAdded.Op())
	assert.False(t, Kind("cart-added").Valid())
}

func TestPublishStampsSequenceAndOrigin(t *testing.T) {
	b := NewBroadcaster(nil)
	var got []Event
	require.NoError(t, b.Subscribe(func(ev Event) { got = append(got, ev) }))

	_, err := b.Publish(ProductAdded, domain.Product{ID: "1", Name: "Glass"}, Origin{Client: "c1", Ref: "tmp-1"})
	require.NoError(t, err)
	_, err = b.Publish(ProductDeleted, DeletePayload(domain.KindProduct, "1"), Origin{})
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Less(t, got[0].Seq, got[1].Seq)
	assert.True(t, got[0].FromOrigin("c1"))
	assert.False(t, got[1].FromOrigin("c1"))
	assert.Equal(t, "tmp-1", got[0].Ref)

	var p domain.Product
	require.NoError(t, got[0].Decode(&p))
	assert.Equal(t, "Glass", p.Name)

	key, err := got[1].DeletedKey()
	require.NoError(t, err)
	assert.Equal(t, "1", key)
}

func TestEncodeRoundTrip(t *testing.T) {
	b := NewBroadcaster(nil)
	ev, err := b.Publish(OrderDeleted, DeletePayload(domain.KindOrder, "ORD1"), Origin{})
	require.NoError(t, err)

	data, err := Encode(ev)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"type":"order-deleted"`)
	assert.Contains(t, string(data), `"data":{"orderId":"ORD1"}`)

	back, err := DecodeEvent(data)
	require.NoError(t, err)
	key, err := back.DeletedKey()
	require.NoError(t, err)
	assert.Equal(t, "ORD1", key)

	_, err = DecodeEvent([]byte(`{"type":"cart-added","data":{}}`))
	assert.Error(t, err)
}

func TestHubDeliversInOrder(t *testing.T) {
	hub := NewHub(HubOptions{PingInterval: time.Second, QueueSize: 16})
	srv := httptest.NewServer(hub)
	defer srv.Close()
	defer hub.Close()

	b := NewBroadcaster(nil)
	require.NoError(t, b.Subscribe(hub.Broadcast))

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?client=c1"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	for i := 0; i < 5; i++ {
		_, err := b.Publish(TrackingUpdated, domain.Tracking{QRID: "QR1", EstimatedDays: i}, Origin{})
		require.NoError(t, err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var last uint64
	for i := 0; i < 5; i++ {
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		ev, err := DecodeEvent(data)
		require.NoError(t, err)
		assert.Greater(t, ev.Seq, last)
		last = ev.Seq

		var tr domain.Tracking
		require.NoError(t, ev.Decode(&tr))
		assert.Equal(t, i, tr.EstimatedDays)
	}

	conn.Close()
	require.Eventually(t, func() bool { return hub.Clients() == 0 }, 2*time.Second, 10*time.Millisecond)
}
