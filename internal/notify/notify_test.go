package notify

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/talkincode/shopsync/config"
	"github.com/talkincode/shopsync/internal/broadcast"
	"github.com/talkincode/shopsync/internal/domain"
)

type recorder struct {
	mu   sync.Mutex
	sent []string
}

func (r *recorder) Notify(_ context.Context, to, subject, body string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, to+"|"+subject+"|"+body)
	return nil
}

func TestComposeOrderMessage(t *testing.T) {
	msg := ComposeOrderMessage(domain.Order{
		OrderID:       "1700000000",
		Customer:      domain.Customer{Name: "Asha", Phone: "98450", Address: "MG Road"},
		Items:         []domain.OrderItem{{Name: "Glass", Price: 199, Quantity: 2}, {Name: "Cable", Price: 150.5, Quantity: 1}},
		Total:         548.5,
		PaymentMethod: "UPI",
	})
	assert.Equal(t, "New Order #1700000000\n"+
		"Customer: Asha\n"+
		"Phone: 98450\n"+
		"Address: MG Road\n"+
		"Items: Glass x2 = Rs398, Cable x1 = Rs150.5\n"+
		"Total: Rs548.5\n"+
		"Payment: UPI", msg)
}

func TestNewPicksNotifier(t *testing.T) {
	assert.IsType(t, LogNotifier{}, New(config.NotifyConfig{}))
	assert.IsType(t, &MailNotifier{}, New(config.NotifyConfig{SMTPHost: "smtp.example.com", SMTPPort: 587}))
	assert.NoError(t, LogNotifier{}.Notify(context.Background(), "x", "y", "z"))
}

func TestOrderWatcherOnlyNotifiesNewOrders(t *testing.T) {
	b := broadcast.NewBroadcaster(nil)
	rec := &recorder{}
	w := NewOrderWatcher(rec, "owner@example.com")
	require.NoError(t, w.Attach(b))

	_, err := b.Publish(broadcast.OrderAdded, domain.Order{OrderID: "O1", Customer: domain.Customer{Name: "Asha"}}, broadcast.Origin{})
	require.NoError(t, err)
	_, err = b.Publish(broadcast.OrderUpdated, domain.Order{OrderID: "O1"}, broadcast.Origin{})
	require.NoError(t, err)
	_, err = b.Publish(broadcast.ProductAdded, domain.Product{ID: "p1"}, broadcast.Origin{})
	require.NoError(t, err)
	b.WaitAsync()

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Len(t, rec.sent, 1)
	assert.Contains(t, rec.sent[0], "owner@example.com|New order O1|New Order #O1")
	require.NoError(t, w.Detach(b))
}
