package notify

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/talkincode/shopsync/config"
	"github.com/talkincode/shopsync/internal/broadcast"
	"github.com/talkincode/shopsync/internal/domain"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

// Notifier delivers a message to the shop owner
type Notifier interface {
	Notify(ctx context.Context, to, subject, body string) error
}

// LogNotifier only writes the message to the log
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, to, subject, body string) error {
	zap.L().Info("notify: owner message",
		zap.String("to", to),
		zap.String("subject", subject),
		zap.String("body", body),
	)
	return nil
}

// MailNotifier sends the message over smtp and logs it as well
type MailNotifier struct {
	dialer *gomail.Dialer
	from   string
}

func NewMailNotifier(cfg config.NotifyConfig) *MailNotifier {
	from := cfg.SMTPFrom
	if from == "" {
		from = cfg.SMTPUser
	}
	return &MailNotifier{
		dialer: gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass),
		from:   from,
	}
}

func (n *MailNotifier) Notify(ctx context.Context, to, subject, body string) error {
	_ = LogNotifier{}.Notify(ctx, to, subject, body)
	if to == "" {
		return errors.New("notify: no recipient")
	}
	msg := gomail.NewMessage()
	msg.SetHeader("From", n.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)
	if err := n.dialer.DialAndSend(msg); err != nil {
		return errors.Wrap(err, "notify: smtp send")
	}
	return nil
}

// New picks the smtp notifier when a mail server is configured
func New(cfg config.NotifyConfig) Notifier {
	if cfg.SMTPHost != "" {
		return NewMailNotifier(cfg)
	}
	return LogNotifier{}
}

func money(v float64) string {
	return "Rs" + strconv.FormatFloat(v, 'f', -1, 64)
}

// ComposeOrderMessage renders the short text the owner gets for a new order
func ComposeOrderMessage(o domain.Order) string {
	items := make([]string, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, fmt.Sprintf("%s x%d = %s", it.Name, it.Quantity, money(it.Subtotal())))
	}
	var b strings.Builder
	fmt.Fprintf(&b, "New Order #%s\n", o.OrderID)
	fmt.Fprintf(&b, "Customer: %s\n", o.Customer.Name)
	fmt.Fprintf(&b, "Phone: %s\n", o.Customer.Phone)
	fmt.Fprintf(&b, "Address: %s\n", o.Customer.Address)
	fmt.Fprintf(&b, "Items: %s\n", strings.Join(items, ", "))
	fmt.Fprintf(&b, "Total: %s\n", money(o.Total))
	fmt.Fprintf(&b, "Payment: %s", o.PaymentMethod)
	return b.String()
}

// OrderWatcher tells the owner about every order placed through the api
type OrderWatcher struct {
	notifier Notifier
	to       string
	handler  func(broadcast.Event)
}

func NewOrderWatcher(n Notifier, to string) *OrderWatcher {
	w := &OrderWatcher{notifier: n, to: to}
	w.handler = w.handle
	return w
}

// Attach subscribes the watcher off the publishing goroutine
func (w *OrderWatcher) Attach(b *broadcast.Broadcaster) error {
	return b.SubscribeAsync(w.handler)
}

func (w *OrderWatcher) Detach(b *broadcast.Broadcaster) error {
	return b.Unsubscribe(w.handler)
}

func (w *OrderWatcher) handle(ev broadcast.Event) {
	if ev.Type != broadcast.OrderAdded {
		return
	}
	var o domain.Order
	if err := ev.Decode(&o); err != nil {
		zap.L().Warn("notify: undecodable order event", zap.Error(err))
		return
	}
	if err := w.notifier.Notify(context.Background(), w.to, "New order "+o.OrderID, ComposeOrderMessage(o)); err != nil {
		zap.L().Error("notify: owner notification failed", zap.String("order", o.OrderID), zap.Error(err))
	}
}
