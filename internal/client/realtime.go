package client

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/talkincode/shopsync/internal/broadcast"
	"go.uber.org/zap"
)

// Backoff bounds the reconnect attempts of the realtime channel
type Backoff struct {
	Initial     time.Duration
	Max         time.Duration
	MaxAttempts int
}

func DefaultBackoff() Backoff {
	return Backoff{Initial: time.Second, Max: 5 * time.Second, MaxAttempts: 10}
}

// Delay is the wait before reconnect attempt n, starting at 1
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := b.Initial
	for i := 1; i < attempt && d < b.Max; i++ {
		d *= 2
	}
	if d > b.Max {
		d = b.Max
	}
	return d
}

// Realtime keeps a websocket to the server open and hands every event to OnEvent.
// OnConnect runs on every session, the first included, before its events are
// read, since the server does not replay what was missed.
type Realtime struct {
	url         string
	dialer      *websocket.Dialer
	backoff     Backoff
	readTimeout time.Duration

	OnEvent     func(broadcast.Event)
	OnConnect func(ctx context.Context, session int)
}

// NewRealtime derives the websocket url from the server url
func NewRealtime(serverURL, clientID string, b Backoff) (*Realtime, error) {
	u, err := url.Parse(serverURL)
	if err != nil || u.Host == "" {
		return nil, errors.Errorf("client: invalid server url %q", serverURL)
	}
	switch u.Scheme {
	case "https", "wss":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	if clientID != "" {
		u.RawQuery = url.Values{"client": {clientID}}.Encode()
	}
	if b.MaxAttempts <= 0 {
		b = DefaultBackoff()
	}
	return &Realtime{
		url:         u.String(),
		dialer:      &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		backoff:     b,
		readTimeout: 60 * time.Second,
	}, nil
}

func (r *Realtime) URL() string {
	return r.url
}

// Run connects and reads until ctx ends or MaxAttempts consecutive dials failed
func (r *Realtime) Run(ctx context.Context) error {
	var (
		sessions int
		failures int
	)
	for {
		conn, _, err := r.dialer.DialContext(ctx, r.url, nil)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			failures++
			if failures >= r.backoff.MaxAttempts {
				return errors.Wrapf(err, "realtime: gave up after %d attempts", failures)
			}
			delay := r.backoff.Delay(failures)
			zap.L().Warn("realtime: connect failed",
				zap.Int("attempt", failures),
				zap.Duration("retry_in", delay),
				zap.Error(err),
			)
			if !sleep(ctx, delay) {
				return ctx.Err()
			}
			continue
		}

		failures = 0
		sessions++
		if sessions > 1 {
			zap.L().Info("realtime: reconnected, reloading", zap.Int("session", sessions))
		} else {
			zap.L().Info("realtime: connected", zap.String("url", r.url))
		}
		if r.OnConnect != nil {
			r.OnConnect(ctx, sessions)
		}

		err = r.read(ctx, conn)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		zap.L().Warn("realtime: disconnected", zap.Error(err))
		if !sleep(ctx, r.backoff.Delay(1)) {
			return ctx.Err()
		}
	}
}

func (r *Realtime) read(ctx context.Context, conn *websocket.Conn) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			_ = conn.Close()
		case <-done:
			_ = conn.Close()
		}
	}()

	_ = conn.SetReadDeadline(time.Now().Add(r.readTimeout))
	conn.SetPingHandler(func(data string) error {
		_ = conn.SetReadDeadline(time.Now().Add(r.readTimeout))
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(5*time.Second))
	})
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		_ = conn.SetReadDeadline(time.Now().Add(r.readTimeout))
		ev, err := broadcast.DecodeEvent(data)
		if err != nil {
			zap.L().Warn("realtime: skip undecodable event", zap.Error(err))
			continue
		}
		if r.OnEvent != nil {
			r.OnEvent(ev)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
