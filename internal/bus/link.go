package bus

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"syncline/internal/model"
)

const (
	outboundBuffer = 256
	writeTimeout   = 5 * time.Second
	pongTimeout    = 60 * time.Second
	pingInterval   = 30 * time.Second
)

type LinkConfig struct {
	URL            string
	AuthToken      string
	ReconnectDelay time.Duration
}

// Link keeps a websocket connection to the gateway's event hub. Outbound
// events published on the local bus are forwarded up; inbound events are
// dispatched to local subscribers. Delivery across a reconnect is
// best-effort: events fired while disconnected are dropped, the subscriber
// reconciles by refetching authoritative state.
type Link struct {
	l   *zap.Logger
	cfg LinkConfig
	bus *Bus

	outbound chan model.Event
}

func NewLink(l *zap.Logger, cfg LinkConfig, b *Bus) *Link {
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 5 * time.Second
	}

	link := &Link{
		l:        l,
		cfg:      cfg,
		bus:      b,
		outbound: make(chan model.Event, outboundBuffer),
	}

	b.SetForwarder(link.forward)

	return link
}

// Run dials the gateway and pumps events until the context is cancelled,
// reconnecting after a bounded delay on failure.
func (l *Link) Run(ctx context.Context) {
	for {
		if err := ctx.Err(); err != nil {
			return
		}

		if err := l.session(ctx); err != nil {
			l.l.Warn("Bus link session ended", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(l.cfg.ReconnectDelay):
		}
	}
}

func (l *Link) forward(evt model.Event) {
	select {
	case l.outbound <- evt:
	default:
		// Best-effort across disconnects; the bus never blocks a publisher.
		l.l.Debug("Outbound bus event dropped", zap.String("channel", evt.Channel))
	}
}

func (l *Link) session(ctx context.Context) error {
	header := map[string][]string{}
	if l.cfg.AuthToken != "" {
		header["Authorization"] = []string{"Bearer " + l.cfg.AuthToken}
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, l.cfg.URL, header)
	if err != nil {
		return err
	}

	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	defer conn.Close()

	l.l.Info("Bus link connected", zap.String("url", l.cfg.URL))

	_ = conn.SetReadDeadline(time.Now().Add(pongTimeout))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(pongTimeout))

		return nil
	})

	readErr := make(chan error, 1)

	go func() {
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				readErr <- err

				return
			}

			var evt model.Event
			if err := json.Unmarshal(data, &evt); err != nil {
				l.l.Warn("Failed to decode inbound bus event", zap.Error(err))

				continue
			}

			l.bus.Dispatch(evt)
		}
	}()

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeTimeout))

			return ctx.Err()
		case err := <-readErr:
			return err
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(writeTimeout)); err != nil {
				return err
			}
		case evt := <-l.outbound:
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))

			if err := conn.WriteJSON(evt); err != nil {
				return err
			}
		}
	}
}
