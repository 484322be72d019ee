// Package relaybus implements the node's connection to the relay: a
// length-framed TCP bus where the first frame a connection sends names
// the channel it wants to join, and every frame after that is either
// published by this client or delivered to it by the relay.
package relaybus

import (
	"context"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/Roasted12/toycoin-go/internal/wire"
)

// dialTimeout bounds a single connection attempt.
const dialTimeout = 10 * time.Second

// Client is a subscribed connection to a relay channel. Frames arriving
// from the relay are delivered on Frames(); Publish sends a frame back.
type Client struct {
	conn    net.Conn
	channel string
	logger  *zap.Logger
	frames  chan []byte
	closed  chan struct{}
}

// Dial connects to addr, sends the subscribe handshake (a single frame
// naming channel), and starts the background read loop. The returned
// Client's Frames channel receives every subsequent frame the relay
// forwards on that channel.
func Dial(ctx context.Context, addr, channel string, logger *zap.Logger) (*Client, error) {
	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("relaybus: dial %s: %w", addr, err)
	}

	if err := wire.WriteFrame(conn, []byte(channel)); err != nil {
		conn.Close()
		return nil, fmt.Errorf("relaybus: subscribe handshake: %w", err)
	}

	c := &Client{
		conn:    conn,
		channel: channel,
		logger:  logger,
		frames:  make(chan []byte, 256),
		closed:  make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// Frames returns the channel of frames delivered by the relay. It is
// closed when the connection ends.
func (c *Client) Frames() <-chan []byte {
	return c.frames
}

// Publish sends the two-frame publish envelope every relay message
// after the subscribe handshake carries: first the channel name, then
// TagBody(tag, body) under its own 4-byte length prefix.
func (c *Client) Publish(tag [4]byte, body []byte) error {
	if err := wire.WriteFrame(c.conn, []byte(c.channel)); err != nil {
		return err
	}
	return wire.WriteFrame(c.conn, wire.TagBody(tag, body))
}

// Close closes the underlying connection, ending the read loop.
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) readLoop() {
	defer close(c.frames)
	for {
		frame, err := wire.ReadFrame(c.conn)
		if err != nil {
			select {
			case <-c.closed:
			default:
				c.logger.Info("relaybus connection ended", zap.String("channel", c.channel), zap.Error(err))
			}
			return
		}
		select {
		case c.frames <- frame:
		default:
			c.logger.Warn("relaybus frame channel full, dropping frame", zap.String("channel", c.channel))
		}
	}
}

// Reconnector redials a channel at a rate bounded by a token-bucket
// limiter, so bursts of transient failures don't hammer the relay. The
// interval between attempts is fixed; it does not grow with repeated
// failures.
type Reconnector struct {
	addr    string
	channel string
	logger  *zap.Logger
	limiter *rate.Limiter
}

// NewReconnector builds a Reconnector that allows at most one dial
// attempt per minInterval, with a small burst allowance for the first
// few retries after a long healthy run.
func NewReconnector(addr, channel string, minInterval time.Duration, logger *zap.Logger) *Reconnector {
	return &Reconnector{
		addr:    addr,
		channel: channel,
		logger:  logger,
		limiter: rate.NewLimiter(rate.Every(minInterval), 3),
	}
}

// Dial blocks until the limiter admits an attempt, then dials. It
// returns early with ctx.Err() if ctx is canceled while waiting.
func (r *Reconnector) Dial(ctx context.Context) (*Client, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	r.logger.Info("relaybus dialing", zap.String("addr", r.addr), zap.String("channel", r.channel))
	return Dial(ctx, r.addr, r.channel, r.logger)
}
