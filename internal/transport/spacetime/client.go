// Package spacetime speaks the SpacetimeDB JSON websocket protocol: one
// persistent subscription connection feeding envelopes to a handler, plus
// one-off SQL queries multiplexed over the same socket before the
// subscription starts.
package spacetime

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"craftwatch/internal/protocol"
)

const (
	subprotocol = "v1.json.spacetimedb"

	writeTimeout   = 5 * time.Second
	readTimeout    = 60 * time.Second
	queryTimeout   = 10 * time.Second
	dialTimeout    = 15 * time.Second
	reconnectDelay = 3 * time.Second
)

// Handler receives every decoded envelope from the subscription stream.
// Called from the client's reader goroutine.
type Handler func(*protocol.Envelope)

type Config struct {
	// Host is the server name, e.g. "bitcraft-early-access.spacetimedb.com".
	Host string
	// Module is the database name in the connection path.
	Module string
	// Token is sent as a Bearer authorization header.
	Token  string
	Logger *log.Logger
}

type Client struct {
	host   string
	module string
	token  string
	logger *log.Logger

	mu     sync.Mutex
	conn   *websocket.Conn
	connID string

	dialer websocket.Dialer
}

func NewClient(cfg Config) *Client {
	return &Client{
		host:   cfg.Host,
		module: cfg.Module,
		token:  cfg.Token,
		logger: cfg.Logger,
		dialer: websocket.Dialer{
			Subprotocols:     []string{subprotocol},
			HandshakeTimeout: dialTimeout,
			ReadBufferSize:   64 * 1024,
			WriteBufferSize:  64 * 1024,
		},
	}
}

func (c *Client) url() string {
	return fmt.Sprintf("wss://%s/v1/database/%s/subscribe", c.host, c.module)
}

// Connect dials the subscribe endpoint. Safe to call again after a
// connection loss; an existing connection is reused.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return nil
	}

	header := http.Header{}
	if c.token != "" {
		auth := c.token
		if !strings.HasPrefix(auth, "Bearer ") {
			auth = "Bearer " + auth
		}
		header.Set("Authorization", auth)
	}

	conn, resp, err := c.dialer.DialContext(ctx, c.url(), header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("dial %s: %w (status %s)", c.url(), err, resp.Status)
		}
		return fmt.Errorf("dial %s: %w", c.url(), err)
	}
	c.conn = conn
	c.connID = uuid.NewString()
	c.logger.Printf("spacetime: connected to %s (conn %s)", c.host, c.connID)
	return nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()
	if conn == nil {
		return nil
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	return conn.Close()
}

func (c *Client) current() (*websocket.Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil, fmt.Errorf("spacetime: not connected")
	}
	return c.conn, nil
}

func (c *Client) writeJSON(v any) error {
	conn, err := c.current()
	if err != nil {
		return err
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteMessage(websocket.TextMessage, b)
}

type subscribeMessage struct {
	Subscribe struct {
		RequestID    uint32   `json:"request_id"`
		QueryStrings []string `json:"query_strings"`
	} `json:"Subscribe"`
}

// Subscribe registers the query set. The server answers with an
// InitialSubscription envelope on the stream.
func (c *Client) Subscribe(queries []string) error {
	var msg subscribeMessage
	msg.Subscribe.RequestID = 1
	msg.Subscribe.QueryStrings = queries
	if err := c.writeJSON(msg); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	c.logger.Printf("spacetime: subscribed with %d queries", len(queries))
	return nil
}

type oneOffQueryMessage struct {
	OneOffQuery struct {
		MessageID   string `json:"message_id"`
		QueryString string `json:"query_string"`
	} `json:"OneOffQuery"`
}

type oneOffResponse struct {
	OneOffQueryResponse *struct {
		MessageID string `json:"message_id"`
		Error     string `json:"error"`
		Tables    []struct {
			TableName string            `json:"table_name"`
			Rows      []json.RawMessage `json:"rows"`
		} `json:"tables"`
	} `json:"OneOffQueryResponse"`
}

// Query runs a one-off SQL statement and returns the raw result rows. Only
// usable before Listen takes over the socket; replies for other message ids
// are discarded while waiting.
func (c *Client) Query(queryString string) ([]json.RawMessage, error) {
	conn, err := c.current()
	if err != nil {
		return nil, err
	}

	var msg oneOffQueryMessage
	msg.OneOffQuery.MessageID = strings.ReplaceAll(uuid.NewString(), "-", "")
	msg.OneOffQuery.QueryString = queryString
	if err := c.writeJSON(msg); err != nil {
		return nil, fmt.Errorf("query send: %w", err)
	}

	deadline := time.Now().Add(queryTimeout)
	for time.Now().Before(deadline) {
		_ = conn.SetReadDeadline(deadline)
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return nil, fmt.Errorf("query recv: %w", err)
		}
		var resp oneOffResponse
		if err := json.Unmarshal(raw, &resp); err != nil || resp.OneOffQueryResponse == nil {
			continue
		}
		if resp.OneOffQueryResponse.MessageID != msg.OneOffQuery.MessageID {
			continue
		}
		if resp.OneOffQueryResponse.Error != "" {
			return nil, fmt.Errorf("query: %s", resp.OneOffQueryResponse.Error)
		}
		var rows []json.RawMessage
		for _, table := range resp.OneOffQueryResponse.Tables {
			rows = append(rows, table.Rows...)
		}
		return rows, nil
	}
	return nil, fmt.Errorf("query: timed out waiting for response")
}

// Listen reads envelopes until ctx is cancelled or the connection drops,
// reconnecting and resubscribing in between. Each decoded envelope goes to
// handler in arrival order; undecodable frames are logged and skipped.
func (c *Client) Listen(ctx context.Context, queries []string, handler Handler) error {
	for {
		if err := c.Connect(ctx); err != nil {
			c.logger.Printf("spacetime: connect failed: %v", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(reconnectDelay):
			}
			continue
		}
		if err := c.Subscribe(queries); err != nil {
			c.logger.Printf("spacetime: %v", err)
			_ = c.Close()
			continue
		}

		err := c.readLoop(ctx, handler)
		_ = c.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Printf("spacetime: connection lost: %v, reconnecting in %s", err, reconnectDelay)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(reconnectDelay):
		}
	}
}

func (c *Client) readLoop(ctx context.Context, handler Handler) error {
	conn, err := c.current()
	if err != nil {
		return err
	}

	// The close watcher unblocks ReadMessage when ctx is cancelled.
	watchDone := make(chan struct{})
	defer close(watchDone)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-watchDone:
		}
	}()

	for {
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		env, err := protocol.ParseEnvelope(raw)
		if err != nil {
			c.logger.Printf("spacetime: skipping frame: %v", err)
			continue
		}
		handler(env)
	}
}
