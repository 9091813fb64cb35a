// Package relay talks to the channel relay bridge: a small HTTP and websocket
// service that exposes the posts of a Telegram channel.
package relay

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mwantia/chansync/pkg/channel"
	"github.com/mwantia/chansync/pkg/log"
	"github.com/mwantia/chansync/pkg/rest"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

var ErrAlreadySubscribed = errors.New("event stream already subscribed")

const historyPageSize = 100

type Config struct {
	URL       string
	EventsURL string
	Token     string
	ChannelID int64
	Buffer    int
	Timeout   time.Duration
}

type Client struct {
	cfg  Config
	rest *rest.Client
	log  log.LoggerService

	mu         sync.Mutex
	subscribed bool
}

type event struct {
	Type    string          `json:"type"`
	Message channel.Message `json:"message"`
}

type historyPage struct {
	Messages []channel.Message `json:"messages"`
}

func NewClient(cfg Config, logger log.LoggerService, opts ...rest.Option) (*Client, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, fmt.Errorf("relay url is required")
	}
	if cfg.ChannelID == 0 {
		return nil, fmt.Errorf("relay channel id is required")
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = 256
	}
	if cfg.EventsURL == "" {
		eventsURL, err := websocketURL(cfg.URL)
		if err != nil {
			return nil, err
		}
		cfg.EventsURL = eventsURL
	}
	cfg.EventsURL = strings.TrimRight(cfg.EventsURL, "/")

	return &Client{
		cfg:  cfg,
		rest: rest.NewClient(cfg.URL, cfg.Token, cfg.Timeout, opts...),
		log:  logger.Named("relay"),
	}, nil
}

// Subscribe opens the live event stream. Messages are delivered in the order
// the bridge sends them; the channel is closed when the connection ends or
// ctx is cancelled.
func (c *Client) Subscribe(ctx context.Context) (<-chan channel.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.subscribed {
		return nil, ErrAlreadySubscribed
	}

	header := http.Header{}
	if c.cfg.Token != "" {
		header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	endpoint := fmt.Sprintf("%s/v1/channels/%d/events", c.cfg.EventsURL, c.cfg.ChannelID)
	conn, _, err := websocket.Dial(ctx, endpoint, &websocket.DialOptions{
		HTTPHeader: header,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect event stream: %w", err)
	}
	c.subscribed = true

	out := make(chan channel.Message, c.cfg.Buffer)
	go c.read(ctx, conn, out)

	c.log.Info("Subscribed to events of channel %d", c.cfg.ChannelID)
	return out, nil
}

func (c *Client) read(ctx context.Context, conn *websocket.Conn, out chan<- channel.Message) {
	defer close(out)
	defer conn.Close(websocket.StatusNormalClosure, "")

	for {
		var ev event
		if err := wsjson.Read(ctx, conn, &ev); err != nil {
			if ctx.Err() == nil {
				c.log.Warn("Event stream closed: %v", err)
			}
			return
		}
		if ev.Type != "" && ev.Type != "new_message" {
			c.log.Debug("Ignoring event of type '%s'", ev.Type)
			continue
		}

		select {
		case out <- ev.Message:
		case <-ctx.Done():
			return
		}
	}
}

// History returns up to limit of the most recent messages, newest first.
func (c *Client) History(ctx context.Context, limit int) ([]channel.Message, error) {
	var (
		messages []channel.Message
		before   int64
	)

	for len(messages) < limit {
		size := min(historyPageSize, limit-len(messages))

		query := url.Values{}
		query.Set("limit", strconv.Itoa(size))
		if before > 0 {
			query.Set("before", strconv.FormatInt(before, 10))
		}

		var page historyPage
		path := fmt.Sprintf("/v1/channels/%d/messages?%s", c.cfg.ChannelID, query.Encode())
		if err := c.rest.DoJSON(ctx, http.MethodGet, path, nil, &page); err != nil {
			return nil, fmt.Errorf("failed to fetch history: %w", err)
		}

		messages = append(messages, page.Messages...)
		if len(page.Messages) < size {
			break
		}
		before = page.Messages[len(page.Messages)-1].ID
	}

	return messages, nil
}

func (c *Client) DeleteMessage(ctx context.Context, id int64) error {
	path := fmt.Sprintf("/v1/channels/%d/messages/%d", c.cfg.ChannelID, id)
	if err := c.rest.DoJSON(ctx, http.MethodDelete, path, nil, nil); err != nil {
		var httpErr *rest.HTTPError
		if errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusNotFound {
			c.log.Debug("Message %d already gone", id)
			return nil
		}
		return fmt.Errorf("failed to delete message %d: %w", id, err)
	}
	return nil
}

func websocketURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("invalid relay url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported relay url scheme '%s'", u.Scheme)
	}
	return u.String(), nil
}
