// Package teldrive registers channel files in a TelDrive instance and lists
// its file index.
package teldrive

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/mwantia/chansync/pkg/log"
	"github.com/mwantia/chansync/pkg/rest"
	"github.com/mwantia/chansync/pkg/storage"
)

const (
	itemTypeFile   = "file"
	itemTypeFolder = "folder"
)

type Config struct {
	URL         string
	BearerToken string
	ChannelID   int64
	RootPath    string
	PageSize    int
	Timeout     time.Duration
}

type Client struct {
	cfg  Config
	rest *rest.Client
	log  log.LoggerService
}

type part struct {
	ID   int64  `json:"id"`
	Salt string `json:"salt"`
}

type createRequest struct {
	Name      string `json:"name"`
	Type      string `json:"type"`
	Path      string `json:"path"`
	MimeType  string `json:"mimeType"`
	Size      int64  `json:"size"`
	ChannelID int64  `json:"channelId"`
	Parts     []part `json:"parts"`
	Encrypted bool   `json:"encrypted"`
}

type item struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

type listResponse struct {
	Items []item `json:"items"`
	Meta  struct {
		TotalPages int `json:"totalPages"`
	} `json:"meta"`
}

func NewClient(cfg Config, logger log.LoggerService, opts ...rest.Option) (*Client, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, fmt.Errorf("teldrive url is required")
	}
	if cfg.ChannelID == 0 {
		return nil, fmt.Errorf("teldrive channel id is required")
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 500
	}
	cfg.RootPath = path.Clean("/" + strings.TrimSpace(cfg.RootPath))

	return &Client{
		cfg:  cfg,
		rest: rest.NewClient(cfg.URL, cfg.BearerToken, cfg.Timeout, opts...),
		log:  logger.Named("teldrive"),
	}, nil
}

// Register creates a file entry pointing at the channel message that already
// holds the content and returns the id assigned by TelDrive.
func (c *Client) Register(ctx context.Context, file storage.File) (string, error) {
	mimeType := file.MimeType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	req := createRequest{
		Name:      file.Name,
		Type:      itemTypeFile,
		Path:      c.cfg.RootPath,
		MimeType:  mimeType,
		Size:      file.Size,
		ChannelID: c.cfg.ChannelID,
		Parts:     []part{{ID: file.MessageID}},
	}

	var resp item
	if err := c.rest.DoJSON(ctx, http.MethodPost, "/api/files", req, &resp); err != nil {
		return "", fmt.Errorf("failed to register '%s': %w", file.Name, err)
	}
	if resp.ID == "" {
		return "", fmt.Errorf("failed to register '%s': empty file id in response", file.Name)
	}

	c.log.Debug("Registered '%s' as %s", file.Name, resp.ID)
	return resp.ID, nil
}

// List walks the tree below the root path. A failure on any directory or page
// fails the whole listing, so callers never see a partial index.
func (c *Client) List(ctx context.Context) ([]storage.Entry, error) {
	var entries []storage.Entry
	pending := []string{c.cfg.RootPath}

	for len(pending) > 0 {
		dir := pending[len(pending)-1]
		pending = pending[:len(pending)-1]

		items, err := c.listDir(ctx, dir)
		if err != nil {
			return nil, err
		}

		for _, it := range items {
			switch {
			case it.Type == itemTypeFolder:
				pending = append(pending, path.Join(dir, it.Name))
			case it.ID != "":
				entries = append(entries, storage.Entry{
					ID:   it.ID,
					Name: it.Name,
					Path: dir,
				})
			}
		}
	}

	return entries, nil
}

func (c *Client) listDir(ctx context.Context, dir string) ([]item, error) {
	var items []item

	for page := 1; ; page++ {
		query := url.Values{}
		query.Set("path", dir)
		query.Set("op", "list")
		query.Set("perPage", strconv.Itoa(c.cfg.PageSize))
		query.Set("page", strconv.Itoa(page))

		var resp listResponse
		if err := c.rest.DoJSON(ctx, http.MethodGet, "/api/files?"+query.Encode(), nil, &resp); err != nil {
			return nil, fmt.Errorf("failed to list '%s' page %d: %w", dir, page, err)
		}

		items = append(items, resp.Items...)
		if page >= resp.Meta.TotalPages {
			return items, nil
		}
	}
}
