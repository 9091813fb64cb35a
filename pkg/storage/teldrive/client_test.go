package teldrive

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	config "github.com/mwantia/chansync/internal/config/server"
	"github.com/mwantia/chansync/pkg/log"
	"github.com/mwantia/chansync/pkg/rest"
	"github.com/mwantia/chansync/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, url string) *Client {
	t.Helper()

	logger := log.NewWriterLoggerService("test", config.LogServerConfig{Level: "DEBUG"}, io.Discard)
	client, err := NewClient(Config{
		URL:         url,
		BearerToken: "drive-token",
		ChannelID:   -100123,
		RootPath:    "/",
		PageSize:    2,
		Timeout:     time.Second,
	}, logger, rest.WithRetries(1, time.Millisecond, time.Millisecond))
	require.NoError(t, err)
	return client
}

func TestRegister(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/files", r.URL.Path)
		assert.Equal(t, "Bearer drive-token", r.Header.Get("Authorization"))

		var req createRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "report.pdf", req.Name)
		assert.Equal(t, "file", req.Type)
		assert.Equal(t, "/", req.Path)
		assert.Equal(t, "application/pdf", req.MimeType)
		assert.Equal(t, int64(2048), req.Size)
		assert.Equal(t, int64(-100123), req.ChannelID)
		assert.Equal(t, []part{{ID: 17}}, req.Parts)
		assert.False(t, req.Encrypted)

		w.Write([]byte(`{"id":"file-1","name":"report.pdf","type":"file"}`))
	}))
	defer srv.Close()

	id, err := newTestClient(t, srv.URL).Register(context.Background(), storage.File{
		Name:      "report.pdf",
		MimeType:  "application/pdf",
		Size:      2048,
		MessageID: 17,
	})
	require.NoError(t, err)
	assert.Equal(t, "file-1", id)
}

func TestRegister_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"message":"file exists"}`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL).Register(context.Background(), storage.File{Name: "a", MessageID: 1})
	var httpErr *rest.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusConflict, httpErr.StatusCode)
}

func TestRegister_EmptyID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL).Register(context.Background(), storage.File{Name: "a", MessageID: 1})
	assert.Error(t, err)
}

func tree() map[string][][]item {
	return map[string][][]item{
		"/": {
			{{ID: "f1", Name: "a.txt", Type: "file"}, {ID: "d1", Name: "docs", Type: "folder"}},
			{{ID: "f2", Name: "b.txt", Type: "file"}},
		},
		"/docs": {
			{{ID: "f3", Name: "c.txt", Type: "file"}, {ID: "d2", Name: "old", Type: "folder"}},
		},
		"/docs/old": {
			{{ID: "f4", Name: "a.txt", Type: "file"}},
		},
	}
}

func listHandler(t *testing.T, pages map[string][][]item, fail string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "list", q.Get("op"))
		assert.Equal(t, "2", q.Get("perPage"))

		dir := q.Get("path")
		if dir == fail {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		var page int
		json.Unmarshal([]byte(q.Get("page")), &page)

		resp := listResponse{Items: pages[dir][page-1]}
		resp.Meta.TotalPages = len(pages[dir])
		json.NewEncoder(w).Encode(resp)
	}
}

func TestList_WalksFoldersAndPages(t *testing.T) {
	srv := httptest.NewServer(listHandler(t, tree(), ""))
	defer srv.Close()

	entries, err := newTestClient(t, srv.URL).List(context.Background())
	require.NoError(t, err)

	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })
	assert.Equal(t, []storage.Entry{
		{ID: "f1", Name: "a.txt", Path: "/"},
		{ID: "f2", Name: "b.txt", Path: "/"},
		{ID: "f3", Name: "c.txt", Path: "/docs"},
		{ID: "f4", Name: "a.txt", Path: "/docs/old"},
	}, entries)
}

func TestList_FailsOnAnyDirectory(t *testing.T) {
	srv := httptest.NewServer(listHandler(t, tree(), "/docs/old"))
	defer srv.Close()

	entries, err := newTestClient(t, srv.URL).List(context.Background())
	require.Error(t, err)
	assert.Nil(t, entries)
}
