package web

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagenotes/sage/internal/store"
)

func newTestServer(t *testing.T) (*store.MemStore, *httptest.Server) {
	t.Helper()
	mem := store.NewMemStore()
	srv := httptest.NewServer(NewServer(mem, nil).Handler())
	t.Cleanup(srv.Close)
	return mem, srv
}

func TestPublicNoteRendered(t *testing.T) {
	mem, srv := newTestServer(t)

	require.NoError(t, mem.SaveNote(&store.Note{
		ID:      "a",
		Title:   "Shared Note",
		Content: "# Heading\n\nSome **bold** text.",
	}))
	token, err := mem.GenerateShareLink("a")
	require.NoError(t, err)

	resp, err := http.Get(srv.URL + "/notes/" + token)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "<title>Shared Note</title>")
	assert.Contains(t, string(body), "<strong>bold</strong>")
}

func TestUnknownTokenNotFound(t *testing.T) {
	_, srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/notes/no-such-token")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPrivateNoteNotServed(t *testing.T) {
	mem, srv := newTestServer(t)

	// A note with a token but not public must stay hidden.
	require.NoError(t, mem.SaveNote(&store.Note{
		ID:       "a",
		Title:    "Secret",
		Content:  "private",
		PublicID: "stale-token",
		IsPublic: false,
	}))

	resp, err := http.Get(srv.URL + "/notes/stale-token")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestEmptyAndNestedPathsNotFound(t *testing.T) {
	_, srv := newTestServer(t)

	for _, path := range []string{"/notes/", "/notes/a/b"} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, path)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	_, srv := newTestServer(t)

	resp, err := http.Post(srv.URL+"/notes/whatever", "text/plain", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
