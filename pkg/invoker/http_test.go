package invoker

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apichain/apichain/pkg/models"
	"github.com/apichain/apichain/pkg/protocol"
)

func TestInvoke_Success(t *testing.T) {
	var gotMethod, gotPath, gotQuery, gotContentType string

	var gotBody []byte

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotQuery = r.URL.Query().Get("active")
		gotContentType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"u-1"}`))
	}))
	defer server.Close()

	result, err := NewHTTP(0).Invoke(context.Background(), protocol.Invocation{
		Method: http.MethodPost,
		URL:    server.URL + "/users",
		Query:  map[string]string{"active": "true"},
		Body:   `{"name":"Ana"}`,
	})
	require.NoError(t, err)

	assert.Equal(t, http.StatusCreated, result.Status)
	assert.Equal(t, `{"id":"u-1"}`, result.Body)
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "/users", gotPath)
	assert.Equal(t, "true", gotQuery)
	assert.Equal(t, `{"name":"Ana"}`, string(gotBody))

	// JSON is the default content type when a body is set.
	assert.Equal(t, "application/json", gotContentType)
}

func TestInvoke_ExplicitContentTypeKept(t *testing.T) {
	var gotContentType string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
	}))
	defer server.Close()

	_, err := NewHTTP(0).Invoke(context.Background(), protocol.Invocation{
		Method:  http.MethodPost,
		URL:     server.URL,
		Headers: map[string]string{"Content-Type": "text/plain"},
		Body:    "hello",
	})
	require.NoError(t, err)
	assert.Equal(t, "text/plain", gotContentType)
}

func TestInvoke_ErrorStatusIsNotAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	result, err := NewHTTP(0).Invoke(context.Background(), protocol.Invocation{
		Method: http.MethodGet,
		URL:    server.URL,
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, result.Status)
}

func TestInvoke_ConnectionRefusedIsTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	_, err := NewHTTP(0).Invoke(context.Background(), protocol.Invocation{
		Method: http.MethodGet,
		URL:    server.URL,
	})
	require.Error(t, err)
	assert.True(t, models.IsTransportError(err))
}

func TestInvoke_CancellationIsNotTransportError(t *testing.T) {
	started := make(chan struct{})

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		<-started
		cancel()
	}()

	_, err := NewHTTP(time.Minute).Invoke(ctx, protocol.Invocation{
		Method: http.MethodGet,
		URL:    server.URL,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, models.IsTransportError(err))
}

func TestInvoke_QueryMergesWithExisting(t *testing.T) {
	var gotRawQuery string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotRawQuery = r.URL.Query().Encode()
	}))
	defer server.Close()

	_, err := NewHTTP(0).Invoke(context.Background(), protocol.Invocation{
		Method: http.MethodGet,
		URL:    server.URL + "/search?page=2",
		Query:  map[string]string{"limit": "10"},
	})
	require.NoError(t, err)
	assert.Equal(t, "limit=10&page=2", gotRawQuery)
}
