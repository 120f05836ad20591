package lookup

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"card-scanner/internal/card"
)

var ssp002 = card.Identifier{CardNumber: "002", SetCode: "SSP"}

func TestResolveNotFoundIsNotRetried(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := New(srv.URL)
	ctx := context.Background()

	require.True(t, c.Resolve(ctx, ssp002))
	c.Wait()
	assert.Equal(t, int32(1), hits.Load())
	assert.Equal(t, 1, c.FailedCount())

	q, err := ssp002.Query(srv.URL)
	require.NoError(t, err)
	assert.True(t, c.Failed(q))

	assert.False(t, c.Resolve(ctx, ssp002))
	c.Wait()
	assert.Equal(t, int32(1), hits.Load(), "failed query must not be sent again")
}

func TestResolvePublishesURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/cards", r.URL.Path)
		assert.Equal(t, "SSP", r.URL.Query().Get("setCode"))
		assert.Equal(t, "002", r.URL.Query().Get("cardNumber"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"url": "https://cards.example/ssp/2"})
	}))
	defer srv.Close()

	var (
		mu  sync.Mutex
		got []string
	)
	c := New(srv.URL, OnResolved(func(id card.Identifier, url string) {
		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, ssp002, id)
		got = append(got, url)
	}))

	require.True(t, c.Resolve(context.Background(), ssp002))
	c.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"https://cards.example/ssp/2"}, got)
	assert.Zero(t, c.FailedCount())
}

func TestConcurrentResolveSendsOneRequest(t *testing.T) {
	var hits atomic.Int32
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		<-release
		_ = json.NewEncoder(w).Encode(map[string]string{"url": "https://cards.example/x"})
	}))
	defer srv.Close()

	c := New(srv.URL)
	ctx := context.Background()

	var started atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if c.Resolve(ctx, ssp002) {
				started.Add(1)
			}
		}()
	}
	wg.Wait()
	close(release)
	c.Wait()

	assert.Equal(t, int32(1), started.Load())
	assert.Equal(t, int32(1), hits.Load())
}

func TestLookupFailures(t *testing.T) {
	tests := map[string]http.HandlerFunc{
		"undecodable body": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("<html>not json</html>"))
		},
		"missing url": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"name":"Exeggcute"}`))
		},
		"server error": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		},
	}
	for name, h := range tests {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(h)
			defer srv.Close()

			c := New(srv.URL)
			_, err := c.Lookup(context.Background(), ssp002)
			require.ErrorIs(t, err, ErrNotFound)
			assert.Equal(t, 1, c.FailedCount())

			_, err = c.Lookup(context.Background(), ssp002)
			require.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestLookupTransportErrorIsRecorded(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	c := New(base, WithTimeout(time.Second))
	_, err := c.Lookup(context.Background(), ssp002)
	require.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 1, c.FailedCount())
}

func TestLookupTransportErrorIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	_, err := New(base, WithTimeout(time.Second)).Fetch(context.Background(), ssp002)
	require.ErrorIs(t, err, ErrUnavailable)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestFetchDoesNotRememberMisses(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch hits.Add(1) {
		case 1:
			w.WriteHeader(http.StatusServiceUnavailable)
		case 2:
			http.NotFound(w, r)
		default:
			_, _ = w.Write([]byte(`{"url":"https://cards.example/ssp/2"}`))
		}
	}))
	defer srv.Close()

	c := New(srv.URL, WithHTTPClient(srv.Client()))
	ctx := context.Background()

	_, err := c.Fetch(ctx, ssp002)
	require.ErrorIs(t, err, ErrUnavailable)

	_, err = c.Fetch(ctx, ssp002)
	require.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrUnavailable)

	url, err := c.Fetch(ctx, ssp002)
	require.NoError(t, err)
	assert.Equal(t, "https://cards.example/ssp/2", url)
	assert.Equal(t, int32(3), hits.Load())
	assert.Zero(t, c.FailedCount())
}

func TestLookupSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"url":"https://cards.example/ssp/2"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, WithHTTPClient(srv.Client()))
	url, err := c.Lookup(context.Background(), ssp002)
	require.NoError(t, err)
	assert.Equal(t, "https://cards.example/ssp/2", url)
}

func TestClosedClientSkips(t *testing.T) {
	c := New("http://127.0.0.1:1")
	require.NoError(t, c.Close())
	assert.False(t, c.Resolve(context.Background(), ssp002))
}
