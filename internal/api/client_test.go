package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pricepulse/pricepulse-cli/internal/session"
)

// memPersister keeps the record in memory; good enough for client tests.
type memPersister struct {
	mu     sync.Mutex
	record *session.Record
}

func (m *memPersister) Load() (*session.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.record == nil {
		return nil, nil
	}
	r := *m.record
	return &r, nil
}

func (m *memPersister) Save(r session.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record = &r
	return nil
}

func (m *memPersister) Delete() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record = nil
	return nil
}

func (m *memPersister) stored() *session.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.record
}

func newTestClient(t *testing.T, handler http.Handler) (*Client, *session.Store) {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	store := session.NewStore(&memPersister{})
	client, err := NewClient(ClientOpts{BaseURL: ts.URL, Store: store})
	require.NoError(t, err)
	return client, store
}

func TestRequestAttachesBearer(t *testing.T) {
	var gotAuth string
	client, store := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":true,"data":[]}`))
	}))
	store.SetToken("tok", 0)

	_, err := client.GetProducts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok", gotAuth)
}

func TestRequestWithoutTokenSendsNoBearer(t *testing.T) {
	var gotAuth string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"success":true,"accessToken":"tok","user":{"id":"u1","email":"a@b.c"}}`))
	}))

	_, err := client.Login(context.Background(), Credentials{Email: "a@b.c", Password: "pw"})
	require.NoError(t, err)
	assert.Empty(t, gotAuth)
}

func TestNoContentResolvesEmpty(t *testing.T) {
	client, store := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	store.SetToken("tok", 0)

	err := client.CheckNow(context.Background())
	assert.NoError(t, err)
}

func TestErrorCarriesServerMessage(t *testing.T) {
	client, store := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"success":false,"message":"url is not supported"}`))
	}))
	store.SetToken("tok", 0)

	_, err := client.CreateProductsByURL(context.Background(), []string{"https://example.com"})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "url is not supported", apiErr.Message)
	assert.Equal(t, false, apiErr.Detail["success"])
	assert.Equal(t, http.StatusBadRequest, StatusOf(err))
}

func TestErrorFallsBackToStatusText(t *testing.T) {
	client, store := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	store.SetToken("tok", 0)

	_, err := client.GetProducts(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Internal Server Error", apiErr.Message)
}

func TestMalformedBodyDecodesToEmpty(t *testing.T) {
	client, store := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html>not json</html>"))
	}))
	store.SetToken("tok", 0)

	products, err := client.GetProducts(context.Background())
	assert.NoError(t, err)
	assert.Empty(t, products)
}

// A 401 is retried once after a successful refresh; the caller only ever
// sees the retried response.
func TestRetriesOnceAfterRefresh(t *testing.T) {
	var refreshCalls, productCalls atomic.Int32
	client, store := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/refresh":
			refreshCalls.Add(1)
			w.Write([]byte(`{"success":true,"accessToken":"fresh"}`))
		case "/products":
			productCalls.Add(1)
			if r.Header.Get("Authorization") != "Bearer fresh" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			w.Write([]byte(`{"success":true,"data":[{"_id":"p1","name":"Lamp","currentPrice":19.9,"currency":"EUR"}]}`))
		}
	}))
	store.Set(session.Record{AccessToken: "expired", User: &session.AuthUser{ID: "u1", Email: "a@b.c"}})

	products, err := client.GetProducts(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "Lamp", products[0].Name)
	assert.Equal(t, int32(1), refreshCalls.Load())
	assert.Equal(t, int32(2), productCalls.Load())
	assert.Equal(t, "fresh", store.Get().AccessToken)
}

// A 401 whose refresh also fails surfaces as ErrAuthExpired with the
// session cleared.
func TestAuthExhaustedClearsSession(t *testing.T) {
	client, store := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	store.Set(session.Record{AccessToken: "expired", User: &session.AuthUser{ID: "u1", Email: "a@b.c"}})

	_, err := client.GetProducts(context.Background())
	assert.True(t, IsAuthExpired(err))
	assert.True(t, store.Get().Empty())
}

// A 401 on the retried request is a plain API error: the retry budget for a
// logical call is exactly one.
func TestNoSecondRetry(t *testing.T) {
	var refreshCalls, productCalls atomic.Int32
	client, store := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/refresh":
			refreshCalls.Add(1)
			w.Write([]byte(`{"success":true,"accessToken":"fresh"}`))
		case "/products":
			productCalls.Add(1)
			w.WriteHeader(http.StatusUnauthorized)
		}
	}))
	store.SetToken("expired", 0)

	_, err := client.GetProducts(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, int32(1), refreshCalls.Load())
	assert.Equal(t, int32(2), productCalls.Load())
}

// Many requests failing authentication at once trigger exactly one refresh,
// and every one of them succeeds with the new token.
func TestConcurrent401sShareOneRefresh(t *testing.T) {
	const n = 8

	var first401s, refreshCalls atomic.Int32
	client, store := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/refresh":
			refreshCalls.Add(1)
			// Hold the refresh open until every request has hit its
			// 401, so all callers join the same flight.
			for first401s.Load() < n {
				time.Sleep(time.Millisecond)
			}
			time.Sleep(50 * time.Millisecond)
			w.Write([]byte(`{"success":true,"accessToken":"fresh"}`))
		case "/products":
			if r.Header.Get("Authorization") != "Bearer fresh" {
				first401s.Add(1)
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			w.Write([]byte(`{"success":true,"data":[{"_id":"p1","name":"Lamp","currentPrice":19.9,"currency":"EUR"}]}`))
		}
	}))
	store.SetToken("expired", 0)

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = client.GetProducts(context.Background())
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		assert.NoError(t, errs[i])
	}
	assert.Equal(t, int32(1), refreshCalls.Load())
}

func TestInstallationIDHeader(t *testing.T) {
	var gotID string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID = r.Header.Get("X-Installation-Id")
		w.Write([]byte(`{"success":true}`))
	}))
	defer ts.Close()

	store := session.NewStore(&memPersister{})
	client, err := NewClient(ClientOpts{BaseURL: ts.URL, Store: store, InstallationID: "abc-123"})
	require.NoError(t, err)

	_ = client.CheckNow(context.Background())
	assert.Equal(t, "abc-123", gotID)
}
