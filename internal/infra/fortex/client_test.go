package fortex

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, url string, opts ...Option) *Client {
	t.Helper()
	base := []Option{
		WithBackoffBase(20 * time.Millisecond),
		WithServerErrDelay(20 * time.Millisecond),
	}
	return New(url, "test-token", "zero", 200*time.Millisecond, zerolog.Nop(), append(base, opts...)...)
}

func TestOverviewSendsHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-token", r.Header.Get("Authorization"))
		assert.Equal(t, "zero", r.Header.Get("x-system-name"))
		w.Write([]byte(`{"totalNumberOfCompany":2,"totalNumberOfError":5,"companies":[{"id":"c1","name":"Acme","isError":true}]}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	ov, err := c.Overview(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, ov.TotalErrors)
	require.Len(t, ov.Companies, 1)
	assert.True(t, ov.Companies[0].IsError)
}

func TestTimeoutRetriesWithIncreasingDelay(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		if n <= 2 {
			// exceed the 200ms client timeout
			time.Sleep(400 * time.Millisecond)
			return
		}
		w.Write([]byte(`{"totalNumberOfError":1,"companies":[]}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, WithBackoffBase(50*time.Millisecond))
	start := time.Now()
	ov, err := c.Overview(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, ov.TotalErrors)
	assert.Equal(t, int32(3), calls.Load())
	// two retry delays of 50ms and 100ms plus two 200ms timeouts
	assert.GreaterOrEqual(t, time.Since(start), 550*time.Millisecond)
}

func TestTimeoutExhaustsRetryBound(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		time.Sleep(400 * time.Millisecond)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.Overview(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransient)
	assert.Equal(t, int32(3), calls.Load())
}

func TestRateLimitHonorsRetryAfterUncounted(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "2")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"companies":[]}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	start := time.Now()
	_, err := c.Overview(context.Background())
	require.NoError(t, err)
	// the next attempt happens at least 2s later and the 429 never
	// counts against the timeout-retry bound
	assert.GreaterOrEqual(t, time.Since(start), 2*time.Second)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClientErrorFailsImmediately(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.Overview(context.Background())
	assert.ErrorIs(t, err, ErrPermanent)
	assert.Equal(t, int32(1), calls.Load())
}

func TestServerErrorRetriesThenSurfaces(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.Overview(context.Background())
	assert.ErrorIs(t, err, ErrTransient)
	assert.Equal(t, int32(3), calls.Load())
}

func TestMalformedResponseIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{"companies": "not-an-array"`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.Overview(context.Background())
	assert.ErrorIs(t, err, ErrSchema)
	assert.Equal(t, int32(1), calls.Load())
}

func TestSmartAnalyzeAcceptsBothShapes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/monitoring/smart-analyze/arr":
			w.Write([]byte(`[{"driverId":"d1","logCheckErrors":[{"id":"e1","errorMessage":"NO SHUT DOWN ERROR"}]}]`))
		case "/monitoring/smart-analyze/obj":
			w.Write([]byte(`{"company_name":"Acme","drivers":[{"driverId":"d2","logCheckErrors":[]}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	arr, err := c.SmartAnalyze(context.Background(), "arr")
	require.NoError(t, err)
	assert.Equal(t, 1, arr.TotalErrors)

	obj, err := c.SmartAnalyze(context.Background(), "obj")
	require.NoError(t, err)
	assert.Equal(t, "Acme", obj.CompanyName)
	assert.Equal(t, 0, obj.TotalErrors)
}

func TestCollectErrorsSkipsFailingCompany(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/monitoring/smart-analyze/bad":
			w.WriteHeader(http.StatusNotFound)
		case "/monitoring/smart-analyze/good":
			w.Write([]byte(`[{"driverId":"d1","driver_name":"Ivan","logCheckErrors":[{"id":"e1","errorMessage":"NO POWER UP ERROR","eventCode":"PU"}]}]`))
		}
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	errsList, err := c.CollectErrors(context.Background(), []string{"bad", "good"})
	require.NoError(t, err)
	require.Len(t, errsList, 1)
	assert.Equal(t, "good", errsList[0].CompanyID)
	assert.Equal(t, "d1", errsList[0].DriverID)
	assert.Equal(t, "NO POWER UP ERROR", errsList[0].Message)
	assert.Equal(t, "e1", errsList[0].LogID)
}

func TestCollectErrorsAllFailed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.CollectErrors(context.Background(), []string{"a", "b"})
	assert.True(t, errors.Is(err, ErrTransient))
}
