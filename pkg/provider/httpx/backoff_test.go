package httpx

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/require"
)

func TestCallWithBackoff_SucceedsOn2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	resp, err := CallWithBackoff(srv.Client(), hclog.NewNullLogger(), "test", func() (*http.Request, error) {
		return http.NewRequest(http.MethodGet, srv.URL, nil)
	}, nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCallWithBackoff_403IsFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	attempts := 0
	_, err := CallWithBackoff(srv.Client(), hclog.NewNullLogger(), "test", func() (*http.Request, error) {
		attempts++
		return http.NewRequest(http.MethodGet, srv.URL, nil)
	}, nil)
	require.Error(t, err)
	require.Equal(t, 1, attempts)
}

func TestCallWithBackoff_RetriesThenSucceeds(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	var waited time.Duration
	resp, err := CallWithBackoff(srv.Client(), hclog.NewNullLogger(), "test", func() (*http.Request, error) {
		return http.NewRequest(http.MethodGet, srv.URL, nil)
	}, func(_ string, wait time.Duration) { waited += wait })
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Greater(t, waited, time.Duration(0))
}
