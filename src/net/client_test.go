package net

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mosaicnetworks/peerfetch/src/common"
	"github.com/stretchr/testify/require"
)

type testParams struct {
	Type   int  `url:"type,omitempty"`
	Report bool `url:"reportIntermediateStatus,omitempty"`
}

func TestClientGet(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"stakeRequired":"0x10"}`))
	}))
	defer srv.Close()

	c := NewClient(0, common.NewTestEntry(t, common.TestLogLevel))
	require.Equal(t, DefaultTimeout, c.Timeout())

	var out struct {
		StakeRequired string `json:"stakeRequired"`
	}
	status, err := c.Get(context.Background(), srv.URL+"/stake", testParams{Type: 5, Report: true}, &out)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "0x10", out.StakeRequired)
	require.Equal(t, "reportIntermediateStatus=true&type=5", gotQuery)
}

func TestClientGetNoParams(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewClient(time.Second, common.NewTestEntry(t, common.TestLogLevel))
	status, err := c.Get(context.Background(), srv.URL+"/load?x=1", nil, nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "x=1", gotQuery)
}

func TestClientGetHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not ready", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(time.Second, common.NewTestEntry(t, common.TestLogLevel))
	status, err := c.Get(context.Background(), srv.URL+"/nodeinfo", nil, &struct{}{})
	require.Equal(t, http.StatusServiceUnavailable, status)

	var httpErr HTTPError
	require.True(t, errors.As(err, &httpErr))
	require.Equal(t, http.StatusServiceUnavailable, httpErr.StatusCode)
	require.Contains(t, httpErr.Error(), "not ready")
}

func TestClientGetBadJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"nodeList": [`))
	}))
	defer srv.Close()

	c := NewClient(time.Second, common.NewTestEntry(t, common.TestLogLevel))
	status, err := c.Get(context.Background(), srv.URL+"/nodelist", nil, &map[string]interface{}{})
	require.Error(t, err)
	require.Equal(t, http.StatusOK, status)
}

func TestClientGetTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := NewClient(50*time.Millisecond, common.NewTestEntry(t, common.TestLogLevel))
	start := time.Now()
	status, err := c.Get(context.Background(), srv.URL+"/slow", nil, nil)
	require.Error(t, err)
	require.Equal(t, 0, status)
	require.Less(t, time.Since(start), time.Second)
}

func TestClientGetUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := NewClient(time.Second, common.NewTestEntry(t, common.TestLogLevel))
	status, err := c.Get(context.Background(), url+"/nodelist", nil, nil)
	require.Error(t, err)
	require.Equal(t, 0, status)
}
