package cronsync

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPClient_Post(t *testing.T) {
	var gotMethod, gotPath, gotSecret string
	var gotBody []byte

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotSecret = r.Header.Get(SecretHeader)
		gotBody, _ = io.ReadAll(r.Body)

		switch r.URL.Path {
		case ContentSyncPath:
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"synced": 12}`))
		default:
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte(`{"error":"bad gateway"}`))
		}
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL+"/", "abc123", 5*time.Second)
	assert.Equal(t, srv.URL, client.BaseURL())

	res, err := client.Post(context.Background(), ContentSyncPath)
	require.NoError(t, err)
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, ContentSyncPath, gotPath)
	assert.Equal(t, "abc123", gotSecret)
	assert.Empty(t, gotBody)
	assert.True(t, res.OK())
	assert.JSONEq(t, `{"synced": 12}`, string(res.Payload()))

	res, err = client.Post(context.Background(), ExecutionSyncPath)
	require.NoError(t, err, "non-2xx responses are results, not errors")
	assert.Equal(t, http.StatusBadGateway, res.Status)
	assert.False(t, res.OK())
	assert.Equal(t, "bad gateway", res.Message())
}

func TestHTTPClient_OmitsSecretWhenOpen(t *testing.T) {
	sawHeader := true
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, sawHeader = r.Header[http.CanonicalHeaderKey(SecretHeader)]
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	_, err := NewHTTPClient(srv.URL, "", 5*time.Second).Post(context.Background(), ContentSyncPath)
	require.NoError(t, err)
	assert.False(t, sawHeader)
}

func TestHTTPClient_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	res, err := NewHTTPClient(url, "", time.Second).Post(context.Background(), ContentSyncPath)
	assert.Error(t, err)
	assert.Nil(t, res)
}

func TestDownstreamResult_Message(t *testing.T) {
	tests := []struct {
		name     string
		result   DownstreamResult
		expected string
	}{
		{"error field", DownstreamResult{Status: 500, Body: []byte(`{"error":"boom"}`)}, "boom"},
		{"message field", DownstreamResult{Status: 500, Body: []byte(`{"message":"nope"}`)}, "nope"},
		{"json without known fields", DownstreamResult{Status: 500, Body: []byte(`{"code":1}`)}, "HTTP 500 Internal Server Error"},
		{"plain text", DownstreamResult{Status: 502, Body: []byte("gateway")}, "HTTP 502 Bad Gateway: gateway"},
		{"empty", DownstreamResult{Status: 599}, "HTTP 599"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.result.Message())
		})
	}
}

func TestHTTPClient_KeepsBasePathPrefix(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL+"/dashboard/", "", 5*time.Second)
	assert.Equal(t, srv.URL+"/dashboard", client.BaseURL())

	_, err := client.Post(context.Background(), ContentSyncPath)
	require.NoError(t, err)
	_, err = client.Post(context.Background(), ExecutionSyncPath)
	require.NoError(t, err)

	assert.Equal(t, []string{"/dashboard/api/sync", "/dashboard/api/sync/executions"}, paths)
}
