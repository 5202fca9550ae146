package agent

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInvokeDecodesResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/execute", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "hello", payload["prompt"])

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"score": 0.9, "label": "positive"}`))
	}))
	defer srv.Close()

	result, err := NewHTTPClient().Invoke(context.Background(), srv.URL,
		map[string]any{"prompt": "hello"})
	require.NoError(t, err)
	assert.Equal(t, 0.9, result["score"])
	assert.Equal(t, "positive", result["label"])
}

func TestInvokeRejectsNonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewHTTPClient().Invoke(context.Background(), srv.URL, map[string]any{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}

func TestInvokeHonorsContextDeadline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(time.Second)
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := NewHTTPClient().Invoke(ctx, srv.URL, map[string]any{})
	assert.Error(t, err)
}

func TestInvokeRejectsUndecodableBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	_, err := NewHTTPClient().Invoke(context.Background(), srv.URL, map[string]any{})
	assert.Error(t, err)
}
