package service

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/set-night/audiodesc/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGemini(t *testing.T, h http.Handler) *GeminiService {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	g := NewGeminiService("test-key", srv.URL, "gemini-test")
	g.retry = RetryPolicy{MaxAttempts: 3, InitialInterval: time.Millisecond, MaxInterval: 5 * time.Millisecond}
	g.pollInterval = time.Millisecond
	g.pollTimeout = time.Second
	return g
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func quotaError(w http.ResponseWriter) {
	writeJSON(w, http.StatusTooManyRequests, map[string]any{
		"error": map[string]any{"code": 429, "message": "quota exceeded", "status": "RESOURCE_EXHAUSTED"},
	})
}

func answer(text string) map[string]any {
	return map[string]any{
		"candidates": []any{
			map[string]any{"content": map[string]any{"role": "model", "parts": []any{map[string]any{"text": text}}}},
		},
	}
}

func TestGemini_QueryRetriesTransientThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	g := newTestGemini(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1beta/models/gemini-test:generateContent", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))
		if calls.Add(1) <= 2 {
			quotaError(w)
			return
		}
		writeJSON(w, http.StatusOK, answer("uma praia ao pôr do sol"))
	}))

	d := NewDispatcher(0, 4)
	defer d.Stop()

	got, err := Submit(context.Background(), d, "query", func(ctx context.Context) (string, error) {
		return g.Query(ctx, "https://example.com/v1beta/files/abc", "image/jpeg", "descreva", nil)
	})
	require.NoError(t, err)
	assert.Equal(t, "uma praia ao pôr do sol", got)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, uint64(1), d.Processed())
}

func TestGemini_QueryTransientExhausted(t *testing.T) {
	var calls atomic.Int32
	g := newTestGemini(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		quotaError(w)
	}))

	_, err := g.Query(context.Background(), "files/abc", "image/png", "descreva", nil)
	require.Error(t, err)
	assert.True(t, domain.IsTransient(err))
	assert.Equal(t, int32(3), calls.Load())
}

func TestGemini_QueryPermanentNotRetried(t *testing.T) {
	var calls atomic.Int32
	g := newTestGemini(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error": map[string]any{"code": 400, "message": "quota words in text do not matter", "status": "INVALID_ARGUMENT"},
		})
	}))

	_, err := g.Query(context.Background(), "files/abc", "image/png", "descreva", nil)
	require.Error(t, err)
	assert.False(t, domain.IsTransient(err))
	assert.Equal(t, int32(1), calls.Load())

	var pe *domain.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "INVALID_ARGUMENT", pe.Status)
	assert.Equal(t, http.StatusBadRequest, pe.StatusCode)
}

func TestGemini_QueryRequestShape(t *testing.T) {
	var got generateRequest
	g := newTestGemini(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &got))
		writeJSON(w, http.StatusOK, answer("ok"))
	}))

	history := []domain.Message{
		{Role: domain.RoleUser, Parts: []string{"descreva"}},
		{Role: domain.RoleModel, Parts: []string{"um gato"}},
	}
	_, err := g.Query(context.Background(), "https://x/v1beta/files/abc", "video/mp4; codecs=avc1", "de que cor?", history)
	require.NoError(t, err)

	require.NotNil(t, got.SystemInstruction)
	require.Len(t, got.Contents, 3)
	assert.Equal(t, "user", got.Contents[0].Role)
	assert.Equal(t, "descreva", got.Contents[0].Parts[0].Text)
	assert.Equal(t, "model", got.Contents[1].Role)

	last := got.Contents[2]
	require.Len(t, last.Parts, 2)
	require.NotNil(t, last.Parts[0].FileData)
	assert.Equal(t, "video/mp4", last.Parts[0].FileData.MimeType)
	assert.Equal(t, "https://x/v1beta/files/abc", last.Parts[0].FileData.FileURI)
	assert.Equal(t, "de que cor?", last.Parts[1].Text)
}

func TestGemini_QueryEmptyAndBlocked(t *testing.T) {
	g := newTestGemini(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"candidates": []any{}})
	}))
	_, err := g.Query(context.Background(), "files/a", "image/png", "x", nil)
	assert.ErrorIs(t, err, domain.ErrEmptyResponse)

	g = newTestGemini(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"promptFeedback": map[string]any{"blockReason": "SAFETY"}})
	}))
	_, err = g.Query(context.Background(), "files/a", "image/png", "x", nil)
	var pe *domain.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "SAFETY", pe.Status)
}

func TestGemini_UploadPollsUntilActive(t *testing.T) {
	var polls atomic.Int32
	var srvURL string
	mux := http.NewServeMux()
	mux.HandleFunc("POST /upload/v1beta/files", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "resumable", r.Header.Get("X-Goog-Upload-Protocol"))
		assert.Equal(t, "start", r.Header.Get("X-Goog-Upload-Command"))
		assert.Equal(t, "5", r.Header.Get("X-Goog-Upload-Header-Content-Length"))
		assert.Equal(t, "image/jpeg", r.Header.Get("X-Goog-Upload-Header-Content-Type"))
		w.Header().Set("X-Goog-Upload-URL", srvURL+"/upload-session/1")
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("POST /upload-session/1", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "upload, finalize", r.Header.Get("X-Goog-Upload-Command"))
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "bytes", string(body))
		writeJSON(w, http.StatusOK, map[string]any{"file": map[string]any{
			"name": "files/abc", "uri": srvURL + "/v1beta/files/abc", "state": "PROCESSING",
		}})
	})
	mux.HandleFunc("GET /v1beta/files/abc", func(w http.ResponseWriter, r *http.Request) {
		state := "PROCESSING"
		if polls.Add(1) >= 2 {
			state = "ACTIVE"
		}
		writeJSON(w, http.StatusOK, map[string]any{"name": "files/abc", "uri": srvURL + "/v1beta/files/abc", "state": state})
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()
	srvURL = srv.URL

	g := NewGeminiService("k", srv.URL, "m")
	g.pollInterval = time.Millisecond
	g.pollTimeout = time.Second

	ref, err := g.Upload(context.Background(), []byte("bytes"), "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/v1beta/files/abc", ref)
	assert.Equal(t, int32(2), polls.Load())
}

func TestGemini_UploadFailedState(t *testing.T) {
	var srvURL string
	mux := http.NewServeMux()
	mux.HandleFunc("POST /upload/v1beta/files", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Goog-Upload-URL", srvURL+"/s")
	})
	mux.HandleFunc("POST /s", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"file": map[string]any{"name": "files/bad", "state": "FAILED"}})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	srvURL = srv.URL

	g := NewGeminiService("k", srv.URL, "m")
	_, err := g.Upload(context.Background(), []byte("x"), "video/mp4")
	var pe *domain.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, domain.ProviderPermanent, pe.Kind)
}

func TestGemini_Delete(t *testing.T) {
	var paths []string
	g := newTestGemini(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		paths = append(paths, r.URL.Path)
		if r.URL.Path == "/v1beta/files/gone" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	require.NoError(t, g.Delete(context.Background(), "https://generativelanguage.googleapis.com/v1beta/files/abc"))
	require.NoError(t, g.Delete(context.Background(), "files/gone"))
	assert.Error(t, g.Delete(context.Background(), "not-a-ref"))
	assert.Equal(t, []string{"/v1beta/files/abc", "/v1beta/files/gone"}, paths)
}
