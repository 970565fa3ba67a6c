package backend

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestNewUnknownVendor(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), Profile{Vendor: "cohere"}, Keys{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown vendor")
}

func TestNewLimiter(t *testing.T) {
	t.Parallel()

	assert.Nil(t, newLimiter(Profile{}))
	assert.Nil(t, newLimiter(Profile{RequestsPerMinute: -5}))

	l := newLimiter(Profile{RequestsPerMinute: 60})
	require.NotNil(t, l)
	assert.InDelta(t, 1.0, float64(l.Limit()), 0.001)
}

func TestOpenAIBackendSubmit(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "cmpl-1",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "FINDINGS: []"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 42, "completion_tokens": 7}
		}`))
	}))
	defer srv.Close()

	b := newOpenAIBackend(Profile{
		Vendor:          "openai",
		Model:           "test-model",
		MaxOutputTokens: 256,
	}, "test-key", srv.URL)

	assert.Equal(t, "openai/test-model", b.Name())

	resp, err := b.Submit(context.Background(), "you are a careful annotator", "analyze this verse")
	require.NoError(t, err)
	assert.Equal(t, "FINDINGS: []", resp.Text)
	assert.Equal(t, 42, resp.Usage.InputTokens)
	assert.Equal(t, 7, resp.Usage.OutputTokens)
}

func TestOpenAIBackendTimeout(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte(`{"id":"1","choices":[],"usage":{}}`))
	}))
	defer srv.Close()

	b := newOpenAIBackend(Profile{
		Vendor:  "openai",
		Model:   "test-model",
		Timeout: 20 * time.Millisecond,
	}, "test-key", srv.URL)

	_, err := b.Submit(context.Background(), "", "analyze this verse")
	require.Error(t, err)
}

func TestMockBackend(t *testing.T) {
	t.Parallel()

	m := &MockBackend{}
	m.On("Name").Return("mock/tier1")
	m.On("Submit", mock.Anything, "sys", "prompt").Return(&Response{Text: "[]"}, nil)

	assert.Equal(t, "mock/tier1", m.Name())
	resp, err := m.Submit(context.Background(), "sys", "prompt")
	require.NoError(t, err)
	assert.Equal(t, "[]", resp.Text)
	m.AssertExpectations(t)
}
