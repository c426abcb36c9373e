package llm

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prdraft/prdraft/internal/config"
	"github.com/prdraft/prdraft/internal/errors"
)

// fakeBackend returns scripted responses per attempt.
type fakeBackend struct {
	calls     atomic.Int32
	responses []fakeCall
}

type fakeCall struct {
	resp *Response
	err  error
}

func (f *fakeBackend) Generate(ctx context.Context, req Request) (*Response, error) {
	n := int(f.calls.Add(1)) - 1
	if n >= len(f.responses) {
		n = len(f.responses) - 1
	}
	call := f.responses[n]
	return call.resp, call.err
}

func testClient(backend Backend) *Client {
	cfg := config.Default().API
	cfg.RetryBaseDelay = time.Millisecond
	cfg.RateLimit = 1000
	return NewClientWithBackend(backend, ProviderOpenAI, cfg)
}

func TestGenerate_Success(t *testing.T) {
	backend := &fakeBackend{responses: []fakeCall{
		{resp: &Response{Text: `{"title":"fix: x","body":"## Changes\n\n- x"}`, Model: "gpt-4o-mini", TokensUsed: 42}},
	}}

	resp, err := testClient(backend).Generate(context.Background(), Request{System: "s", User: "u"})
	require.NoError(t, err)
	assert.Equal(t, 42, resp.TokensUsed)
	assert.Equal(t, int32(1), backend.calls.Load())
}

func TestGenerate_RetriesTransientThenSucceeds(t *testing.T) {
	backend := &fakeBackend{responses: []fakeCall{
		{err: &openai.APIError{HTTPStatusCode: http.StatusTooManyRequests, Message: "rate limited"}},
		{err: &openai.APIError{HTTPStatusCode: http.StatusInternalServerError, Message: "oops"}},
		{resp: &Response{Text: "{}", Model: "gpt-4o-mini"}},
	}}

	resp, err := testClient(backend).Generate(context.Background(), Request{User: "u"})
	require.NoError(t, err)
	assert.Equal(t, "{}", resp.Text)
	assert.Equal(t, int32(3), backend.calls.Load())
}

func TestGenerate_ExhaustedRetries(t *testing.T) {
	backend := &fakeBackend{responses: []fakeCall{
		{err: fmt.Errorf("connection reset")},
	}}

	_, err := testClient(backend).Generate(context.Background(), Request{User: "u"})
	require.Error(t, err)
	assert.True(t, errors.IsGenerationUnavailable(err))
	assert.Equal(t, int32(3), backend.calls.Load(), "default max attempts is 3")
}

func TestGenerate_RejectedNotRetried(t *testing.T) {
	backend := &fakeBackend{responses: []fakeCall{
		{err: &openai.APIError{HTTPStatusCode: http.StatusBadRequest, Message: "bad prompt"}},
	}}

	_, err := testClient(backend).Generate(context.Background(), Request{User: "u"})
	require.Error(t, err)
	assert.True(t, errors.IsGenerationRejected(err))
	assert.Equal(t, int32(1), backend.calls.Load(), "client errors must not be retried")
}

func TestGenerate_CanceledContext(t *testing.T) {
	backend := &fakeBackend{responses: []fakeCall{
		{err: fmt.Errorf("connection reset")},
	}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := testClient(backend).Generate(ctx, Request{User: "u"})
	require.Error(t, err)
	assert.True(t, errors.IsGenerationUnavailable(err))
}

func TestRejected_StatusClassification(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		reject bool
	}{
		{"bad request", &openai.APIError{HTTPStatusCode: http.StatusBadRequest}, true},
		{"unauthorized", &openai.APIError{HTTPStatusCode: http.StatusUnauthorized}, true},
		{"rate limited", &openai.APIError{HTTPStatusCode: http.StatusTooManyRequests}, false},
		{"server error", &openai.APIError{HTTPStatusCode: http.StatusInternalServerError}, false},
		{"plain error", fmt.Errorf("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.reject, rejected(tt.err))
		})
	}
}
