package resilience

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mlforge/pkg/llm"
	"mlforge/pkg/llm/llmerrors"
)

type scriptedClient struct {
	responses []func() (llm.CompletionResponse, error)
	calls     int
}

func (s *scriptedClient) Complete(_ context.Context, _ llm.CompletionRequest) (llm.CompletionResponse, error) {
	idx := s.calls
	if idx >= len(s.responses) {
		idx = len(s.responses) - 1
	}
	s.calls++
	return s.responses[idx]()
}

func (s *scriptedClient) GetModelName() string { return "test-model" }

func ok(content string) func() (llm.CompletionResponse, error) {
	return func() (llm.CompletionResponse, error) {
		return llm.CompletionResponse{Content: content}, nil
	}
}

func fail(err error) func() (llm.CompletionResponse, error) {
	return func() (llm.CompletionResponse, error) {
		return llm.CompletionResponse{}, err
	}
}

func TestRetriesTransientThenSucceeds(t *testing.T) {
	base := &scriptedClient{responses: []func() (llm.CompletionResponse, error){
		fail(llmerrors.New(llmerrors.ErrorTypeTransient, "503")),
		fail(llmerrors.New(llmerrors.ErrorTypeTransient, "503")),
		ok("done"),
	}}
	client := NewRetryableClient(base)

	resp, err := client.Complete(context.Background(), llm.CompletionRequest{})
	require.NoError(t, err)
	assert.Equal(t, "done", resp.Content)
	assert.Equal(t, 3, base.calls)
}

func TestAuthErrorNotRetried(t *testing.T) {
	authErr := llmerrors.New(llmerrors.ErrorTypeAuth, "invalid key (401)")
	base := &scriptedClient{responses: []func() (llm.CompletionResponse, error){fail(authErr)}}
	client := NewRetryableClient(base)

	_, err := client.Complete(context.Background(), llm.CompletionRequest{})
	require.Error(t, err)
	assert.Equal(t, 1, base.calls)
	assert.True(t, llmerrors.Is(err, llmerrors.ErrorTypeAuth))
}

func TestRateLimitNotRetried(t *testing.T) {
	rlErr := llmerrors.New(llmerrors.ErrorTypeRateLimit, "429 too many requests")
	base := &scriptedClient{responses: []func() (llm.CompletionResponse, error){fail(rlErr)}}
	client := NewRetryableClient(base)

	_, err := client.Complete(context.Background(), llm.CompletionRequest{})
	require.Error(t, err)
	assert.Equal(t, 1, base.calls)
	assert.True(t, llmerrors.Is(err, llmerrors.ErrorTypeRateLimit))
	assert.Contains(t, err.Error(), "429")
}

func TestGivesUpAfterMaxRetries(t *testing.T) {
	base := &scriptedClient{responses: []func() (llm.CompletionResponse, error){
		fail(llmerrors.New(llmerrors.ErrorTypeUnknown, "weird")),
	}}
	client := NewRetryableClient(base)

	_, err := client.Complete(context.Background(), llm.CompletionRequest{})
	require.Error(t, err)
	// unknown errors allow one retry
	assert.Equal(t, 2, base.calls)
}
