package docker

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mlforge/pkg/logx"
)

// fakeLister stands in for the Docker API's container listing.
type fakeLister struct {
	containers []types.Container
	err        error
	calls      []types.ContainerListOptions
}

func (f *fakeLister) ContainerList(_ context.Context, options types.ContainerListOptions) ([]types.Container, error) {
	f.calls = append(f.calls, options)
	if f.err != nil {
		return nil, f.err
	}
	return f.containers, nil
}

func newTestClient(lister containerLister) *Client {
	return &Client{
		lister:    lister,
		logger:    logx.NewLogger("sandbox"),
		lastUsed:  make(map[string]time.Time),
		container: make(map[string]string),
	}
}

func TestLookupRediscoversContainerByLabel(t *testing.T) {
	lister := &fakeLister{containers: []types.Container{{ID: "cont-42"}}}
	c := newTestClient(lister)

	// Fresh map, as after a process restart. The container is still up.
	id, err := c.lookup(context.Background(), "sbx-1")
	require.NoError(t, err)
	assert.Equal(t, "cont-42", id)

	require.Len(t, lister.calls, 1)
	labels := lister.calls[0].Filters.Get("label")
	assert.Contains(t, labels, LabelManager+"="+LabelManagerValue)
	assert.Contains(t, labels, LabelSandboxID+"=sbx-1")
}

func TestLookupCachesRediscoveredContainer(t *testing.T) {
	lister := &fakeLister{containers: []types.Container{{ID: "cont-42"}}}
	c := newTestClient(lister)

	_, err := c.lookup(context.Background(), "sbx-1")
	require.NoError(t, err)

	// The second lookup resolves from the map without hitting the API.
	lister.err = fmt.Errorf("docker daemon unavailable")
	id, err := c.lookup(context.Background(), "sbx-1")
	require.NoError(t, err)
	assert.Equal(t, "cont-42", id)
	assert.Len(t, lister.calls, 1)
}

func TestLookupUnknownSandbox(t *testing.T) {
	c := newTestClient(&fakeLister{})

	_, err := c.lookup(context.Background(), "sbx-gone")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown sandbox sbx-gone")
}

func TestLookupListError(t *testing.T) {
	c := newTestClient(&fakeLister{err: fmt.Errorf("connection refused")})

	_, err := c.lookup(context.Background(), "sbx-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listing containers")
}
