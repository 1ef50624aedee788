package events

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilPublisherIsSafe(t *testing.T) {
	var p *Publisher
	assert.NotPanics(t, func() {
		p.PublishRefresh(RefreshEvent{Repo: "a/r"})
		p.Close()
	})
}

func TestRefreshEventWireShape(t *testing.T) {
	data, err := json.Marshal(RefreshEvent{
		Repo:           "acme/widget",
		Provider:       "github",
		GeneratedAt:    "2026-08-26T10:00:00Z",
		OK:             true,
		BackoffSeconds: 0,
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"repo": "acme/widget",
		"provider": "github",
		"generatedAt": "2026-08-26T10:00:00Z",
		"ok": true,
		"stale": false,
		"backoffSeconds": 0
	}`, string(data))
}
