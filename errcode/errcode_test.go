package errcode

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorRendering(t *testing.T) {
	err := New(APIError, "github replied %d", 502)
	assert.Equal(t, "E_SENTINEL_API_ERROR: github replied 502", err.Error())
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Wrap(ConfigRead, cause)
	require.NotNil(t, err)
	assert.Equal(t, ConfigRead, err.Code)
	assert.True(t, errors.Is(err, cause))
}

func TestCodeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"coded error", New(ConfigInvalid, "bad weights"), ConfigInvalid},
		{"wrapped coded error", fmt.Errorf("load: %w", New(AuthMissing, "no token")), AuthMissing},
		{"plain error with code prefix", errors.New("E_SENTINEL_GIT: not a repository"), Git},
		{"plain error without code", errors.New("something broke"), DashboardUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CodeOf(tt.err))
		})
	}
}

func TestMessageOf(t *testing.T) {
	assert.Equal(t, "no token", MessageOf(New(AuthMissing, "no token")))
	assert.Equal(t, "not a repository", MessageOf(errors.New("E_SENTINEL_GIT: not a repository")))
	assert.Equal(t, "plain", MessageOf(errors.New("plain")))
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"api error", New(APIError, "boom"), true},
		{"auth missing", New(AuthMissing, "no token"), true},
		{"scope required", New(NotificationsScopeRequired, "scope"), true},
		{"dashboard auth", New(DashboardAuthRequired, "auth"), true},
		{"provider unsupported", New(ProviderUnsupported, "nope"), false},
		{"rate limit marker", errors.New("request failed status=429"), true},
		{"timeout marker", errors.New("request Timed Out after 30s"), true},
		{"config invalid", New(ConfigInvalid, "bad"), false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestDetails(t *testing.T) {
	err := New(APIError, "throttled").WithDetails(map[string]any{"retryAfterSeconds": 30})
	wrapped := fmt.Errorf("refresh: %w", err)
	details := DetailsOf(wrapped)
	require.NotNil(t, details)
	assert.Equal(t, 30, details["retryAfterSeconds"])
}
