package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCodeNewAndWrap(t *testing.T) {
	err := RATE_LIMITED.New("too many requests from %s", "1.2.3.4")
	require.Equal(t, uint16(2), err.Code())
	require.Equal(t, "RATE_LIMITED", err.CodeName())
	require.Equal(t, http.StatusTooManyRequests, err.HTTPStatus())
	require.Contains(t, err.Error(), "RATE_LIMITED (2)")
	require.Contains(t, err.Error(), "1.2.3.4")

	cause := fmt.Errorf("connection refused")
	wrapped := RELAY_FAILURE.Wrap(cause)
	require.Contains(t, wrapped.Error(), "connection refused")
	require.Equal(t, http.StatusBadGateway, wrapped.HTTPStatus())
}

func TestMetadata(t *testing.T) {
	err := RATE_LIMITED.New("quota exhausted").WithMetadata(RateLimitMetadata{
		By:     "client",
		Client: "10.0.0.1",
	})

	md := err.Metadata()
	require.Equal(t, "client", md["by"])
	require.Equal(t, "10.0.0.1", md["client"])
	_, ok := md["addr"]
	require.False(t, ok)
}

func TestGenericMetadata(t *testing.T) {
	err := INTERNAL_ERROR.New("boom").WithMetadata(map[string]any{
		"component": "db",
		"attempt":   2,
	})

	md := err.Metadata()
	require.Equal(t, "db", md["component"])
	require.Equal(t, "2", md["attempt"])
}
