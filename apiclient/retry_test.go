package apiclient_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/jrsteele09/go-auth-client/apiclient"
	"github.com/stretchr/testify/require"
)

func TestRetry(t *testing.T) {
	ctx := context.Background()
	opts := apiclient.RetryOptions{MaxTries: 3, InitialInterval: time.Millisecond}

	t.Run("retries server errors until success", func(t *testing.T) {
		calls := 0
		v, err := apiclient.Retry(ctx, func(context.Context) (string, error) {
			calls++
			if calls < 3 {
				return "", &apiclient.Error{Kind: apiclient.KindServer, Status: http.StatusBadGateway}
			}
			return "done", nil
		}, opts)
		require.NoError(t, err)
		require.Equal(t, "done", v)
		require.Equal(t, 3, calls)
	})

	t.Run("never retries client errors", func(t *testing.T) {
		calls := 0
		_, err := apiclient.Retry(ctx, func(context.Context) (int, error) {
			calls++
			return 0, &apiclient.Error{Kind: apiclient.KindValidation, Status: http.StatusBadRequest}
		}, opts)
		require.Equal(t, 1, calls)
		require.Equal(t, apiclient.KindValidation, apiclient.KindOf(err))
	})

	t.Run("bounded attempts", func(t *testing.T) {
		calls := 0
		netErr := &apiclient.Error{Kind: apiclient.KindNetwork, Err: errors.New("refused")}
		_, err := apiclient.Retry(ctx, func(context.Context) (int, error) {
			calls++
			return 0, netErr
		}, opts)
		require.Equal(t, 3, calls)
		require.ErrorIs(t, err, netErr)
	})
}
