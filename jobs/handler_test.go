package jobs

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestEnqueueFailureMarksBatchFailed(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	status := NewStatusStore(rdb)

	// Broker deliberately unreachable so the enqueue itself fails.
	client, err := NewClient(asynq.RedisClientOpt{Addr: "127.0.0.1:1", DialTimeout: 100 * time.Millisecond})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	h := NewHandler(slog.Default(), client, status)
	router := chi.NewRouter()
	router.Route("/imports", h.MountRoutes)

	body := "productName,productColor,productSize,quantitySold\nShirt,Blue,M,5\n"
	req := httptest.NewRequest(http.MethodPost, "/imports/sales/queue", strings.NewReader(body))
	req.Header.Set("Content-Type", "text/csv")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadGateway, rec.Code)

	keys := mr.Keys()
	require.Len(t, keys, 1)
	id := strings.TrimPrefix(keys[0], "imports:batch:")

	batch, err := status.Get(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, BatchFailed, batch.Status)
	require.NotEmpty(t, batch.Error)
	require.NotNil(t, batch.FinishedAt)
}
