package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/sanosuguru/go-cinema-booking/internal/api/middleware"
	"github.com/sanosuguru/go-cinema-booking/internal/api/router"
	"github.com/sanosuguru/go-cinema-booking/internal/application"
	"github.com/sanosuguru/go-cinema-booking/internal/config"
	"github.com/sanosuguru/go-cinema-booking/internal/domain/inventory"
	"github.com/sanosuguru/go-cinema-booking/internal/domain/seat"
	"github.com/sanosuguru/go-cinema-booking/internal/infrastructure/file"
	"github.com/sanosuguru/go-cinema-booking/internal/infrastructure/memory"
	redisinfra "github.com/sanosuguru/go-cinema-booking/internal/infrastructure/redis"
	"github.com/sanosuguru/go-cinema-booking/internal/pkg/metrics"
)

// TestServer はE2Eテスト用のサーバー
type TestServer struct {
	Echo        *echo.Echo
	Service     *application.BookingService
	HistoryPath string
}

// NewTestServer はメモリ在庫とファイル履歴でテスト用サーバーを作成する
func NewTestServer(t *testing.T) *TestServer {
	t.Helper()
	return newTestServer(t, memory.NewShowInventory(seat.DefaultLayout()))
}

// NewRedisTestServer はRedis在庫でテスト用サーバーを作成する
// Redis未起動時はスキップする
func NewRedisTestServer(t *testing.T) *TestServer {
	t.Helper()
	cfg := config.Load()
	cfg.Redis.DB = 15

	client, err := redisinfra.Connect(context.Background(), &cfg.Redis)
	if err != nil {
		t.Skipf("Redis接続エラー: %v", err)
	}
	t.Cleanup(func() {
		client.FlushDB(context.Background())
		_ = client.Close()
	})
	client.FlushDB(context.Background())

	inv := redisinfra.NewShowInventory(client, redisinfra.NewLockManager(client, nil), seat.DefaultLayout(), redisinfra.DefaultInventoryOptions())
	return newTestServer(t, inv)
}

func newTestServer(t *testing.T, inv inventory.Inventory) *TestServer {
	t.Helper()
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg)

	historyPath := filepath.Join(t.TempDir(), "users.json")
	svc := application.NewBookingService(inv,
		application.WithHistory(file.NewHistoryStore(historyPath)),
		application.WithMetrics(m),
	)

	e := router.New(svc, router.Options{
		Metrics:     m,
		Gatherer:    reg,
		MetricsAuth: middleware.MetricsConfig{},
	})
	return &TestServer{Echo: e, Service: svc, HistoryPath: historyPath}
}

// Do はリクエストを送信してレスポンスを返す
func (s *TestServer) Do(t *testing.T, method, path, username string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if username != "" {
		req.Header.Set(middleware.HeaderUserID, username)
	}
	rec := httptest.NewRecorder()
	s.Echo.ServeHTTP(rec, req)
	return rec
}

// DecodeJSON はレスポンスボディをデコードする
func DecodeJSON[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

// bookingBody は予約APIのリクエストボディ
type bookingBody struct {
	MovieName  string   `json:"movie_name"`
	CinemaName string   `json:"cinema_name"`
	Date       string   `json:"date"`
	TimeRange  string   `json:"time_range"`
	Seats      []string `json:"seats"`
}

func stargate(seats ...string) bookingBody {
	return bookingBody{
		MovieName:  "Stargate",
		CinemaName: "Downtown",
		Date:       "2024-02-20",
		TimeRange:  "21:30 - 23:00",
		Seats:      seats,
	}
}

const stargateQuery = "movie_name=Stargate&cinema_name=Downtown&date=2024-02-20&start_time=21:30&end_time=23:00"
