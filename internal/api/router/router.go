package router

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sanosuguru/go-cinema-booking/internal/api"
	"github.com/sanosuguru/go-cinema-booking/internal/api/handler"
	"github.com/sanosuguru/go-cinema-booking/internal/api/middleware"
	"github.com/sanosuguru/go-cinema-booking/internal/pkg/metrics"
)

// Options はルーター作成時の設定
type Options struct {
	Metrics     *metrics.Metrics
	Gatherer    prometheus.Gatherer
	MetricsAuth middleware.MetricsConfig
}

// New はミドルウェアとルートを設定したEchoインスタンスを作成する
func New(svc handler.BookingServiceInterface, opts Options) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = api.CustomHTTPErrorHandler
	e.Validator = api.NewValidator()

	middleware.SetupMiddleware(e)
	e.Use(middleware.PrometheusMiddleware(opts.Metrics))

	handler.RegisterRoutes(e, svc)

	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	e.GET("/metrics",
		echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})),
		middleware.MetricsBasicAuth(opts.MetricsAuth),
	)

	return e
}
