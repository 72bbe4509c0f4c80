// Package crawlerservice exposes a running scrape over HTTP: liveness,
// run progress and Prometheus metrics.
package crawlerservice

import (
	"context"
	"errors"
	"net/http"

	"news-scraper/internal/crawler"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

type Server struct {
	addr     string
	echo     *echo.Echo
	progress *crawler.Progress
	log      logrus.FieldLogger
}

func NewServer(addr string, gatherer prometheus.Gatherer, progress *crawler.Progress, log logrus.FieldLogger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{addr: addr, echo: e, progress: progress, log: log}
	e.GET("/healthz", s.health)
	e.GET("/status", s.status)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	return s
}

func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.log.WithField("addr", s.addr).Info("Status server listening")
	if err := s.echo.Start(s.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) status(c echo.Context) error {
	return c.JSON(http.StatusOK, s.progress.Snapshot())
}
