package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Legionxoxo/ffmpeg-video/config"
	"github.com/Legionxoxo/ffmpeg-video/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ListenAndServe exposes /metrics on promPort until ctx is done
func ListenAndServe(ctx context.Context, promPort int) error {
	listen := fmt.Sprintf("0.0.0.0:%d", promPort)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := http.Server{Addr: listen, Handler: mux}

	log.LogNoRequestID(
		"Starting Prometheus metrics",
		"version", config.Version,
		"host", listen,
	)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	err := server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}
