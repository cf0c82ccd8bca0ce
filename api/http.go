package api

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/Legionxoxo/ffmpeg-video/config"
	"github.com/Legionxoxo/ffmpeg-video/handlers"
	"github.com/Legionxoxo/ffmpeg-video/log"
	"github.com/Legionxoxo/ffmpeg-video/middleware"
	"github.com/Legionxoxo/ffmpeg-video/pipeline"
	kitlog "github.com/go-kit/log"
	"github.com/julienschmidt/httprouter"
)

// shutdownTimeout bounds how long in-flight conversions get once the server is told to stop.
// Their request contexts are cancelled when it runs out, which kills the encoders.
const shutdownTimeout = 30 * time.Second

func ListenAndServe(ctx context.Context, cli config.Cli, coordinator *pipeline.Coordinator) error {
	router := NewHLSAPIRouter(cli, coordinator)
	return serve(ctx, cli.HTTPAddress, router, "Starting HLS conversion API!")
}

func serve(ctx context.Context, addr string, handler http.Handler, message string) error {
	server := http.Server{Addr: addr, Handler: handler}

	log.LogNoRequestID(
		message,
		"version", config.Version,
		"host", addr,
	)

	errs := make(chan error, 1)
	go func() {
		errs <- server.ListenAndServe()
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(ctx)
}

func NewHLSAPIRouter(cli config.Cli, coordinator *pipeline.Coordinator) *httprouter.Router {
	router := httprouter.New()
	withLogging := middleware.LogRequest(kitlog.With(kitlog.NewLogfmtLogger(kitlog.NewSyncWriter(os.Stderr)), "ts", kitlog.DefaultTimestampUTC))
	withAuth := middleware.IsAuthorized
	capacity := &middleware.CapacityMiddleware{}

	hlsApiHandlers := &handlers.HLSHandlersCollection{
		Coordinator: coordinator,
		UploadDir:   cli.UploadDir,
		OutputRoot:  cli.OutputRoot,
	}

	// Simple endpoints for healthchecks
	router.GET("/ok", withLogging(hlsApiHandlers.Ok()))
	router.GET("/healthcheck", withLogging(hlsApiHandlers.Healthcheck()))

	router.POST("/api/hls/convert",
		withLogging(
			withAuth(
				cli.APIToken,
				capacity.HasCapacity(
					coordinator,
					hlsApiHandlers.Convert(),
				),
			),
		),
	)

	return router
}
