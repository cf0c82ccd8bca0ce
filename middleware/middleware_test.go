package middleware

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Legionxoxo/ffmpeg-video/pipeline"
	"github.com/Legionxoxo/ffmpeg-video/transcode"
	"github.com/Legionxoxo/ffmpeg-video/video"
	"github.com/go-kit/log"
	"github.com/go-logfmt/logfmt"
	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/require"
)

func okHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	_, _ = w.Write([]byte("OK"))
}

func TestNoAuthHeader(t *testing.T) {
	require := require.New(t)

	req := httptest.NewRequest("GET", "/api/hls/convert", nil)
	rr := httptest.NewRecorder()
	IsAuthorized("IAmAuthorized", okHandler)(rr, req, nil)

	require.Equal(401, rr.Code, "should return 401")
	require.Contains(rr.Body.String(), `"error":"No authorization header"`)
}

func TestWrongKey(t *testing.T) {
	require := require.New(t)

	req := httptest.NewRequest("GET", "/api/hls/convert", nil)
	req.Header.Set("Authorization", "Bearer gibberish")
	rr := httptest.NewRecorder()
	IsAuthorized("IAmAuthorized", okHandler)(rr, req, nil)

	require.Equal(401, rr.Code, "should return 401")
	require.Contains(rr.Body.String(), `"error":"Invalid Token"`)
}

func TestCorrectKey(t *testing.T) {
	req := httptest.NewRequest("GET", "/api/hls/convert", nil)
	req.Header.Set("Authorization", "Bearer IAmAuthorized")
	rr := httptest.NewRecorder()
	IsAuthorized("IAmAuthorized", okHandler)(rr, req, nil)

	require.Equal(t, 200, rr.Code)
	require.Equal(t, "OK", rr.Body.String())
}

func TestNoTokenConfigured(t *testing.T) {
	rr := httptest.NewRecorder()
	IsAuthorized("", okHandler)(rr, httptest.NewRequest("GET", "/", nil), nil)
	require.Equal(t, 200, rr.Code)
}

func TestLogRequest(t *testing.T) {
	var buf bytes.Buffer
	logger := log.NewLogfmtLogger(&buf)

	req := httptest.NewRequest("POST", "/api/hls/convert?x=1", nil)
	req.Header.Set("X-Request-ID", "req-1")
	rr := httptest.NewRecorder()
	LogRequest(logger)(func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		w.WriteHeader(http.StatusTeapot)
	})(rr, req, nil)

	require.Equal(t, http.StatusTeapot, rr.Code)
	fields := decodeLogfmt(t, buf.String())
	require.Equal(t, "req-1", fields["request_id"])
	require.Equal(t, "POST", fields["method"])
	require.Equal(t, "/api/hls/convert?x=1", fields["uri"])
	require.Equal(t, "418", fields["status"])
}

func TestLogRequestRecoversPanics(t *testing.T) {
	var buf bytes.Buffer
	logger := log.NewLogfmtLogger(&buf)

	rr := httptest.NewRecorder()
	LogRequest(logger)(func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		panic("boom")
	})(rr, httptest.NewRequest("GET", "/", nil), nil)

	require.Equal(t, http.StatusInternalServerError, rr.Code)
	require.Equal(t, "boom", decodeLogfmt(t, buf.String())["err"])
}

func decodeLogfmt(t *testing.T, line string) map[string]string {
	fields := map[string]string{}
	d := logfmt.NewDecoder(strings.NewReader(line))
	for d.ScanRecord() {
		for d.ScanKeyval() {
			fields[string(d.Key())] = string(d.Value())
		}
	}
	require.NoError(t, d.Err())
	return fields
}

type stubProber struct{}

func (stubProber) Probe(ctx context.Context, inputPath string) (video.SourceMetadata, error) {
	return video.SourceMetadata{Width: 854, Height: 480, Duration: 5, SizeBytes: 10}, nil
}

type blockingEncoder struct {
	release chan struct{}
}

func (e blockingEncoder) Encode(ctx context.Context, inputPath, outputDir string, spec video.RenditionSpec, meta video.SourceMetadata) (transcode.RenditionResult, error) {
	select {
	case <-e.release:
	case <-ctx.Done():
		return transcode.RenditionResult{}, ctx.Err()
	}
	return transcode.RenditionResult{Name: spec.Name}, nil
}

func TestItCallsNextMiddlewareWhenCapacityAvailable(t *testing.T) {
	// Create a next handler in the middleware chain, to confirm the request was passed onwards
	var nextCalled bool
	next := func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		nextCalled = true
	}

	coordinator, err := pipeline.NewCoordinator(stubProber{}, blockingEncoder{}, nil, pipeline.DefaultOptions())
	require.NoError(t, err)
	c := CapacityMiddleware{}
	handler := c.HasCapacity(coordinator, next)

	responseRecorder := httptest.NewRecorder()
	handler(responseRecorder, nil, nil)

	require.Equal(t, http.StatusOK, responseRecorder.Code)
	require.True(t, nextCalled)
}

func TestItErrorsWhenNoCapacityAvailable(t *testing.T) {
	var nextCalled bool
	next := func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		nextCalled = true
	}

	opts := pipeline.DefaultOptions()
	opts.MaxInflightJobs = 1
	opts.DeleteSource = false
	release := make(chan struct{})
	coordinator, err := pipeline.NewCoordinator(stubProber{}, blockingEncoder{release: release}, nil, opts)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := coordinator.Convert(context.Background(), pipeline.ConvertRequest{
			InputPath: "/uploads/a.mp4",
			OutputDir: t.TempDir(),
			JobID:     "running",
		})
		done <- err
	}()
	require.Eventually(t, func() bool {
		return coordinator.Jobs.Len() == 1
	}, 5*time.Second, 10*time.Millisecond)

	c := CapacityMiddleware{}
	handler := c.HasCapacity(coordinator, next)

	responseRecorder := httptest.NewRecorder()
	handler(responseRecorder, nil, nil)

	// Confirm we got an HTTP 429 response and the handler didn't call the next middleware
	require.Equal(t, http.StatusTooManyRequests, responseRecorder.Code)
	require.False(t, nextCalled)

	close(release)
	require.NoError(t, <-done)
}
