package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/Legionxoxo/ffmpeg-video/events"
	"github.com/Legionxoxo/ffmpeg-video/log"
	"github.com/Legionxoxo/ffmpeg-video/metrics"
	"github.com/hashicorp/go-retryablehttp"
)

// Events buffered before the sender starts dropping them
const callbackQueueSize = 256

// CallbackClient POSTs job events to a status endpoint. Notify never blocks the pipeline:
// messages are queued and delivered in order by Run.
type CallbackClient struct {
	callbackURL string
	httpClient  *http.Client
	queue       chan StatusMessage
}

func NewCallbackClient(callbackURL string) *CallbackClient {
	client := retryablehttp.NewClient()
	client.RetryMax = 2                          // Retry a maximum of this+1 times
	client.RetryWaitMin = 200 * time.Millisecond // Wait at least this long between retries
	client.RetryWaitMax = 1 * time.Second        // Wait at most this long between retries (exponential backoff)
	client.HTTPClient = &http.Client{
		Timeout: 5 * time.Second, // Give up on requests that take more than this long
	}
	client.CheckRetry = metrics.HttpRetryHook
	client.Logger = log.NewRetryableHTTPLogger("status-callback")

	return &CallbackClient{
		callbackURL: callbackURL,
		httpClient:  client.StandardClient(),
		queue:       make(chan StatusMessage, callbackQueueSize),
	}
}

func (c *CallbackClient) Notify(e events.Event) {
	select {
	case c.queue <- NewStatusMessage(e):
	default:
		log.Log(e.JobID, "dropping status callback, queue full", "stage", e.Stage, "event", e.Type)
	}
}

// Run delivers queued messages until ctx is done, then flushes what is left. In-flight
// sends are bounded by the HTTP client timeout rather than ctx so shutdown doesn't cut
// off a job's final status.
func (c *CallbackClient) Run(ctx context.Context) error {
	for {
		select {
		case msg := <-c.queue:
			c.send(context.Background(), msg)
		case <-ctx.Done():
			c.flush()
			return nil
		}
	}
}

func (c *CallbackClient) flush() {
	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		select {
		case msg := <-c.queue:
			if flushCtx.Err() != nil {
				return
			}
			c.send(flushCtx, msg)
		default:
			return
		}
	}
}

func (c *CallbackClient) send(ctx context.Context, msg StatusMessage) {
	if err := c.DoWithRetries(ctx, msg); err != nil {
		log.LogError(msg.JobID, "failed to send status callback", err, "status", msg.Status, "stage", msg.Stage)
	}
}

func (c *CallbackClient) DoWithRetries(ctx context.Context, msg StatusMessage) error {
	j, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	r, err := http.NewRequestWithContext(ctx, http.MethodPost, c.callbackURL, bytes.NewReader(j))
	if err != nil {
		return err
	}
	r.Header.Set("Content-Type", "application/json")

	resp, err := metrics.MonitorRequest(metrics.Metrics.StatusCallback, c.httpClient, r)
	if err != nil {
		return fmt.Errorf("failed to send callback to %q. Error: %s", log.RedactURL(c.callbackURL), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("failed to send callback to %q. HTTP Code: %d", log.RedactURL(c.callbackURL), resp.StatusCode)
	}

	return nil
}
