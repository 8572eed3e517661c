package audit

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/DataDog/datadog-api-client-go/v2/api/datadog"
	"github.com/DataDog/datadog-api-client-go/v2/api/datadogV2"
	"github.com/rs/zerolog/log"

	"github.com/GoPowerDNS-Admin/adminauth/internal/logger"
)

const (
	datadogSource    = "adminauth"
	datadogBatch     = 50
	datadogBuffer    = 1024
	datadogFlush     = 5 * time.Second
	datadogTimeout   = 10 * time.Second
	datadogSiteUS1   = "datadoghq.com"
	datadogAPIKeyKey = "apiKeyAuth"
)

// ErrNoAPIKey is returned when the Datadog sink is enabled without an API key.
var ErrNoAPIKey = errors.New("datadog api key is empty")

// Datadog ships events to Datadog Logs in batches from a background goroutine.
// Record never blocks, events are dropped when the buffer is full.
type Datadog struct {
	api    *datadogV2.LogsApi
	cfg    logger.DataDog
	host   string
	events chan Event
	flush  time.Duration
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
}

// DatadogOption customises the sink.
type DatadogOption func(*datadog.Configuration, *Datadog)

// WithDatadogHTTPClient replaces the client used to reach the intake.
func WithDatadogHTTPClient(c *http.Client) DatadogOption {
	return func(conf *datadog.Configuration, _ *Datadog) {
		conf.HTTPClient = c
	}
}

// WithFlushInterval sets how long events may wait for a full batch.
func WithFlushInterval(d time.Duration) DatadogOption {
	return func(_ *datadog.Configuration, s *Datadog) {
		s.flush = d
	}
}

// NewDatadog starts the sink. Close flushes pending events.
func NewDatadog(cfg logger.DataDog, host string, opts ...DatadogOption) (*Datadog, error) {
	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}

	if cfg.Site == "" {
		cfg.Site = datadogSiteUS1
	}

	if cfg.ServiceName == "" {
		cfg.ServiceName = datadogSource
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = datadogTimeout
	}

	conf := datadog.NewConfiguration()

	d := &Datadog{
		cfg:    cfg,
		host:   host,
		events: make(chan Event, datadogBuffer),
		flush:  datadogFlush,
	}

	for _, opt := range opts {
		opt(conf, d)
	}

	d.api = datadogV2.NewLogsApi(datadog.NewAPIClient(conf))

	d.wg.Add(1)

	go d.run()

	return d, nil
}

// Record implements Sink.
func (d *Datadog) Record(_ context.Context, e Event) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return
	}

	select {
	case d.events <- e:
	default:
		log.Warn().Str("audit", e.Name).Msg("datadog audit buffer full, event dropped")
	}
}

// Close stops the background goroutine after sending what is buffered.
func (d *Datadog) Close() error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.events)
	}
	d.mu.Unlock()

	d.wg.Wait()

	return nil
}

func (d *Datadog) run() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.flush)
	defer ticker.Stop()

	batch := make([]datadogV2.HTTPLogItem, 0, datadogBatch)

	for {
		select {
		case e, ok := <-d.events:
			if !ok {
				d.send(batch)

				return
			}

			batch = append(batch, d.item(e))
			if len(batch) >= datadogBatch {
				d.send(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			d.send(batch)
			batch = batch[:0]
		}
	}
}

func (d *Datadog) item(e Event) datadogV2.HTTPLogItem {
	msg, err := json.Marshal(e)
	if err != nil {
		msg = []byte(e.Name)
	}

	status := "info"
	if e.Failure {
		status = "warn"
	}

	item := datadogV2.HTTPLogItem{
		Ddsource: datadog.PtrString(datadogSource),
		Ddtags:   datadog.PtrString("event:" + e.Name + ",status:" + status),
		Message:  string(msg),
		Service:  datadog.PtrString(d.cfg.ServiceName),
	}

	if d.host != "" {
		item.Hostname = datadog.PtrString(d.host)
	}

	return item
}

func (d *Datadog) send(batch []datadogV2.HTTPLogItem) {
	if len(batch) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(d.context(), d.cfg.Timeout)
	defer cancel()

	_, resp, err := d.api.SubmitLog(ctx, batch)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	if err != nil {
		log.Error().Err(err).Int("events", len(batch)).Msg("failed to ship audit events to datadog")
	}
}

func (d *Datadog) context() context.Context {
	ctx := context.WithValue(context.Background(), datadog.ContextAPIKeys, map[string]datadog.APIKey{
		datadogAPIKeyKey: {Key: d.cfg.APIKey},
	})

	return context.WithValue(ctx, datadog.ContextServerVariables, map[string]string{"site": d.cfg.Site})
}
