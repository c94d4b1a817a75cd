// Package influx ships render telemetry to InfluxDB. Without a reachable
// server, points are spooled as gzipped line protocol for a later import.
package influx

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/arlens/flicker/internal/config"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/influxdata/influxdb-client-go/v2/domain"
	"github.com/rs/zerolog"
)

var (
	// ErrDisabled is returned by Connect when influx.enabled is false.
	ErrDisabled = errors.New("influx disabled")
	// ErrNotConnected is returned by WritePoint before Connect succeeded.
	ErrNotConnected = errors.New("influx: no server and no spool")
)

// RetentionSeconds applies to buckets the manager creates.
const RetentionSeconds = 30 * 24 * 60 * 60

// Manager writes to one bucket, or to the spool file while offline.
type Manager struct {
	cfg       config.InfluxConfig
	log       zerolog.Logger
	spoolPath string

	mu        sync.Mutex
	client    influxdb2.Client
	writer    influxdb2_api.WriteAPI
	spool     *gzip.Writer
	spoolFile *os.File
}

func NewManager(cfg config.InfluxConfig, log zerolog.Logger, spoolPath string) *Manager {
	return &Manager{cfg: cfg, log: log, spoolPath: spoolPath}
}

// Connect pings the server and prepares the org and bucket. A failed ping
// is not an error: the manager switches to the spool file.
func (m *Manager) Connect(ctx context.Context) error {
	if !m.cfg.Enabled {
		return ErrDisabled
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	url := fmt.Sprintf("%s://%s:%s", m.cfg.Protocol, m.cfg.Host, m.cfg.Port)
	m.client = influxdb2.NewClientWithOptions(url, m.cfg.Token,
		influxdb2.DefaultOptions().SetBatchSize(500).SetFlushInterval(1000))

	if up, err := m.client.Ping(ctx); err != nil || !up {
		if err := m.openSpool(); err != nil {
			return err
		}
		m.log.Warn().Err(err).Str("url", url).Str("spool", m.spoolPath).Msg("influx unreachable, spooling points")
		return nil
	}

	if err := m.ensureBucket(ctx); err != nil {
		return err
	}
	m.writer = m.client.WriteAPI(m.cfg.Org, m.cfg.Bucket)
	go m.logWriteErrors(m.writer.Errors())
	m.log.Info().Str("url", url).Str("bucket", m.cfg.Bucket).Msg("influx connected")
	return nil
}

// Online reports whether points go to the server rather than the spool.
func (m *Manager) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writer != nil
}

func (m *Manager) openSpool() error {
	if m.spool != nil {
		return nil
	}
	f, err := os.OpenFile(m.spoolPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("influx: spool: %w", err)
	}
	m.spoolFile, m.spool = f, gzip.NewWriter(f)
	return nil
}

func (m *Manager) ensureBucket(ctx context.Context) error {
	orgs := m.client.OrganizationsAPI()
	org, err := orgs.FindOrganizationByName(ctx, m.cfg.Org)
	if err != nil {
		m.log.Info().Str("org", m.cfg.Org).Msg("creating influx organization")
		if org, err = orgs.CreateOrganizationWithName(ctx, m.cfg.Org); err != nil {
			return fmt.Errorf("influx: create org %s: %w", m.cfg.Org, err)
		}
	}

	buckets := m.client.BucketsAPI()
	if _, err := buckets.FindBucketByName(ctx, m.cfg.Bucket); err == nil {
		return nil
	}
	m.log.Info().Str("bucket", m.cfg.Bucket).Msg("creating influx bucket")
	expire := domain.RetentionRuleTypeExpire
	rule := domain.RetentionRule{Type: &expire, EverySeconds: RetentionSeconds}
	if _, err := buckets.CreateBucketWithName(ctx, org, m.cfg.Bucket, rule); err != nil {
		return fmt.Errorf("influx: create bucket %s: %w", m.cfg.Bucket, err)
	}
	return nil
}

func (m *Manager) logWriteErrors(errs <-chan error) {
	for err := range errs {
		m.log.Error().Err(err).Str("bucket", m.cfg.Bucket).Msg("influx write failed")
	}
}

// WritePoint is non-blocking when online; the client batches and retries.
func (m *Manager) WritePoint(_ context.Context, bucket string, p *influxdb2_write.Point) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case m.writer != nil:
		if bucket != m.cfg.Bucket {
			return fmt.Errorf("influx: bucket %q not configured", bucket)
		}
		m.writer.WritePoint(p)
		return nil
	case m.spool != nil:
		line := influxdb2_write.PointToLineProtocol(p, time.Nanosecond)
		if _, err := m.spool.Write([]byte(line + "\n")); err != nil {
			return fmt.Errorf("influx: spool write: %w", err)
		}
		return nil
	default:
		return ErrNotConnected
	}
}

// Close flushes pending points and closes the client and the spool.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.writer != nil {
		m.writer.Flush()
		m.writer = nil
	}
	if m.client != nil {
		m.client.Close()
		m.client = nil
	}
	var errs []error
	if m.spool != nil {
		errs = append(errs, m.spool.Close())
		m.spool = nil
	}
	if m.spoolFile != nil {
		errs = append(errs, m.spoolFile.Close())
		m.spoolFile = nil
	}
	return errors.Join(errs...)
}
