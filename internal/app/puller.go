package app

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/samvad-hq/dataddo-puller/internal/config"
	"github.com/samvad-hq/dataddo-puller/internal/logger"
	"github.com/samvad-hq/dataddo-puller/internal/metrics"
	"github.com/samvad-hq/dataddo-puller/internal/storage"
	"github.com/samvad-hq/dataddo-puller/pkg/dataddo"
	"github.com/samvad-hq/dataddo-puller/pkg/httpclient"
	"github.com/samvad-hq/dataddo-puller/pkg/publishers"
	"github.com/samvad-hq/dataddo-puller/pkg/queries"
)

// DataFetcher is the data call the puller depends on; *dataddo.Client implements it.
type DataFetcher interface {
	GetSourceData(ctx context.Context, token dataddo.Token, id dataddo.ObjectID, opts ...dataddo.RequestOption) (*dataddo.DataResponse, error)
}

// EventPublisher fans table events out to the configured sinks.
type EventPublisher interface {
	Publish(ctx context.Context, evt publishers.Event) (int, error)
	Size() int
	Close() error
}

// Puller runs every enabled saved query on a schedule, keeps the last table of
// each in storage and publishes tables whose content changed.
type Puller struct {
	cfg     *config.Config
	token   dataddo.Token
	queries []queries.Query
	fetcher DataFetcher
	store   storage.Store
	fanout  EventPublisher
	metrics *metrics.Collector
	log     logger.Logger
	now     func() time.Time
}

// NewPuller builds a puller runtime from config files.
func NewPuller(ctx context.Context, cfg *config.Config, log logger.Logger) (*Puller, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if log == nil {
		log = &logger.NopLogger{}
	}

	token, err := dataddo.NewToken(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("dataddo_token: %w", err)
	}

	queryReg, err := queries.LoadRegistry(cfg.QueriesFile)
	if err != nil {
		return nil, fmt.Errorf("load queries registry: %w", err)
	}
	enabled := queryReg.Enabled()
	queryIDs := make([]string, 0, len(enabled))
	for _, q := range enabled {
		queryIDs = append(queryIDs, q.ID)
	}
	log.InfoObj("queries registry loaded", "queries_meta", map[string]any{
		"count":   len(queryIDs),
		"ids":     queryIDs,
		"skipped": len(queryReg.All()) - len(enabled),
	})

	fanout, err := buildFanout(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	store, err := storage.NewStore(cfg.StorageType, cfg.BBoltPath, storage.Options{
		SnapshotTTL:     cfg.StorageTTL,
		CleanupInterval: cfg.StorageCleanupInterval,
	})
	if err != nil {
		return nil, errors.Join(fmt.Errorf("init storage: %w", err), fanout.Close())
	}
	log.InfoObj("storage initialized", "storage_config", map[string]any{
		"type":                     cfg.StorageType,
		"path":                     cfg.BBoltPath,
		"snapshot_ttl_seconds":     int(cfg.StorageTTL.Seconds()),
		"cleanup_interval_seconds": int(cfg.StorageCleanupInterval.Seconds()),
	})

	client := dataddo.NewClient(
		dataddo.WithBaseURL(cfg.BaseURL),
		dataddo.WithHTTPClient(httpclient.NewRestyClient(cfg.HTTPTimeout, httpclient.WithUserAgent(dataddo.UserAgent))),
		dataddo.WithLogger(log),
	)

	return newPuller(cfg, token, enabled, client, store, fanout, metrics.New(), log), nil
}

func newPuller(cfg *config.Config, token dataddo.Token, qs []queries.Query, fetcher DataFetcher,
	store storage.Store, fanout EventPublisher, m *metrics.Collector, log logger.Logger) *Puller {
	if log == nil {
		log = &logger.NopLogger{}
	}
	return &Puller{
		cfg:     cfg,
		token:   token,
		queries: qs,
		fetcher: fetcher,
		store:   store,
		fanout:  fanout,
		metrics: m,
		log:     log,
		now:     time.Now,
	}
}

// buildFanout loads the publishers file. A missing file means no publishers.
func buildFanout(ctx context.Context, cfg *config.Config, log logger.Logger) (*publishers.Fanout, error) {
	if cfg.PublishersFile == "" {
		log.WarnObj("no publishers file configured; tables are stored only", "publishers_file", "")
		return publishers.NewFanout(nil), nil
	}

	publisherReg, err := publishers.LoadRegistry(cfg.PublishersFile)
	if errors.Is(err, fs.ErrNotExist) {
		log.WarnObj("publishers file not found; tables are stored only", "publishers_file", cfg.PublishersFile)
		return publishers.NewFanout(nil), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load publishers registry: %w", err)
	}

	enabled := publisherReg.Enabled()
	pubClients, err := publishers.BuildAll(ctx, publishers.DefaultRegistry(), enabled, log)
	if err != nil {
		return nil, fmt.Errorf("build publishers: %w", err)
	}

	summaries := make([]map[string]string, 0, len(enabled))
	for _, pubCfg := range enabled {
		summaries = append(summaries, map[string]string{"id": pubCfg.ID, "type": pubCfg.Type})
	}
	log.InfoObj("publishers registry loaded", "publishers_meta", map[string]any{
		"count":      len(summaries),
		"publishers": summaries,
	})
	return publishers.NewFanout(pubClients), nil
}

// Run pulls once immediately, then on every tick or cron firing until ctx is cancelled.
func (p *Puller) Run(ctx context.Context) error {
	if p == nil || p.fetcher == nil {
		return fmt.Errorf("puller is not initialized")
	}
	defer p.close()

	var schedule cron.Schedule
	if p.cfg.PullCron != "" {
		sched, err := cron.ParseStandard(p.cfg.PullCron)
		if err != nil {
			return fmt.Errorf("invalid pull_cron %q: %w", p.cfg.PullCron, err)
		}
		schedule = sched
	}

	if p.cfg.MetricsAddr != "" && p.metrics != nil {
		go func() {
			if err := p.metrics.Serve(ctx, p.cfg.MetricsAddr); err != nil {
				p.log.ErrorObj("metrics listener failed", "error", err.Error())
			}
		}()
	}

	if len(p.queries) == 0 {
		p.log.WarnObj("no enabled queries; puller idle", "queries_file", p.cfg.QueriesFile)
		<-ctx.Done()
		return nil
	}

	p.log.InfoObj("puller loop starting", "puller_state", map[string]any{
		"queries_count":    len(p.queries),
		"publishers_count": p.fanout.Size(),
		"pull_interval":    p.cfg.PullInterval.String(),
		"pull_cron":        p.cfg.PullCron,
	})

	if err := p.RunOnce(ctx); err != nil {
		p.log.ErrorObj("initial pull failed", "error", err.Error())
	}

	if schedule != nil {
		p.runCron(ctx, schedule)
		return nil
	}

	ticker := time.NewTicker(p.cfg.PullInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.log.InfoObj("puller loop exiting", "reason", ctx.Err().Error())
			return nil
		case <-ticker.C:
			if err := p.RunOnce(ctx); err != nil {
				p.log.ErrorObj("scheduled pull failed", "error", err.Error())
			}
		}
	}
}

func (p *Puller) runCron(ctx context.Context, schedule cron.Schedule) {
	c := cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DiscardLogger),
		cron.Recover(cron.DiscardLogger),
	))
	c.Schedule(schedule, cron.FuncJob(func() {
		if err := p.RunOnce(ctx); err != nil {
			p.log.ErrorObj("scheduled pull failed", "error", err.Error())
		}
	}))

	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	p.log.InfoObj("puller loop exiting", "reason", ctx.Err().Error())
}

// RunOnce pulls every query in order. Failures do not stop the cycle; they are
// joined into the returned error.
func (p *Puller) RunOnce(ctx context.Context) error {
	start := p.now()
	p.log.InfoObj("pull cycle started", "pull_cycle", map[string]any{
		"queries_count": len(p.queries),
		"started_at":    start.UTC(),
	})

	var errs []error
	for _, q := range p.queries {
		if ctx.Err() != nil {
			break
		}
		if err := p.pullQuery(ctx, q); err != nil {
			errs = append(errs, err)
			p.log.ErrorObj("query pull failed", "query_error", map[string]any{
				"query_id": q.ID,
				"error":    err.Error(),
			})
		}
	}

	p.log.InfoObj("pull cycle completed", "pull_cycle", map[string]any{
		"queries_count": len(p.queries),
		"failed":        len(errs),
		"elapsed_ms":    p.now().Sub(start).Milliseconds(),
	})
	return errors.Join(errs...)
}

func (p *Puller) pullQuery(ctx context.Context, q queries.Query) error {
	id, err := q.Target()
	if err != nil {
		return fmt.Errorf("query %s: %w", q.ID, err)
	}
	ro, err := q.RequestOptions()
	if err != nil {
		return fmt.Errorf("query %s: %w", q.ID, err)
	}

	start := p.now()
	resp, err := p.fetcher.GetSourceData(ctx, p.token, id, dataddo.WithRequestOptions(ro))
	elapsed := p.now().Sub(start)
	if err != nil {
		p.metrics.ObservePull(q.ID, metrics.OutcomeError, elapsed)
		return fmt.Errorf("pull query %s: %w", q.ID, err)
	}

	table, err := json.Marshal(resp)
	if err != nil {
		p.metrics.ObservePull(q.ID, metrics.OutcomeError, elapsed)
		return fmt.Errorf("encode table for query %s: %w", q.ID, err)
	}
	digest := tableDigest(table)
	rows, cols := resp.Shape()
	p.metrics.ObserveTable(q.ID, rows, resp.TotalRows())

	if resp.Truncated() {
		p.log.WarnObj("table truncated by server", "query_truncated", map[string]any{
			"query_id":   q.ID,
			"rows":       rows,
			"total_rows": resp.TotalRows(),
		})
	}

	snap := storage.Snapshot{
		QueryID:   q.ID,
		Digest:    digest,
		FetchedAt: start.UTC(),
		RowCount:  rows,
		TotalRows: resp.TotalRows(),
		Table:     table,
	}

	prev, found, err := p.store.LastSnapshot(q.ID)
	if err != nil {
		p.log.WarnObj("snapshot lookup failed; treating table as changed", "storage_error", map[string]any{
			"query_id": q.ID,
			"error":    err.Error(),
		})
		found = false
	}

	if found && prev.Digest == digest {
		p.metrics.ObservePull(q.ID, metrics.OutcomeUnchanged, elapsed)
		p.log.DebugObj("table unchanged", "query_result", map[string]any{
			"query_id": q.ID,
			"digest":   digest,
		})
		if err := p.store.SaveSnapshot(snap); err != nil {
			return fmt.Errorf("refresh snapshot for query %s: %w", q.ID, err)
		}
		return nil
	}

	p.metrics.ObservePull(q.ID, metrics.OutcomeChanged, elapsed)
	evt := publishers.NewEvent(publishers.EventSource{
		QueryID:   q.ID,
		QueryName: q.Name,
		Kind:      id.Kind().String(),
		ObjectID:  id.String(),
		Format:    string(ro.Format),
	}, digest, rows, resp.TotalRows(), start, table)

	delivered, err := p.fanout.Publish(ctx, evt)
	p.metrics.ObservePublished(q.ID, delivered)
	if err != nil {
		// The snapshot is not saved so the next cycle publishes again.
		return fmt.Errorf("publish table for query %s: %w", q.ID, err)
	}

	if err := p.store.SaveSnapshot(snap); err != nil {
		return fmt.Errorf("save snapshot for query %s: %w", q.ID, err)
	}

	p.log.InfoObj("table changed", "query_result", map[string]any{
		"query_id":   q.ID,
		"rows":       rows,
		"columns":    cols,
		"total_rows": resp.TotalRows(),
		"digest":     digest,
		"delivered":  delivered,
	})
	return nil
}

func (p *Puller) close() {
	if p.fanout != nil {
		if err := p.fanout.Close(); err != nil {
			p.log.ErrorObj("publishers close failed", "error", err.Error())
		}
	}
	if p.store != nil {
		if err := p.store.Close(); err != nil {
			p.log.ErrorObj("storage close failed", "error", err.Error())
		}
	}
}

func tableDigest(table []byte) string {
	sum := sha256.Sum256(table)
	return hex.EncodeToString(sum[:])
}
