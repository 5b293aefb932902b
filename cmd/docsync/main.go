package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/mycok/docsync/batch"
	"github.com/mycok/docsync/consumer"
	"github.com/mycok/docsync/consumer/kafka"
	"github.com/mycok/docsync/document"
	"github.com/mycok/docsync/document/store/es"
	memdoc "github.com/mycok/docsync/document/store/memory"
	"github.com/mycok/docsync/extractor"
	"github.com/mycok/docsync/jobrun"
	"github.com/mycok/docsync/jobrun/store/cdb"
	memrun "github.com/mycok/docsync/jobrun/store/memory"
	"github.com/mycok/docsync/metrics"
	"github.com/mycok/docsync/orchestrator"
	"github.com/mycok/docsync/scanner"
	"github.com/mycok/docsync/service"
	"github.com/mycok/docsync/service/admin"
	"github.com/mycok/docsync/service/streaming"
)

var (
	appName = "docsync"
	appSHA  = "latest-app-git-sha" // Populated by the compiler at the linking stage.
	logger  *logrus.Entry
)

func main() {
	host, _ := os.Hostname()
	rootLogger := logrus.New()
	rootLogger.SetFormatter(new(logrus.JSONFormatter))
	logger = rootLogger.WithFields(logrus.Fields{
		"app":  appName,
		"sha":  appSHA,
		"host": host,
	})

	if err := configureAppEnv().Run(os.Args); err != nil {
		logger.WithField("err", err).Error("shutting down due to an error")
		_ = os.Stderr.Sync()

		os.Exit(1)
	}
}

func configureAppEnv() *cli.App {
	app := cli.NewApp()
	app.Name = appName
	app.Version = appSHA
	app.Usage = "keep a search index in sync with a file store"
	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "index-uri",
			Value:   "in-memory://",
			EnvVars: []string{"INDEX_URI"},
			Usage:   "URI of the search index [supported URIs: in-memory://, es://node1:9200,...,nodeN:9200]",
		},
		&cli.StringFlag{
			Name:    "index-name",
			Value:   es.DefaultIndexName,
			EnvVars: []string{"INDEX_NAME"},
			Usage:   "Name of the elasticsearch index",
		},
		&cli.StringFlag{
			Name:    "run-store-uri",
			Value:   "in-memory://",
			EnvVars: []string{"RUN_STORE_URI"},
			Usage:   "URI of the backfill run store [supported URIs: in-memory://, postgresql://user@host:26257/docsync?sslmode=disable]",
		},
		&cli.StringFlag{
			Name:    "target-base-dir",
			EnvVars: []string{"TARGET_BASE_DIR"},
			Usage:   "Directory holding the files referenced by change events and walked by backfill runs",
		},
		&cli.StringFlag{
			Name:    "extensions",
			Value:   scanner.DefaultExtensions,
			EnvVars: []string{"FILE_EXTENSIONS"},
			Usage:   "Comma-separated list of file extensions included in backfill runs",
		},
		&cli.StringFlag{
			Name:    "log-level",
			Value:   "info",
			EnvVars: []string{"LOG_LEVEL"},
			Usage:   "Minimum level of emitted log entries",
		},
	}
	app.Flags = append(app.Flags, serveFlags()...)
	app.Flags = append(app.Flags, batchFlags()...)
	app.Commands = []*cli.Command{
		{
			Name:   "serve",
			Usage:  "consume change events and expose the admin API (default)",
			Action: serve,
		},
		{
			Name:  "backfill",
			Usage: "run a single backfill in the foreground",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:    "launch-key",
					EnvVars: []string{"LAUNCH_KEY"},
					Usage:   "Identifies the run; re-using the key of an interrupted run resumes it [defaults to the current time]",
				},
			},
			Action: backfill,
		},
	}
	app.Action = serve

	return app
}

func serveFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringSliceFlag{
			Name:    "brokers",
			EnvVars: []string{"KAFKA_BROKERS"},
			Usage:   "Kafka bootstrap brokers; streaming is disabled when empty",
		},
		&cli.StringFlag{
			Name:    "group-id",
			Value:   "docsync-indexer",
			EnvVars: []string{"KAFKA_GROUP_ID"},
			Usage:   "Kafka consumer group",
		},
		&cli.StringFlag{
			Name:    "upsert-topic",
			Value:   "dms-file-upsert-events",
			EnvVars: []string{"UPSERT_TOPIC"},
			Usage:   "Topic carrying file upsert events",
		},
		&cli.StringFlag{
			Name:    "upsert-dlq-topic",
			Value:   "dms-file-upsert-events-dlq",
			EnvVars: []string{"UPSERT_DLQ_TOPIC"},
			Usage:   "Dead-letter topic for upsert events",
		},
		&cli.StringFlag{
			Name:    "delete-topic",
			Value:   "dms-file-delete-events",
			EnvVars: []string{"DELETE_TOPIC"},
			Usage:   "Topic carrying file delete events",
		},
		&cli.StringFlag{
			Name:    "delete-dlq-topic",
			Value:   "dms-file-delete-events-dlq",
			EnvVars: []string{"DELETE_DLQ_TOPIC"},
			Usage:   "Dead-letter topic for delete events",
		},
		&cli.IntFlag{
			Name:    "concurrency",
			Value:   3,
			EnvVars: []string{"CONSUMER_CONCURRENCY"},
			Usage:   "Number of readers per topic",
		},
		&cli.IntFlag{
			Name:    "max-attempts",
			Value:   consumer.DefaultMaxAttempts,
			EnvVars: []string{"MAX_ATTEMPTS"},
			Usage:   "Attempts per change event before it is dead-lettered",
		},
		&cli.DurationFlag{
			Name:    "retry-backoff",
			Value:   consumer.DefaultBackoff,
			EnvVars: []string{"RETRY_BACKOFF"},
			Usage:   "Time between attempts of a change event",
		},
		&cli.StringFlag{
			Name:    "admin-listen-addr",
			Value:   ":8080",
			EnvVars: []string{"ADMIN_LISTEN_ADDR"},
			Usage:   "Address to listen on for admin API requests",
		},
	}
}

func batchFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:    "chunk-size",
			Value:   100,
			EnvVars: []string{"CHUNK_SIZE"},
			Usage:   "Documents per bulk request of backfill runs",
		},
		&cli.IntFlag{
			Name:    "chunk-retries",
			Value:   0,
			EnvVars: []string{"CHUNK_RETRIES"},
			Usage:   "Additional attempts for a failed chunk before a backfill run fails",
		},
		&cli.IntFlag{
			Name:    "batch-workers",
			Value:   1,
			EnvVars: []string{"BATCH_WORKERS"},
			Usage:   "Number of concurrent extraction workers of backfill runs",
		},
	}
}

type runStore interface {
	jobrun.Store
	Close() error
}

type deps struct {
	index   document.Store
	cluster admin.ClusterHealthAPI
	runs    runStore
	job     *batch.Job
	x       extractor.Extractor
	baseDir string
}

func (d *deps) close() {
	if closer, ok := d.index.(interface{ Close() error }); ok {
		_ = closer.Close()
	}

	if d.runs != nil {
		_ = d.runs.Close()
	}
}

func buildDeps(appCtx *cli.Context) (*deps, error) {
	if lvl, err := logrus.ParseLevel(appCtx.String("log-level")); err == nil {
		logger.Logger.SetLevel(lvl)
	}

	d := &deps{baseDir: appCtx.String("target-base-dir"), x: extractor.New()}

	var err error
	if d.index, d.cluster, err = getIndexStore(appCtx.String("index-uri"), appCtx.String("index-name")); err != nil {
		return nil, err
	}

	if d.runs, err = getRunStore(appCtx.String("run-store-uri")); err != nil {
		d.close()

		return nil, err
	}

	if d.baseDir == "" {
		logger.Warn("no target base directory configured; backfill runs will find nothing and upserts will be dead-lettered")
	}

	d.job, err = batch.NewJob(batch.Config{
		Files: scanner.New(scanner.Config{
			BaseDir:    d.baseDir,
			Extensions: scanner.ParseExtensions(appCtx.String("extensions")),
			Logger:     logger.WithField("component", "scanner"),
		}),
		Extractor:    d.x,
		Gateway:      d.index,
		Checkpoints:  d.runs,
		ChunkSize:    appCtx.Int("chunk-size"),
		ChunkRetries: appCtx.Int("chunk-retries"),
		Workers:      appCtx.Int("batch-workers"),
		Logger:       logger.WithField("component", "batch"),
	})
	if err != nil {
		d.close()

		return nil, err
	}

	return d, nil
}

func serve(appCtx *cli.Context) error {
	d, err := buildDeps(appCtx)
	if err != nil {
		return err
	}
	defer d.close()

	if err = metrics.Register(prometheus.DefaultRegisterer); err != nil {
		return err
	}

	orch, err := orchestrator.New(orchestrator.Config{
		Runner: d.job,
		Store:  d.runs,
		Logger: logger.WithField("service", "batch-orchestrator"),
	})
	if err != nil {
		return err
	}

	adminCfg := admin.Config{
		Runs:       orch,
		Index:      d.index,
		Cluster:    d.cluster,
		ListenAddr: appCtx.String("admin-listen-addr"),
		Logger:     logger.WithField("service", "admin"),
	}

	var streamSvc *streaming.Service
	if brokers := appCtx.StringSlice("brokers"); len(brokers) != 0 {
		stream, err := configureStreaming(appCtx, d, brokers)
		if err != nil {
			return err
		}
		defer stream.close()

		streamSvc = stream.svc
		adminCfg.Lag = stream.lag
		adminCfg.DeadLetters = stream.inspector
	} else {
		logger.Warn("no kafka brokers configured; streaming disabled")
	}

	adminSvc, err := admin.New(adminCfg)
	if err != nil {
		return err
	}

	svcGroup := service.NewGroup(logger.WithField("component", "services"), orch, adminSvc)
	if streamSvc != nil {
		svcGroup.Add(streamSvc)
	}

	ctx, cancelFn := signalContext()
	defer cancelFn()

	if err = svcGroup.Execute(ctx); err != nil {
		return err
	}

	logger.Info("shutdown complete")

	return nil
}

type streamingDeps struct {
	svc       *streaming.Service
	lag       *kafka.LagMonitor
	inspector *kafka.DeadLetterInspector
	close     func()
}

func configureStreaming(appCtx *cli.Context, d *deps, brokers []string) (*streamingDeps, error) {
	dlq, err := kafka.NewWriter(brokers, logger.WithField("component", "dlq-writer"))
	if err != nil {
		return nil, err
	}

	closeWriter := func() {
		if err := dlq.Close(); err != nil {
			logger.WithField("err", err).Warn("unable to flush dead-letter writer")
		}
	}

	handlerLogger := logger.WithField("component", "consumer")
	reg, err := consumer.NewRegistry(
		consumer.Route{
			Stream:          appCtx.String("upsert-topic"),
			Kind:            "upsert",
			DeadLetterTopic: appCtx.String("upsert-dlq-topic"),
			Handler: consumer.NewUpsertHandler(consumer.UpsertConfig{
				BaseDir:   d.baseDir,
				Extractor: d.x,
				Index:     d.index,
				Logger:    handlerLogger,
			}),
		},
		consumer.Route{
			Stream:          appCtx.String("delete-topic"),
			Kind:            "delete",
			DeadLetterTopic: appCtx.String("delete-dlq-topic"),
			Handler:         consumer.NewDeleteHandler(d.index, handlerLogger),
		},
	)
	if err != nil {
		closeWriter()

		return nil, err
	}

	cons, err := consumer.New(consumer.Config{
		Registry:    reg,
		DeadLetters: dlq,
		Retry: consumer.RetryPolicy{
			MaxAttempts: appCtx.Int("max-attempts"),
			Backoff:     appCtx.Duration("retry-backoff"),
		},
		Logger: handlerLogger,
	})
	if err != nil {
		closeWriter()

		return nil, err
	}

	inspector, err := kafka.NewDeadLetterInspector(brokers, []string{
		appCtx.String("upsert-dlq-topic"),
		appCtx.String("delete-dlq-topic"),
	})
	if err != nil {
		closeWriter()

		return nil, err
	}

	lag := kafka.NewLagMonitor(appCtx.String("group-id"))
	svc, err := streaming.New(streaming.Config{
		Consumer: cons,
		Streams:  reg.Streams(),
		NewReader: func(stream string) (consumer.Reader, error) {
			return lag.NewReader(kafka.ReaderConfig{
				Brokers: brokers,
				Topic:   stream,
				Logger:  logger.WithField("component", "kafka-reader"),
			})
		},
		Concurrency: appCtx.Int("concurrency"),
		Logger:      logger.WithField("service", "streaming"),
	})
	if err != nil {
		closeWriter()

		return nil, err
	}

	return &streamingDeps{svc: svc, lag: lag, inspector: inspector, close: closeWriter}, nil
}

func backfill(appCtx *cli.Context) error {
	d, err := buildDeps(appCtx)
	if err != nil {
		return err
	}
	defer d.close()

	orch, err := orchestrator.New(orchestrator.Config{
		Runner: d.job,
		Store:  d.runs,
		Logger: logger.WithField("service", "batch-orchestrator"),
	})
	if err != nil {
		return err
	}
	defer orch.Shutdown()

	launchKey := appCtx.String("launch-key")
	if launchKey == "" {
		launchKey = fmt.Sprint(time.Now().UnixMilli())
	}

	ctx, cancelFn := signalContext()
	defer cancelFn()

	run, err := orch.Start(ctx, orchestrator.Params{LaunchKey: launchKey})
	if err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		_, _ = orch.Stop(context.Background(), run.ID)
	}()

	if err = orch.Wait(context.Background(), run.ID); err != nil {
		return err
	}

	if run, err = orch.Get(context.Background(), run.ID); err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{
		"run_id":      run.ID,
		"launch_key":  run.LaunchKey,
		"status":      run.Status,
		"read":        run.Counters.Read,
		"written":     run.Counters.Write,
		"skipped":     run.Counters.Skip,
		"filtered":    run.Counters.Filter,
		"exit_detail": run.ExitMessage,
	}).Info("backfill finished")

	if run.Status != jobrun.StatusCompleted {
		return fmt.Errorf("backfill run %s ended with status %s", run.ID, run.Status)
	}

	return nil
}

// signalContext returns a context that is cancelled on SIGINT, SIGTERM or
// SIGHUP.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancelFn := context.WithCancel(context.Background())

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
		defer signal.Stop(sigCh)

		select {
		case s := <-sigCh:
			logger.WithField("signal", s.String()).Info("shutting down due to signal")
			cancelFn()
		case <-ctx.Done():
		}
	}()

	return ctx, cancelFn
}

func getIndexStore(indexURI, indexName string) (document.Store, admin.ClusterHealthAPI, error) {
	if indexURI == "" {
		return nil, nil, fmt.Errorf("index URI must be specified with --index-uri")
	}

	uri, err := url.Parse(indexURI)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse index URI: %w", err)
	}

	switch uri.Scheme {
	case "in-memory":
		logger.Info("using in-memory index store")

		store, err := memdoc.NewInMemoryStore(logger.WithField("component", "index"))
		if err != nil {
			return nil, nil, err
		}

		return store, nil, nil
	case "es":
		nodes := strings.Split(uri.Host, ",")
		for i := range nodes {
			nodes[i] = "http://" + nodes[i]
		}
		logger.Info("using ES index store")

		store, err := es.NewElasticsearchStore(nodes, indexName, false, logger.WithField("component", "index"))
		if err != nil {
			return nil, nil, err
		}

		return store, store, nil
	default:
		return nil, nil, fmt.Errorf("unsupported index URI scheme: %q", uri.Scheme)
	}
}

func getRunStore(runStoreURI string) (runStore, error) {
	if runStoreURI == "" {
		return nil, fmt.Errorf("run store URI must be specified with --run-store-uri")
	}

	uri, err := url.Parse(runStoreURI)
	if err != nil {
		return nil, fmt.Errorf("failed to parse run store URI: %w", err)
	}

	switch uri.Scheme {
	case "in-memory":
		logger.Info("using in-memory run store")

		return nopCloser{memrun.NewInMemoryStore()}, nil
	case "postgresql":
		logger.Info("using CDB run store")

		store, err := cdb.NewCockroachDBStore(runStoreURI)
		if err != nil {
			return nil, err
		}

		return store, nil
	default:
		return nil, fmt.Errorf("unsupported run store URI scheme: %q", uri.Scheme)
	}
}

type nopCloser struct {
	jobrun.Store
}

func (nopCloser) Close() error { return nil }
