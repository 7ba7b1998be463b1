// Package main starts a Piecework server.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"time"

	"github.com/piecework/piecework/access"
	"github.com/piecework/piecework/attachment"
	storageattminio "github.com/piecework/piecework/attachment/storage/minio"
	"github.com/piecework/piecework/engine"
	"github.com/piecework/piecework/form"
	formhttp "github.com/piecework/piecework/form/http"
	phttp "github.com/piecework/piecework/http"
	"github.com/piecework/piecework/log/logkeys"
	"github.com/piecework/piecework/metrics"
	"github.com/piecework/piecework/process/cache"
	"github.com/piecework/piecework/process/catalog"

	"github.com/alexedwards/flow"
	"github.com/micromdm/nanolib/envflag"
	nanohttp "github.com/micromdm/nanolib/http"
	"github.com/micromdm/nanolib/http/trace"
	"github.com/micromdm/nanolib/log/stdlogfmt"
)

// overridden by -ldflags -X
var version = "unknown"

const (
	apiUsername = "piecework"
	apiRealm    = "piecework"
)

func main() {
	var (
		flDebug      = flag.Bool("debug", false, "log debug messages")
		flListen     = flag.String("listen", ":9004", "HTTP listen address")
		flVersion    = flag.Bool("version", false, "print version and exit")
		flDump       = flag.Bool("dump", false, "dump form submission bodies")
		flAPIKey     = flag.String("api", "", "API key for admin API endpoints")
		flStorage    = flag.String("storage", "file", "name of storage backend (inmem, file, mysql, redis)")
		flDSN        = flag.String("storage-dsn", "", "data source name (e.g. connection string, path, or redis URL)")
		flCatalog    = flag.String("catalog", "", "path to YAML process catalog to seed storage with")
		flCatalogTTL = flag.Duration("catalog-ttl", time.Minute, "cache duration of processes and deployments")
		flReqTTL     = flag.Duration("request-ttl", 0, "expiry of form requests (redis storage only)")
		flRedirects  = flag.Int("max-redirects", form.DefaultMaxRedirects, "redirect limit for remote forms")
		flWorkSec    = flag.Uint("worker-interval", uint(engine.DefaultDuration/time.Second), "interval for worker in seconds")
		flMinIO      = flag.String("minio-endpoint", "", "MinIO endpoint for attachment content")
		flMinIOKey   = flag.String("minio-access-key", "", "MinIO access key")
		flMinIOSec   = flag.String("minio-secret-key", "", "MinIO secret key")
		flMinIOBkt   = flag.String("minio-bucket", "piecework", "MinIO bucket for attachment content")
		flMinIOSSL   = flag.Bool("minio-ssl", false, "connect to MinIO with TLS")
	)
	envflag.Parse("PIECEWORK_", []string{"version"})

	if *flVersion {
		fmt.Println(version)
		return
	}

	logger := stdlogfmt.New(stdlogfmt.WithDebugFlag(*flDebug))
	ctx := context.Background()

	// configure storage
	storage, err := parseStorage(ctx, *flStorage, *flDSN, *flReqTTL)
	if err != nil {
		logger.Info(logkeys.Message, "parse storage", logkeys.Error, err)
		os.Exit(1)
	}
	if *flMinIO != "" {
		err = storage.withMinIO(ctx, storageattminio.Config{
			Endpoint:  *flMinIO,
			AccessKey: *flMinIOKey,
			SecretKey: *flMinIOSec,
			Bucket:    *flMinIOBkt,
			UseSSL:    *flMinIOSSL,
		})
		if err != nil {
			logger.Info(logkeys.Message, "configuring minio", logkeys.Error, err)
			os.Exit(1)
		}
	}

	if *flCatalog != "" {
		c, err := catalog.Load(*flCatalog)
		if err == nil {
			err = c.Seed(ctx, storage.process, time.Now())
		}
		if err != nil {
			logger.Info(logkeys.Message, "seeding catalog", "path", *flCatalog, logkeys.Error, err)
			os.Exit(1)
		}
		logger.Debug(logkeys.Message, "seeded catalog", "path", *flCatalog, logkeys.GenericCount, len(c.Processes))
	}

	provider := cache.New(storage.process, *flCatalogTTL)
	go provider.StartEviction(ctx)

	m := metrics.New()

	e := engine.New(storage.engine, engine.WithLogger(logger.With("service", "engine")))

	var eWorker *engine.Worker
	if *flWorkSec > 0 {
		eWorker = engine.NewWorker(
			e,
			storage.process,
			engine.WithWorkerLogger(logger.With("service", "engine worker")),
			engine.WithWorkerDuration(time.Second*time.Duration(*flWorkSec)),
		)
	}

	d := form.New(
		provider,
		storage.form,
		e,
		form.WithLogger(logger.With("service", "form")),
		form.WithMetrics(m),
		form.WithAttachments(attachment.New(
			storage.attachment,
			storage.content,
			attachment.WithLogger(logger.With("service", "attachment")),
		)),
		form.WithAccessTracker(access.New(
			access.WithLogger(logger.With("service", "access")),
			access.WithMetrics(m),
		)),
	)

	mux := flow.New()

	mux.Handle("/version", nanohttp.NewJSONVersionHandler(version))
	mux.Handle("/metrics", m.Handler(), "GET")

	mux.Group(func(mux *flow.Mux) {
		if *flDump {
			mux.Use(func(h http.Handler) http.Handler {
				return phttp.DumpHandler(h, os.Stdout)
			})
		}
		formhttp.HandleForms(
			form.DefaultPrefix,
			mux,
			logger,
			d,
			formhttp.WithMaxRedirects(*flRedirects),
			formhttp.WithMetrics(m),
		)
	})

	if *flAPIKey != "" {
		mux.Group(func(mux *flow.Mux) {
			mux.Use(func(h http.Handler) http.Handler {
				return nanohttp.NewSimpleBasicAuthHandler(h, apiUsername, *flAPIKey, apiRealm)
			})

			handleAPIv1(mux, logger, storage, e, provider)
		})
	}

	if eWorker != nil {
		go func() {
			err := eWorker.Run(ctx)
			logs := []interface{}{logkeys.Message, "engine worker stopped"}
			if err != nil {
				logger.Info(append(logs, logkeys.Error, err)...)
				return
			}
			logger.Debug(logs...)
		}()
	}

	logger.Info(logkeys.Message, "starting server", "listen", *flListen)
	err = http.ListenAndServe(*flListen, trace.NewTraceLoggingHandler(mux, logger.With("handler", "log"), newTraceID))
	logs := []interface{}{logkeys.Message, "server shutdown"}
	if err != nil {
		logs = append(logs, logkeys.Error, err)
	}
	logger.Info(logs...)
}

// newTraceID generates a new HTTP trace ID for context logging.
func newTraceID(_ *http.Request) string {
	b := make([]byte, 8)
	rand.Read(b)
	return fmt.Sprintf("%x", b)
}
