package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/openclass/dbans/internal/ban"
	"github.com/openclass/dbans/internal/config"
	"github.com/openclass/dbans/internal/database"
	"github.com/openclass/dbans/internal/discussion"
	"github.com/openclass/dbans/internal/httphelper"
	"github.com/openclass/dbans/internal/metrics"
	"github.com/openclass/dbans/internal/notification"
	"github.com/openclass/dbans/internal/person"
	"github.com/openclass/dbans/pkg/log"
)

var (
	BuildVersion = "master" //nolint:gochecknoglobals
	BuildCommit  = ""       //nolint:gochecknoglobals
	BuildDate    = ""       //nolint:gochecknoglobals
)

type App struct {
	staticConfig config.StaticConfig
	database     database.Database
	settings     *config.Configuration
	collector    *metrics.Collector
	bans         ban.Bans
	logCloser    func()
}

func NewApp() (*App, error) {
	staticConfig, errStatic := config.ReadStatic(true)
	if errStatic != nil {
		slog.Error("Failed to read static config", log.ErrAttr(errStatic))

		return nil, errStatic
	}

	return &App{staticConfig: staticConfig}, nil
}

func (a *App) Init(ctx context.Context) error {
	conf := a.staticConfig

	if conf.Sentry.DSN != "" {
		if errSentry := sentry.Init(sentry.ClientOptions{
			Dsn:              conf.Sentry.DSN,
			Release:          BuildVersion,
			EnableTracing:    conf.Sentry.TraceSampleRate > 0,
			TracesSampleRate: conf.Sentry.TraceSampleRate,
			EnableLogs:       true,
		}); errSentry != nil {
			slog.Error("Failed to setup sentry client", log.ErrAttr(errSentry))
		}
	}

	a.logCloser = log.MustCreate(ctx, conf.Log.File, log.Level(conf.Log.Level), conf.Sentry.DSN != "", BuildVersion)

	slog.Info("Starting dbans...",
		slog.String("version", BuildVersion),
		slog.String("commit", BuildCommit),
		slog.String("date", BuildDate))

	dbConn := database.New(conf.DB.DSN, conf.DB.AutoMigrate, conf.DB.LogQueries)
	if errConnect := dbConn.Connect(ctx); errConnect != nil {
		slog.Error("Cannot initialize database", log.ErrAttr(errConnect))

		return errConnect
	}

	a.database = dbConn

	a.settings = config.NewConfiguration(config.NewSettingsRepository(dbConn))

	a.collector = metrics.New()
	a.collector.MustRegister(prometheus.DefaultRegisterer)

	persons := person.NewRepository(dbConn)
	contentStore := discussion.NewRepository(dbConn)
	purger := discussion.NewPurger(contentStore)

	var templated notification.TemplatedTransport
	if conf.MessageService.URL != "" {
		templated = notification.NewMessageClient(conf.MessageService)
	}

	notifier := notification.NewNotifier(templated,
		notification.NewMailer(conf.SMTP),
		notification.NewFileResolver(conf.General.TemplateDir))

	a.bans = ban.NewBans(ban.NewRepository(dbConn), persons, purger, notifier,
		a.settings, contentStore, a.collector)

	return nil
}

func (a *App) Serve(rootCtx context.Context) error {
	ctx, stop := signal.NotifyContext(rootCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	conf := a.staticConfig

	router := httphelper.CreateRouter(httphelper.RouterOpts{
		Mode:        conf.HTTP.Mode.String(),
		LogLevel:    log.Level(conf.Log.Level),
		SentryDSN:   conf.Sentry.DSN,
		Version:     BuildVersion,
		CORSOrigins: conf.HTTP.CORSOrigins,
	})

	authenticator := httphelper.NewTokenAuthenticator(conf.HTTP.Tokens, rate.Every(time.Second), 10)

	ban.NewHandler(router, a.bans, authenticator)

	httpServer := httphelper.NewServer(conf.HTTP.Addr(), router)

	go func() {
		<-ctx.Done()

		slog.Info("Shutting down HTTP service")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second*10)
		defer cancel()

		if errShutdown := httpServer.Shutdown(shutdownCtx); errShutdown != nil { //nolint:contextcheck
			slog.Error("Error shutting down http service", log.ErrAttr(errShutdown))
		}
	}()

	slog.Info("Starting HTTP server", slog.String("address", conf.HTTP.Addr()))

	errServe := httpServer.ListenAndServe()
	if errServe != nil && !errors.Is(errServe, http.ErrServerClosed) {
		slog.Error("HTTP server returned error", log.ErrAttr(errServe))
	}

	<-ctx.Done()

	slog.Info("Exiting...")

	return nil
}

func (a *App) Close(_ context.Context) error {
	if a.database != nil {
		if errClose := a.database.Close(); errClose != nil {
			slog.Error("Failed to close database cleanly", log.ErrAttr(errClose))
		}
	}

	if a.staticConfig.Sentry.DSN != "" {
		sentry.Flush(2 * time.Second)
	}

	if a.logCloser != nil {
		a.logCloser()
	}

	return nil
}
