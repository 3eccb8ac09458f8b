package app

import (
	"context"
	"os"
	"sync"
	"time"
	_ "time/tzdata"

	"github.com/asaskevich/EventBus"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/talkincode/shopsync/config"
	"github.com/talkincode/shopsync/internal/adminapi"
	"github.com/talkincode/shopsync/internal/broadcast"
	"github.com/talkincode/shopsync/internal/cache"
	"github.com/talkincode/shopsync/internal/notify"
	"github.com/talkincode/shopsync/internal/store"
	"github.com/talkincode/shopsync/internal/store/gormstore"
	"github.com/talkincode/shopsync/internal/store/mongostore"
	"github.com/talkincode/shopsync/internal/webserver"
	"github.com/talkincode/shopsync/pkg/common"
	"github.com/talkincode/shopsync/pkg/metrics"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Application struct {
	appConfig   *config.AppConfig
	store       store.Store
	cache       *cache.ProductListCache
	broadcaster *broadcast.Broadcaster
	hub         *broadcast.Hub
	notifier    notify.Notifier
	watcher     *notify.OrderWatcher
	sched       *cron.Cron

	kaMu      sync.Mutex
	keepAlive *time.Timer
	released  bool
}

var (
	_ StoreProvider     = (*Application)(nil)
	_ ConfigProvider    = (*Application)(nil)
	_ RealtimeProvider  = (*Application)(nil)
	_ SchedulerProvider = (*Application)(nil)
	_ AppContext        = (*Application)(nil)
)

func NewApplication(appConfig *config.AppConfig) *Application {
	return &Application{appConfig: appConfig}
}

func (a *Application) Config() *config.AppConfig {
	return a.appConfig
}

func (a *Application) Store() store.Store {
	return a.store
}

// OverrideStore replaces the backend (used in tests).
func (a *Application) OverrideStore(s store.Store) {
	a.store = s
}

func (a *Application) Cache() *cache.ProductListCache {
	return a.cache
}

func (a *Application) Broadcaster() *broadcast.Broadcaster {
	return a.broadcaster
}

func (a *Application) Hub() *broadcast.Hub {
	return a.hub
}

func (a *Application) Scheduler() *cron.Cron {
	return a.sched
}

// Init sets up logging and metrics, opens the store and builds the realtime pipeline
func (a *Application) Init(ctx context.Context) error {
	cfg := a.appConfig
	loc, err := time.LoadLocation(cfg.System.Location)
	if err != nil {
		zap.S().Error("timezone config error")
	} else {
		time.Local = loc
	}

	InitLogger(cfg.Logger)

	if cfg.System.NodeID != 0 {
		if err := common.SetNode(cfg.System.NodeID); err != nil {
			return errors.Wrap(err, "snowflake node")
		}
	}

	if err := metrics.InitMetrics(cfg.System.Workdir); err != nil {
		zap.S().Warn("Failed to initialize metrics:", err)
	}

	if a.store == nil {
		s, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		a.store = s
	}
	zap.S().Infof("Store connection successful, type: %s", a.store.Name())

	if cfg.Database.Seed {
		if err := a.seedCatalog(ctx); err != nil {
			zap.L().Error("seed catalog failed", zap.Error(err))
		}
	}

	a.cache = cache.NewProductListCache(cfg.Cache.ProductTTL).WithFetchTimeout(cfg.Cache.FetchTimeout)
	a.broadcaster = broadcast.NewBroadcaster(EventBus.New())
	a.hub = broadcast.NewHub(broadcast.HubOptions{
		PingInterval: cfg.Realtime.PingInterval,
		PongWait:     cfg.Realtime.PingTimeout,
		QueueSize:    cfg.Realtime.QueueSize,
	})
	// the hub queues per client, so the synchronous handler never blocks publishers
	if err := a.broadcaster.Subscribe(a.hub.Broadcast); err != nil {
		return errors.Wrap(err, "subscribe hub")
	}

	a.notifier = notify.New(cfg.Notify)
	if cfg.Notify.OnNewOrder && cfg.Notify.OwnerPhone != "" {
		a.watcher = notify.NewOrderWatcher(a.notifier, cfg.Notify.OwnerPhone)
		if err := a.watcher.Attach(a.broadcaster); err != nil {
			zap.L().Error("attach order watcher failed", zap.Error(err))
			a.watcher = nil
		}
	}

	a.initJob()
	return nil
}

// Mount registers the rest and realtime routes on srv
func (a *Application) Mount(srv *webserver.Server) *adminapi.API {
	return adminapi.Register(srv, adminapi.Deps{
		Store:       a.store,
		Cache:       a.cache,
		Broadcaster: a.broadcaster,
		Hub:         a.hub,
		Notifier:    a.notifier,
		OwnerPhone:  a.appConfig.Notify.OwnerPhone,
		ListLimit:   a.appConfig.Cache.ListLimit,
	})
}

// Release releases application resources
func (a *Application) Release() {
	a.stopKeepAlive()
	if a.sched != nil {
		<-a.sched.Stop().Done()
	}
	if a.watcher != nil {
		_ = a.watcher.Detach(a.broadcaster)
	}
	if a.hub != nil {
		a.hub.Close()
	}
	if a.broadcaster != nil {
		a.broadcaster.WaitAsync()
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			zap.L().Warn("close store", zap.Error(err))
		}
	}
	_ = metrics.Close()
	_ = zap.L().Sync()
}

func openStore(ctx context.Context, cfg *config.AppConfig) (store.Store, error) {
	switch cfg.Database.Type {
	case "mongo":
		return mongostore.Open(ctx, cfg.Mongo)
	default:
		return gormstore.Open(cfg.Database)
	}
}

// InitLogger installs the global zap logger, teeing into a rotating file when enabled
func InitLogger(cfg config.LogConfig) {
	var zapConfig zap.Config
	if cfg.Mode == "production" {
		zapConfig = zap.NewProductionConfig()
	} else {
		zapConfig = zap.NewDevelopmentConfig()
	}
	zapConfig.OutputPaths = []string{"stdout"}

	var logger *zap.Logger
	if cfg.FileEnable {
		lumberJackLogger := &lumberjack.Logger{
			Filename:   cfg.Filename,
			MaxSize:    64,
			MaxBackups: 7,
			MaxAge:     7,
			Compress:   false,
		}
		core := zapcore.NewTee(
			zapcore.NewCore(
				zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
				zapcore.AddSync(lumberJackLogger),
				zapConfig.Level,
			),
			zapcore.NewCore(
				zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
				zapcore.AddSync(os.Stdout),
				zapConfig.Level,
			),
		)
		logger = zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))
	} else {
		var err error
		logger, err = zapConfig.Build(zap.AddCaller(), zap.AddCallerSkip(1))
		if err != nil {
			panic(err)
		}
	}
	zap.ReplaceGlobals(logger)
}
