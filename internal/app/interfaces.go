package app

import (
	"github.com/robfig/cron/v3"
	"github.com/talkincode/shopsync/config"
	"github.com/talkincode/shopsync/internal/broadcast"
	"github.com/talkincode/shopsync/internal/cache"
	"github.com/talkincode/shopsync/internal/store"
)

// StoreProvider provides the persistent store
type StoreProvider interface {
	Store() store.Store
}

// ConfigProvider provides application configuration
type ConfigProvider interface {
	Config() *config.AppConfig
}

// RealtimeProvider provides the change broadcaster and the websocket hub
type RealtimeProvider interface {
	Broadcaster() *broadcast.Broadcaster
	Hub() *broadcast.Hub
}

// SchedulerProvider provides task scheduling capability
type SchedulerProvider interface {
	Scheduler() *cron.Cron
}

// AppContext combines all provider interfaces for full application context
type AppContext interface {
	StoreProvider
	ConfigProvider
	RealtimeProvider
	SchedulerProvider
	Cache() *cache.ProductListCache
}
