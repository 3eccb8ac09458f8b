package app

import (
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/guonaihong/gout"
	"github.com/robfig/cron/v3"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"
	"github.com/talkincode/shopsync/pkg/metrics"
	"go.uber.org/zap"
)

var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

func (a *Application) initJob() {
	loc, _ := time.LoadLocation(a.appConfig.System.Location)
	if loc == nil {
		loc = time.Local
	}
	a.sched = cron.New(cron.WithLocation(loc), cron.WithParser(cronParser))

	var err error
	_, err = a.sched.AddFunc("@every 30s", func() {
		go a.SchedSystemMonitorTask()
		go a.SchedProcessMonitorTask()
	})
	if err != nil {
		zap.S().Errorf("init job error %s", err.Error())
	}

	a.initKeepAlive()
	a.sched.Start()
}

// initKeepAlive pings the public url so free hosting tiers do not idle the
// instance. Production only; the first ping is delayed.
func (a *Application) initKeepAlive() {
	ka := a.appConfig.KeepAlive
	if !ka.Enabled || !a.appConfig.IsProduction() || ka.URL == "" {
		zap.L().Info("keep-alive disabled")
		return
	}
	interval := ka.Interval
	if interval <= 0 {
		interval = 14 * time.Minute
	}
	url := strings.TrimRight(ka.URL, "/") + "/health"
	a.kaMu.Lock()
	defer a.kaMu.Unlock()
	a.keepAlive = time.AfterFunc(ka.InitialDelay, func() {
		a.SchedKeepAliveTask(url)
		a.kaMu.Lock()
		defer a.kaMu.Unlock()
		if a.released {
			return
		}
		if _, err := a.sched.AddFunc("@every "+interval.String(), func() { a.SchedKeepAliveTask(url) }); err != nil {
			zap.S().Errorf("init keep-alive job error %s", err.Error())
		}
	})
	zap.L().Info("keep-alive scheduled", zap.String("url", url), zap.Duration("interval", interval))
}

// stopKeepAlive cancels a pending first ping and keeps it from scheduling more
func (a *Application) stopKeepAlive() {
	a.kaMu.Lock()
	defer a.kaMu.Unlock()
	a.released = true
	if a.keepAlive != nil {
		a.keepAlive.Stop()
	}
}

// SchedKeepAliveTask issues one keep-alive request
func (a *Application) SchedKeepAliveTask(url string) {
	defer func() {
		if err := recover(); err != nil {
			zap.S().Error(err)
		}
	}()
	timeout := a.appConfig.KeepAlive.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	var code int
	err := gout.New(&http.Client{Timeout: timeout}).
		GET(url).
		Code(&code).
		Do()
	if err != nil {
		metrics.Incr("keepalive_failed")
		zap.L().Warn("keep-alive ping failed", zap.String("url", url), zap.Error(err))
		return
	}
	metrics.Incr("keepalive_ok")
	zap.L().Info("keep-alive ping", zap.String("url", url), zap.Int("status", code))
}

// SchedSystemMonitorTask system monitor
func (a *Application) SchedSystemMonitorTask() {
	defer func() {
		if err := recover(); err != nil {
			zap.S().Error(err)
		}
	}()

	_cpuuse, err := cpu.Percent(0, false)
	if err == nil && len(_cpuuse) > 0 {
		metrics.SetGauge("system_cpuuse", int64(_cpuuse[0]*100)) // percentage * 100
	}

	_meminfo, err := mem.VirtualMemory()
	if err == nil {
		metrics.SetGauge("system_memuse", int64(_meminfo.Used/1024/1024)) //nolint:gosec // G115: memory MB value fits in int64
	}
}

// SchedProcessMonitorTask app process monitor, including the realtime client count
func (a *Application) SchedProcessMonitorTask() {
	defer func() {
		if err := recover(); err != nil {
			zap.S().Error(err)
		}
	}()

	if a.hub != nil {
		metrics.SetGauge("realtime_clients", int64(a.hub.Clients()))
	}

	p, err := process.NewProcess(int32(os.Getpid())) //nolint:gosec // G115: PID is always within int32 range
	if err != nil {
		return
	}
	cpuuse, err := p.CPUPercent()
	if err == nil {
		metrics.SetGauge("shopsync_cpuuse", int64(cpuuse*100))
	}
	meminfo, err := p.MemoryInfo()
	if err == nil {
		metrics.SetGauge("shopsync_memuse", int64(meminfo.RSS/1024/1024)) //nolint:gosec // G115: memory MB value fits in int64
	}
}
