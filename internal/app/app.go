package app

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/mselser95/basis-arb/internal/ledger"
	"github.com/mselser95/basis-arb/internal/monitor"
	"github.com/mselser95/basis-arb/internal/notify"
	"github.com/mselser95/basis-arb/internal/storage"
	"github.com/mselser95/basis-arb/pkg/cache"
	"github.com/mselser95/basis-arb/pkg/config"
	"github.com/mselser95/basis-arb/pkg/healthprobe"
	"github.com/mselser95/basis-arb/pkg/httpserver"
)

// App is the main application orchestrator.
type App struct {
	cfg           *config.Config
	logger        *zap.Logger
	healthChecker *healthprobe.HealthChecker
	httpServer    *httpserver.Server
	cache         cache.Cache
	storage       storage.Storage
	ledger        *ledger.Ledger
	notifier      *notify.Notifier
	scheduler     *monitor.Scheduler
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
}

// Ledger exposes the position ledger for administrative commands.
func (a *App) Ledger() *ledger.Ledger {
	return a.ledger
}

// Scheduler exposes the monitor for administrative commands.
func (a *App) Scheduler() *monitor.Scheduler {
	return a.scheduler
}

// Storage exposes the persistence layer for administrative commands.
func (a *App) Storage() storage.Storage {
	return a.storage
}
