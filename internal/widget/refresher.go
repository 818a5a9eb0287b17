package widget

import (
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Refresher stands in for the widget process's timeline reload: on a fixed
// cron cadence, and whenever the main service signals a fresh write, it
// re-reads the snapshot slot. Reload failures only log.
type Refresher struct {
	bridge *SnapshotBridge
	logger *zap.Logger
	cron   *cron.Cron
	signal chan struct{}
	stop   chan struct{}
}

func NewRefresher(bridge *SnapshotBridge, spec string, logger *zap.Logger) (*Refresher, error) {
	r := &Refresher{
		bridge: bridge,
		logger: logger,
		cron:   cron.New(),
		signal: make(chan struct{}, 1),
		stop:   make(chan struct{}),
	}

	if _, err := r.cron.AddFunc(spec, r.reload); err != nil {
		return nil, err
	}
	return r, nil
}

// Start begins the scheduled reloads and the on-demand signal listener.
func (r *Refresher) Start() {
	r.cron.Start()
	go r.listen()
	r.logger.Info("Widget refresher started")
}

// Stop halts the schedule and the signal listener.
func (r *Refresher) Stop() {
	r.cron.Stop()
	close(r.stop)
}

// Signal requests an immediate reload, fire-and-forget. A reload already
// pending absorbs the request.
func (r *Refresher) Signal() {
	select {
	case r.signal <- struct{}{}:
	default:
	}
}

func (r *Refresher) listen() {
	for {
		select {
		case <-r.signal:
			r.reload()
		case <-r.stop:
			return
		}
	}
}

func (r *Refresher) reload() {
	snapshot, ok := r.bridge.Load()
	if !ok {
		r.logger.Debug("Widget reload found no snapshot")
		return
	}
	r.logger.Debug("Widget reloaded",
		zap.String("city", snapshot.City),
		zap.Float64("temp", snapshot.Temp),
		zap.Time("written_at", snapshot.Timestamp))
}
