// Package job runs periodic background work for the server.
package job

import (
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/iliyamo/viewing-scheduler/internal/store"
)

// StatsSource is the part of the store the report needs.
type StatsSource interface {
	Stats() store.Stats
}

// InventoryReport logs slot and booking counts.  It only reads the store.
type InventoryReport struct {
	Source StatsSource
	Logger *zap.Logger
}

// Run logs one report line.
func (r InventoryReport) Run() {
	st := r.Source.Stats()
	r.Logger.Info("viewing inventory",
		zap.Int("slots", st.Slots),
		zap.Int("available", st.Available),
		zap.Int("booked", st.Booked),
		zap.Int("reservations", st.Reservations),
	)
}

// StartInventoryReport schedules the report with a standard cron spec or
// a descriptor such as "@every 15m" and starts the scheduler.  Call Stop on
// the returned cron to shut it down.
func StartInventoryReport(spec string, src StatsSource, logger *zap.Logger) (*cron.Cron, error) {
	c := cron.New()
	if _, err := c.AddJob(spec, cron.NewChain(cron.Recover(cronLogger{logger})).Then(InventoryReport{Source: src, Logger: logger})); err != nil {
		return nil, fmt.Errorf("schedule inventory report %q: %w", spec, err)
	}
	c.Start()
	return c, nil
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct{ l *zap.Logger }

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Sugar().Infow(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
