package job

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/iliyamo/viewing-scheduler/internal/store"
)

type fixedStats store.Stats

func (f fixedStats) Stats() store.Stats { return store.Stats(f) }

func TestInventoryReportRun(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	InventoryReport{
		Source: fixedStats{Slots: 126, Available: 120, Booked: 6, Reservations: 6},
		Logger: zap.New(core),
	}.Run()

	entries := logs.FilterMessage("viewing inventory").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.EqualValues(t, 126, fields["slots"])
	assert.EqualValues(t, 120, fields["available"])
	assert.EqualValues(t, 6, fields["booked"])
}

func TestStartInventoryReport(t *testing.T) {
	c, err := StartInventoryReport("@every 1h", fixedStats{}, zap.NewNop())
	require.NoError(t, err)
	assert.Len(t, c.Entries(), 1)
	<-c.Stop().Done()

	_, err = StartInventoryReport("not a schedule", fixedStats{}, zap.NewNop())
	assert.Error(t, err)
}
