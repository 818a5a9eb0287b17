// Package widget maintains the single-slot weather snapshot a companion
// widget process renders from. The main service overwrites the slot after
// every successful weather fetch; the widget side reads it on a fixed
// cadence plus an on-demand refresh signal.
package widget

import (
	"encoding/json"
	"time"

	"glasscast/internal/models"
	"glasscast/internal/store"

	"go.uber.org/zap"
)

const snapshotKey = "widgetWeather"

// SnapshotBridge writes and reads the cross-process snapshot slot. Reads
// are best-effort: a missing or undecodable blob means "never populated",
// never an error.
type SnapshotBridge struct {
	local  *store.LocalStore
	logger *zap.Logger
	now    func() time.Time
}

func NewSnapshotBridge(local *store.LocalStore, logger *zap.Logger) *SnapshotBridge {
	return &SnapshotBridge{
		local:  local,
		logger: logger,
		now:    time.Now,
	}
}

// Save overwrites the slot with a snapshot derived from the given reading.
func (b *SnapshotBridge) Save(snapshot models.WeatherSnapshot) error {
	ws := models.WidgetSnapshot{
		City:          snapshot.CityName,
		Temp:          snapshot.Temperature,
		ConditionIcon: snapshot.Icon,
		Timestamp:     b.now(),
	}

	data, err := json.Marshal(ws)
	if err != nil {
		return err
	}
	if err := b.local.Put(snapshotKey, data); err != nil {
		return err
	}

	b.logger.Debug("Saved widget snapshot",
		zap.String("city", ws.City),
		zap.Float64("temp", ws.Temp))
	return nil
}

// Load returns the current slot. The second return value is false when the
// slot was never written or cannot be decoded.
func (b *SnapshotBridge) Load() (models.WidgetSnapshot, bool) {
	data, ok, err := b.local.Get(snapshotKey)
	if err != nil || !ok {
		if err != nil {
			b.logger.Warn("Failed to read widget snapshot", zap.Error(err))
		}
		return models.WidgetSnapshot{}, false
	}

	var ws models.WidgetSnapshot
	if err := json.Unmarshal(data, &ws); err != nil {
		b.logger.Warn("Discarding undecodable widget snapshot", zap.Error(err))
		return models.WidgetSnapshot{}, false
	}
	return ws, true
}
