package store

import (
	"glasscast/internal/models"

	"go.uber.org/zap"
)

const temperatureUnitKey = "temperatureUnit"

// Preferences exposes the persisted user settings. Currently that is only
// the temperature display unit.
type Preferences struct {
	local  *LocalStore
	logger *zap.Logger
}

func NewPreferences(local *LocalStore, logger *zap.Logger) *Preferences {
	return &Preferences{local: local, logger: logger}
}

// TemperatureUnit returns the stored unit, defaulting to Celsius when no
// valid preference has been saved.
func (p *Preferences) TemperatureUnit() models.TemperatureUnit {
	data, ok, err := p.local.Get(temperatureUnitKey)
	if err != nil {
		p.logger.Warn("Failed to load temperature unit", zap.Error(err))
		return models.Celsius
	}
	if !ok {
		return models.Celsius
	}

	unit := models.TemperatureUnit(data)
	if !unit.Valid() {
		return models.Celsius
	}
	return unit
}

// SetTemperatureUnit persists the unit.
func (p *Preferences) SetTemperatureUnit(unit models.TemperatureUnit) error {
	return p.local.Put(temperatureUnitKey, []byte(unit))
}
