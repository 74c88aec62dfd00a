// Package store persists per-gateway connection settings as flat
// field/value records, used to prefill the next connection attempt. This is
// the only state the runtime keeps across restarts.
package store

import (
	"encoding/json"
	stderrors "errors"

	"github.com/yanun0323/errors"
	"gorm.io/gorm"
)

// GatewaySetting is one persisted connection field for one gateway.
type GatewaySetting struct {
	ID          uint   `gorm:"primaryKey"`
	GatewayName string `gorm:"index:idx_gateway_field,unique"`
	Field       string `gorm:"index:idx_gateway_field,unique"`
	Value       string
}

// Store reads and writes gateway settings through gorm.
type Store struct {
	db *gorm.DB
}

// New migrates the schema and returns a ready store.
func New(db *gorm.DB) (*Store, error) {
	if db == nil {
		return nil, errors.New("store requires a database handle")
	}
	if err := db.AutoMigrate(&GatewaySetting{}); err != nil {
		return nil, errors.Wrap(err, "migrate gateway settings")
	}
	return &Store{db: db}, nil
}

// Save upserts every field of the setting for the named gateway. Values are
// JSON-encoded so numbers, booleans and option lists survive the round trip.
func (s *Store) Save(gatewayName string, setting map[string]any) error {
	for field, value := range setting {
		encoded, err := json.Marshal(value)
		if err != nil {
			return errors.Wrapf(err, "encode setting field %s", field)
		}

		var record GatewaySetting
		err = s.db.Where("gateway_name = ? AND field = ?", gatewayName, field).First(&record).Error
		switch {
		case err == nil:
			record.Value = string(encoded)
			if err := s.db.Save(&record).Error; err != nil {
				return errors.Wrapf(err, "update setting field %s", field)
			}
		case stderrors.Is(err, gorm.ErrRecordNotFound):
			record = GatewaySetting{
				GatewayName: gatewayName,
				Field:       field,
				Value:       string(encoded),
			}
			if err := s.db.Create(&record).Error; err != nil {
				return errors.Wrapf(err, "create setting field %s", field)
			}
		default:
			return errors.Wrapf(err, "query setting field %s", field)
		}
	}
	return nil
}

// Load returns the persisted setting for the named gateway; an empty map
// when nothing has been saved yet.
func (s *Store) Load(gatewayName string) (map[string]any, error) {
	var records []GatewaySetting
	if err := s.db.Where("gateway_name = ?", gatewayName).Find(&records).Error; err != nil {
		return nil, errors.Wrapf(err, "load settings for gateway %s", gatewayName)
	}

	setting := make(map[string]any, len(records))
	for _, record := range records {
		var value any
		if err := json.Unmarshal([]byte(record.Value), &value); err != nil {
			return nil, errors.Wrapf(err, "decode setting field %s", record.Field)
		}
		setting[record.Field] = value
	}
	return setting, nil
}
