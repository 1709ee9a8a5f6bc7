package query

import (
	"LightCount/internal/config"
	"LightCount/internal/model"
	"fmt"
	"log"
)

// Open creates the StorageGateway selected by cfg.
func Open(cfg config.StorageConfig) (model.StorageGateway, error) {
	switch cfg.Type {
	case "clickhouse":
		store, err := NewClickHouseStore(cfg.ClickHouse)
		if err != nil {
			return nil, err
		}
		log.Printf("Connected to ClickHouse at %s:%d/%s", cfg.ClickHouse.Host, cfg.ClickHouse.Port, cfg.ClickHouse.Database)
		return store, nil
	case "memory":
		store, err := LoadFixture(cfg.Fixture)
		if err != nil {
			return nil, err
		}
		log.Printf("Loaded in-memory samples from %s", cfg.Fixture)
		return store, nil
	}
	return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
}
