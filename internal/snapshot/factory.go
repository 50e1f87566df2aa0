package snapshot

import (
	"fmt"

	"fim-go/internal/config"
	"fim-go/internal/fim"
)

// NewStoreFromConfig creates a SnapshotStore based on the baseline config type.
func NewStoreFromConfig(cfg config.BaselineConfig) (fim.SnapshotStore, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryStore(), nil
	case "file", "":
		if cfg.Path == "" {
			return nil, fmt.Errorf("file baseline requires path to be set")
		}
		return NewOSFileStore(cfg.Path), nil
	default:
		return nil, fmt.Errorf("unknown baseline type: %s", cfg.Type)
	}
}
