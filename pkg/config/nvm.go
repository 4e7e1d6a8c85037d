package config

import (
    "fmt"
    "path/filepath"
    "strings"

    "meshroof/pkg/record"
)

// NVMConfig selects the flash backend the record is persisted in.
type NVMConfig struct {
    // Backend: badger (on disk) or memory (lost on exit, for trials)
    Backend string `mapstructure:"backend"`
    // Path of the badger directory; defaults to <data_dir>/nvm
    Path      string `mapstructure:"path"`
    Namespace string `mapstructure:"namespace"`
    // Capacity is the largest record blob in bytes
    Capacity int `mapstructure:"capacity"`
}

// MinCapacity fits an empty record: header, fixed part, counts and footer.
const MinCapacity = record.MinBlobSize

func (n *NVMConfig) validate(dataDir string) error {
    n.Backend = strings.ToLower(strings.TrimSpace(n.Backend))
    switch n.Backend {
    case "badger", "memory":
    case "":
        n.Backend = "badger"
    default:
        return fmt.Errorf("invalid nvm.backend: %q", n.Backend)
    }
    if strings.TrimSpace(n.Path) == "" {
        n.Path = filepath.Join(dataDir, "nvm")
    }
    if strings.TrimSpace(n.Namespace) == "" {
        n.Namespace = "meshroof"
    }
    if n.Capacity < MinCapacity {
        return fmt.Errorf("invalid nvm.capacity %d: must be at least %d", n.Capacity, MinCapacity)
    }
    return nil
}
