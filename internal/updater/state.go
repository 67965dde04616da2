package updater

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/RowanDark/mardec/internal/env"
)

const stateFile = "updater.toml"

// State is the updater preference saved by "mardec self-update channel".
type State struct {
	Channel string `toml:"channel"`
}

// StateDir returns the directory holding updater state.
// MARDEC_UPDATER_CONFIG_DIR overrides the platform default.
func StateDir() (string, error) {
	if override, ok := env.Lookup("MARDEC_UPDATER_CONFIG_DIR"); ok {
		return override, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve config dir: %w", err)
	}
	return filepath.Join(dir, "mardec"), nil
}

// LoadState reads the state in dir. A missing file yields an empty State.
func LoadState(dir string) (State, error) {
	var st State
	data, err := os.ReadFile(filepath.Join(dir, stateFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return st, nil
		}
		return st, fmt.Errorf("read updater state: %w", err)
	}
	if _, err := toml.Decode(string(data), &st); err != nil {
		return State{}, fmt.Errorf("parse updater state: %w", err)
	}
	if st.Channel != "" {
		channel, err := NormalizeChannel(st.Channel)
		if err != nil {
			return State{}, fmt.Errorf("updater state: %w", err)
		}
		st.Channel = channel
	}
	return st, nil
}

// SaveState writes st to dir, replacing any earlier state.
func SaveState(dir string, st State) error {
	channel, err := NormalizeChannel(st.Channel)
	if err != nil {
		return err
	}
	st.Channel = channel

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(st); err != nil {
		return fmt.Errorf("encode updater state: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, stateFile+".*")
	if err != nil {
		return fmt.Errorf("write updater state: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("write updater state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write updater state: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(dir, stateFile)); err != nil {
		return fmt.Errorf("write updater state: %w", err)
	}
	return nil
}
