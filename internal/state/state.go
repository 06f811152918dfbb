// Package state persists the user settings that change at run time.
package state

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"
)

// SaveDelay is how long after the last change settings are written.
const SaveDelay = 10 * time.Second

type Settings struct {
	IdleMode   int  `json:"idle_mode"`
	Strict     bool `json:"strict"`
	IRLocked   bool `json:"ir_locked"`
	Peaks      bool `json:"peaks"`
	Brightness int  `json:"brightness"`
}

// LoadOrInit reads the settings file, creating it from defaults when it
// does not exist.
func LoadOrInit(path string, defaults Settings) (*Settings, error) {

	_, err := os.Stat(path)

	if os.IsNotExist(err) {
		if err := Save(path, defaults); err != nil {
			return nil, err
		}
		log.Printf("[state] initialized %s", path)
		s := defaults
		return &s, nil
	} else if err != nil {
		return nil, fmt.Errorf("check state file %s: %w", path, err)
	}

	fileData, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read state file: %w", err)
	}

	s := defaults
	if err := json.Unmarshal(fileData, &s); err != nil {
		return nil, fmt.Errorf("parse state file %s: %w", path, err)
	}
	log.Printf("[state] loaded %s", path)
	return &s, nil
}

// Save writes s atomically.
func Save(path string, s Settings) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	// Write to a temp file and rename over the old one.
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp state file: %w", err)
	}

	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace state file: %w", err)
	}

	return nil
}

// Remove deletes the settings file.
func Remove(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove state file: %w", err)
	}
	return nil
}

// Saver writes settings a fixed delay after the last change, so a burst
// of changes costs one write.
type Saver struct {
	path    string
	delay   time.Duration
	dirty   bool
	changed time.Time
}

func NewSaver(path string, delay time.Duration) *Saver {
	return &Saver{path: path, delay: delay}
}

// Changed notes a change at now.
func (s *Saver) Changed(now time.Time) {
	s.dirty = true
	s.changed = now
}

func (s *Saver) Dirty() bool { return s.dirty }

// Poll saves cur if the delay has passed since the last change.
func (s *Saver) Poll(now time.Time, cur Settings) error {
	if !s.dirty || now.Sub(s.changed) < s.delay {
		return nil
	}
	return s.Flush(cur)
}

// Flush saves cur now if anything changed.
func (s *Saver) Flush(cur Settings) error {
	if !s.dirty {
		return nil
	}
	if err := Save(s.path, cur); err != nil {
		return err
	}
	s.dirty = false
	log.Printf("[state] settings saved")
	return nil
}
