// Package store persists the league dataset
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/myusername/squash-ladder/pkg/models"
)

// LoadDataset reads a dataset document written by SaveDataset
func LoadDataset(path string) (*models.Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset: %w", err)
	}

	ds := models.NewDataset()
	if err := json.Unmarshal(data, ds); err != nil {
		return nil, fmt.Errorf("failed to decode dataset %s: %w", path, err)
	}
	if ds.Players == nil {
		ds.Players = make(map[string]*models.Player)
	}
	if ds.Seasons == nil {
		ds.Seasons = make(map[string]*models.Season)
	}
	for name, p := range ds.Players {
		if p.Name == "" {
			p.Name = name
		}
	}
	return ds, nil
}

// SaveDataset writes the dataset as indented JSON. The file is replaced
// atomically so an interrupted run never leaves a truncated document.
func SaveDataset(path string, ds *models.Dataset) error {
	data, err := json.MarshalIndent(ds, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode dataset: %w", err)
	}
	if err := writeFile(path, data); err != nil {
		return fmt.Errorf("failed to save dataset: %w", err)
	}
	return nil
}

// SavePlayer writes one player's record as indented JSON
func SavePlayer(path string, p *models.Player) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode player %s: %w", p.Name, err)
	}
	if err := writeFile(path, data); err != nil {
		return fmt.Errorf("failed to save player %s: %w", p.Name, err)
	}
	return nil
}

// writeFile replaces path with data through a temporary file in the same directory
func writeFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
