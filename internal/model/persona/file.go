package persona

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// FileSource serves a persona read from a YAML file and reloads it when the file changes.
type FileSource struct {
	path   string
	logger *zap.Logger

	mu   sync.RWMutex
	item Persona
}

// LoadFile parses and validates the persona stored at path.
func LoadFile(path string) (Persona, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Persona{}, fmt.Errorf("read persona file: %w", err)
	}

	var p Persona
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Persona{}, fmt.Errorf("parse persona file %s: %w", path, err)
	}
	if err := p.Validate(); err != nil {
		return Persona{}, fmt.Errorf("invalid persona file %s: %w", path, err)
	}
	return p.withDefaults(), nil
}

// NewFileSource loads path once; call Watch to keep it fresh.
func NewFileSource(path string, logger *zap.Logger) (*FileSource, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	item, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	return &FileSource{path: path, logger: logger, item: item}, nil
}

// Current returns the last successfully loaded persona.
func (s *FileSource) Current() Persona {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.item
}

// Reload re-reads the file. On failure the previous persona stays in effect.
func (s *FileSource) Reload() error {
	item, err := LoadFile(s.path)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.item = item
	s.mu.Unlock()
	return nil
}

// Watch reloads the persona on file changes until ctx is done.
// The parent directory is watched so editors that replace the file by rename are seen.
func (s *FileSource) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create persona watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		return fmt.Errorf("watch persona dir: %w", err)
	}

	target := filepath.Clean(s.path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if err := s.Reload(); err != nil {
				s.logger.Warn("persona reload failed, keeping previous", zap.String("path", s.path), zap.Error(err))
				continue
			}
			s.logger.Info("persona reloaded", zap.String("path", s.path), zap.String("persona", s.Current().ID))
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("persona watcher error", zap.Error(err))
		}
	}
}
