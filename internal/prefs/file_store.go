package prefs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/mikey/mail-shield/internal/debounce"
)

// reloadQuiet coalesces the write bursts editors produce on save
const reloadQuiet = 100 * time.Millisecond

// fileDoc is the on-disk shape. Missing keys keep their defaults.
type fileDoc struct {
	AutoScanEnabled  *bool `yaml:"autoScanEnabled,omitempty"`
	IoTAlertsEnabled *bool `yaml:"iotAlertsEnabled,omitempty"`
}

// FileStore persists preferences as YAML and reloads them when the file
// changes on disk.
type FileStore struct {
	path   string
	logger *zap.Logger

	mu      sync.Mutex
	current Preferences
	watcher *fsnotify.Watcher
	cancel  context.CancelFunc
	reload  *debounce.Debouncer
	subs    subscribers
}

// NewFileStore creates a store backed by path. The file does not need to exist.
func NewFileStore(path string, logger *zap.Logger) (*FileStore, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve preferences path: %w", err)
	}
	s := &FileStore{
		path:    absPath,
		logger:  logger,
		current: Defaults(),
		reload:  debounce.New(reloadQuiet),
	}
	p, err := s.read()
	if err != nil {
		return nil, err
	}
	s.current = p
	return s, nil
}

// Path returns the backing file path
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) read() (Preferences, error) {
	p := Defaults()
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return p, nil
		}
		return p, fmt.Errorf("failed to read preferences: %w", err)
	}

	var doc fileDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return p, fmt.Errorf("failed to parse preferences: %w", err)
	}
	if doc.AutoScanEnabled != nil {
		p.AutoScanEnabled = *doc.AutoScanEnabled
	}
	if doc.IoTAlertsEnabled != nil {
		p.IoTAlertsEnabled = *doc.IoTAlertsEnabled
	}
	return p, nil
}

// Load re-reads the file
func (s *FileStore) Load(ctx context.Context) (Preferences, error) {
	p, err := s.read()
	if err != nil {
		return Defaults(), err
	}
	s.mu.Lock()
	s.current = p
	s.mu.Unlock()
	return p, nil
}

// Save writes p atomically and notifies subscribers on change
func (s *FileStore) Save(ctx context.Context, p Preferences) error {
	data, err := yaml.Marshal(fileDoc{
		AutoScanEnabled:  &p.AutoScanEnabled,
		IoTAlertsEnabled: &p.IoTAlertsEnabled,
	})
	if err != nil {
		return fmt.Errorf("failed to encode preferences: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create preferences directory: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write preferences: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace preferences: %w", err)
	}

	s.apply(p)
	return nil
}

// Subscribe registers a change listener
func (s *FileStore) Subscribe(fn func(Preferences)) func() {
	return s.subs.add(fn)
}

func (s *FileStore) apply(p Preferences) {
	s.mu.Lock()
	changed := s.current != p
	s.current = p
	s.mu.Unlock()

	if changed {
		s.logger.Info("Preferences changed",
			zap.Bool("auto_scan_enabled", p.AutoScanEnabled),
			zap.Bool("iot_alerts_enabled", p.IoTAlertsEnabled))
		s.subs.notify(p)
	}
}

// Start watches the containing directory so atomic replacements are seen
func (s *FileStore) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watcher != nil {
		return nil
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create preferences directory: %w", err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return fmt.Errorf("failed to watch preferences directory: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.watcher = w
	s.cancel = cancel
	go s.watch(ctx, w)

	s.logger.Info("Watching preferences file", zap.String("path", s.path))
	return nil
}

// Stop ends the file watch
func (s *FileStore) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watcher == nil {
		return nil
	}
	s.cancel()
	s.reload.Cancel()
	err := s.watcher.Close()
	s.watcher = nil
	return err
}

func (s *FileStore) watch(ctx context.Context, w *fsnotify.Watcher) {
	target := filepath.Base(s.path)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0 {
				s.reload.Trigger(func() { s.reloadFromDisk(ctx) })
			}
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			s.logger.Warn("Preferences watcher error", zap.Error(err))
		}
	}
}

func (s *FileStore) reloadFromDisk(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	p, err := s.read()
	if err != nil {
		s.logger.Warn("Failed to reload preferences, keeping previous values", zap.Error(err))
		return
	}
	s.apply(p)
}
