// ABOUTME: Imports daily metric and weather records from JSON or YAML files.
// ABOUTME: Watch turns a directory into an inbox, importing files as they land.
package importer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/harperreed/migraine/internal/logging"
	"github.com/harperreed/migraine/internal/models"
)

// Inbox subdirectories for handled files.
const (
	ProcessedDir = "processed"
	FailedDir    = "failed"
)

// settle is how long a file must stay quiet before it is imported.
var settle = 300 * time.Millisecond

// Batch is the accepted file shape. Either list may be empty.
type Batch struct {
	DailyMetrics []*models.DailyMetric  `json:"daily_metrics" yaml:"daily_metrics"`
	DailyWeather []*models.DailyWeather `json:"daily_weather" yaml:"daily_weather"`
}

// Result counts records written from one file.
type Result struct {
	Path    string
	Metrics int
	Weather int
}

// Store receives imported records.
type Store interface {
	UpsertDailyMetric(m *models.DailyMetric) error
	UpsertDailyWeather(w *models.DailyWeather) error
}

// Supported reports whether the file extension is importable.
func Supported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".yaml", ".yml":
		return true
	}
	return false
}

// Decode parses a batch, choosing the format from the extension.
func Decode(path string, data []byte) (*Batch, error) {
	var batch Batch
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(data, &batch); err != nil {
			return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &batch); err != nil {
			return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
		}
	default:
		return nil, fmt.Errorf("unsupported file type: %s", filepath.Ext(path))
	}
	return &batch, nil
}

// Validate checks every record has a well-formed date.
func (b *Batch) Validate() error {
	var errs []error
	for i, m := range b.DailyMetrics {
		if _, err := models.ParseDateKey(m.Date); err != nil {
			errs = append(errs, fmt.Errorf("daily_metrics[%d]: %w", i, err))
		}
	}
	for i, w := range b.DailyWeather {
		if _, err := models.ParseDateKey(w.Date); err != nil {
			errs = append(errs, fmt.Errorf("daily_weather[%d]: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// ImportFile reads, validates and upserts one file. Nothing is written
// when validation fails.
func ImportFile(store Store, path string) (Result, error) {
	res := Result{Path: path}
	data, err := os.ReadFile(path)
	if err != nil {
		return res, fmt.Errorf("read %s: %w", path, err)
	}
	batch, err := Decode(path, data)
	if err != nil {
		return res, err
	}
	if err := batch.Validate(); err != nil {
		return res, err
	}

	now := time.Now()
	for _, m := range batch.DailyMetrics {
		if m.SyncedAt.IsZero() {
			m.SyncedAt = now
		}
		if err := store.UpsertDailyMetric(m); err != nil {
			return res, fmt.Errorf("save metric %s: %w", m.Date, err)
		}
		res.Metrics++
	}
	for _, w := range batch.DailyWeather {
		if w.FetchedAt.IsZero() {
			w.FetchedAt = now
		}
		if err := store.UpsertDailyWeather(w); err != nil {
			return res, fmt.Errorf("save weather %s: %w", w.Date, err)
		}
		res.Weather++
	}
	return res, nil
}

// Handler is called once per file handled by Watch.
type Handler func(res Result, err error)

// Watcher imports files dropped into an inbox directory. Successful files
// move to processed/, failures to failed/.
type Watcher struct {
	store Store
	dir   string
	log   *zap.Logger
}

// NewWatcher creates a watcher for dir, creating it if needed.
func NewWatcher(store Store, dir string) (*Watcher, error) {
	for _, sub := range []string{"", ProcessedDir, FailedDir} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0750); err != nil {
			return nil, fmt.Errorf("create inbox: %w", err)
		}
	}
	return &Watcher{store: store, dir: dir, log: logging.Named("importer", zap.String("dir", dir))}, nil
}

// ImportPending handles files already sitting in the inbox, oldest name first.
func (w *Watcher) ImportPending(handle Handler) error {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return fmt.Errorf("read inbox: %w", err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && Supported(e.Name()) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	for _, name := range names {
		w.handle(filepath.Join(w.dir, name), handle)
	}
	return nil
}

// Run imports pending files, then watches until ctx is done.
func (w *Watcher) Run(ctx context.Context, handle Handler) (err error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create file watcher: %w", err)
	}
	defer func() {
		if closeErr := watcher.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	if err := watcher.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}
	if err := w.ImportPending(handle); err != nil {
		return err
	}
	w.log.Info("watching inbox")

	ready := make(chan string)
	timers := make(map[string]*time.Timer)
	defer func() {
		for _, t := range timers {
			t.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if filepath.Dir(event.Name) != filepath.Clean(w.dir) || !Supported(event.Name) {
				continue
			}
			path := event.Name
			if t, ok := timers[path]; ok {
				t.Reset(settle)
				continue
			}
			timers[path] = time.AfterFunc(settle, func() {
				select {
				case ready <- path:
				case <-ctx.Done():
				}
			})
		case path := <-ready:
			delete(timers, path)
			if _, err := os.Stat(path); err != nil {
				continue
			}
			w.handle(path, handle)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("file watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) handle(path string, handle Handler) {
	res, err := ImportFile(w.store, path)
	dest := ProcessedDir
	if err != nil {
		dest = FailedDir
		w.log.Warn("import failed", zap.String("file", filepath.Base(path)), zap.Error(err))
	} else {
		w.log.Info("imported",
			zap.String("file", filepath.Base(path)),
			zap.Int("metrics", res.Metrics),
			zap.Int("weather", res.Weather),
		)
	}
	if moveErr := os.Rename(path, filepath.Join(w.dir, dest, filepath.Base(path))); moveErr != nil {
		w.log.Error("move imported file", zap.Error(moveErr))
		if err == nil {
			err = moveErr
		}
	}
	if handle != nil {
		handle(res, err)
	}
}
