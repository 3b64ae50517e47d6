package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/SovereignEdgeEU-COGNIT/device-runtime-go/pkg/util"
)

// Logger defines the interface for audit logging backends.
type Logger interface {
	Log(event *Event) error
	Query(filter Filter) ([]*Event, error)
	Stats(filter Filter) (Stats, error)
	Close() error
}

// Stats summarizes a set of call-lifecycle events matching a Filter,
// broken down by stage.
type Stats struct {
	Total        int
	Failed       int
	ByStage      map[Stage]int
	Fingerprints map[string]int // distinct uploaded payload fingerprints seen
}

// FileLogger logs call audit events to a JSON-lines file, one Event per
// line, with optional size- and age-based rotation.
type FileLogger struct {
	path     string
	file     *os.File
	encoder  *json.Encoder
	opened   time.Time
	mu       sync.RWMutex
	rotation RotationConfig
}

// RotationConfig configures log file rotation. A call-heavy device
// running at the supervisor's 50ms tick can produce many small audit
// lines per second, so rotation is driven by whichever limit is hit
// first: file size or file age.
type RotationConfig struct {
	MaxSize    int64         // rotate once the file reaches this many bytes (0 disables)
	MaxAge     time.Duration // rotate once the current file is older than this (0 disables)
	MaxBackups int           // number of rotated files to retain
}

// NewFileLogger creates a new file-based audit logger.
func NewFileLogger(path string, rotation RotationConfig) (*FileLogger, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating audit log directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening audit log: %w", err)
	}

	return &FileLogger{
		path:     path,
		file:     file,
		encoder:  json.NewEncoder(file),
		opened:   time.Now(),
		rotation: rotation,
	}, nil
}

// Log appends a call-lifecycle event to the log file, rotating first if
// either the size or age limit configured in RotationConfig is exceeded.
func (l *FileLogger) Log(event *Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.needsRotation() {
		if err := l.rotate(); err != nil {
			return fmt.Errorf("rotating audit log: %w", err)
		}
	}

	return l.encoder.Encode(event)
}

func (l *FileLogger) needsRotation() bool {
	if l.rotation.MaxAge > 0 && time.Since(l.opened) >= l.rotation.MaxAge {
		return true
	}
	if l.rotation.MaxSize > 0 {
		if info, err := l.file.Stat(); err == nil && info.Size() >= l.rotation.MaxSize {
			return true
		}
	}
	return false
}

// Query returns events matching filter in the order they were logged
// (oldest first); Offset and Limit are applied after the full scan.
func (l *FileLogger) Query(filter Filter) ([]*Event, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	events, err := l.scanMatching(filter)
	if err != nil {
		return nil, err
	}

	if filter.Offset > 0 {
		if filter.Offset >= len(events) {
			events = nil
		} else {
			events = events[filter.Offset:]
		}
	}
	if filter.Limit > 0 && filter.Limit < len(events) {
		events = events[:filter.Limit]
	}

	return events, nil
}

// Stats summarizes the events matching filter without applying
// Offset/Limit, so the counts cover the whole matched window rather
// than one page of it.
func (l *FileLogger) Stats(filter Filter) (Stats, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	unpaged := filter
	unpaged.Offset = 0
	unpaged.Limit = 0

	events, err := l.scanMatching(unpaged)
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{
		ByStage:      make(map[Stage]int),
		Fingerprints: make(map[string]int),
	}
	for _, event := range events {
		stats.Total++
		if !event.Success {
			stats.Failed++
		}
		stats.ByStage[event.Stage]++
		if event.Fingerprint != "" {
			stats.Fingerprints[event.Fingerprint]++
		}
	}
	return stats, nil
}

// scanMatching reads the log file front to back, returning every event
// that satisfies filter (before offset/limit are applied).
func (l *FileLogger) scanMatching(filter Filter) ([]*Event, error) {
	file, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []*Event{}, nil
		}
		return nil, err
	}
	defer file.Close()

	var events []*Event
	scanner := bufio.NewScanner(file)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		var event Event
		if err := json.Unmarshal(scanner.Bytes(), &event); err != nil {
			util.Warnf("audit: skipping malformed log entry at line %d: %v", lineNum, err)
			continue
		}

		if matchesFilter(&event, filter) {
			events = append(events, &event)
		}
	}

	return events, scanner.Err()
}

// Close closes the log file.
func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// matchesFilter reports whether event satisfies every criterion set on
// filter. Call-id and function-id are checked first since they're the
// two fields `cognitctl audit list` filters by most often.
func matchesFilter(event *Event, filter Filter) bool {
	if filter.CallID != "" && event.CallID != filter.CallID {
		return false
	}
	if filter.FunctionID != "" && event.FunctionID != filter.FunctionID {
		return false
	}
	if filter.Stage != "" && event.Stage != filter.Stage {
		return false
	}
	if !filter.StartTime.IsZero() && event.Timestamp.Before(filter.StartTime) {
		return false
	}
	if !filter.EndTime.IsZero() && event.Timestamp.After(filter.EndTime) {
		return false
	}
	if filter.SuccessOnly && !event.Success {
		return false
	}
	if filter.FailureOnly && event.Success {
		return false
	}
	return true
}

func (l *FileLogger) rotate() error {
	if err := l.file.Close(); err != nil {
		return err
	}

	timestamp := time.Now().Format("20060102-150405")
	rotatedPath := l.path + "." + timestamp

	if err := os.Rename(l.path, rotatedPath); err != nil {
		return err
	}

	file, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}

	l.file = file
	l.encoder = json.NewEncoder(file)
	l.opened = time.Now()

	if l.rotation.MaxBackups > 0 {
		l.cleanupOldFiles()
	}

	return nil
}

func (l *FileLogger) cleanupOldFiles() {
	dir := filepath.Dir(l.path)
	base := filepath.Base(l.path)
	pattern := base + ".*"

	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return
	}

	type fileInfo struct {
		path    string
		modTime time.Time
	}
	var files []fileInfo
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		files = append(files, fileInfo{path, info.ModTime()})
	}

	if len(files) > l.rotation.MaxBackups {
		sort.Slice(files, func(i, j int) bool {
			return files[i].modTime.Before(files[j].modTime)
		})

		toRemove := len(files) - l.rotation.MaxBackups
		for i := 0; i < toRemove; i++ {
			os.Remove(files[i].path)
		}
	}
}

// loggerHolder wraps a Logger so atomic.Value always stores the same concrete type.
type loggerHolder struct {
	logger Logger
}

var defaultLogger atomic.Value

// SetDefaultLogger sets the process-wide default audit logger used by
// the package-level Log/Query/Stats helpers.
func SetDefaultLogger(logger Logger) {
	defaultLogger.Store(loggerHolder{logger: logger})
}

func getDefaultLogger() Logger {
	v := defaultLogger.Load()
	if v == nil {
		return nil
	}
	return v.(loggerHolder).logger
}

// Log records event with the default logger. A no-op (not an error) if
// no default logger has been configured, so call sites never need to
// nil-check before logging.
func Log(event *Event) error {
	l := getDefaultLogger()
	if l == nil {
		return nil
	}
	return l.Log(event)
}

// Query returns events matching filter from the default logger.
func Query(filter Filter) ([]*Event, error) {
	l := getDefaultLogger()
	if l == nil {
		return []*Event{}, nil
	}
	return l.Query(filter)
}

// Stats summarizes events matching filter from the default logger.
func Stats(filter Filter) (Stats, error) {
	l := getDefaultLogger()
	if l == nil {
		return Stats{ByStage: map[Stage]int{}, Fingerprints: map[string]int{}}, nil
	}
	return l.Stats(filter)
}
