// pkg/logging/logging.go - timestamped run logging for the PV install agent
//
// Every agent run gets its own directory (YYYY-MM-DD-HHMMss) under the log
// base directory, holding:
// - agent.log: human readable lines with key=value pairs
// - events.jsonl: one JSON object per entry for log shippers
// - agent.yaml: optional YAML stream of the same entries
// Old run directories are pruned at start-up according to the retention policy.

package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/windowsadmins/pvagent/pkg/config"
	"github.com/windowsadmins/pvagent/pkg/version"
)

// LogLevel represents the severity of the log message.
type LogLevel int

const (
	// Define log levels.
	LevelError LogLevel = iota
	LevelWarn
	LevelInfo
	LevelDebug
)

// String returns the string representation of the LogLevel.
func (ll LogLevel) String() string {
	switch ll {
	case LevelError:
		return "ERROR"
	case LevelWarn:
		return "WARN"
	case LevelInfo:
		return "INFO"
	case LevelDebug:
		return "DEBUG"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel maps a config level name to a LogLevel, defaulting to INFO.
func ParseLevel(s string) LogLevel {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ERROR":
		return LevelError
	case "WARN", "WARNING":
		return LevelWarn
	case "DEBUG":
		return LevelDebug
	default:
		return LevelInfo
	}
}

// LevelForVerbosity raises base by the -v count: 1 shows at least INFO,
// 2 or more shows DEBUG. A level already louder than requested is kept.
func LevelForVerbosity(v int, base string) string {
	level := ParseLevel(base)
	want := level
	switch {
	case v <= 0:
	case v == 1:
		want = LevelInfo
	default:
		want = LevelDebug
	}
	if want > level {
		level = want
	}
	return level.String()
}

// LogEntry is the structured form of one log line.
type LogEntry struct {
	Time       int64                  `json:"time" yaml:"time"`
	Timestamp  string                 `json:"timestamp" yaml:"timestamp"`
	Level      string                 `json:"level" yaml:"level"`
	Message    string                 `json:"message" yaml:"message"`
	Component  string                 `json:"component" yaml:"component"`
	PID        int64                  `json:"pid" yaml:"pid"`
	Hostname   string                 `json:"hostname" yaml:"hostname"`
	Version    string                 `json:"version" yaml:"version"`
	SessionID  string                 `json:"session_id" yaml:"session_id"`
	Properties map[string]interface{} `json:"properties,omitempty" yaml:"properties,omitempty"`
}

// LoggerConfig holds configuration for the run logger.
type LoggerConfig struct {
	BaseDir       string // Base logging directory
	Level         string // ERROR, WARN, INFO, DEBUG
	Component     string // Component/module name
	KeepRuns      int    // Newest run directories to keep (0 keeps all)
	EnableJSON    bool   // Write events.jsonl
	EnableYAML    bool   // Write agent.yaml
	EnableConsole bool   // Mirror agent.log to stdout
}

// Logger writes to the current run directory.
type Logger struct {
	mu       sync.RWMutex
	logger   *log.Logger
	logLevel LogLevel
	logFile  *os.File
	jsonFile *os.File
	yamlFile *os.File
	config   LoggerConfig
	logDir   string
	session  string
	hostname string
}

var (
	instance *Logger
	once     sync.Once

	// fallback receives entries logged before Init.
	fallbackMu sync.Mutex
	fallback   io.Writer = os.Stderr
)

// Init initializes the singleton Logger from the agent configuration.
func Init(cfg *config.Configuration) error {
	return InitWithConfig(LoggerConfig{
		BaseDir:       cfg.LogDir,
		Level:         cfg.LogLevel,
		Component:     version.AppName(),
		KeepRuns:      cfg.KeepLogRuns,
		EnableJSON:    true,
		EnableYAML:    cfg.Debug,
		EnableConsole: true,
	})
}

// InitWithConfig initializes the singleton Logger with an explicit LoggerConfig.
func InitWithConfig(logCfg LoggerConfig) error {
	var initErr error
	once.Do(func() {
		instance, initErr = newLogger(logCfg, time.Now())
	})
	return initErr
}

// SetOutput redirects entries logged before Init (used by tests).
func SetOutput(w io.Writer) {
	fallbackMu.Lock()
	defer fallbackMu.Unlock()
	fallback = w
}

func newLogger(cfg LoggerConfig, start time.Time) (*Logger, error) {
	if err := os.MkdirAll(cfg.BaseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base log directory: %w", err)
	}

	pruneRuns(cfg.BaseDir, cfg.KeepRuns)

	logDir := filepath.Join(cfg.BaseDir, start.Format("2006-01-02-150405"))
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory %s: %w", logDir, err)
	}

	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "unknown"
	}

	l := &Logger{
		logLevel: ParseLevel(cfg.Level),
		config:   cfg,
		logDir:   logDir,
		session:  fmt.Sprintf("%s-%d", version.AppName(), start.Unix()),
		hostname: hostname,
	}
	if err := l.openFiles(); err != nil {
		l.close()
		return nil, err
	}

	if cfg.EnableConsole {
		enableColors()
		l.logger = log.New(io.MultiWriter(os.Stdout, l.logFile), "", 0)
	} else {
		l.logger = log.New(l.logFile, "", 0)
	}
	return l, nil
}

func (l *Logger) openFiles() error {
	var err error
	l.logFile, err = os.OpenFile(filepath.Join(l.logDir, "agent.log"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open main log file: %w", err)
	}
	if l.config.EnableJSON {
		l.jsonFile, err = os.OpenFile(filepath.Join(l.logDir, "events.jsonl"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("failed to open JSON log file: %w", err)
		}
	}
	if l.config.EnableYAML {
		l.yamlFile, err = os.OpenFile(filepath.Join(l.logDir, "agent.yaml"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("failed to open YAML log file: %w", err)
		}
	}
	return nil
}

// isRunDir matches the YYYY-MM-DD-HHMMss directory format.
func isRunDir(name string) bool {
	if len(name) != 17 || strings.Count(name, "-") != 3 {
		return false
	}
	_, err := time.Parse("2006-01-02-150405", name)
	return err == nil
}

// pruneRuns deletes all but the newest keep run directories. Best effort.
func pruneRuns(baseDir string, keep int) {
	if keep <= 0 {
		return
	}
	entries, err := os.ReadDir(baseDir)
	if err != nil {
		return
	}
	var runs []string
	for _, e := range entries {
		if e.IsDir() && isRunDir(e.Name()) {
			runs = append(runs, e.Name())
		}
	}
	// Names sort chronologically; newest first.
	sort.Sort(sort.Reverse(sort.StringSlice(runs)))
	// keep-1 old runs plus the one about to be created
	for i := keep - 1; i < len(runs); i++ {
		os.RemoveAll(filepath.Join(baseDir, runs[i]))
	}
}

func (l *Logger) close() {
	for _, f := range []**os.File{&l.logFile, &l.jsonFile, &l.yamlFile} {
		if *f != nil {
			if err := (*f).Close(); err != nil {
				fmt.Fprintf(os.Stderr, "Failed to close log file: %v\n", err)
			}
			*f = nil
		}
	}
}

// CloseLogger closes all log files if they're open.
func CloseLogger() {
	if instance == nil {
		return
	}
	instance.mu.Lock()
	defer instance.mu.Unlock()
	instance.close()
}

// GetCurrentLogDir returns the current run directory.
func GetCurrentLogDir() string {
	if instance == nil {
		return ""
	}
	instance.mu.RLock()
	defer instance.mu.RUnlock()
	return instance.logDir
}

func properties(keyValues []interface{}) map[string]interface{} {
	if len(keyValues) == 0 {
		return nil
	}
	props := make(map[string]interface{}, len(keyValues)/2)
	for i := 0; i+1 < len(keyValues); i += 2 {
		props[fmt.Sprintf("%v", keyValues[i])] = keyValues[i+1]
	}
	return props
}

// formatLine renders the traditional "[ts] LEVEL msg k=v" line.
func formatLine(ts time.Time, level LogLevel, message string, keyValues []interface{}) string {
	line := fmt.Sprintf("[%s] %-5s %s", ts.Format("2006-01-02 15:04:05"), level.String(), message)
	for i := 0; i+1 < len(keyValues); i += 2 {
		line += fmt.Sprintf(" %v=%v", keyValues[i], keyValues[i+1])
	}
	return line
}

func (l *Logger) logMessage(level LogLevel, message string, keyValues ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if level > l.logLevel || l.logger == nil {
		return
	}

	now := time.Now()
	line := formatLine(now, level, message, keyValues)
	if level == LevelError {
		line = "\n----------------------------------------\n" + line
	}
	l.logger.Println(line)

	entry := LogEntry{
		Time:       now.Unix(),
		Timestamp:  now.Format(time.RFC3339),
		Level:      level.String(),
		Message:    message,
		Component:  l.config.Component,
		PID:        int64(os.Getpid()),
		Hostname:   l.hostname,
		Version:    version.Version().Version,
		SessionID:  l.session,
		Properties: stringify(properties(keyValues)),
	}
	if l.jsonFile != nil {
		if data, err := json.Marshal(entry); err == nil {
			l.jsonFile.Write(append(data, '\n'))
		}
	}
	if l.yamlFile != nil {
		if data, err := yaml.Marshal(entry); err == nil {
			l.yamlFile.WriteString("---\n" + string(data))
		}
	}

	l.logFile.Sync()
}

// stringify turns error values into strings so they serialize readably.
func stringify(props map[string]interface{}) map[string]interface{} {
	for k, v := range props {
		if err, ok := v.(error); ok {
			props[k] = err.Error()
		}
	}
	return props
}

func logPackage(level LogLevel, message string, keyValues []interface{}) {
	if instance == nil {
		fallbackMu.Lock()
		defer fallbackMu.Unlock()
		if fallback != nil {
			fmt.Fprintln(fallback, formatLine(time.Now(), level, message, keyValues))
		}
		return
	}
	instance.logMessage(level, message, keyValues...)
}

// Info logs informational messages.
func Info(message string, keyValues ...interface{}) {
	logPackage(LevelInfo, message, keyValues)
}

// Debug logs debug messages.
func Debug(message string, keyValues ...interface{}) {
	logPackage(LevelDebug, message, keyValues)
}

// Warn logs warning messages.
func Warn(message string, keyValues ...interface{}) {
	logPackage(LevelWarn, message, keyValues)
}

// Error logs error messages.
func Error(message string, keyValues ...interface{}) {
	logPackage(LevelError, message, keyValues)
}
