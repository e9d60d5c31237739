/* Copyright (c) 2018 Gregor Riepl
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 */

package util

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"time"
)

const (
	// signalQueueLength specifies the maximum number of unhandled control signals
	signalQueueLength int = 100
	// logQueueLength specifies the maximum number of unwritten log messages
	logQueueLength int = 100
	// timeFormat configures the format for time strings
	timeFormat string = time.RFC3339
	// closeSignal is a signal identifier for a "close the log" notification.
	// Distinct from UserSignal.
	closeSignal internalSignal = internalSignal("CLS")
	//
	// KeyModule is the standard key for a user-defined module name
	KeyModule string = "module"
	// KeyTime is the standard key for the time stamp when the log entry was generated
	KeyTime string = "time"
)

var (
	globalStandardLogger MultiLogger = MultiLogger{
		&ConsoleLogger{},
	}
)

type internalSignal string

func (s internalSignal) Signal() {}
func (s internalSignal) String() string {
	return string(s)
}

// Dict is a generic string:any dictionary type, for more convenience
// when creating structured logs.
type Dict map[string]interface{}

// Logger is an interface for loggers that can generate JSON-formatted logs
// from structured data.
//
// It is recommended that logs follow some general guidelines, like adding
// a reference to the module that generated them, or a flag to differentiate
// various kinds of log messages.
//
// See ModuleLogger for an easy way to do this.
//
// Examples:
// { "module": "camera", "event": "grab", "format": "jpeg", "length": 48211 }
// { "module": "streaming", "event": "streaming", "remote": "192.168.1.20:49999", "session": "..." }
// { "module": "streaming", "event": "closed", "remote": "192.168.1.20:49999", "frames": 611, "bytes": 29437112 }
type Logger interface {
	// Logd writes one or multiple data structures to the log represented by this logger.
	// Each argument is processed through json.Marshal and generates one line in the log.
	//
	// Example usage:
	//   logger.Logd(Dict{ "key": "value" }, Dict{ "key": "value2" })
	Logd(lines ...Dict)
	// Logkv is a convenience function that sends a single log line to the logger.
	// The arguments are alternating key -> value pairs that are assembled into a dictionary.
	//
	// Simply call:
	//   logger.Logkv("key", "value", "key2", 10)
	Logkv(keyValues ...interface{})
}

// LogFunnel is a simple helper for converting variadic key-value pairs into a dictionary
func LogFunnel(keyValues []interface{}) Dict {
	d := make(Dict)
	// we need an even number of additional args
	for i := 0; i+1 < len(keyValues); i += 2 {
		k, ok := keyValues[i].(string)
		// ignore if the key is not a string
		if ok {
			d[k] = keyValues[i+1]
		}
	}
	return d
}

// NewGlobalModuleLogger creates a global logger for the current package and
// connects it to the global standard logger.
//
// The default output for standard logger is a JSON log with added timestamps,
// but this can be changed by calling SetGlobalStandardLogger.
//
// An optional dictionary argument allows specifying additional keys that are
// added to every log line. Can be nil if you don't need it.
func NewGlobalModuleLogger(module string, dict Dict) *ModuleLogger {
	more := make(Dict)
	for k, v := range dict {
		more[k] = v
	}
	more[KeyModule] = module
	logger := &ModuleLogger{
		Logger:       globalStandardLogger,
		Defaults:     more,
		AddTimestamp: true,
	}
	return logger
}

// SetGlobalStandardLogger assigns a new backing logger to the global standard logger
//
// A reference to the old logger is returned.
func SetGlobalStandardLogger(logger Logger) Logger {
	old := globalStandardLogger[0]
	globalStandardLogger[0] = logger
	return old
}

// ModuleLogger encapsulates default values for a JSON log.
//
// If AddTimestamp is true, each log line will contain the key 'time' with the
// current time in RFC 3339 format (ex.: 2006-01-02T15:04:05Z07:00).
//
// The keys in the Defaults dictionary will always be added.
type ModuleLogger struct {
	// Logger is the backing logger to send log lines to.
	Logger Logger
	// Defaults is a dictionary containing default keys.
	Defaults Dict
	// AddTimestamp determines if a "time" value with the current time in RFC 3339 format
	// is added to the dictionary before it is passed to the underlying logger.
	AddTimestamp bool
}

// Logd adds predefined values to each log line and writes it to the encapsulated log.
func (logger *ModuleLogger) Logd(lines ...Dict) {
	proclines := make([]Dict, len(lines))
	for i, line := range lines {
		processed := make(Dict)
		for key, value := range logger.Defaults {
			processed[key] = value
		}
		if logger.AddTimestamp {
			processed[KeyTime] = time.Now().Format(timeFormat)
		}
		for key, value := range line {
			processed[key] = value
		}
		proclines[i] = processed
	}
	logger.Logger.Logd(proclines...)
}

func (logger *ModuleLogger) Logkv(keyValues ...interface{}) {
	logger.Logd(LogFunnel(keyValues))
}

// With returns a derived ModuleLogger that adds the given key-value pairs
// to every log line, on top of the defaults of this logger.
//
// Useful for per-connection loggers that always carry a client address or session id.
func (logger *ModuleLogger) With(keyValues ...interface{}) *ModuleLogger {
	defaults := make(Dict, len(logger.Defaults)+len(keyValues)/2)
	for key, value := range logger.Defaults {
		defaults[key] = value
	}
	for key, value := range LogFunnel(keyValues) {
		defaults[key] = value
	}
	return &ModuleLogger{
		Logger:       logger.Logger,
		Defaults:     defaults,
		AddTimestamp: logger.AddTimestamp,
	}
}

// DummyLogger is a logger placeholder that doesn't actually log anything.
type DummyLogger struct{}

func (*DummyLogger) Logd(lines ...Dict)             {}
func (*DummyLogger) Logkv(keyValues ...interface{}) {}

// MultiLogger logs to several backend loggers at once.
type MultiLogger []Logger

// Logd writes the same log lines to all backing loggers.
func (logger MultiLogger) Logd(lines ...Dict) {
	for _, backer := range logger {
		backer.Logd(lines...)
	}
}

func (logger MultiLogger) Logkv(keyValues ...interface{}) {
	logger.Logd(LogFunnel(keyValues))
}

// ConsoleLogger is a simple logger that prints to stdout, or to Writer if it is set.
//
// Your best bet if you don't want/need a full-blown file logging queue with
// signal-initiated reopening.
type ConsoleLogger struct {
	// Writer is the log destination. os.Stdout is used if it is nil.
	Writer io.Writer
	// lock serialises concurrent writers, so log lines are never interleaved
	lock sync.Mutex
}

// Logd writes a log line to the console.
func (logger *ConsoleLogger) Logd(lines ...Dict) {
	logger.lock.Lock()
	defer logger.lock.Unlock()
	var out io.Writer = os.Stdout
	if logger.Writer != nil {
		out = logger.Writer
	}
	encoder := json.NewEncoder(out)
	for _, line := range lines {
		err := encoder.Encode(line)
		if err != nil {
			fmt.Fprintf(out, "{\"event\":\"error\",\"message\":\"Cannot encode log line\",\"line\":\"%v\"}\n", line)
		}
	}
}

func (logger *ConsoleLogger) Logkv(keyValues ...interface{}) {
	logger.Logd(LogFunnel(keyValues))
}

// A FileLogger writes JSON-formatted log lines to a file.
//
// Log lines are prefixed with a timestamp in RFC3339 format, like this:
// [2006-01-02T15:04:05Z07:00] <JSON>
type FileLogger struct {
	// notification channel
	// also used for system signals
	signals chan os.Signal
	// log file name
	name string
	// log file handle
	log io.WriteCloser
	// message queue
	messages chan Dict
	// done is closed when the handler goroutine exits
	done chan struct{}
	// log line counter
	lines uint64
	// dropped line counter
	drops uint64
	// error counter (encoding errors or closed log file)
	errors uint64
}

// NewFileLogger creates a new FileLogger and optionally installs a SIGUSR1 handler;
// pass sigusr=true for that purpose. This is useful for log rotation, etc.
//
// Signals are only fully supported on POSIX systems, so no SIGUSR1 is sent
// when running on Microsoft Windows, for example.
func NewFileLogger(logfile string, sigusr bool) (*FileLogger, error) {
	logger := &FileLogger{
		signals:  make(chan os.Signal, signalQueueLength),
		name:     logfile,
		messages: make(chan Dict, logQueueLength),
		done:     make(chan struct{}),
	}

	// open the log for the first time
	err := logger.reopenLog()
	if err != nil {
		return nil, err
	}

	if sigusr {
		RegisterUserSignalHandler(logger.signals)
	}
	go logger.handle()

	return logger, nil
}

// Logd queues a series of log lines. Lines are dropped if the queue is full.
func (logger *FileLogger) Logd(lines ...Dict) {
	for _, line := range lines {
		select {
		case logger.messages <- line:
			// ok
		default:
			fmt.Printf("{\"event\":\"error\",\"message\":\"Log queue is full, message dropped\",\"line\":\"%v\"}\n", line)
			atomic.AddUint64(&logger.drops, 1)
		}
	}
}

func (logger *FileLogger) Logkv(keyValues ...interface{}) {
	logger.Logd(LogFunnel(keyValues))
}

// Counters returns the number of written, dropped and failed log lines.
func (logger *FileLogger) Counters() (lines, drops, errors uint64) {
	return atomic.LoadUint64(&logger.lines), atomic.LoadUint64(&logger.drops), atomic.LoadUint64(&logger.errors)
}

// writeLog writes a single log line
func (logger *FileLogger) writeLog(line Dict) {
	if logger.log == nil {
		fmt.Printf("{\"event\":\"error\",\"message\":\"Output is closed, dropping line\",\"line\":\"%v\"}\n", line)
		atomic.AddUint64(&logger.errors, 1)
		return
	}
	data, err := json.Marshal(line)
	if err != nil {
		fmt.Printf("{\"event\":\"error\",\"message\":\"Cannot encode log line\",\"line\":\"%v\"}\n", line)
		atomic.AddUint64(&logger.errors, 1)
		return
	}
	fmt.Fprintf(logger.log, "[%s] %s\n", time.Now().Format(timeFormat), data)
	atomic.AddUint64(&logger.lines, 1)
}

// Close flushes the queue, closes the log file and disables further logging.
// It waits until the log is closed.
func (logger *FileLogger) Close() {
	logger.signals <- closeSignal
	<-logger.done
}

// reopenLog (re-)opens the log file.
func (logger *FileLogger) reopenLog() error {
	if logger.log != nil {
		err := logger.log.Close()
		logger.log = nil
		if err != nil {
			return err
		}
	}
	fd, err := os.OpenFile(logger.name, os.O_WRONLY|os.O_APPEND|os.O_CREATE, os.FileMode(0666))
	if err != nil {
		return err
	}
	logger.log = fd
	return nil
}

// handle processes the log queue and the USR1 signal.
// If USR1 is received the log file is closed and reopened.
func (logger *FileLogger) handle() {
	defer close(logger.done)
	for {
		select {
		case sig := <-logger.signals:
			switch sig {
			case UserSignal:
				err := logger.reopenLog()
				if err != nil {
					fmt.Printf("{\"event\":\"error\",\"message\":\"Error reopening log\",\"error\":\"reopen\",\"errmsg\":\"%s\"}\n", err.Error())
				}
			case closeSignal:
				signal.Stop(logger.signals)
				// write out whatever is still queued
				for {
					select {
					case line := <-logger.messages:
						logger.writeLog(line)
						continue
					default:
					}
					break
				}
				if logger.log != nil {
					logger.log.Close()
					logger.log = nil
				}
				return
			}
		case line := <-logger.messages:
			logger.writeLog(line)
		}
	}
}
