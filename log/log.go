// Package log is the structured logger used across the plotting pipeline.
// It is adapted from the teacher's log package: the same level enum and
// the same stdoutCh-serialized writer goroutine (so that concurrent
// bucket/table workers never interleave partial lines), extended with
// Phase/Bucket structured fields for the per-phase and per-bucket timings
// that spec.md §7 calls out as "Observable".
package log

import (
	"fmt"
	"log"
	"os"
)

var stdoutCh = make(chan string, 10000)

var Logger *logger

type logLevel int

const (
	levelDebug logLevel = iota
	levelInfo
	levelWarning
	levelError
	levelSuccess
)

func (l logLevel) String() string {
	switch l {
	case levelSuccess:
		return "+"
	case levelError:
		return "ERROR"
	case levelWarning:
		return "WARNING"
	case levelInfo:
		return "#"
	case levelDebug:
		return "DEBUG"
	default:
		return "UNKNOWN"
	}
}

func levelFromString(s string) logLevel {
	switch s {
	case "debug":
		return levelDebug
	case "info":
		return levelInfo
	case "warning":
		return levelWarning
	case "error":
		return levelError
	default:
		return levelInfo
	}
}

type logger struct {
	donech chan struct{}
	impl   *log.Logger
	level  logLevel
	json   bool
}

// Init creates the process-wide Logger. levelName is one of
// debug/info/warning/error; json switches every message to its JSON
// encoding, for machine consumption.
func Init(levelName string, json bool) {
	Logger = &logger{
		donech: make(chan struct{}),
		impl:   log.New(os.Stdout, "", 0),
		level:  levelFromString(levelName),
		json:   json,
	}
	go Logger.stdout()
}

func (l *logger) text(level logLevel, msg Message) string {
	switch level {
	case levelError, levelWarning:
		return fmt.Sprintf("%v %v", level, msg.String())
	default:
		return fmt.Sprintf("                   %v %v", level, msg.String())
	}
}

func (l *logger) printf(level logLevel, msg Message) {
	if l == nil || level < l.level {
		return
	}
	if l.json {
		stdoutCh <- msg.JSON()
	} else {
		stdoutCh <- l.text(level, msg)
	}
}

func (l *logger) Debug(msg Message)   { l.printf(levelDebug, msg) }
func (l *logger) Info(msg Message)    { l.printf(levelInfo, msg) }
func (l *logger) Success(msg Message) { l.printf(levelSuccess, msg) }
func (l *logger) Warning(msg Message) { l.printf(levelWarning, msg) }
func (l *logger) Error(msg Message)   { l.printf(levelError, msg) }

func (l *logger) stdout() {
	defer close(l.donech)
	for msg := range stdoutCh {
		l.impl.Println(msg)
	}
}

// Close drains and stops the writer goroutine. Safe to call once, at
// process shutdown.
func Close() {
	if Logger == nil {
		return
	}
	close(stdoutCh)
	<-Logger.donech
}

// package-level convenience wrappers; every call is a no-op before Init.

func Debug(msg Message)   { Logger.Debug(msg) }
func Info(msg Message)    { Logger.Info(msg) }
func Success(msg Message) { Logger.Success(msg) }
func Warning(msg Message) { Logger.Warning(msg) }
func Error(msg Message)   { Logger.Error(msg) }
