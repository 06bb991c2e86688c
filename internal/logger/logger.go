// Package logger предоставляет логирование с префиксом сервиса и асинхронной записью,
// чтобы не блокировать основное приложение. Поддерживается логирование времени выполнения функций.
// Запись выполняется через zerolog: JSON по умолчанию, LOG_FORMAT=console для разработки.
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	asyncBufferSize = 8192
	slowThreshold   = 100 * time.Millisecond
)

var (
	prefix   string
	base     zerolog.Logger
	ch       chan entry
	once     sync.Once
	prefixMu sync.RWMutex
)

type entry struct {
	level   zerolog.Level
	service string
	msg     string
	fn      string
	elapsed time.Duration
}

func parseLevel(s string) zerolog.Level {
	switch s {
	case "debug", "trace":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func initLevel() {
	zerolog.SetGlobalLevel(parseLevel(os.Getenv("LOG_LEVEL")))
}

// SetLevel меняет уровень на лету (debug, info, warn, error); неизвестное значение — info.
func SetLevel(level string) {
	once.Do(initWorker)
	zerolog.SetGlobalLevel(parseLevel(level))
}

func newBase(out io.Writer) zerolog.Logger {
	if os.Getenv("LOG_FORMAT") == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).With().Timestamp().Logger()
}

func initWorker() {
	initLevel()
	base = newBase(os.Stderr)
	ch = make(chan entry, asyncBufferSize)
	go func() {
		for e := range ch {
			write(e)
		}
	}()
}

func write(e entry) {
	ev := base.WithLevel(e.level)
	if e.service != "" {
		ev = ev.Str("service", e.service)
	}
	if e.fn != "" {
		ev = ev.Str("fn", e.fn).Int64("duration_ms", e.elapsed.Milliseconds())
	}
	ev.Msg(e.msg)
}

func enqueue(lvl zerolog.Level, msg string) {
	once.Do(initWorker)
	if lvl < zerolog.GlobalLevel() {
		return
	}
	push(entry{level: lvl, service: currentPrefix(), msg: msg})
}

func push(e entry) {
	select {
	case ch <- e:
	default:
		// Буфер полон — не блокируем, теряем лог
	}
}

// SetPrefix задаёт префикс для всех последующих логов (например "api", "push").
func SetPrefix(p string) {
	prefixMu.Lock()
	prefix = p
	prefixMu.Unlock()
}

func currentPrefix() string {
	prefixMu.RLock()
	defer prefixMu.RUnlock()
	return prefix
}

func Debugf(format string, v ...any) {
	enqueue(zerolog.DebugLevel, fmt.Sprintf(format, v...))
}

// Info пишет в лог с префиксом (асинхронно).
func Info(v ...any) {
	enqueue(zerolog.InfoLevel, fmt.Sprint(v...))
}

// Infof форматирует и пишет с префиксом (асинхронно).
func Infof(format string, v ...any) {
	enqueue(zerolog.InfoLevel, fmt.Sprintf(format, v...))
}

func Warnf(format string, v ...any) {
	enqueue(zerolog.WarnLevel, fmt.Sprintf(format, v...))
}

// Error пишет ошибку с префиксом (асинхронно).
func Error(v ...any) {
	enqueue(zerolog.ErrorLevel, fmt.Sprint(v...))
}

// Errorf форматирует ошибку с префиксом (асинхронно).
func Errorf(format string, v ...any) {
	enqueue(zerolog.ErrorLevel, fmt.Sprintf(format, v...))
}

// LogDuration логирует имя функции и время выполнения в миллисекундах (асинхронно).
// При LOG_LEVEL=info логирует только вызовы дольше 100ms; при LOG_LEVEL=debug — все.
func LogDuration(fn string, start time.Time) {
	once.Do(initWorker)
	elapsed := time.Since(start)
	if zerolog.GlobalLevel() <= zerolog.DebugLevel || elapsed >= slowThreshold {
		push(entry{level: zerolog.InfoLevel, service: currentPrefix(), msg: "duration", fn: fn, elapsed: elapsed})
	}
}

// DeferLogDuration возвращает функцию для вызова в defer: defer logger.DeferLogDuration("HandlerName", time.Now())().
func DeferLogDuration(fn string, start time.Time) func() {
	return func() { LogDuration(fn, start) }
}
