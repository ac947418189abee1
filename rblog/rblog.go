// 🌈 Rainbow logger 🌈
// Use rblog.Print/Printf/Println for plain info logs, or rblog.Red, rblog.Green, rblog.Yellow, rblog.Blue,
// rblog.Magenta, rblog.Cyan and rblog.White for colored ones. Every line carries a timestamp and file:line.
// Packages that want levels grab the shared zerolog logger with rblog.Logger().
package rblog

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

type color string

var (
	Red     color  = "\033[31m"
	Green   color  = "\033[32m"
	Yellow  color  = "\033[33m"
	Blue    color  = "\033[34m"
	Magenta color  = "\033[35m"
	Cyan    color  = "\033[36m"
	White   color  = "\033[37m"
	reset   string = "\033[0m"
)

const timeFormat = "15:04:05.000"

// Every logger writes through sinkWriter, so SetOutput reaches loggers built before it was called.
var (
	mu  sync.Mutex
	out io.Writer = os.Stdout
	std           = zerolog.New(zerolog.ConsoleWriter{Out: sinkWriter{}, TimeFormat: timeFormat}).
		With().Timestamp().Logger()
)

type sinkWriter struct{}

// ConsoleWriter hands over one whole line per Write.
func (sinkWriter) Write(p []byte) (int, error) {
	mu.Lock()
	defer mu.Unlock()
	return out.Write(p)
}

// SetOutput redirects all logs, including those of loggers fetched earlier with Logger().
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = w
}

func SetLevel(level zerolog.Level) {
	zerolog.SetGlobalLevel(level)
}

// ParseLevel maps a config string onto a zerolog level, defaulting to info.
func ParseLevel(s string) zerolog.Level {
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil || s == "" {
		return zerolog.InfoLevel
	}
	return level
}

// Logger returns a child of the shared logger tagged with the component name.
func Logger(component string) *zerolog.Logger {
	l := std.With().Str("component", component).Logger()
	return &l
}

func output(msg string) {
	std.Info().CallerSkipFrame(2).Caller().Msg(strings.TrimSuffix(msg, "\n"))
}

func Print(v ...any) {
	output(fmt.Sprint(v...))
}

func Printf(format string, v ...any) {
	output(fmt.Sprintf(format, v...))
}

func Println(v ...any) {
	output(fmt.Sprintln(v...))
}

func (l *color) Print(v ...any) {
	output(string(*l) + fmt.Sprint(v...) + reset)
}

func (l *color) Printf(format string, v ...any) {
	output(string(*l) + fmt.Sprintf(format, v...) + reset)
}

func (l *color) Println(v ...any) {
	output(string(*l) + strings.TrimSuffix(fmt.Sprintln(v...), "\n") + reset)
}
