package rblog

import (
	"bytes"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
)

func TestColoredPrint(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stdout)

	Red.Println("door open on floor", 7)
	Printf("car %s started", "car1")

	out := buf.String()
	if !strings.Contains(out, "door open on floor 7") {
		t.Errorf("output %q is missing the colored message", out)
	}
	if !strings.Contains(out, string(Red)) {
		t.Errorf("output %q is missing the red escape code", out)
	}
	if !strings.Contains(out, "car car1 started") {
		t.Errorf("output %q is missing the plain message", out)
	}
	if !strings.Contains(out, "rblog_test.go") {
		t.Errorf("output %q does not point at the calling file", out)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"":        zerolog.InfoLevel,
		"debug":   zerolog.DebugLevel,
		" WARN ":  zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"nonsens": zerolog.InfoLevel,
	}
	for in, expected := range cases {
		if got := ParseLevel(in); got != expected {
			t.Errorf("ParseLevel(%q) = %v, expected %v", in, got, expected)
		}
	}
}

func TestLoggerConcurrent(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				if Logger("test") == nil {
					t.Errorf("Logger() = nil, expected a non-nil logger")
					return
				}
			}
		}()
	}
	wg.Wait()
}

var early = Logger("early")

func TestSetOutputReachesEarlierLoggers(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stdout)

	early.Info().Msg("car registered")
	Logger("late").Warn().Msg("request rejected")

	out := buf.String()
	if !strings.Contains(out, "car registered") {
		t.Errorf("output %q is missing the line from a logger built before SetOutput()", out)
	}
	if !strings.Contains(out, "request rejected") {
		t.Errorf("output %q is missing the line from a logger built after SetOutput()", out)
	}
}
