package logger_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/oslokommune/okdata-permission-api/internal/logger"
)

func TestLogger(t *testing.T) {
	type testCase struct {
		name             string
		cfg              logger.Log
		shouldHaveOutPut bool
		outPutIsJSON     bool
	}

	testCases := []testCase{
		{
			name: "no logger enabled log level not set",
			cfg: logger.Log{
				LogLevel:    "",
				ServiceName: "test",
				AppName:     "test",
			},
			shouldHaveOutPut: false,
		},
		{
			name: "console enabled log level info",
			cfg: logger.Log{
				LogLevel:    "info",
				ServiceName: "test",
				AppName:     "test",
				Console:     logger.Console{Enabled: true},
			},
			shouldHaveOutPut: true,
		},
		{
			name: "console enabled console writer enabled",
			cfg: logger.Log{
				LogLevel:    "info",
				ServiceName: "test",
				AppName:     "test",
				Console:     logger.Console{Enabled: true, UseConsoleWriter: true},
			},
			shouldHaveOutPut: true,
		},
		{
			name: "console enabled console writer enabled trace",
			cfg: logger.Log{
				LogLevel:    "trace",
				ServiceName: "test",
				AppName:     "test",
				Console:     logger.Console{Enabled: true, UseConsoleWriter: true},
			},
			shouldHaveOutPut: true,
		},
		{
			name: "console enabled console writer disabled info expect json",
			cfg: logger.Log{
				LogLevel:    "info",
				ServiceName: "test",
				AppName:     "test",
				Console:     logger.Console{Enabled: true, UseConsoleWriter: false},
			},
			shouldHaveOutPut: true,
			outPutIsJSON:     true,
		},
		{
			name: "console enabled console writer disabled trace expect json stack",
			cfg: logger.Log{
				LogLevel:     "trace",
				ServiceName:  "test",
				AppName:      "test",
				ReportCaller: true,
				Console:      logger.Console{Enabled: true, UseConsoleWriter: false},
			},
			shouldHaveOutPut: true,
			outPutIsJSON:     true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			out := testLoggerConfig(t, tc.cfg)
			t.Logf("out: %s", out)

			switch {
			case out == "" && tc.shouldHaveOutPut:
				t.Errorf("expected no console output but got: %s", out)
			case tc.outPutIsJSON:
				// split lines
				outSplit := strings.Split(out, "\n")
				// try to decode
				type Foo struct { //nolint:musttag
					Level   string
					App     string
					Service string
					Message string
				}

				dummy := Foo{}

				for _, outLine := range outSplit {
					if outLine != "" {
						if err := json.Unmarshal([]byte(outLine), &dummy); err != nil {
							t.Errorf("expected json output but got: %s", out) //nolint:goerr113
						} else if dummy.App != tc.cfg.AppName || dummy.Service != tc.cfg.ServiceName {
							t.Errorf("expected app and service fields but got: %s", outLine)
						}
					}
				}
			}
		})
	}
}

func alwaysErrFunc() error {
	return errors.New("a test error") //nolint:goerr113
}

func testLoggerConfig(t *testing.T, cfg logger.Log) string {
	t.Helper()
	// keep default std out
	stdout := os.Stdout
	stderr := os.Stderr

	// capture stdout
	r, w, _ := os.Pipe()
	os.Stdout = w
	os.Stderr = w

	err := logger.Init(cfg)
	if err != nil {
		t.Error(err)
	}

	log.Info().Msg("this info message should be seen...")
	log.Error().Err(alwaysErrFunc()).Msg("this err message should be seen...")
	log.Trace().Err(alwaysErrFunc()).Msg("this trace message should be seen...")

	outC := make(chan string)
	// copy the output in a separate goroutine so printing can't block indefinitely
	go func() {
		var buf bytes.Buffer
		_, err = io.Copy(&buf, r)
		if err != nil {
			t.Error(err)
		}
		outC <- buf.String()
	}()

	// back to normal state
	_ = w.Close()
	os.Stdout = stdout // restoring the real stdout
	os.Stderr = stderr // restoring the real stderr
	out := <-outC

	return out
}

func TestInitRequiresNames(t *testing.T) {
	tests := []struct {
		name string
		cfg  logger.Log
		want error
	}{
		{name: "no service name", cfg: logger.Log{LogLevel: "info", AppName: "test"}, want: logger.ErrServiceNameIsEmpty},
		{name: "no app name", cfg: logger.Log{LogLevel: "info", ServiceName: "test"}, want: logger.ErrAppNameIsEmpty},
		{
			name: "file without path",
			cfg:  logger.Log{LogLevel: "info", AppName: "test", ServiceName: "test", File: logger.LogFile{Enabled: true}},
			want: logger.ErrFilePathIsEmpty,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if err := logger.Init(tc.cfg); !errors.Is(err, tc.want) {
				t.Errorf("Init() error = %v, want %v", err, tc.want)
			}
		})
	}

	if err := logger.Init(logger.Log{LogLevel: "loud", AppName: "test", ServiceName: "test"}); err == nil {
		t.Error("expected an error for an unknown log level")
	}
}

func TestLevelWriter(t *testing.T) {
	var errBuf, infoBuf, traceBuf, warnBuf bytes.Buffer

	lw := &logger.LevelWriter{
		ErrorWriter: &errBuf,
		InfoWriter:  &infoBuf,
		TraceWriter: &traceBuf,
		WarnWriter:  &warnBuf,
	}

	tests := []struct {
		level zerolog.Level
		want  *bytes.Buffer
	}{
		{zerolog.TraceLevel, &traceBuf},
		{zerolog.DebugLevel, &infoBuf},
		{zerolog.InfoLevel, &infoBuf},
		{zerolog.WarnLevel, &warnBuf},
		{zerolog.ErrorLevel, &errBuf},
		{zerolog.FatalLevel, &errBuf},
	}

	for _, tc := range tests {
		for _, b := range []*bytes.Buffer{&errBuf, &infoBuf, &traceBuf, &warnBuf} {
			b.Reset()
		}

		if _, err := lw.WriteLevel(tc.level, []byte(tc.level.String())); err != nil {
			t.Fatal(err)
		}

		if got := tc.want.String(); got != tc.level.String() {
			t.Errorf("level %s written to the wrong writer", tc.level)
		}
	}

	if n, _ := lw.WriteLevel(zerolog.Disabled, []byte("x")); n != 0 {
		t.Error("disabled level must not be written")
	}
}
