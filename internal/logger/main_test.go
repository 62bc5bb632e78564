package logger_test

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/libreviews/revdal/internal/logger"
)

func TestLogger(t *testing.T) {
	base := func(level string, console logger.Console) logger.Log {
		return logger.Log{LogLevel: level, ServiceName: "test", AppName: "revdal-test", Console: console}
	}

	testCases := []struct {
		name       string
		cfg        logger.Log
		wantOutput bool
		wantJSON   bool
		wantCaller bool
		wantStack  bool
	}{
		{
			name: "nothing enabled",
			cfg:  base("", logger.Console{}),
		},
		{
			name:       "console pretty",
			cfg:        base("info", logger.Console{Enabled: true, UseConsoleWriter: true}),
			wantOutput: true,
		},
		{
			name:       "console json",
			cfg:        base("info", logger.Console{Enabled: true}),
			wantOutput: true,
			wantJSON:   true,
		},
		{
			name: "console json trace with caller",
			cfg: func() logger.Log {
				cfg := base("trace", logger.Console{Enabled: true})
				cfg.ReportCaller = true

				return cfg
			}(),
			wantOutput: true,
			wantJSON:   true,
			wantCaller: true,
			wantStack:  true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			out := testLoggerConfig(t, tc.cfg)

			if !tc.wantOutput {
				assert.Empty(t, out)
				return
			}

			require.NotEmpty(t, out)

			if !tc.wantJSON {
				return
			}

			for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
				var event map[string]any
				require.NoError(t, json.Unmarshal([]byte(line), &event), line)

				assert.Equal(t, "revdal-test", event["app"])
				_, hasCaller := event[zerolog.CallerFieldName]
				assert.Equal(t, tc.wantCaller, hasCaller)

				if event[zerolog.LevelFieldName] == "error" {
					_, hasStack := event[zerolog.ErrorStackFieldName]
					assert.Equal(t, tc.wantStack, hasStack)
				}
			}
		})
	}
}

func alwaysErrFunc() error {
	return pkgerrors.New("a test error")
}

// testLoggerConfig initialises the global logger with cfg, writes one event per level
// and returns what reached stdout and stderr.
func testLoggerConfig(t *testing.T, cfg logger.Log) string {
	t.Helper()

	stdout, stderr := os.Stdout, os.Stderr

	r, w, err := os.Pipe()
	require.NoError(t, err)

	os.Stdout, os.Stderr = w, w

	captured := make(chan string)

	go func() {
		var buf bytes.Buffer

		_, _ = io.Copy(&buf, r)
		captured <- buf.String()
	}()

	initErr := logger.Init(cfg)

	log.Info().Msg("info event")
	log.Error().Err(alwaysErrFunc()).Msg("error event")
	log.Trace().Err(alwaysErrFunc()).Msg("trace event")

	_ = w.Close()
	os.Stdout, os.Stderr = stdout, stderr

	require.NoError(t, initErr)

	return <-captured
}

func TestInitRejectsIncompleteConfig(t *testing.T) {
	testCases := []struct {
		name string
		cfg  logger.Log
		want error
	}{
		{
			name: "unknown level",
			cfg:  logger.Log{LogLevel: "loud", ServiceName: "test", AppName: "test"},
		},
		{
			name: "missing service name",
			cfg:  logger.Log{LogLevel: "info", AppName: "test"},
			want: logger.ErrServiceNameIsEmpty,
		},
		{
			name: "missing app name",
			cfg:  logger.Log{LogLevel: "info", ServiceName: "test"},
			want: logger.ErrAppNameIsEmpty,
		},
		{
			name: "file logging without directory",
			cfg: logger.Log{
				LogLevel: "info", ServiceName: "test", AppName: "test",
				File: logger.LogFile{Enabled: true, InfoLog: "info.log"},
			},
			want: logger.ErrLogPathIsEmpty,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := logger.Init(tc.cfg)
			require.Error(t, err)

			if tc.want != nil {
				require.ErrorIs(t, err, tc.want)
			}
		})
	}
}

func TestLevelWriterRoutesByLevel(t *testing.T) {
	var errs, infos, traces, warns bytes.Buffer

	lw := &logger.LevelWriter{ErrorWriter: &errs, InfoWriter: &infos, TraceWriter: &traces, WarnWriter: &warns}

	testCases := []struct {
		level zerolog.Level
		into  *bytes.Buffer
	}{
		{zerolog.TraceLevel, &traces},
		{zerolog.DebugLevel, &infos},
		{zerolog.InfoLevel, &infos},
		{zerolog.WarnLevel, &warns},
		{zerolog.ErrorLevel, &errs},
		{zerolog.FatalLevel, &errs},
	}

	for _, tc := range testCases {
		t.Run(tc.level.String(), func(t *testing.T) {
			before := tc.into.Len()

			_, err := lw.WriteLevel(tc.level, []byte("x"))
			require.NoError(t, err)
			assert.Equal(t, before+1, tc.into.Len())
		})
	}

	n, err := lw.WriteLevel(zerolog.Disabled, []byte("x"))
	require.NoError(t, err)
	assert.Zero(t, n)

	// a group without a writer swallows its output
	n, err = (&logger.LevelWriter{}).WriteLevel(zerolog.InfoLevel, []byte("xy"))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestFileLogging(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")

	err := logger.Init(logger.Log{
		LogLevel:    "info",
		ServiceName: "test",
		AppName:     "test",
		File: logger.LogFile{
			Enabled:  true,
			Path:     dir,
			InfoLog:  "info.log",
			ErrorLog: "error.log",
		},
	})
	require.NoError(t, err)

	log.Info().Msg("to the info file")
	log.Error().Msg("to the error file")

	info, err := os.ReadFile(filepath.Join(dir, "info.log"))
	require.NoError(t, err)
	assert.Contains(t, string(info), "to the info file")
	assert.NotContains(t, string(info), "to the error file")

	errLog, err := os.ReadFile(filepath.Join(dir, "error.log"))
	require.NoError(t, err)
	assert.Contains(t, string(errLog), "to the error file")
}
