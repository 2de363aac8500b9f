package fiber_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oslokommune/okdata-permission-api/internal/logger"
	adapter "github.com/oslokommune/okdata-permission-api/internal/logger/adapter/fiber"
)

type accessLine struct {
	IP        string `json:"IP"`
	Status    int    `json:"status"`
	URI       string `json:"URI"`
	Method    string `json:"method"`
	Host      string `json:"host"`
	Principal string `json:"principal"`
	Error     string `json:"error"`
}

var consoleLog = logger.Log{ //nolint:gochecknoglobals
	EnableAccessLogToConsole: true,
	Console:                  logger.Console{Enabled: true},
}

func TestNew(t *testing.T) {
	tests := []struct {
		name       string
		config     adapter.Config
		targetPath string
		want       *accessLine
	}{
		{
			name:       "no writer enabled",
			targetPath: "/",
		},
		{
			name:       "get /",
			config:     adapter.Config{Config: consoleLog},
			targetPath: "/",
			want:       &accessLine{IP: "0.0.0.0", Status: 200, URI: "/", Method: fiber.MethodGet, Host: "example.com"},
		},
		{
			name:       "query string is kept",
			config:     adapter.Config{Config: consoleLog},
			targetPath: "/permissions?resource_name=okdata:dataset:foo",
			want: &accessLine{
				IP: "0.0.0.0", Status: 404, URI: "/permissions?resource_name=okdata:dataset:foo",
				Method: fiber.MethodGet, Host: "example.com",
			},
		},
		{
			name:       "handler error",
			config:     adapter.Config{Config: consoleLog},
			targetPath: "/fail",
			want: &accessLine{
				IP: "0.0.0.0", Status: 409, URI: "/fail", Method: fiber.MethodGet, Host: "example.com",
				Error: "Conflict",
			},
		},
		{
			name:       "principal",
			config:     adapter.Config{Config: consoleLog, PrincipalLocal: "principal"},
			targetPath: "/",
			want: &accessLine{
				IP: "0.0.0.0", Status: 200, URI: "/", Method: fiber.MethodGet, Host: "example.com",
				Principal: "janedoe",
			},
		},
		{
			name: "health not logged",
			config: adapter.Config{Config: logger.Log{
				EnableAccessLogToConsole: true,
				DisableHealthLog:         true,
				Console:                  logger.Console{Enabled: true},
			}},
			targetPath: "/health",
		},
		{
			name:       "health logged by default",
			config:     adapter.Config{Config: consoleLog},
			targetPath: "/health",
			want:       &accessLine{IP: "0.0.0.0", Status: 200, URI: "/health", Method: fiber.MethodGet, Host: "example.com"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output := testMiddlewareHelper(t, tt.targetPath, tt.config)

			if tt.want == nil {
				assert.Empty(t, output)
				return
			}

			require.NotEmpty(t, output)

			var got accessLine
			require.NoError(t, json.Unmarshal([]byte(output), &got))
			assert.Equal(t, *tt.want, got)
		})
	}
}

func testMiddlewareHelper(t *testing.T, targetPath string, adapterConfig adapter.Config) string {
	t.Helper()

	stdout := os.Stdout
	stderr := os.Stderr

	r, w, _ := os.Pipe()
	os.Stdout = w
	os.Stderr = w

	app := fiber.New(fiber.Config{CaseSensitive: true, Immutable: true})

	app.Use(func(c fiber.Ctx) error {
		c.Locals("principal", "janedoe")
		return c.Next()
	})
	app.Use(adapter.New(adapterConfig))

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("hello test")
	})
	app.Get("/health", func(c fiber.Ctx) error {
		return c.SendString("ok")
	})
	app.Get("/fail", func(fiber.Ctx) error {
		return fiber.ErrConflict
	})

	_, err := app.Test(httptest.NewRequest(fiber.MethodGet, targetPath, nil))

	outC := make(chan string)
	// copy the output in a separate goroutine so printing can't block indefinitely
	go func() {
		var buf bytes.Buffer
		_, _ = io.Copy(&buf, r)
		outC <- buf.String()
	}()

	_ = w.Close()
	os.Stdout = stdout
	os.Stderr = stderr
	out := <-outC

	require.NoError(t, err)

	return out
}
