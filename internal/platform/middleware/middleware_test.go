package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinicagenda/agenda/internal/platform/tenant"
)

func TestRequestID(t *testing.T) {
	tests := []struct {
		name     string
		incoming string
	}{
		{"generated", ""},
		{"preserved", "rid-from-proxy"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			if tt.incoming != "" {
				req.Header.Set(RequestIDHeader, tt.incoming)
			}
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			var seen string
			h := RequestID()(func(c echo.Context) error {
				seen, _ = c.Get("request_id").(string)
				return c.NoContent(http.StatusNoContent)
			})
			if err := h(c); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if seen == "" {
				t.Fatal("expected request_id on the context")
			}
			if tt.incoming != "" && seen != tt.incoming {
				t.Errorf("expected %s, got %s", tt.incoming, seen)
			}
			if rec.Header().Get(RequestIDHeader) != seen {
				t.Errorf("response header %q does not match %q", rec.Header().Get(RequestIDHeader), seen)
			}
		})
	}
}

var clinicScope = tenant.Scope{
	TenantID:       uuid.MustParse("11111111-1111-1111-1111-111111111111"),
	ProfessionalID: uuid.MustParse("22222222-2222-2222-2222-222222222222"),
	UserID:         "dr-rivas",
	Demo:           true,
}

func logLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("log line %q: %v", buf.String(), err)
	}
	return line
}

func TestLogger_Levels(t *testing.T) {
	tests := []struct {
		name       string
		handler    echo.HandlerFunc
		wantLevel  string
		wantStatus float64
	}{
		{
			name:       "ok",
			handler:    func(c echo.Context) error { return c.String(http.StatusOK, "ok") },
			wantLevel:  "info",
			wantStatus: 200,
		},
		{
			name:       "collision",
			handler:    func(c echo.Context) error { return echo.NewHTTPError(http.StatusConflict, "slot taken") },
			wantLevel:  "warn",
			wantStatus: 409,
		},
		{
			name:       "plain error",
			handler:    func(c echo.Context) error { return echo.ErrInternalServerError.WithInternal(nil) },
			wantLevel:  "error",
			wantStatus: 500,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			e := echo.New()
			req := httptest.NewRequest(http.MethodPost, "/api/v1/appointments", nil)
			c := e.NewContext(req, httptest.NewRecorder())
			c.Set("request_id", "req-123")

			h := Logger(zerolog.New(&buf))(tt.handler)
			_ = h(c)

			line := logLine(t, &buf)
			if line["level"] != tt.wantLevel {
				t.Errorf("expected level %s, got %v", tt.wantLevel, line["level"])
			}
			if line["status"] != tt.wantStatus {
				t.Errorf("expected status %v, got %v", tt.wantStatus, line["status"])
			}
			if line["request_id"] != "req-123" {
				t.Errorf("expected request_id req-123, got %v", line["request_id"])
			}
		})
	}
}

func TestLogger_IncludesScope(t *testing.T) {
	var buf bytes.Buffer
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/calendar/view", nil)
	c := e.NewContext(req, httptest.NewRecorder())

	h := Logger(zerolog.New(&buf))(func(c echo.Context) error {
		tenant.Set(c, clinicScope)
		return c.NoContent(http.StatusOK)
	})
	if err := h(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	line := logLine(t, &buf)
	if line["tenant_id"] != clinicScope.TenantID.String() {
		t.Errorf("unexpected tenant_id %v", line["tenant_id"])
	}
	if line["professional_id"] != clinicScope.ProfessionalID.String() {
		t.Errorf("unexpected professional_id %v", line["professional_id"])
	}
	if line["demo"] != true {
		t.Errorf("expected demo flag, got %v", line["demo"])
	}
}

func TestRecovery(t *testing.T) {
	var buf bytes.Buffer
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/patients", nil)
	c := e.NewContext(req, httptest.NewRecorder())
	c.Set("request_id", "req-456")
	tenant.Set(c, clinicScope)

	h := Recovery(zerolog.New(&buf))(func(c echo.Context) error {
		panic("nil availability")
	})
	err := h(c)

	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %v", err)
	}
	line := logLine(t, &buf)
	if line["panic"] != "nil availability" {
		t.Errorf("unexpected panic field %v", line["panic"])
	}
	if line["tenant_id"] != clinicScope.TenantID.String() || line["request_id"] != "req-456" {
		t.Errorf("expected request fields, got %v", line)
	}
	if line["stack"] == nil {
		t.Error("expected stack trace")
	}
}

func TestRecovery_PassesThrough(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	h := Recovery(zerolog.Nop())(func(c echo.Context) error { return echo.ErrNotFound })
	if err := h(c); err != echo.ErrNotFound {
		t.Errorf("expected handler error, got %v", err)
	}
}
