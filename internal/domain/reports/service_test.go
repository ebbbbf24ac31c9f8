package reports

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/carelink/carelink/internal/platform/genai"
)

type fakeGenerator struct {
	text    string
	jsonOut string
	err     error
	prompts []string
}

func (f *fakeGenerator) GenerateText(_ context.Context, _, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return f.text, f.err
}

func (f *fakeGenerator) GenerateJSON(_ context.Context, _, prompt string, out any) error {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return f.err
	}
	return json.Unmarshal([]byte(f.jsonOut), out)
}

func TestService_DraftText(t *testing.T) {
	gen := &fakeGenerator{text: "Draft: likely tension headache. Requires clinician confirmation."}
	svc := NewService(gen, zerolog.Nop())

	text, err := svc.DraftText(context.Background(), "Recurring headaches, stress at work")
	if err != nil {
		t.Fatalf("DraftText: %v", err)
	}
	if !strings.Contains(text, "tension headache") {
		t.Errorf("unexpected draft: %q", text)
	}
	if len(gen.prompts) != 1 || gen.prompts[0] != "Recurring headaches, stress at work" {
		t.Errorf("unexpected prompt: %v", gen.prompts)
	}
}

func TestService_DraftText_EmptyInput(t *testing.T) {
	svc := NewService(&fakeGenerator{}, zerolog.Nop())
	if _, err := svc.DraftText(context.Background(), "   "); !errors.Is(err, ErrEmptyInput) {
		t.Errorf("expected ErrEmptyInput, got %v", err)
	}
}

func TestService_DraftStructured(t *testing.T) {
	gen := &fakeGenerator{jsonOut: `{
		"summary": "Symptoms consistent with seasonal allergy",
		"possible_causes": ["allergic rhinitis"],
		"recommended_next": ["antihistamine trial"],
		"urgency": "low"
	}`}
	svc := NewService(gen, zerolog.Nop())

	report, err := svc.DraftStructured(context.Background(), "Sneezing, itchy eyes")
	if err != nil {
		t.Fatalf("DraftStructured: %v", err)
	}
	if report.Urgency != "low" || len(report.PossibleCauses) != 1 {
		t.Errorf("unexpected report: %+v", report)
	}
}

func TestService_UpstreamFailurePropagates(t *testing.T) {
	gen := &fakeGenerator{err: fmt.Errorf("%w: status 503", genai.ErrUpstream)}
	svc := NewService(gen, zerolog.Nop())

	if _, err := svc.DraftText(context.Background(), "symptoms"); !errors.Is(err, genai.ErrUpstream) {
		t.Errorf("expected wrapped ErrUpstream, got %v", err)
	}
}

func TestHandler_DraftDiagnosis(t *testing.T) {
	gen := &fakeGenerator{text: "Draft report."}
	h := NewHandler(NewService(gen, zerolog.Nop()))
	e := echo.New()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/reports/diagnosis",
		strings.NewReader(`{"symptoms":"fatigue for two weeks"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.DraftDiagnosis(c); err != nil {
		t.Fatalf("DraftDiagnosis: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["report"] != "Draft report." {
		t.Errorf("unexpected body: %v", body)
	}
}

func TestHandler_DraftDiagnosis_UpstreamIsBadGateway(t *testing.T) {
	gen := &fakeGenerator{err: fmt.Errorf("%w: timeout", genai.ErrUpstream)}
	h := NewHandler(NewService(gen, zerolog.Nop()))
	e := echo.New()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/reports/diagnosis",
		strings.NewReader(`{"symptoms":"fatigue"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := h.DraftDiagnosis(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadGateway {
		t.Errorf("expected 502, got %v", err)
	}
}

func TestHandler_DraftDiagnosis_EmptyIsBadRequest(t *testing.T) {
	h := NewHandler(NewService(&fakeGenerator{}, zerolog.Nop()))
	e := echo.New()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/reports/diagnosis",
		strings.NewReader(`{"symptoms":""}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := h.DraftDiagnosis(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}
