// Package reports generates AI-assisted diagnosis drafts from free-text
// symptom descriptions. The generated text is advisory output rendered to the
// clinician as-is; nothing here is stored or treated as a medical record.
package reports

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

var ErrEmptyInput = errors.New("reports: empty input")

const systemPrompt = "You are a clinical documentation assistant. Given a patient's " +
	"symptom description, produce a concise draft report for a physician to review. " +
	"Always note that the draft requires clinician confirmation."

// Generator is the generative backend. Satisfied by *genai.Client.
type Generator interface {
	GenerateText(ctx context.Context, system, prompt string) (string, error)
	GenerateJSON(ctx context.Context, system, prompt string, out any) error
}

// DiagnosisReport is the structured draft returned to the clinician.
type DiagnosisReport struct {
	Summary         string   `json:"summary"`
	PossibleCauses  []string `json:"possible_causes"`
	RecommendedNext []string `json:"recommended_next"`
	Urgency         string   `json:"urgency"`
}

type Service struct {
	gen Generator
	log zerolog.Logger
}

func NewService(gen Generator, logger zerolog.Logger) *Service {
	return &Service{gen: gen, log: logger}
}

// DraftText returns a free-text draft report for the given symptoms.
func (s *Service) DraftText(ctx context.Context, symptoms string) (string, error) {
	symptoms = strings.TrimSpace(symptoms)
	if symptoms == "" {
		return "", ErrEmptyInput
	}
	text, err := s.gen.GenerateText(ctx, systemPrompt, symptoms)
	if err != nil {
		return "", fmt.Errorf("draft report: %w", err)
	}
	return text, nil
}

// DraftStructured returns the draft as a structured report for form-filling
// UIs.
func (s *Service) DraftStructured(ctx context.Context, symptoms string) (*DiagnosisReport, error) {
	symptoms = strings.TrimSpace(symptoms)
	if symptoms == "" {
		return nil, ErrEmptyInput
	}

	prompt := fmt.Sprintf(
		"Respond with a JSON object {summary, possible_causes, recommended_next, urgency}. "+
			"urgency is one of low, moderate, high. Symptoms: %s", symptoms)

	var report DiagnosisReport
	if err := s.gen.GenerateJSON(ctx, systemPrompt, prompt, &report); err != nil {
		return nil, fmt.Errorf("draft structured report: %w", err)
	}
	return &report, nil
}
