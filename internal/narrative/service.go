package narrative

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"rootcause/internal/apperr"
	"rootcause/internal/llm"
)

// Narrator produces prose for a request.
type Narrator interface {
	Narrate(ctx context.Context, req Request) (string, error)
}

const narrateSystem = `You are a logistics operations analyst. Using only the data
summary provided, answer the question in two short paragraphs: what went wrong
and what to do about it. Do not invent numbers.`

// Generator is the slice of llm.Client a GenAINarrator uses.
type Generator interface {
	Generate(ctx context.Context, purpose string, req llm.Request) (string, error)
}

// GenAINarrator asks the text-generation service for a narrative.
type GenAINarrator struct {
	gen Generator
}

// NewGenAINarrator wraps gen.
func NewGenAINarrator(gen Generator) *GenAINarrator {
	return &GenAINarrator{gen: gen}
}

// Narrate implements Narrator.
func (n *GenAINarrator) Narrate(ctx context.Context, req Request) (string, error) {
	prompt := fmt.Sprintf("Context: %s\nQuestion: %s\n\nData summary:\n%s", req.Context, req.Question, req.Summary)
	text, err := n.gen.Generate(ctx, "narrative", llm.Request{System: narrateSystem, Prompt: prompt})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// Service applies the no-narrative fallback around a Narrator.
type Service struct {
	narrator Narrator
	// configErr is set when the narrator could not be built.
	configErr error
	logger    *zap.Logger
}

// NewService returns a Service over n. When n is nil, configErr explains why
// and every Augment call returns no narrative.
func NewService(n Narrator, configErr error, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if n == nil && configErr == nil {
		configErr = apperr.NotConfigured("narrative service disabled")
	}
	return &Service{narrator: n, configErr: configErr, logger: logger}
}

// Augment returns the narrative for req, or ("", false) when none is
// available. It never fails the caller.
func (s *Service) Augment(ctx context.Context, req Request) (string, bool) {
	if s == nil {
		return "", false
	}
	if s.narrator == nil {
		s.logger.Info("narrative: not configured; omitting narrative",
			zap.String("context", req.Context), zap.Error(s.configErr))
		return "", false
	}
	text, err := s.narrator.Narrate(ctx, req)
	if err == nil && strings.TrimSpace(text) == "" {
		err = apperr.Malformed("empty narrative").WithOp("narrative")
	}
	if err != nil {
		switch apperr.GetKind(err) {
		case apperr.KindNotConfigured:
			s.logger.Warn("narrative: configuration error; omitting narrative",
				zap.String("context", req.Context), zap.Error(err))
		default:
			s.logger.Warn("narrative: service failure; omitting narrative",
				zap.String("context", req.Context),
				zap.String("kind", apperr.GetKind(err).String()),
				zap.Error(err))
		}
		return "", false
	}
	return text, true
}
