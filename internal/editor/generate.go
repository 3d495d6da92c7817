// internal/editor/generate.go
package editor

import (
	"context"
	"fmt"
	"strings"

	"github.com/90n9/talepick/internal/graph"
)

// FallbackSegmentText is stored when text generation is unavailable.
const FallbackSegmentText = "Describe what happens in this moment of the scene."

// Generator produces descriptive prose from a short context string.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, prompt string) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// SegmentPrompt returns the context string for generating a segment's text:
// the scene title.
func (s *Session) SegmentPrompt(sceneID string, index int) (string, error) {
	scene, ok := s.model.Scene(sceneID)
	if !ok {
		return "", ErrSceneNotFound
	}
	if index < 0 || index >= len(scene.Segments) {
		return "", ErrSegmentNotFound
	}
	title := strings.TrimSpace(scene.Title)
	if title == "" {
		title = graph.DefaultSceneTitle
	}
	return title, nil
}

// ApplySegmentText stores generated text, or the fallback when text is empty.
func (s *Session) ApplySegmentText(sceneID string, index int, text string) error {
	if strings.TrimSpace(text) == "" {
		text = FallbackSegmentText
	}
	return s.Edit(func(m *graph.Model) error {
		if !m.UpdateSegment(sceneID, index, graph.SegmentPatch{Text: &text}) {
			return ErrSegmentNotFound
		}
		return nil
	})
}

// GenerateSegmentText asks gen for a segment's text and stores it. On a
// collaborator failure the fallback text is stored and the failure is
// returned alongside it so callers can notify the user.
func (s *Session) GenerateSegmentText(ctx context.Context, gen Generator, sceneID string, index int) (string, error) {
	prompt, err := s.SegmentPrompt(sceneID, index)
	if err != nil {
		return "", err
	}

	var text string
	var genErr error
	if gen == nil {
		genErr = fmt.Errorf("no text generator configured")
	} else {
		text, genErr = gen.Generate(ctx, prompt)
	}
	if genErr != nil || strings.TrimSpace(text) == "" {
		text = FallbackSegmentText
	}

	if err := s.ApplySegmentText(sceneID, index, text); err != nil {
		return "", err
	}
	if genErr != nil {
		return text, fmt.Errorf("text generation failed, fallback stored: %w", genErr)
	}
	return text, nil
}
