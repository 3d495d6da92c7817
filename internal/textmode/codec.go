// internal/textmode/codec.go
package textmode

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"
	"sync"

	"github.com/90n9/talepick/internal/models"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Format is a text notation for the scene collection.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat accepts "json", "yaml" or "yml"; empty means JSON.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unknown text format %q", s)
	}
}

// keys every scene record has to carry
var requiredKeys = []string{"id", "title", "segments", "choices"}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func sceneValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		// report json names, e.g. choices[0].id
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// Normalize returns a copy of scenes with nil segment and choice lists
// replaced by empty ones, which is the shape Decode produces.
func Normalize(scenes []models.Scene) []models.Scene {
	out := models.CloneScenes(scenes)
	if out == nil {
		return []models.Scene{}
	}
	for i := range out {
		if out[i].Segments == nil {
			out[i].Segments = []models.Segment{}
		}
		if out[i].Choices == nil {
			out[i].Choices = []models.Choice{}
		}
	}
	return out
}

// Encode renders scenes as pretty-printed text with a stable key order.
func Encode(scenes []models.Scene, format Format) (string, error) {
	scenes = Normalize(scenes)
	switch format {
	case FormatYAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(scenes); err != nil {
			return "", fmt.Errorf("failed to encode yaml: %w", err)
		}
		if err := enc.Close(); err != nil {
			return "", fmt.Errorf("failed to encode yaml: %w", err)
		}
		return buf.String(), nil
	case FormatJSON, "":
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		if err := enc.Encode(scenes); err != nil {
			return "", fmt.Errorf("failed to encode json: %w", err)
		}
		return buf.String(), nil
	default:
		return "", fmt.Errorf("unknown text format %q", format)
	}
}

// Decode parses text back into scenes. Any failure is a *ParseError and no
// partial result is returned.
func Decode(text string, format Format) ([]models.Scene, error) {
	var (
		scenes  []models.Scene
		offsets []recordPos
		err     error
	)
	switch format {
	case FormatYAML:
		scenes, offsets, err = decodeYAML(text)
	case FormatJSON, "":
		scenes, offsets, err = decodeJSON(text)
	default:
		return nil, &ParseError{Reason: fmt.Sprintf("unknown text format %q", format)}
	}
	if err != nil {
		return nil, err
	}
	if err := checkScenes(scenes, offsets); err != nil {
		return nil, err
	}
	return Normalize(scenes), nil
}

// recordPos is where a scene record starts in the text.
type recordPos struct {
	line, column int
}

func decodeJSON(text string) ([]models.Scene, []recordPos, error) {
	dec := json.NewDecoder(strings.NewReader(text))
	tok, err := dec.Token()
	if err != nil {
		return nil, nil, jsonError(text, dec, err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '[' {
		return nil, nil, errorAt(text, 0, "expected an array of scene records")
	}

	var (
		scenes  []models.Scene
		offsets []recordPos
	)
	for dec.More() {
		start := skipSpace(text, dec.InputOffset())
		line, col := position(text, start)

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, nil, jsonError(text, dec, err)
		}
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, nil, &ParseError{Line: line, Column: col, Reason: fmt.Sprintf("record %d is not a scene object", len(scenes))}
		}
		for _, k := range requiredKeys {
			if _, ok := fields[k]; !ok {
				return nil, nil, &ParseError{Line: line, Column: col, Reason: fmt.Sprintf("record %d is missing required field %q", len(scenes), k)}
			}
		}

		var scene models.Scene
		strict := json.NewDecoder(bytes.NewReader(raw))
		strict.DisallowUnknownFields()
		if err := strict.Decode(&scene); err != nil {
			pe := jsonError(string(raw), strict, err)
			pe.Line, pe.Column = line+pe.Line-1, 0
			return nil, nil, pe
		}
		scenes = append(scenes, scene)
		offsets = append(offsets, recordPos{line: line, column: col})
	}

	if _, err := dec.Token(); err != nil {
		return nil, nil, jsonError(text, dec, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, nil, errorAt(text, dec.InputOffset(), "unexpected content after the scene array")
	}
	return scenes, offsets, nil
}

func jsonError(text string, dec *json.Decoder, err error) *ParseError {
	var syntax *json.SyntaxError
	var typ *json.UnmarshalTypeError
	switch {
	case errors.As(err, &syntax):
		return errorAt(text, syntax.Offset, "%s", syntax.Error())
	case errors.As(err, &typ):
		return errorAt(text, typ.Offset, "field %q: cannot use %s as %s", typ.Field, typ.Value, typ.Type)
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return errorAt(text, int64(len(text)), "unexpected end of text")
	default:
		return errorAt(text, dec.InputOffset(), "%s", err.Error())
	}
}

func skipSpace(text string, offset int64) int64 {
	for offset < int64(len(text)) {
		switch text[offset] {
		case ' ', '\t', '\n', '\r', ',':
			offset++
		default:
			return offset
		}
	}
	return offset
}

func decodeYAML(text string) ([]models.Scene, []recordPos, error) {
	var root yaml.Node
	if err := yaml.Unmarshal([]byte(text), &root); err != nil {
		return nil, nil, yamlError(err)
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) != 1 || root.Content[0].Kind != yaml.SequenceNode {
		return nil, nil, &ParseError{Line: root.Line, Reason: "expected a list of scene records"}
	}

	seq := root.Content[0]
	scenes := make([]models.Scene, 0, len(seq.Content))
	offsets := make([]recordPos, 0, len(seq.Content))
	for i, item := range seq.Content {
		if item.Kind != yaml.MappingNode {
			return nil, nil, &ParseError{Line: item.Line, Column: item.Column, Reason: fmt.Sprintf("record %d is not a scene mapping", i)}
		}
		present := make(map[string]bool, len(item.Content)/2)
		for k := 0; k+1 < len(item.Content); k += 2 {
			present[item.Content[k].Value] = true
		}
		for _, k := range requiredKeys {
			if !present[k] {
				return nil, nil, &ParseError{Line: item.Line, Column: item.Column, Reason: fmt.Sprintf("record %d is missing required field %q", i, k)}
			}
		}

		// re-encode the record so the strict decoder can reject unknown keys
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		if err := enc.Encode(item); err != nil {
			return nil, nil, yamlError(err)
		}
		if err := enc.Close(); err != nil {
			return nil, nil, yamlError(err)
		}
		var scene models.Scene
		dec := yaml.NewDecoder(&buf)
		dec.KnownFields(true)
		if err := dec.Decode(&scene); err != nil {
			pe := yamlError(err)
			pe.Line = item.Line + max(pe.Line-1, 0)
			return nil, nil, pe
		}
		scenes = append(scenes, scene)
		offsets = append(offsets, recordPos{line: item.Line, column: item.Column})
	}
	return scenes, offsets, nil
}

// checkScenes applies struct rules and id uniqueness.
func checkScenes(scenes []models.Scene, offsets []recordPos) error {
	v := sceneValidator()
	seen := make(map[string]int, len(scenes))
	for i, s := range scenes {
		at := offsets[i]
		if err := v.Struct(s); err != nil {
			var verrs validator.ValidationErrors
			if errors.As(err, &verrs) && len(verrs) > 0 {
				fe := verrs[0]
				return &ParseError{Line: at.line, Column: at.column,
					Reason: fmt.Sprintf("record %d: %s fails %q", i, fieldPath(fe.Namespace()), fe.Tag())}
			}
			return &ParseError{Line: at.line, Column: at.column, Reason: err.Error()}
		}
		if prev, dup := seen[s.ID]; dup {
			return &ParseError{Line: at.line, Column: at.column,
				Reason: fmt.Sprintf("record %d: scene id %q already used by record %d", i, s.ID, prev)}
		}
		seen[s.ID] = i

		choiceIDs := make(map[string]bool, len(s.Choices))
		for _, c := range s.Choices {
			if choiceIDs[c.ID] {
				return &ParseError{Line: at.line, Column: at.column,
					Reason: fmt.Sprintf("record %d: choice id %q appears twice in scene %q", i, c.ID, s.ID)}
			}
			choiceIDs[c.ID] = true
		}
	}
	return nil
}

// fieldPath drops the struct name from a validator namespace.
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}
