// internal/textmode/codec_test.go
package textmode

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/90n9/talepick/internal/models"
)

func richScenes() []models.Scene {
	return []models.Scene{
		{
			ID:    "intro",
			Title: "Intro \"quoted\" <b>",
			Segments: []models.Segment{
				{Text: "Rain on the roof.\nThunder.", Image: "/u/rain.png", DurationMs: 2500},
				{Text: "", Image: "", DurationMs: 0},
			},
			Choices: []models.Choice{
				{ID: "c1", Text: "Open the door", TargetSceneID: models.StringPtr("hall"), Cost: 2},
				{ID: "c2", Text: "Wait"},
			},
			Position:        models.Position{X: 100.5, Y: -20},
			BackgroundAudio: "/u/rain.mp3",
		},
		{
			ID:       "hall",
			Title:    "大厅",
			IsEnding: true,
			Ending:   &models.Ending{Type: "bad", Title: "Lost", Description: "You never leave.", Image: "/u/end.png"},
			Segments: []models.Segment{},
			Choices:  []models.Choice{},
			Position: models.Position{X: 450, Y: 100},
		},
	}
}

func TestRoundTrip(t *testing.T) {
	for _, format := range []Format{FormatJSON, FormatYAML} {
		in := richScenes()
		text, err := Encode(in, format)
		if err != nil {
			t.Fatalf("%s encode: %v", format, err)
		}
		out, err := Decode(text, format)
		if err != nil {
			t.Fatalf("%s decode: %v\n%s", format, err, text)
		}
		if !reflect.DeepEqual(out, in) {
			t.Fatalf("%s round trip mismatch:\n got %+v\nwant %+v", format, out, in)
		}

		again, err := Encode(out, format)
		if err != nil || again != text {
			t.Fatalf("%s re-encode not stable (err=%v)", format, err)
		}
	}
}

func TestRoundTripNormalizesNilLists(t *testing.T) {
	in := []models.Scene{{ID: "a", Title: "A"}}
	text, _ := Encode(in, FormatJSON)
	if !strings.Contains(text, `"segments": []`) {
		t.Fatalf("nil segments should encode as an empty list:\n%s", text)
	}
	out, err := Decode(text, FormatJSON)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(out, Normalize(in)) {
		t.Fatalf("got %+v", out)
	}
}

func TestEncodeIsPretty(t *testing.T) {
	text, _ := Encode(richScenes(), FormatJSON)
	if !strings.HasPrefix(text, "[\n  {\n    \"id\": \"intro\",\n    \"title\"") {
		t.Fatalf("unexpected layout:\n%s", text[:60])
	}
}

func TestDecodeRejects(t *testing.T) {
	cases := []struct {
		name   string
		format Format
		text   string
		reason string
	}{
		{"not an array", FormatJSON, `{"id":"a"}`, "array"},
		{"syntax", FormatJSON, "[\n  {\"id\": \"a\",,}\n]", "invalid character"},
		{"truncated", FormatJSON, `[{"id":"a"`, "end of text"},
		{"scalar record", FormatJSON, `[1]`, "not a scene object"},
		{"missing title", FormatJSON, `[{"id":"a","segments":[],"choices":[]}]`, `"title"`},
		{"empty id", FormatJSON, `[{"id":"","title":"","segments":[],"choices":[]}]`, "required"},
		{"empty choice id", FormatJSON, `[{"id":"a","title":"","segments":[],"choices":[{"id":"","text":""}]}]`, "choices[0].id"},
		{"negative duration", FormatJSON, `[{"id":"a","title":"","segments":[{"duration_ms":-1}],"choices":[]}]`, "gte"},
		{"wrong type", FormatJSON, `[{"id":"a","title":5,"segments":[],"choices":[]}]`, "title"},
		{"unknown field", FormatJSON, `[{"id":"a","title":"","segments":[],"choices":[],"colour":"red"}]`, "colour"},
		{"duplicate scene", FormatJSON, `[{"id":"a","title":"","segments":[],"choices":[]},{"id":"a","title":"","segments":[],"choices":[]}]`, "already used"},
		{"duplicate choice", FormatJSON, `[{"id":"a","title":"","segments":[],"choices":[{"id":"x"},{"id":"x"}]}]`, "appears twice"},
		{"trailing", FormatJSON, `[] []`, "after the scene array"},
		{"yaml mapping", FormatYAML, "id: a\n", "list of scene records"},
		{"yaml missing", FormatYAML, "- id: a\n  title: A\n  segments: []\n", `"choices"`},
		{"yaml syntax", FormatYAML, "- id: [a\n", "yaml"},
		{"yaml unknown", FormatYAML, "- id: a\n  title: A\n  segments: []\n  choices: []\n  extra: 1\n", "extra"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode(tc.text, tc.format)
			var pe *ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("expected *ParseError, got %T %v", err, err)
			}
			if !strings.Contains(pe.Reason, tc.reason) {
				t.Fatalf("reason %q does not mention %q", pe.Reason, tc.reason)
			}
		})
	}
}

func TestParseErrorPosition(t *testing.T) {
	text := "[\n  {\"id\": \"a\", \"title\": \"\", \"segments\": [], \"choices\": []},\n  {\"id\": \"b\"}\n]"
	_, err := Decode(text, FormatJSON)
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected parse error, got %v", err)
	}
	if pe.Line != 3 || pe.Column != 3 {
		t.Fatalf("expected line 3 column 3, got %d:%d (%s)", pe.Line, pe.Column, pe.Reason)
	}
	if !strings.HasPrefix(pe.Error(), "line 3, column 3:") {
		t.Fatalf("unexpected message %q", pe.Error())
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"": FormatJSON, "JSON": FormatJSON, "yml": FormatYAML, "yaml": FormatYAML} {
		if got, err := ParseFormat(in); err != nil || got != want {
			t.Errorf("ParseFormat(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseFormat("toml"); err == nil {
		t.Error("expected error for toml")
	}
}
