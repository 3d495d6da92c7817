// internal/cli/commands.go
package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/90n9/talepick/internal/assets"
	"github.com/90n9/talepick/internal/canvas"
	"github.com/90n9/talepick/internal/layout"
	"github.com/90n9/talepick/internal/models"
	"github.com/90n9/talepick/internal/textmode"
	"github.com/90n9/talepick/internal/validation"
	"github.com/90n9/talepick/internal/viewport"
	"github.com/spf13/cobra"
)

func validateCmd(opts *options) *cobra.Command {
	var failOn string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "validate <story>",
		Short: "Report missing images, dead ends and orphan scenes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if failOn == "" {
				failOn = opts.cfg.Validate.FailOn
			}
			threshold, err := parseThreshold(failOn)
			if err != nil {
				return err
			}

			src, err := openStory(cmd.Context(), args[0], opts.dataDir)
			if err != nil {
				return err
			}
			defer src.Close()

			story := src.story
			issues := validation.Scan(src.ref(), story.Scenes, story.StartSceneID,
				validation.WithBrokenRefs(assets.DeletedRefs(story)))
			out := cmd.OutOrStdout()

			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(map[string]interface{}{
					"issues":  validation.Records(issues),
					"summary": validation.Summarize(issues),
				}); err != nil {
					return err
				}
			} else {
				printIssues(cmd, story, issues)
			}

			if threshold != "" && validation.HasSeverity(issues, threshold) {
				return errIssuesFound
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&failOn, "fail-on", "", "lowest severity that fails: high, medium, low or none")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print issues as JSON")
	return cmd
}

func parseThreshold(s string) (validation.Severity, error) {
	switch sev := validation.Severity(strings.ToLower(s)); sev {
	case validation.SeverityHigh, validation.SeverityMedium, validation.SeverityLow:
		return sev, nil
	case "none":
		return "", nil
	default:
		return "", fmt.Errorf("unknown severity %q", s)
	}
}

func printIssues(cmd *cobra.Command, story *models.Story, issues []validation.Issue) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s  %d scenes\n\n", Brand.Sprint(story.Title), len(story.Scenes))
	if len(issues) == 0 {
		Good.Fprintln(out, "  ✓ no issues")
		return
	}

	rows := make([][]string, 0, len(issues))
	for _, i := range issues {
		rows = append(rows, []string{string(i.Severity()), string(i.Kind()), i.Scene().ID, i.Message()})
	}
	table(out, []string{"SEVERITY", "KIND", "SCENE", "MESSAGE"}, rows, func(row, col int, cell string) string {
		if col == 0 {
			return severityColor(issues[row].Severity()).Sprint(cell)
		}
		return cell
	})

	sum := validation.Summarize(issues)
	fmt.Fprintf(out, "\n  %d issues: %d high, %d medium, %d low\n", sum.Total,
		sum.BySeverity[validation.SeverityHigh],
		sum.BySeverity[validation.SeverityMedium],
		sum.BySeverity[validation.SeverityLow])
}

func unusedCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "unused <story>",
		Short: "List assets nothing in the story references",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := openStory(cmd.Context(), args[0], opts.dataDir)
			if err != nil {
				return err
			}
			defer src.Close()

			story := src.story
			refs := assets.References(assets.MediaOf(story), story.Scenes)
			unused := assets.Unused(story.Assets, refs)

			out := cmd.OutOrStdout()
			if len(unused) == 0 {
				Good.Fprintln(out, "  ✓ every asset is in use")
				return nil
			}
			rows := make([][]string, 0, len(unused))
			for _, a := range unused {
				rows = append(rows, []string{a.ID, string(a.Kind), a.URL, humanSize(a.SizeBytes)})
			}
			table(out, []string{"ID", "KIND", "URL", "SIZE"}, rows, nil)
			fmt.Fprintf(out, "\n  %d of %d assets unused\n", len(unused), len(story.Assets))
			return nil
		},
	}
}

func humanSize(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return strconv.FormatInt(n, 10) + " B"
	}
}

func layoutCmd(opts *options) *cobra.Command {
	var write bool

	cmd := &cobra.Command{
		Use:   "layout <story>",
		Short: "Place every scene on the auto-layout grid",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := openStory(cmd.Context(), args[0], opts.dataDir)
			if err != nil {
				return err
			}
			defer src.Close()

			story := src.story
			layout.Apply(story.Scenes)

			out := cmd.OutOrStdout()
			if !write {
				rows := make([][]string, 0, len(story.Scenes))
				for _, s := range story.Scenes {
					rows = append(rows, []string{s.ID, s.Title,
						strconv.FormatFloat(s.Position.X, 'f', -1, 64),
						strconv.FormatFloat(s.Position.Y, 'f', -1, 64)})
				}
				table(out, []string{"SCENE", "TITLE", "X", "Y"}, rows, nil)
				return nil
			}
			if err := src.save(cmd.Context()); err != nil {
				return err
			}
			Good.Fprintf(out, "  ✓ laid out %d scenes\n", len(story.Scenes))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&write, "write", "w", false, "write positions back to the story")
	return cmd
}

func renderCmd(opts *options) *cobra.Command {
	var output, format string
	var width, height int

	cmd := &cobra.Command{
		Use:   "render <story>",
		Short: "Render the story graph to SVG or PNG",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if output == "" {
				return errors.New("--output is required")
			}
			if format == "" {
				format = strings.TrimPrefix(strings.ToLower(filepath.Ext(output)), ".")
			}
			if format != "svg" && format != "png" {
				return fmt.Errorf("unknown image format %q", format)
			}
			if width <= 0 {
				width = opts.cfg.Render.Width
			}
			if height <= 0 {
				height = opts.cfg.Render.Height
			}

			src, err := openStory(cmd.Context(), args[0], opts.dataDir)
			if err != nil {
				return err
			}
			defer src.Close()

			story := src.story
			camera := viewport.New()
			if b, ok := canvas.Bounds(story.Scenes); ok {
				camera.FitBounds(b, float64(width), float64(height), opts.cfg.Render.Padding)
			}
			frame := canvas.BuildFrame(canvas.FrameInput{
				Scenes:  story.Scenes,
				StartID: story.StartSceneID,
				Issues:  validation.Scan(src.ref(), story.Scenes, story.StartSceneID),
				Camera:  camera.State(),
			})

			f, err := os.Create(output)
			if err != nil {
				return err
			}
			if format == "png" {
				err = canvas.RenderPNG(f, frame, width, height)
			} else {
				err = canvas.RenderSVG(f, frame, width, height)
			}
			if cerr := f.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				return fmt.Errorf("render %s: %w", output, err)
			}
			Good.Fprintf(cmd.OutOrStdout(), "  ✓ wrote %s (%dx%d)\n", output, width, height)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (.svg or .png)")
	cmd.Flags().StringVar(&format, "format", "", "svg or png; taken from the output extension when empty")
	cmd.Flags().IntVar(&width, "width", 0, "image width in pixels")
	cmd.Flags().IntVar(&height, "height", 0, "image height in pixels")
	return cmd
}

func fmtCmd(opts *options) *cobra.Command {
	var to string

	cmd := &cobra.Command{
		Use:   "fmt <story>",
		Short: "Print the scenes in text notation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if to == "" {
				to = opts.cfg.Text.Format
			}
			format, err := textmode.ParseFormat(to)
			if err != nil {
				return err
			}

			src, err := openStory(cmd.Context(), args[0], opts.dataDir)
			if err != nil {
				return err
			}
			defer src.Close()

			text, err := textmode.Encode(src.story.Scenes, format)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), text)
			if !strings.HasSuffix(text, "\n") {
				fmt.Fprintln(cmd.OutOrStdout())
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&to, "to", "", "json or yaml")
	return cmd
}

func importCmd(opts *options) *cobra.Command {
	var from string

	cmd := &cobra.Command{
		Use:   "import <story> <text-file>",
		Short: "Replace the scenes with an edited text file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if from == "" {
				switch strings.ToLower(filepath.Ext(args[1])) {
				case ".yaml", ".yml":
					from = "yaml"
				default:
					from = opts.cfg.Text.Format
				}
			}
			format, err := textmode.ParseFormat(from)
			if err != nil {
				return err
			}
			text, err := os.ReadFile(args[1])
			if err != nil {
				return err
			}

			scenes, err := textmode.Decode(string(text), format)
			if err != nil {
				var perr *textmode.ParseError
				if errors.As(err, &perr) {
					return fmt.Errorf("%s:%d:%d: %s", args[1], perr.Line, perr.Column, perr.Reason)
				}
				return err
			}

			src, err := openStory(cmd.Context(), args[0], opts.dataDir)
			if err != nil {
				return err
			}
			defer src.Close()

			src.story.Scenes = scenes
			if err := src.save(cmd.Context()); err != nil {
				return err
			}
			Good.Fprintf(cmd.OutOrStdout(), "  ✓ imported %d scenes\n", len(scenes))
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "json or yaml; taken from the file extension when empty")
	return cmd
}
