package engine

import (
	"encoding/json"

	"github.com/inamate/sketchboard/internal/element"
	"github.com/inamate/sketchboard/internal/geometry"
	"github.com/inamate/sketchboard/internal/scene"
	"github.com/inamate/sketchboard/internal/shapecache"
)

// DrawCommand represents a single drawing operation for the frontend to execute.
// The frontend receives a list of these and executes them on a Canvas2D context.
type DrawCommand struct {
	Op          string             `json:"op"`                    // Operation: "path", "text", "image"
	ElementID   string             `json:"elementId,omitempty"`   // For hit correlation
	Transform   []float64          `json:"transform,omitempty"`   // [a, b, c, d, e, f] affine matrix
	Path        []geometry.Segment `json:"path,omitempty"`        // Scene-space path for "path" ops
	Fill        string             `json:"fill,omitempty"`        // Fill color
	FillStyle   string             `json:"fillStyle,omitempty"`   // solid, hachure, cross-hatch
	Stroke      string             `json:"stroke,omitempty"`      // Stroke color
	StrokeWidth float64            `json:"strokeWidth,omitempty"` // Stroke width
	StrokeStyle string             `json:"strokeStyle,omitempty"` // solid, dashed, dotted
	Opacity     float64            `json:"opacity,omitempty"`     // Global alpha, 0..1
	Text        string             `json:"text,omitempty"`
	FontSize    float64            `json:"fontSize,omitempty"`
	FontFamily  int                `json:"fontFamily,omitempty"`
	LineHeight  float64            `json:"lineHeight,omitempty"`
	FileID      string             `json:"fileId,omitempty"` // Image file lookup
	Width       float64            `json:"width,omitempty"`
	Height      float64            `json:"height,omitempty"`
}

// CompileDrawCommands generates a draw command buffer for the live elements.
// Commands are in painter's order (back to front).
func CompileDrawCommands(s *scene.Scene, c *shapecache.Cache) []DrawCommand {
	els := s.NonDeleted()
	commands := make([]DrawCommand, 0, len(els))
	for _, el := range els {
		commands = append(commands, compileElement(el, c))
	}
	return commands
}

func compileElement(el element.Element, c *shapecache.Cache) DrawCommand {
	opacity := el.Opacity / 100

	switch el.Type {
	case element.TypeText:
		return DrawCommand{
			Op:         "text",
			ElementID:  el.ID,
			Transform:  geometry.ElementTransform(el).ToSlice(),
			Fill:       el.StrokeColor,
			Opacity:    opacity,
			Text:       el.Text,
			FontSize:   el.FontSize,
			FontFamily: el.FontFamily,
			LineHeight: el.LineHeight,
			Width:      el.Width,
			Height:     el.Height,
		}
	case element.TypeImage:
		return DrawCommand{
			Op:        "image",
			ElementID: el.ID,
			Transform: geometry.ElementTransform(el).ToSlice(),
			Opacity:   opacity,
			FileID:    el.FileID,
			Width:     el.Width,
			Height:    el.Height,
		}
	}

	cmd := DrawCommand{
		Op:          "path",
		ElementID:   el.ID,
		Path:        c.Get(el).Outline,
		Stroke:      el.StrokeColor,
		StrokeWidth: el.StrokeWidth,
		StrokeStyle: el.StrokeStyle,
		Opacity:     opacity,
	}
	if el.Filled() && !el.Type.Linear() {
		cmd.Fill = el.BackgroundColor
		cmd.FillStyle = el.FillStyle
	}
	return cmd
}

// DrawCommandsToJSON serializes draw commands to JSON.
func DrawCommandsToJSON(commands []DrawCommand) (string, error) {
	data, err := json.Marshal(commands)
	if err != nil {
		return "[]", err
	}
	return string(data), nil
}

// GetSelectionBounds returns the combined bounding box of the given element
// ids. Missing and deleted ids are skipped.
func GetSelectionBounds(s *scene.Scene, ids []string) geometry.Rect {
	var result geometry.Rect
	first := true

	for _, id := range ids {
		el, ok := s.Resolve(id)
		if !ok {
			continue
		}
		bounds := geometry.BoundingBox(el)

		if first {
			result = bounds
			first = false
		} else {
			result = result.Union(bounds)
		}
	}

	return result
}

// RectToJSON serializes a Rect to JSON.
func RectToJSON(r geometry.Rect) string {
	data, _ := json.Marshal(r)
	return string(data)
}
