package element

import (
	"time"

	"github.com/inamate/sketchboard/internal/typeid"
)

// NewSampleScene returns a small scene for the playground and the wasm demo:
// a filled rectangle with bound text, an ellipse, a diamond and an arrow
// connecting the rectangle to the ellipse.
func NewSampleScene() []Element {
	now := time.Now().UnixMilli()

	rectID := typeid.NewElementID()
	labelID := typeid.NewElementID()
	ellipseID := typeid.NewElementID()
	diamondID := typeid.NewElementID()
	arrowID := typeid.NewElementID()

	rect := New(TypeRectangle, 200, 200, 240, 120)
	rect.ID = rectID
	rect.BackgroundColor = "#ffc9c9"
	rect.Seed = 1968410350
	rect.VersionNonce = 1427829418
	rect.Updated = now
	rect.BoundElements = []BoundElement{
		{ID: labelID, Type: TypeText},
		{ID: arrowID, Type: TypeArrow},
	}

	label := New(TypeText, 270, 247.5, 100, 25)
	label.ID = labelID
	label.Text = "Hello"
	label.FontSize = 20
	label.FontFamily = 1
	label.LineHeight = 1.25
	label.ContainerID = &rectID
	label.Roughness = 0
	label.Seed = 1531206398
	label.VersionNonce = 99124011
	label.Updated = now

	ellipse := New(TypeEllipse, 640, 180, 180, 160)
	ellipse.ID = ellipseID
	ellipse.Seed = 808137620
	ellipse.VersionNonce = 521781245
	ellipse.Updated = now
	ellipse.BoundElements = []BoundElement{{ID: arrowID, Type: TypeArrow}}

	diamond := New(TypeDiamond, 420, 420, 160, 160)
	diamond.ID = diamondID
	diamond.BackgroundColor = "#a5d8ff"
	diamond.FillStyle = FillHachure
	diamond.Seed = 2049381131
	diamond.VersionNonce = 1840577093
	diamond.Updated = now

	arrow := New(TypeArrow, 448, 260, 184, 0)
	arrow.ID = arrowID
	arrow.Points = []Point{{X: 0, Y: 0}, {X: 184, Y: 0}}
	arrow.StartBinding = &Binding{ElementID: rectID, Focus: 0, Gap: 8}
	arrow.EndBinding = &Binding{ElementID: ellipseID, Focus: 0, Gap: 8}
	arrow.Seed = 441087316
	arrow.VersionNonce = 1101929740
	arrow.Updated = now

	return []Element{rect, label, ellipse, diamond, arrow}
}
