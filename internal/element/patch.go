package element

import (
	"encoding/json"
	"slices"
)

// Patch is a partial update. Nil fields are left untouched. Binding and
// reference fields are cleared by passing an empty value (empty string, or a
// Binding with an empty ElementID). A zero Roundness{} clears roundness,
// making corners sharp and lines straight.
type Patch struct {
	X      *float64 `json:"x,omitempty"`
	Y      *float64 `json:"y,omitempty"`
	Width  *float64 `json:"width,omitempty"`
	Height *float64 `json:"height,omitempty"`
	Angle  *float64 `json:"angle,omitempty"`

	StrokeColor     *string    `json:"strokeColor,omitempty"`
	BackgroundColor *string    `json:"backgroundColor,omitempty"`
	FillStyle       *string    `json:"fillStyle,omitempty"`
	StrokeWidth     *float64   `json:"strokeWidth,omitempty"`
	StrokeStyle     *string    `json:"strokeStyle,omitempty"`
	Roughness       *float64   `json:"roughness,omitempty"`
	Opacity         *float64   `json:"opacity,omitempty"`
	Roundness       *Roundness `json:"roundness,omitempty"`
	Seed            *int64     `json:"seed,omitempty"`

	IsDeleted *bool `json:"isDeleted,omitempty"`
	Locked    *bool `json:"locked,omitempty"`

	GroupIDs      *[]string       `json:"groupIds,omitempty"`
	FrameID       *string         `json:"frameId,omitempty"`
	BoundElements *[]BoundElement `json:"boundElements,omitempty"`
	ContainerID   *string         `json:"containerId,omitempty"`
	StartBinding  *Binding        `json:"startBinding,omitempty"`
	EndBinding    *Binding        `json:"endBinding,omitempty"`

	Points *[]Point `json:"points,omitempty"`

	Text       *string  `json:"text,omitempty"`
	FontSize   *float64 `json:"fontSize,omitempty"`
	FontFamily *int     `json:"fontFamily,omitempty"`
	LineHeight *float64 `json:"lineHeight,omitempty"`

	FileID *string `json:"fileId,omitempty"`
	Name   *string `json:"name,omitempty"`
	Link   *string `json:"link,omitempty"`

	CustomData json.RawMessage `json:"customData,omitempty"`
}

// Apply writes the patch into el. It does not touch versioning fields.
func (p Patch) Apply(el *Element) {
	setF := func(dst *float64, src *float64) {
		if src != nil {
			*dst = *src
		}
	}
	setS := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	ref := func(src *string) *string {
		if *src == "" {
			return nil
		}
		v := *src
		return &v
	}
	binding := func(src *Binding) *Binding {
		if src.ElementID == "" {
			return nil
		}
		b := *src
		return &b
	}

	setF(&el.X, p.X)
	setF(&el.Y, p.Y)
	setF(&el.Width, p.Width)
	setF(&el.Height, p.Height)
	setF(&el.Angle, p.Angle)
	setS(&el.StrokeColor, p.StrokeColor)
	setS(&el.BackgroundColor, p.BackgroundColor)
	setS(&el.FillStyle, p.FillStyle)
	setF(&el.StrokeWidth, p.StrokeWidth)
	setS(&el.StrokeStyle, p.StrokeStyle)
	setF(&el.Roughness, p.Roughness)
	setF(&el.Opacity, p.Opacity)
	if p.Roundness != nil {
		if *p.Roundness == (Roundness{}) {
			el.Roundness = nil
		} else {
			r := *p.Roundness
			if r.Value != nil {
				r.Value = Ptr(*r.Value)
			}
			el.Roundness = &r
		}
	}
	if p.Seed != nil {
		el.Seed = *p.Seed
	}
	if p.IsDeleted != nil {
		el.IsDeleted = *p.IsDeleted
	}
	if p.Locked != nil {
		el.Locked = *p.Locked
	}
	if p.GroupIDs != nil {
		el.GroupIDs = slices.Clone(*p.GroupIDs)
	}
	if p.FrameID != nil {
		el.FrameID = ref(p.FrameID)
	}
	if p.BoundElements != nil {
		el.BoundElements = slices.Clone(*p.BoundElements)
	}
	if p.ContainerID != nil {
		el.ContainerID = ref(p.ContainerID)
	}
	if p.StartBinding != nil {
		el.StartBinding = binding(p.StartBinding)
	}
	if p.EndBinding != nil {
		el.EndBinding = binding(p.EndBinding)
	}
	if p.Points != nil {
		el.Points = slices.Clone(*p.Points)
	}
	setS(&el.Text, p.Text)
	setF(&el.FontSize, p.FontSize)
	if p.FontFamily != nil {
		el.FontFamily = *p.FontFamily
	}
	setF(&el.LineHeight, p.LineHeight)
	setS(&el.FileID, p.FileID)
	if p.Name != nil {
		el.Name = ref(p.Name)
	}
	if p.Link != nil {
		el.Link = ref(p.Link)
	}
	if p.CustomData != nil {
		el.CustomData = slices.Clone(p.CustomData)
	}
}

// Fields lists the wire names of the fields the patch sets.
func (p Patch) Fields() []string {
	var out []string
	add := func(set bool, name string) {
		if set {
			out = append(out, name)
		}
	}
	add(p.X != nil, "x")
	add(p.Y != nil, "y")
	add(p.Width != nil, "width")
	add(p.Height != nil, "height")
	add(p.Angle != nil, "angle")
	add(p.StrokeColor != nil, "strokeColor")
	add(p.BackgroundColor != nil, "backgroundColor")
	add(p.FillStyle != nil, "fillStyle")
	add(p.StrokeWidth != nil, "strokeWidth")
	add(p.StrokeStyle != nil, "strokeStyle")
	add(p.Roughness != nil, "roughness")
	add(p.Opacity != nil, "opacity")
	add(p.Roundness != nil, "roundness")
	add(p.Seed != nil, "seed")
	add(p.IsDeleted != nil, "isDeleted")
	add(p.Locked != nil, "locked")
	add(p.GroupIDs != nil, "groupIds")
	add(p.FrameID != nil, "frameId")
	add(p.BoundElements != nil, "boundElements")
	add(p.ContainerID != nil, "containerId")
	add(p.StartBinding != nil, "startBinding")
	add(p.EndBinding != nil, "endBinding")
	add(p.Points != nil, "points")
	add(p.Text != nil, "text")
	add(p.FontSize != nil, "fontSize")
	add(p.FontFamily != nil, "fontFamily")
	add(p.LineHeight != nil, "lineHeight")
	add(p.FileID != nil, "fileId")
	add(p.Name != nil, "name")
	add(p.Link != nil, "link")
	add(p.CustomData != nil, "customData")
	return out
}

// AffectsGeometry reports whether applying the patch can change the outline
// or bounding box.
func (p Patch) AffectsGeometry() bool {
	return p.X != nil || p.Y != nil || p.Width != nil || p.Height != nil ||
		p.Angle != nil || p.Points != nil || p.Roundness != nil ||
		p.Roughness != nil || p.Seed != nil || p.StrokeWidth != nil ||
		p.IsDeleted != nil || p.FontSize != nil || p.LineHeight != nil
}

// Ptr is a convenience for building patches inline.
func Ptr[T any](v T) *T {
	return &v
}
