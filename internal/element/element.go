package element

import (
	"encoding/json"
	"fmt"
	"slices"
)

type Type string

const (
	TypeRectangle Type = "rectangle"
	TypeDiamond   Type = "diamond"
	TypeEllipse   Type = "ellipse"
	TypeLine      Type = "line"
	TypeArrow     Type = "arrow"
	TypeFreedraw  Type = "freedraw"
	TypeText      Type = "text"
	TypeImage     Type = "image"
	TypeFrame     Type = "frame"
)

// Known reports whether t is one of the element types the kernel can draw.
func (t Type) Known() bool {
	switch t {
	case TypeRectangle, TypeDiamond, TypeEllipse, TypeLine, TypeArrow,
		TypeFreedraw, TypeText, TypeImage, TypeFrame:
		return true
	default:
		return false
	}
}

// Linear reports whether the element's geometry is described by Points.
func (t Type) Linear() bool {
	return t == TypeLine || t == TypeArrow || t == TypeFreedraw
}

const (
	FillHachure      = "hachure"
	FillSolid        = "solid"
	FillCrossHatch   = "cross-hatch"
	ColorTransparent = "transparent"
)

// Point is a coordinate relative to the element's (x, y) origin. On the wire
// it is encoded as a two element array.
type Point struct {
	X float64
	Y float64
}

func (p Point) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{p.X, p.Y})
}

func (p *Point) UnmarshalJSON(data []byte) error {
	var arr []float64
	if err := json.Unmarshal(data, &arr); err != nil {
		return fmt.Errorf("point: %w", err)
	}
	if len(arr) != 2 {
		return fmt.Errorf("point: expected 2 coordinates, got %d", len(arr))
	}
	p.X, p.Y = arr[0], arr[1]
	return nil
}

// Roundness selects rounded corners (boxes) or curved segments (linear).
type Roundness struct {
	Type  int      `json:"type"`
	Value *float64 `json:"value,omitempty"`
}

// BoundElement is a weak reference from a container to an element bound to it.
type BoundElement struct {
	ID   string `json:"id"`
	Type Type   `json:"type"`
}

// Binding is a weak reference from an arrow endpoint to the element it is attached to.
type Binding struct {
	ElementID string  `json:"elementId"`
	Focus     float64 `json:"focus"`
	Gap       float64 `json:"gap"`
}

// Element is a single drawable record. Records are values: the scene hands out
// clones, never pointers into its own storage.
type Element struct {
	ID   string `json:"id"`
	Type Type   `json:"type"`

	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Angle  float64 `json:"angle"`

	StrokeColor     string     `json:"strokeColor"`
	BackgroundColor string     `json:"backgroundColor"`
	FillStyle       string     `json:"fillStyle"`
	StrokeWidth     float64    `json:"strokeWidth"`
	StrokeStyle     string     `json:"strokeStyle"`
	Roughness       float64    `json:"roughness"`
	Opacity         float64    `json:"opacity"`
	Roundness       *Roundness `json:"roundness"`
	Seed            int64      `json:"seed"`

	Version      int64 `json:"version"`
	VersionNonce int64 `json:"versionNonce"`
	Updated      int64 `json:"updated"`
	IsDeleted    bool  `json:"isDeleted"`

	GroupIDs      []string       `json:"groupIds"`
	FrameID       *string        `json:"frameId"`
	BoundElements []BoundElement `json:"boundElements"`
	ContainerID   *string        `json:"containerId,omitempty"`
	StartBinding  *Binding       `json:"startBinding,omitempty"`
	EndBinding    *Binding       `json:"endBinding,omitempty"`
	Locked        bool           `json:"locked"`

	Points []Point `json:"points,omitempty"`

	Text       string  `json:"text,omitempty"`
	FontSize   float64 `json:"fontSize,omitempty"`
	FontFamily int     `json:"fontFamily,omitempty"`
	LineHeight float64 `json:"lineHeight,omitempty"`

	FileID string  `json:"fileId,omitempty"`
	Name   *string `json:"name,omitempty"`
	Link   *string `json:"link"`

	CustomData json.RawMessage `json:"customData,omitempty"`
}

// Filled reports whether the interior of the shape is painted.
func (e *Element) Filled() bool {
	return e.BackgroundColor != "" && e.BackgroundColor != ColorTransparent
}

// Clone returns a deep copy.
func (e Element) Clone() Element {
	out := e
	out.GroupIDs = slices.Clone(e.GroupIDs)
	out.BoundElements = slices.Clone(e.BoundElements)
	out.Points = slices.Clone(e.Points)
	out.CustomData = slices.Clone(e.CustomData)
	if e.Roundness != nil {
		r := *e.Roundness
		if r.Value != nil {
			v := *r.Value
			r.Value = &v
		}
		out.Roundness = &r
	}
	out.FrameID = cloneString(e.FrameID)
	out.ContainerID = cloneString(e.ContainerID)
	out.Name = cloneString(e.Name)
	out.Link = cloneString(e.Link)
	if e.StartBinding != nil {
		b := *e.StartBinding
		out.StartBinding = &b
	}
	if e.EndBinding != nil {
		b := *e.EndBinding
		out.EndBinding = &b
	}
	return out
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// New returns an element of the given type with the default presentation
// used by the editor. Identity and versioning are left for the caller (or
// the scene) to assign.
func New(t Type, x, y, width, height float64) Element {
	return Element{
		Type:            t,
		X:               x,
		Y:               y,
		Width:           width,
		Height:          height,
		StrokeColor:     "#1e1e1e",
		BackgroundColor: ColorTransparent,
		FillStyle:       FillSolid,
		StrokeWidth:     2,
		StrokeStyle:     "solid",
		Roughness:       1,
		Opacity:         100,
		Version:         1,
		GroupIDs:        []string{},
	}
}
