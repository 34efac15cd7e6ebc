package element

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

var ErrMalformed = errors.New("malformed element")

// wireKeys mirrors the keys every interoperable record must carry. Pointer
// fields distinguish "absent" from "zero".
type wireKeys struct {
	ID           *string `json:"id"`
	Type         *string `json:"type"`
	Version      *int64  `json:"version"`
	VersionNonce *int64  `json:"versionNonce"`
	IsDeleted    *bool   `json:"isDeleted"`
}

// Decode parses a single wire record and validates it.
func Decode(raw json.RawMessage) (Element, error) {
	var keys wireKeys
	if err := json.Unmarshal(raw, &keys); err != nil {
		return Element{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	switch {
	case keys.ID == nil:
		return Element{}, fmt.Errorf("%w: missing id", ErrMalformed)
	case keys.Type == nil:
		return Element{}, fmt.Errorf("%w: %s: missing type", ErrMalformed, *keys.ID)
	case keys.Version == nil:
		return Element{}, fmt.Errorf("%w: %s: missing version", ErrMalformed, *keys.ID)
	case keys.VersionNonce == nil:
		return Element{}, fmt.Errorf("%w: %s: missing versionNonce", ErrMalformed, *keys.ID)
	case keys.IsDeleted == nil:
		return Element{}, fmt.Errorf("%w: %s: missing isDeleted", ErrMalformed, *keys.ID)
	}

	var el Element
	if err := json.Unmarshal(raw, &el); err != nil {
		return Element{}, fmt.Errorf("%w: %s: %v", ErrMalformed, *keys.ID, err)
	}
	if err := Validate(el); err != nil {
		return Element{}, err
	}
	return el, nil
}

// Validate checks the invariants a record must satisfy before it may enter a
// scene. Geometry that is storable but degenerate (zero size, coincident
// points) passes; the kernel handles it.
func Validate(el Element) error {
	if el.ID == "" {
		return fmt.Errorf("%w: empty id", ErrMalformed)
	}
	if !el.Type.Known() {
		return fmt.Errorf("%w: %s: unknown type %q", ErrMalformed, el.ID, el.Type)
	}
	if el.Version < 1 {
		return fmt.Errorf("%w: %s: version %d < 1", ErrMalformed, el.ID, el.Version)
	}

	nums := []struct {
		name string
		v    float64
	}{
		{"x", el.X}, {"y", el.Y},
		{"width", el.Width}, {"height", el.Height},
		{"angle", el.Angle}, {"strokeWidth", el.StrokeWidth},
		{"roughness", el.Roughness}, {"opacity", el.Opacity},
		{"fontSize", el.FontSize}, {"lineHeight", el.LineHeight},
	}
	for _, n := range nums {
		if math.IsNaN(n.v) || math.IsInf(n.v, 0) {
			return fmt.Errorf("%w: %s: %s is not finite", ErrMalformed, el.ID, n.name)
		}
	}
	if el.Width < 0 || el.Height < 0 {
		return fmt.Errorf("%w: %s: negative dimension %gx%g", ErrMalformed, el.ID, el.Width, el.Height)
	}
	if el.StrokeWidth < 0 {
		return fmt.Errorf("%w: %s: negative strokeWidth", ErrMalformed, el.ID)
	}

	for i, p := range el.Points {
		if math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsInf(p.X, 0) || math.IsInf(p.Y, 0) {
			return fmt.Errorf("%w: %s: point %d is not finite", ErrMalformed, el.ID, i)
		}
	}
	switch {
	case (el.Type == TypeLine || el.Type == TypeArrow) && len(el.Points) < 2:
		return fmt.Errorf("%w: %s: %s needs at least 2 points", ErrMalformed, el.ID, el.Type)
	case el.Type == TypeFreedraw && len(el.Points) < 1:
		return fmt.Errorf("%w: %s: freedraw needs at least 1 point", ErrMalformed, el.ID)
	}
	return nil
}
