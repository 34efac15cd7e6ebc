package element

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompare(t *testing.T) {
	base := Element{ID: "e1", Version: 2, VersionNonce: 100}

	tests := []struct {
		name  string
		other Element
		want  int
	}{
		{"higher version wins", Element{ID: "e1", Version: 3, VersionNonce: 1}, 1},
		{"lower version loses", Element{ID: "e1", Version: 1, VersionNonce: 999}, -1},
		{"equal version higher nonce wins", Element{ID: "e1", Version: 2, VersionNonce: 500}, 1},
		{"equal version lower nonce loses", Element{ID: "e1", Version: 2, VersionNonce: 50}, -1},
		{"identical key", Element{ID: "e1", Version: 2, VersionNonce: 100}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Compare(tt.other, base))
			assert.Equal(t, -tt.want, Compare(base, tt.other), "Compare must be antisymmetric")
			assert.Equal(t, tt.want > 0, Newer(tt.other, base))
		})
	}
}

func TestPointWireShape(t *testing.T) {
	data, err := json.Marshal([]Point{{X: 1, Y: 2}, {X: -3.5, Y: 0}})
	require.NoError(t, err)
	assert.JSONEq(t, `[[1,2],[-3.5,0]]`, string(data))

	var back []Point
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, []Point{{X: 1, Y: 2}, {X: -3.5, Y: 0}}, back)

	var bad Point
	assert.Error(t, json.Unmarshal([]byte(`[1,2,3]`), &bad))
}

func TestDecode(t *testing.T) {
	t.Run("valid record", func(t *testing.T) {
		raw := json.RawMessage(`{
			"id": "e1", "type": "rectangle", "version": 3, "versionNonce": 42,
			"updated": 1700000000000, "isDeleted": false,
			"x": 0, "y": 0, "width": 10, "height": 10, "angle": 0,
			"customData": {"owner": "alice"}
		}`)
		el, err := Decode(raw)
		require.NoError(t, err)
		assert.Equal(t, "e1", el.ID)
		assert.Equal(t, TypeRectangle, el.Type)
		assert.EqualValues(t, 3, el.Version)
		assert.EqualValues(t, 42, el.VersionNonce)
		assert.JSONEq(t, `{"owner":"alice"}`, string(el.CustomData))
	})

	rejects := map[string]string{
		"missing id":           `{"type":"rectangle","version":1,"versionNonce":1,"isDeleted":false}`,
		"missing type":         `{"id":"e1","version":1,"versionNonce":1,"isDeleted":false}`,
		"missing version":      `{"id":"e1","type":"rectangle","versionNonce":1,"isDeleted":false}`,
		"missing nonce":        `{"id":"e1","type":"rectangle","version":1,"isDeleted":false}`,
		"missing isDeleted":    `{"id":"e1","type":"rectangle","version":1,"versionNonce":1}`,
		"unknown type":         `{"id":"e1","type":"blob","version":1,"versionNonce":1,"isDeleted":false}`,
		"negative width":       `{"id":"e1","type":"rectangle","version":1,"versionNonce":1,"isDeleted":false,"width":-1}`,
		"zero version":         `{"id":"e1","type":"rectangle","version":0,"versionNonce":1,"isDeleted":false}`,
		"line with one point":  `{"id":"e1","type":"line","version":1,"versionNonce":1,"isDeleted":false,"points":[[0,0]]}`,
		"wrong field type":     `{"id":"e1","type":"rectangle","version":"one","versionNonce":1,"isDeleted":false}`,
		"not an object":        `[1,2,3]`,
	}
	for name, raw := range rejects {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(json.RawMessage(raw))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestValidateRejectsNonFinite(t *testing.T) {
	el := New(TypeRectangle, 0, 0, 10, 10)
	el.ID = "e1"
	require.NoError(t, Validate(el))

	el.Angle = math.NaN()
	assert.ErrorIs(t, Validate(el), ErrMalformed)

	el.Angle = 0
	el.Type = TypeFreedraw
	el.Points = []Point{{X: math.Inf(1), Y: 0}}
	assert.ErrorIs(t, Validate(el), ErrMalformed)
}

func TestValidateAcceptsDegenerateGeometry(t *testing.T) {
	el := New(TypeLine, 5, 5, 0, 0)
	el.ID = "e1"
	el.Points = []Point{{}, {}}
	assert.NoError(t, Validate(el))
}

func TestPatchApply(t *testing.T) {
	frame := "frame-1"
	el := New(TypeArrow, 0, 0, 10, 0)
	el.ID = "a1"
	el.FrameID = &frame
	el.StartBinding = &Binding{ElementID: "r1"}
	el.Points = []Point{{}, {X: 10}}

	p := Patch{
		X:            Ptr(5.0),
		StrokeColor:  Ptr("#ff0000"),
		FrameID:      Ptr(""),
		StartBinding: &Binding{},
		Points:       &[]Point{{}, {X: 20, Y: 5}},
	}
	p.Apply(&el)

	assert.Equal(t, 5.0, el.X)
	assert.Equal(t, "#ff0000", el.StrokeColor)
	assert.Nil(t, el.FrameID, "empty string clears the frame reference")
	assert.Nil(t, el.StartBinding, "empty binding clears the endpoint")
	assert.Equal(t, []Point{{}, {X: 20, Y: 5}}, el.Points)
	assert.EqualValues(t, 1, el.Version, "Apply never touches versioning")

	assert.Equal(t, []string{"x", "strokeColor", "frameId", "startBinding", "points"}, p.Fields())
	assert.True(t, p.AffectsGeometry())
	assert.False(t, Patch{StrokeColor: Ptr("#000")}.AffectsGeometry())
}

func TestPatchDoesNotAlias(t *testing.T) {
	pts := []Point{{}, {X: 1}}
	el := New(TypeLine, 0, 0, 1, 0)
	Patch{Points: &pts}.Apply(&el)
	pts[1].X = 99
	assert.Equal(t, 1.0, el.Points[1].X)
}

func TestPatchRoundness(t *testing.T) {
	el := New(TypeRectangle, 0, 0, 10, 10)
	radius := 4.0
	Patch{Roundness: &Roundness{Type: 3, Value: &radius}}.Apply(&el)
	require.NotNil(t, el.Roundness)
	assert.Equal(t, 3, el.Roundness.Type)
	radius = 9
	assert.Equal(t, 4.0, *el.Roundness.Value)

	p := Patch{Roundness: &Roundness{}}
	p.Apply(&el)
	assert.Nil(t, el.Roundness, "zero roundness clears it")
	assert.Equal(t, []string{"roundness"}, p.Fields())

	Patch{StrokeColor: Ptr("#000")}.Apply(&el)
	assert.Nil(t, el.Roundness)
}

func TestClone(t *testing.T) {
	src := NewSampleScene()
	for _, el := range src {
		c := el.Clone()
		if diff := cmp.Diff(el, c); diff != "" {
			t.Fatalf("clone differs (-src +clone):\n%s", diff)
		}
	}

	arrow := src[len(src)-1]
	c := arrow.Clone()
	c.Points[1].X = -1
	c.StartBinding.Gap = 100
	assert.NotEqual(t, arrow.Points[1].X, c.Points[1].X)
	assert.NotEqual(t, arrow.StartBinding.Gap, c.StartBinding.Gap)
}

func TestSampleSceneIsValid(t *testing.T) {
	for _, el := range NewSampleScene() {
		assert.NoError(t, Validate(el), el.ID)
	}
}
