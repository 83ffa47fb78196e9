package math

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEllipseValidation(t *testing.T) {
	tests := []struct {
		name         string
		semiMajor    float32
		eccentricity float32
		wantErr      bool
	}{
		{name: "valid ellipse", semiMajor: 10, eccentricity: 0.4},
		{name: "circle", semiMajor: 5, eccentricity: 0},
		{name: "zero axis", semiMajor: 0, eccentricity: 0.4, wantErr: true},
		{name: "negative axis", semiMajor: -1, eccentricity: 0.4, wantErr: true},
		{name: "eccentricity one", semiMajor: 10, eccentricity: 1, wantErr: true},
		{name: "negative eccentricity", semiMajor: 10, eccentricity: -0.1, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			el, err := NewEllipse(tt.semiMajor, tt.eccentricity)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, el)
				return
			}
			assert.NoError(t, err)
			assert.NotNil(t, el)
		})
	}
}

func TestEllipseAxes(t *testing.T) {
	el, err := NewEllipse(10, 0.6)
	require.NoError(t, err)

	// b = a * sqrt(1 - e^2) = 10 * 0.8
	assert.InDelta(t, 8.0, el.SemiMinor(), 1e-4)

	// Along the major axis the radius is a, along the minor axis b.
	assert.InDelta(t, 10.0, el.Radius(0), 1e-4)
	assert.InDelta(t, 8.0, el.Radius(K_PI/2), 1e-3)
}

func TestEllipsePosition(t *testing.T) {
	el, err := NewEllipse(10, 0.6)
	require.NoError(t, err)

	// At theta = 0 the point sits on the positive major axis, z pinned to
	// the orbit plane.
	p := el.Position(0)
	assert.True(t, p.Compare(Vec3{X: 10, Y: 0, Z: 1}, 1e-4))

	p = el.Position(90)
	assert.True(t, p.Compare(Vec3{X: 0, Y: 8, Z: 1}, 1e-3))

	p = el.Position(180)
	assert.True(t, p.Compare(Vec3{X: -10, Y: 0, Z: 1}, 1e-3))
}

func TestCirclePositionConstantRadius(t *testing.T) {
	el, err := NewEllipse(7, 0)
	require.NoError(t, err)
	for deg := float32(0); deg < 360; deg += 30 {
		p := el.Position(deg)
		planar := Vec3{X: p.X, Y: p.Y, Z: 0}
		assert.InDelta(t, 7.0, planar.Length(), 1e-3, "radius at %.0f degrees", deg)
	}
}
