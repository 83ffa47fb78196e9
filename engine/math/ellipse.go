package math

import "fmt"

/**
 * @brief Describes the planar ellipse every planet orbits on. The ellipse is
 * centered on the origin with the major axis along x.
 */
type Ellipse struct {
	/** @brief The semi-major axis length. Must be > 0. */
	SemiMajor float32
	/** @brief The eccentricity in [0, 1). 0 is a circle. */
	Eccentricity float32
}

/**
 * @brief Creates a new ellipse from a semi-major axis and an eccentricity.
 * Rejects a <= 0 and e outside [0, 1).
 */
func NewEllipse(semiMajor, eccentricity float32) (*Ellipse, error) {
	if semiMajor <= 0 {
		err := fmt.Errorf("func NewEllipse: semi-major axis must be > 0, got %f", semiMajor)
		return nil, err
	}
	if eccentricity < 0 || eccentricity >= 1 {
		err := fmt.Errorf("func NewEllipse: eccentricity must be in [0, 1), got %f", eccentricity)
		return nil, err
	}
	return &Ellipse{
		SemiMajor:    semiMajor,
		Eccentricity: eccentricity,
	}, nil
}

/**
 * @brief Returns the semi-minor axis b = sqrt(max(0, a^2 * (1 - e^2))).
 */
func (el *Ellipse) SemiMinor() float32 {
	a := el.SemiMajor
	e := el.Eccentricity
	bb := a * a * (1.0 - e*e)
	if bb < 0 {
		bb = 0
	}
	return ksqrt(bb)
}

/**
 * @brief Returns the center-to-edge radius of the ellipse at the given
 * angle: R(theta) = (a*b) / sqrt((b*cos(theta))^2 + (a*sin(theta))^2).
 */
func (el *Ellipse) Radius(thetaRad float32) float32 {
	a := el.SemiMajor
	b := el.SemiMinor()
	bc := b * kcos(thetaRad)
	as := a * ksin(thetaRad)
	return (a * b) / ksqrt(bc*bc+as*as)
}

/**
 * @brief Returns the world-space point on the ellipse at the given angle in
 * degrees. The orbit plane sits at z = 1.
 */
func (el *Ellipse) Position(thetaDeg float32) Vec3 {
	theta := DegToRad(thetaDeg)
	r := el.Radius(theta)
	return Vec3{
		X: r * kcos(theta),
		Y: r * ksin(theta),
		Z: 1.0,
	}
}
