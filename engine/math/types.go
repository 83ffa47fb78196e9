package math

// Vec2 represents a 2D vector
type Vec2 struct {
	X, Y float32
}

// Vec3 represents a 3D vector
type Vec3 struct {
	X, Y, Z float32
}

// Vec4 represents a 4D vector
type Vec4 struct {
	X, Y, Z, W float32
}

/** @brief a 4x4 matrix, typically used to represent object transformations. */
type Mat4 struct {
	/** @brief The matrix elements */
	Data [16]float32
}

/**
 * @brief Represents a single planet-surface vertex: a position in model
 * space, the texture coordinate the surface color was sampled at, and the
 * baked color itself. Colors are baked on the CPU when the sphere is
 * uploaded, so the device never needs a texture binding.
 */
type PlanetVertex struct {
	/** @brief The position of the vertex */
	Position Vec3
	/** @brief The texture coordinate of the vertex. */
	Texcoord Vec2
	/** @brief The surface color sampled from the planet texture. */
	Color Vec3
}

/** @brief Number of float32 components in one interleaved planet vertex. */
const PlanetVertexFloats = 8

/** @brief Byte stride of one interleaved planet vertex on the device. */
const PlanetVertexBytes = PlanetVertexFloats * 4

/** @brief Byte stride of one trail vertex, a bare world-space position. */
const TrailVertexBytes = 12
