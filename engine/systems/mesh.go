package systems

import (
	"encoding/binary"
	"fmt"
	m "math"

	"github.com/spaghettifunk/kepler/engine/math"
	"github.com/spaghettifunk/kepler/engine/renderer"
)

/**
 * @brief SphereConfig holds the CPU-side tessellation of one planet sphere:
 * structured vertices plus a uint32 index list. Vertex colors are left zero
 * here; they are baked from the planet texture at upload time.
 */
type SphereConfig struct {
	Radius   float32
	Vertices []math.PlanetVertex
	Indices  []uint32
}

/**
 * @brief Generates a tessellated sphere by walking latitude and longitude
 * rings. latBands and longBands must both be >= 2; smoothness and vertex
 * count grow quadratically with the band counts.
 */
func GenerateSphereConfig(radius float32, latBands, longBands uint32) (*SphereConfig, error) {
	if radius <= 0 {
		err := fmt.Errorf("func GenerateSphereConfig: radius must be > 0, got %f", radius)
		return nil, err
	}
	if latBands < 2 || longBands < 2 {
		err := fmt.Errorf("func GenerateSphereConfig: band counts must be >= 2, got lat=%d long=%d", latBands, longBands)
		return nil, err
	}

	config := &SphereConfig{
		Radius:   radius,
		Vertices: make([]math.PlanetVertex, 0, (latBands+1)*(longBands+1)),
		Indices:  make([]uint32, 0, latBands*longBands*6),
	}

	for lat := uint32(0); lat <= latBands; lat++ {
		theta := float64(lat) * m.Pi / float64(latBands)
		sinTheta := float32(m.Sin(theta))
		cosTheta := float32(m.Cos(theta))

		for lon := uint32(0); lon <= longBands; lon++ {
			phi := float64(lon) * 2.0 * m.Pi / float64(longBands)
			sinPhi := float32(m.Sin(phi))
			cosPhi := float32(m.Cos(phi))

			x := cosPhi * sinTheta
			y := cosTheta
			z := sinPhi * sinTheta
			u := float32(lon) / float32(longBands)
			v := float32(lat) / float32(latBands)

			config.Vertices = append(config.Vertices, math.PlanetVertex{
				Position: math.Vec3{X: radius * x, Y: radius * y, Z: radius * z},
				Texcoord: math.Vec2{X: u, Y: v},
			})
		}
	}

	// Two triangles per quad between adjacent rings.
	for lat := uint32(0); lat < latBands; lat++ {
		for lon := uint32(0); lon < longBands; lon++ {
			first := lat*(longBands+1) + lon
			second := first + longBands + 1
			config.Indices = append(config.Indices,
				first, second, first+1,
				second, second+1, first+1)
		}
	}

	return config, nil
}

/**
 * @brief Planet is one simulated body. It exclusively owns its vertex and
 * index buffers, keeps the CPU index list for draw-call sizing, and holds a
 * weak handle to a shared texture owned by the texture pool. The radius is
 * immutable for the planet's lifetime; a tessellation change discards and
 * regenerates every planet rather than patching buffers in place.
 */
type Planet struct {
	VertexBuffer renderer.Buffer
	IndexBuffer  renderer.Buffer
	Indices      []uint32
	Radius       float32
	Texture      *Texture
}

// NewPlanet tessellates a sphere, bakes each vertex's surface color from the
// planet texture and uploads the geometry to fresh device buffers. Planets
// without a texture bake plain white.
func NewPlanet(backend renderer.Backend, radius float32, latBands, longBands uint32, texture *Texture) (*Planet, error) {
	config, err := GenerateSphereConfig(radius, latBands, longBands)
	if err != nil {
		return nil, err
	}

	vertexBytes := make([]byte, len(config.Vertices)*math.PlanetVertexBytes)
	for i, vert := range config.Vertices {
		vert.Color = texture.Sample(vert.Texcoord.X, vert.Texcoord.Y)
		base := i * math.PlanetVertexBytes
		for c, f := range [math.PlanetVertexFloats]float32{
			vert.Position.X, vert.Position.Y, vert.Position.Z,
			vert.Texcoord.X, vert.Texcoord.Y,
			vert.Color.X, vert.Color.Y, vert.Color.Z,
		} {
			binary.LittleEndian.PutUint32(vertexBytes[base+c*4:], m.Float32bits(f))
		}
	}
	indexBytes := make([]byte, len(config.Indices)*4)
	for i, idx := range config.Indices {
		binary.LittleEndian.PutUint32(indexBytes[i*4:], idx)
	}

	vertexBuffer, err := backend.BufferCreate(renderer.BufferKindVertex, uint64(len(vertexBytes)))
	if err != nil {
		return nil, fmt.Errorf("func NewPlanet: vertex buffer: %w", err)
	}
	if err := backend.BufferLoadRange(vertexBuffer, 0, vertexBytes); err != nil {
		vertexBuffer.Destroy()
		return nil, err
	}

	indexBuffer, err := backend.BufferCreate(renderer.BufferKindIndex, uint64(len(indexBytes)))
	if err != nil {
		vertexBuffer.Destroy()
		return nil, fmt.Errorf("func NewPlanet: index buffer: %w", err)
	}
	if err := backend.BufferLoadRange(indexBuffer, 0, indexBytes); err != nil {
		vertexBuffer.Destroy()
		indexBuffer.Destroy()
		return nil, err
	}

	return &Planet{
		VertexBuffer: vertexBuffer,
		IndexBuffer:  indexBuffer,
		Indices:      config.Indices,
		Radius:       radius,
		Texture:      texture,
	}, nil
}

// Destroy releases the planet's device buffers. The texture stays with the
// pool.
func (p *Planet) Destroy() {
	if p.VertexBuffer != nil {
		p.VertexBuffer.Destroy()
		p.VertexBuffer = nil
	}
	if p.IndexBuffer != nil {
		p.IndexBuffer.Destroy()
		p.IndexBuffer = nil
	}
	p.Indices = nil
	p.Texture = nil
}
