package systems

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"

	// Register decoders for the formats shipped in the asset directory.
	_ "image/jpeg"
	_ "image/png"

	xdraw "golang.org/x/image/draw"

	"github.com/spaghettifunk/kepler/engine/core"
	"github.com/spaghettifunk/kepler/engine/math"
)

// Texture is a decoded, pool-owned image. Planets reference textures weakly;
// the pool controls their lifetime.
type Texture struct {
	Name   string
	Pixels *image.RGBA
}

/**
 * @brief TexturePool loads every image asset in a directory once and hands
 * out shared read-only handles by planet index, wrapping modulo the pool
 * size. Construction is two-phase: NewTexturePool returns an empty pool and
 * Load must complete before the first Get.
 */
type TexturePool struct {
	textures []*Texture
	loaded   bool
}

func NewTexturePool() *TexturePool {
	return &TexturePool{}
}

// Load decodes every supported image in dir, in name order. Must be called
// exactly once before Get.
func (tp *TexturePool) Load(dir string) error {
	if tp.loaded {
		return fmt.Errorf("func Load: texture pool already loaded")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("func Load: cannot read texture directory %s: %w", dir, err)
	}

	names := []string{}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch filepath.Ext(e.Name()) {
		case ".png", ".jpg", ".jpeg":
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		f, err := os.Open(filepath.Join(dir, name))
		if err != nil {
			return fmt.Errorf("func Load: cannot open texture %s: %w", name, err)
		}
		img, _, err := image.Decode(f)
		f.Close()
		if err != nil {
			core.LogWarn("func Load: skipping undecodable texture %s: %s", name, err)
			continue
		}

		rgba := image.NewRGBA(img.Bounds())
		xdraw.Draw(rgba, rgba.Bounds(), img, img.Bounds().Min, xdraw.Src)
		tp.textures = append(tp.textures, &Texture{
			Name:   name,
			Pixels: rgba,
		})
	}

	if len(tp.textures) == 0 {
		return fmt.Errorf("func Load: no usable textures in %s", dir)
	}
	tp.loaded = true
	core.LogInfo("Texture pool loaded %d textures from %s", len(tp.textures), dir)
	return nil
}

// Sample returns the nearest texel color at the given texture coordinate,
// clamped to the image edge. A nil texture samples white, so untextured
// planets still render.
func (t *Texture) Sample(u, v float32) math.Vec3 {
	if t == nil || t.Pixels == nil {
		return math.Vec3{X: 1, Y: 1, Z: 1}
	}
	bounds := t.Pixels.Bounds()
	x := bounds.Min.X + int(u*float32(bounds.Dx()-1)+0.5)
	y := bounds.Min.Y + int(v*float32(bounds.Dy()-1)+0.5)
	x = math.Clamp(x, bounds.Min.X, bounds.Max.X-1)
	y = math.Clamp(y, bounds.Min.Y, bounds.Max.Y-1)
	c := t.Pixels.RGBAAt(x, y)
	return math.Vec3{
		X: float32(c.R) / 255.0,
		Y: float32(c.G) / 255.0,
		Z: float32(c.B) / 255.0,
	}
}

// Get returns the shared texture for a planet index, modulo the pool size.
func (tp *TexturePool) Get(planetIndex uint32) (*Texture, error) {
	if !tp.loaded {
		return nil, fmt.Errorf("func Get: texture pool used before Load completed")
	}
	return tp.textures[int(planetIndex)%len(tp.textures)], nil
}

// Size reports how many textures the pool holds.
func (tp *TexturePool) Size() int {
	return len(tp.textures)
}
