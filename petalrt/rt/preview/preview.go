// Package preview rasterizes a particle field on the CPU. The host uses it to write
// snapshots on machines without an OpenGL 4.1 driver.
package preview

import (
	"image"
	"image/color"
	"math"

	"github.com/gekko3d/petalfall/petalrt/rt/core"

	"github.com/go-gl/mathgl/mgl32"
	"golang.org/x/image/draw"
	"golang.org/x/image/vector"
)

type Options struct {
	Width  int
	Height int
	// Supersample renders at this multiple of the output size and filters down.
	Supersample int
	Background  color.RGBA
	Petal       color.RGBA
	// Fade uses the particle shader's layout: far fade start, far fade half distance,
	// near fade distance. The zero value disables fading.
	Fade mgl32.Vec3
	// MaxPoint caps a petal's diameter in output pixels.
	MaxPoint float32
}

func DefaultOptions(width, height int) Options {
	return Options{
		Width:       width,
		Height:      height,
		Supersample: 2,
		Petal:       color.RGBA{255, 183, 197, 255},
		MaxPoint:    64,
	}
}

// Render draws particles in slice order, so a field sorted by depth key is painted back
// to front. view and proj are the same matrices the GPU path uses.
func Render(particles []core.Particle, view, proj mgl32.Mat4, opts Options) *image.RGBA {
	ss := max(opts.Supersample, 1)
	w, h := max(opts.Width, 1), max(opts.Height, 1)
	canvas := image.NewRGBA(image.Rect(0, 0, w*ss, h*ss))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(opts.Background), image.Point{}, draw.Src)

	maxPoint := opts.MaxPoint
	if maxPoint <= 0 {
		maxPoint = 64
	}
	p := painter{
		canvas:   canvas,
		focal:    float32(h*ss) * proj[5],
		maxPoint: maxPoint * float32(ss),
		raster:   vector.NewRasterizer(1, 1),
	}
	mvp := proj.Mul4(view)

	for _, pt := range particles {
		viewPos := view.Mul4x1(pt.Position.Vec4(1))
		dist := -viewPos.Z()
		if dist <= 1e-3 {
			continue
		}
		clip := mvp.Mul4x1(pt.Position.Vec4(1))
		ndc := clip.Vec3().Mul(1 / clip.W())
		if ndc.Z() < -1 || ndc.Z() > 1 {
			continue
		}
		alpha := pt.Alpha * fadeFactor(dist, opts.Fade)
		if alpha <= 0 {
			continue
		}
		cx := (ndc.X() + 1) / 2 * float32(canvas.Rect.Dx())
		cy := (1 - ndc.Y()) / 2 * float32(canvas.Rect.Dy())
		p.petal(cx, cy, pt.Size*p.focal/dist, pt.Euler, withAlpha(opts.Petal, alpha))
	}

	if ss == 1 {
		return canvas
	}
	out := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(out, out.Bounds(), canvas, canvas.Bounds(), draw.Src, nil)
	return out
}

func fadeFactor(dist float32, fade mgl32.Vec3) float32 {
	if fade == (mgl32.Vec3{}) {
		return 1
	}
	far := float32(1)
	if fade.Y() > 0 {
		far = min(1, float32(math.Exp2(float64((fade.X()-dist)/fade.Y()))))
	}
	near := float32(1)
	if fade.Z() > 0 {
		near = min(max(dist/fade.Z()-1, 0), 1)
	}
	return far * near
}

func withAlpha(c color.RGBA, a float32) color.NRGBA {
	return color.NRGBA{R: c.R, G: c.G, B: c.B, A: uint8(float32(c.A) * min(max(a, 0), 1))}
}

type painter struct {
	canvas   *image.RGBA
	focal    float32
	maxPoint float32
	raster   *vector.Rasterizer
}

// petal outline in unit space: tip at -y, notched base at +y.
var outline = [...][2]float32{
	{0.8, -0.7}, {0.7, 0.6}, {0.15, 0.9},
	{-0.7, 0.6}, {-0.8, -0.7}, {0, -1},
}

func (p *painter) petal(cx, cy, diameter float32, euler mgl32.Vec3, col color.NRGBA) {
	diameter = min(max(diameter, 1), p.maxPoint)
	r := diameter / 2
	// Tilt about x foreshortens the petal; spin about z rotates it in the image plane.
	squash := max(float32(math.Abs(math.Cos(float64(euler.X())))), 0.15)
	sin, cos := math.Sincos(float64(euler.Z()))
	s, c := float32(sin), float32(cos)

	side := int(math.Ceil(float64(r*2.2))) + 2
	half := float32(side) / 2
	local := func(x, y float32) (float32, float32) {
		x, y = x*r, y*r*squash
		return half + x*c - y*s, half + x*s + y*c
	}

	z := p.raster
	z.Reset(side, side)
	z.MoveTo(local(0, -1))
	z.CubeTo(xy3(local, outline[0], outline[1], outline[2]))
	z.LineTo(local(0, 0.75))
	z.LineTo(local(-0.15, 0.9))
	z.CubeTo(xy3(local, outline[3], outline[4], outline[5]))
	z.ClosePath()

	mask := image.NewAlpha(image.Rect(0, 0, side, side))
	z.Draw(mask, mask.Bounds(), image.Opaque, image.Point{})

	x0 := int(math.Floor(float64(cx - half)))
	y0 := int(math.Floor(float64(cy - half)))
	dst := image.Rect(x0, y0, x0+side, y0+side)
	draw.DrawMask(p.canvas, dst, image.NewUniform(col), image.Point{}, mask, image.Point{}, draw.Over)
}

func xy3(f func(x, y float32) (float32, float32), a, b, c [2]float32) (float32, float32, float32, float32, float32, float32) {
	ax, ay := f(a[0], a[1])
	bx, by := f(b[0], b[1])
	cx, cy := f(c[0], c[1])
	return ax, ay, bx, by, cx, cy
}
