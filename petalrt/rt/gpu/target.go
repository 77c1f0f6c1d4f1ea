package gpu

import (
	"fmt"
)

// RenderTarget is an offscreen color texture and depth buffer bound to one framebuffer.
// Both attachments always share the target's dimensions.
type RenderTarget struct {
	Width       int
	Height      int
	Texture     Handle
	Depth       Handle
	Framebuffer Handle

	dev Device
}

// CreateTarget allocates a w x h target. Nothing is left allocated on error.
func CreateTarget(dev Device, w, h int) (*RenderTarget, error) {
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("render target %dx%d: %w", w, h, ErrAllocation)
	}
	tex, err := dev.CreateTexture(w, h)
	if err != nil {
		return nil, fmt.Errorf("render target %dx%d texture: %w", w, h, err)
	}
	depth, err := dev.CreateDepthBuffer(w, h)
	if err != nil {
		dev.DeleteTexture(tex)
		return nil, fmt.Errorf("render target %dx%d depth: %w", w, h, err)
	}
	fb, err := dev.CreateFramebuffer(tex, depth)
	if err != nil {
		dev.DeleteDepthBuffer(depth)
		dev.DeleteTexture(tex)
		return nil, fmt.Errorf("render target %dx%d framebuffer: %w", w, h, err)
	}
	return &RenderTarget{
		Width:       w,
		Height:      h,
		Texture:     tex,
		Depth:       depth,
		Framebuffer: fb,
		dev:         dev,
	}, nil
}

// Destroy releases the framebuffer and both attachments. Safe on nil and on repeat calls.
func (rt *RenderTarget) Destroy() {
	if rt == nil || rt.dev == nil {
		return
	}
	rt.dev.DeleteFramebuffer(rt.Framebuffer)
	rt.dev.DeleteDepthBuffer(rt.Depth)
	rt.dev.DeleteTexture(rt.Texture)
	rt.dev = nil
	rt.Framebuffer, rt.Depth, rt.Texture = 0, 0, 0
}

// HalfSize returns floor(w/2), floor(h/2), never below 1.
func HalfSize(w, h int) (int, int) {
	return max(w/2, 1), max(h/2, 1)
}

// TargetPool owns the full-resolution main target and the two half-resolution
// ping-pong targets. A resize replaces all three or leaves the pool empty.
type TargetPool struct {
	Main  *RenderTarget
	HalfA *RenderTarget
	HalfB *RenderTarget

	width  int
	height int
	dev    Device
}

func NewTargetPool(dev Device) *TargetPool {
	return &TargetPool{dev: dev}
}

// Ready reports whether all three targets exist.
func (p *TargetPool) Ready() bool {
	return p.Main != nil && p.HalfA != nil && p.HalfB != nil
}

// Size returns the dimensions of the last requested generation.
func (p *TargetPool) Size() (int, int) { return p.width, p.height }

// Resize destroys the current generation and allocates a new one at w x h. If any
// allocation fails the new targets created so far are destroyed, the pool is left
// empty and the error is returned; a later Resize may succeed.
func (p *TargetPool) Resize(w, h int) error {
	p.Destroy()
	p.width, p.height = w, h

	hw, hh := HalfSize(w, h)
	sizes := [3][2]int{{w, h}, {hw, hh}, {hw, hh}}
	var made [3]*RenderTarget
	for i, sz := range sizes {
		rt, err := CreateTarget(p.dev, sz[0], sz[1])
		if err != nil {
			for j := i - 1; j >= 0; j-- {
				made[j].Destroy()
			}
			return err
		}
		made[i] = rt
	}
	p.Main, p.HalfA, p.HalfB = made[0], made[1], made[2]
	return nil
}

// Destroy releases every target. The pool can be resized again afterwards.
func (p *TargetPool) Destroy() {
	p.HalfB.Destroy()
	p.HalfA.Destroy()
	p.Main.Destroy()
	p.Main, p.HalfA, p.HalfB = nil, nil, nil
}
