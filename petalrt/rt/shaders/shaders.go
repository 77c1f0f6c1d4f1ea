package shaders

import (
	_ "embed"
	"fmt"
	"strings"
)

//go:embed particle.vert
var ParticleVert string

//go:embed particle.frag
var ParticleFrag string

//go:embed quad.vert
var QuadVert string

//go:embed background.frag
var BackgroundFrag string

//go:embed bright.frag
var BrightFrag string

//go:embed blur.frag
var BlurFrag string

//go:embed composite.vert
var CompositeVert string

//go:embed composite.frag
var CompositeFrag string

// Sources are the eight shader texts the renderer builds its programs from.
type Sources struct {
	ParticleVert   string
	ParticleFrag   string
	QuadVert       string
	BackgroundFrag string
	BrightFrag     string
	BlurFrag       string
	CompositeVert  string
	CompositeFrag  string
}

// Default returns the embedded GLSL 4.10 core sources.
func Default() Sources {
	return Sources{
		ParticleVert:   ParticleVert,
		ParticleFrag:   ParticleFrag,
		QuadVert:       QuadVert,
		BackgroundFrag: BackgroundFrag,
		BrightFrag:     BrightFrag,
		BlurFrag:       BlurFrag,
		CompositeVert:  CompositeVert,
		CompositeFrag:  CompositeFrag,
	}
}

// Validate reports the first empty source.
func (s Sources) Validate() error {
	named := []struct {
		name string
		src  string
	}{
		{"particle.vert", s.ParticleVert},
		{"particle.frag", s.ParticleFrag},
		{"quad.vert", s.QuadVert},
		{"background.frag", s.BackgroundFrag},
		{"bright.frag", s.BrightFrag},
		{"blur.frag", s.BlurFrag},
		{"composite.vert", s.CompositeVert},
		{"composite.frag", s.CompositeFrag},
	}
	for _, n := range named {
		if strings.TrimSpace(n.src) == "" {
			return fmt.Errorf("shaders: %s is empty", n.name)
		}
	}
	return nil
}
