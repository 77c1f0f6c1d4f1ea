package shaders

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultSourcesDeclareInputs(t *testing.T) {
	src := Default()
	require.NoError(t, src.Validate())

	tests := []struct {
		name  string
		text  string
		wants []string
	}{
		{"particle.vert", src.ParticleVert, []string{"uProjection", "uModelview", "uResolution", "uOffset", "uDOF", "uFade", "uPointLimit", "aPosition", "aEuler", "aMisc"}},
		{"particle.frag", src.ParticleFrag, []string{"fragColor"}},
		{"quad.vert", src.QuadVert, []string{"uResolution", "aPosition"}},
		{"background.frag", src.BackgroundFrag, []string{"uTimes"}},
		{"bright.frag", src.BrightFrag, []string{"uSrc", "uDelta", "uThreshold"}},
		{"blur.frag", src.BlurFrag, []string{"uSrc", "uDelta", "uBlurDir"}},
		{"composite.vert", src.CompositeVert, []string{"aPosition"}},
		{"composite.frag", src.CompositeFrag, []string{"uSrc", "uBloom", "uBloomAmount", "uOpacity"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.True(t, strings.HasPrefix(tc.text, "#version 410 core"), "must open with the version directive")
			for _, w := range tc.wants {
				assert.Contains(t, tc.text, w)
			}
		})
	}
}

func TestValidateReportsEmptySource(t *testing.T) {
	src := Default()
	src.BlurFrag = "  \n"
	err := src.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "blur.frag")
}
