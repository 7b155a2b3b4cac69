package gpu

import (
	"fmt"
	"strings"
)

// Gen identifies a hardware generation.
type Gen uint8

const (
	GenUnknown Gen = iota
	GFX6
	GFX7
	GFX8
	GFX9
	GFX10
	GFX10_3
	GFX11
)

var genNames = [...]string{
	GenUnknown: "unknown",
	GFX6:       "gfx6",
	GFX7:       "gfx7",
	GFX8:       "gfx8",
	GFX9:       "gfx9",
	GFX10:      "gfx10",
	GFX10_3:    "gfx10.3",
	GFX11:      "gfx11",
}

// String returns the lowercase generation name.
func (g Gen) String() string {
	if int(g) < len(genNames) {
		return genNames[g]
	}
	return "unknown"
}

// ParseGen converts a generation name such as "gfx9" into a Gen.
func ParseGen(s string) (Gen, error) {
	want := strings.ToLower(strings.TrimSpace(s))
	for g, name := range genNames {
		if g != int(GenUnknown) && name == want {
			return Gen(g), nil
		}
	}
	return GenUnknown, fmt.Errorf("invalid generation: %q (expected: gfx6|gfx7|gfx8|gfx9|gfx10|gfx10.3|gfx11)", s)
}

// AllGens lists every known generation, oldest first.
func AllGens() []Gen {
	return []Gen{GFX6, GFX7, GFX8, GFX9, GFX10, GFX10_3, GFX11}
}

// FloatMode selects the numeric mode used for float conversions.
type FloatMode uint8

const (
	// FloatModeDefault keeps f16/f64 denormals.
	FloatModeDefault FloatMode = iota
	// FloatModeOpenGL allows round-toward-zero packing for every f32->f16 conversion.
	FloatModeOpenGL
	// FloatModeFlushDenorms flushes f16 denormals produced by conversions.
	FloatModeFlushDenorms
)

// String returns the string representation of FloatMode.
func (m FloatMode) String() string {
	switch m {
	case FloatModeDefault:
		return "default"
	case FloatModeOpenGL:
		return "opengl"
	case FloatModeFlushDenorms:
		return "flush-denorms"
	default:
		return "unknown"
	}
}

// ParseFloatMode converts a string to FloatMode.
func ParseFloatMode(s string) (FloatMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "default":
		return FloatModeDefault, nil
	case "opengl", "gl":
		return FloatModeOpenGL, nil
	case "flush-denorms", "ftz":
		return FloatModeFlushDenorms, nil
	default:
		return FloatModeDefault, fmt.Errorf("invalid float mode: %q (expected: default|opengl|flush-denorms)", s)
	}
}

// PackedF16MinBackend is the first backend major version whose code generator
// handles the packed round-toward-zero f16 conversion for 2-component results.
const PackedF16MinBackend = 8

// Target describes the hardware and backend a function is translated for.
type Target struct {
	Gen          Gen
	WaveSize     int
	FloatMode    FloatMode
	BackendMajor int
}

// DefaultTarget returns a GFX9 wave64 target.
func DefaultTarget() Target {
	return Target{
		Gen:          GFX9,
		WaveSize:     64,
		FloatMode:    FloatModeDefault,
		BackendMajor: 15,
	}
}

// Validate checks that the target is usable.
func (t Target) Validate() error {
	if t.Gen == GenUnknown || int(t.Gen) >= len(genNames) {
		return fmt.Errorf("unknown generation %d", t.Gen)
	}
	switch t.WaveSize {
	case 32:
		if t.Gen < GFX10 {
			return fmt.Errorf("wave32 requires gfx10 or newer, got %s", t.Gen)
		}
	case 64:
	default:
		return fmt.Errorf("invalid wave size %d (expected 32 or 64)", t.WaveSize)
	}
	if t.BackendMajor <= 0 {
		return fmt.Errorf("invalid backend major version %d", t.BackendMajor)
	}
	return nil
}

// HasVec3Stores reports whether 3-component buffer stores are supported.
func (t Target) HasVec3Stores() bool { return t.Gen >= GFX7 }

// HasVec3Loads reports whether 3-component buffer loads are supported.
func (t Target) HasVec3Loads() bool { return t.Gen >= GFX7 }

// HasFastFMA32 reports whether 32-bit fused multiply-add runs at full rate.
func (t Target) HasFastFMA32() bool { return t.Gen >= GFX9 }

// HasF16ClassTest reports whether llvm.amdgcn.class.f16 is available.
func (t Target) HasF16ClassTest() bool { return t.Gen >= GFX8 }

// HasSubDwordStoreBug reports the GFX6 L1 corruption of unaligned 8/16-bit stores.
func (t Target) HasSubDwordStoreBug() bool { return t.Gen == GFX6 }

// NeedsGather4IntegerFix reports whether gather4 on integer formats needs the
// half-texel and number-format correction.
func (t Target) NeedsGather4IntegerFix() bool { return t.Gen <= GFX8 }

// UsesDLC reports whether the device-level coherence bit accompanies GLC.
func (t Target) UsesDLC() bool { return t.Gen >= GFX10 }

// HasPackedDot reports whether packed dot-product instructions exist.
func (t Target) HasPackedDot() bool { return t.Gen >= GFX9 }

// PackedF16Enabled reports whether the fast 2-lane f16 pack path may be used.
func (t Target) PackedF16Enabled() bool { return t.BackendMajor >= PackedF16MinBackend }

// FlushF16Denorms reports whether f32->f16 conversions flush denormals.
func (t Target) FlushF16Denorms() bool { return t.FloatMode == FloatModeFlushDenorms }

// String formats the target for diagnostics.
func (t Target) String() string {
	return fmt.Sprintf("%s/wave%d/%s/backend%d", t.Gen, t.WaveSize, t.FloatMode, t.BackendMajor)
}
