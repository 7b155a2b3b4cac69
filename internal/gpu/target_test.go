package gpu

import "testing"

func TestParseGen(t *testing.T) {
	tests := []struct {
		in      string
		want    Gen
		wantErr bool
	}{
		{"gfx6", GFX6, false},
		{"GFX9", GFX9, false},
		{" gfx10.3 ", GFX10_3, false},
		{"unknown", GenUnknown, true},
		{"gfx12", GenUnknown, true},
	}
	for _, tt := range tests {
		got, err := ParseGen(tt.in)
		if (err != nil) != tt.wantErr {
			t.Fatalf("ParseGen(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseGen(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestGenRoundTrip(t *testing.T) {
	for _, g := range AllGens() {
		got, err := ParseGen(g.String())
		if err != nil || got != g {
			t.Errorf("round trip of %v: got %v, err %v", g, got, err)
		}
	}
}

func TestTargetValidate(t *testing.T) {
	ok := DefaultTarget()
	if err := ok.Validate(); err != nil {
		t.Fatalf("default target invalid: %v", err)
	}
	wave32 := ok
	wave32.WaveSize = 32
	if err := wave32.Validate(); err == nil {
		t.Error("expected wave32 on gfx9 to be rejected")
	}
	wave32.Gen = GFX10
	if err := wave32.Validate(); err != nil {
		t.Errorf("wave32 on gfx10: %v", err)
	}
	bad := ok
	bad.BackendMajor = 0
	if err := bad.Validate(); err == nil {
		t.Error("expected zero backend version to be rejected")
	}
}

func TestFeatureQueries(t *testing.T) {
	si := Target{Gen: GFX6, WaveSize: 64, BackendMajor: 7}
	if si.HasVec3Stores() {
		t.Error("gfx6 must not report vec3 stores")
	}
	if si.HasFastFMA32() {
		t.Error("gfx6 must not report fast fma32")
	}
	if !si.HasSubDwordStoreBug() {
		t.Error("gfx6 must report the sub-dword store bug")
	}
	if si.PackedF16Enabled() {
		t.Error("backend 7 must not enable the packed f16 path")
	}
	navi := Target{Gen: GFX10, WaveSize: 32, BackendMajor: 12}
	if !navi.UsesDLC() || navi.NeedsGather4IntegerFix() {
		t.Errorf("unexpected gfx10 feature set: dlc=%v gather=%v", navi.UsesDLC(), navi.NeedsGather4IntegerFix())
	}
}
