package audio

import "testing"

func TestVolumeClamp(t *testing.T) {
	v := NewVolume(1)

	tests := []struct {
		in   float64
		want float64
	}{
		{-0.5, 0},
		{1.5, 1},
		{0.75, 0.75},
	}
	for _, tt := range tests {
		if got := v.Set(tt.in); got != tt.want {
			t.Errorf("Set(%v): expected %v, got %v", tt.in, tt.want, got)
		}
		if v.Level() != tt.want {
			t.Errorf("Expected level %v, got %v", tt.want, v.Level())
		}
	}
}

func TestVolumeRestoreWithoutPriorLevel(t *testing.T) {
	v := NewVolume(0)
	if !v.Muted() {
		t.Error("Expected volume created at 0 to be muted")
	}
	if got := v.Restore(); got != 1 {
		t.Errorf("Expected restore to full volume, got %v", got)
	}
}

func TestVolumeToggleMute(t *testing.T) {
	v := NewVolume(0.6)

	if got := v.ToggleMute(); got != 0 {
		t.Errorf("Expected 0 after mute, got %v", got)
	}
	// Setting zero again must not forget the audible level
	v.Set(0)
	if got := v.ToggleMute(); got != 0.6 {
		t.Errorf("Expected 0.6 after unmute, got %v", got)
	}
}
