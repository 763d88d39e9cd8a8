package display

import "testing"

func TestControls(t *testing.T) {
	tests := []struct {
		name          string
		keys          string // p = Space, h = H
		wantCapturing bool
		wantLabel     string
	}{
		{"initial", "", true, ""},
		{"paused", "p", false, "PAUSED  "},
		{"resumed", "pp", true, ""},
		{"hidden", "h", false, "HIDDEN  "},
		{"shown again", "hh", true, ""},
		{"hidden while paused", "ph", false, "HIDDEN  "},
		{"still paused after unhide", "phh", false, "PAUSED  "},
		{"unpaused while hidden", "hpp", false, "HIDDEN  "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c controls
			for _, k := range tt.keys {
				switch k {
				case 'p':
					c.togglePause()
				case 'h':
					c.toggleHide()
				}
			}
			if got := c.capturing(); got != tt.wantCapturing {
				t.Errorf("capturing = %v, want %v", got, tt.wantCapturing)
			}
			if got := c.label(); got != tt.wantLabel {
				t.Errorf("label = %q, want %q", got, tt.wantLabel)
			}
		})
	}
}
