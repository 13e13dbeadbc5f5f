package components

import (
	"strings"
	"testing"
)

func TestMeter_View(t *testing.T) {
	tests := []struct {
		name       string
		meter      Meter
		wantFilled int
		wantEmpty  int
		wantPct    string
	}{
		{"half", Meter{Percent: 50, Width: 10}, 5, 5, " 50%"},
		{"full", Meter{Percent: 100, Width: 10, Mark: true}, 10, 0, "100%"},
		{"clamped above", Meter{Percent: 140, Width: 10}, 10, 0, "100%"},
		{"clamped below", Meter{Percent: -5, Width: 10}, 0, 10, "  0%"},
		{"minimum width", Meter{Percent: 50, Width: 1}, 2, 2, " 50%"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := tt.meter.View()
			if got := strings.Count(out, "█"); got != tt.wantFilled {
				t.Errorf("filled = %d, want %d", got, tt.wantFilled)
			}
			if got := strings.Count(out, "░"); got != tt.wantEmpty {
				t.Errorf("empty = %d, want %d", got, tt.wantEmpty)
			}
			if !strings.Contains(out, tt.wantPct) {
				t.Errorf("output %q does not contain %q", out, tt.wantPct)
			}
		})
	}
}
