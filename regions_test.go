package myq

import "testing"

func TestApplyRegion(t *testing.T) {
	tests := []struct {
		name   string
		host   string
		suffix string
		want   string
	}{
		{"default region leaves host alone", "devices.myq-cloud.com", "", "devices.myq-cloud.com"},
		{"suffix inserted into first label", "devices.myq-cloud.com", "east", "devices-east.myq-cloud.com"},
		{"already qualified host unchanged", "devices-east.myq-cloud.com", "east", "devices-east.myq-cloud.com"},
		{"host without dots unchanged", "localhost:8080", "east", "localhost:8080"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := applyRegion(tt.host, tt.suffix); got != tt.want {
				t.Errorf("applyRegion(%q, %q) = %q, want %q", tt.host, tt.suffix, got, tt.want)
			}
		})
	}
}

func TestApplyRegionIdempotent(t *testing.T) {
	once := applyRegion("devices.myq-cloud.com", "west")
	twice := applyRegion(once, "west")
	if once != twice {
		t.Errorf("rewrite not idempotent: once = %q, twice = %q", once, twice)
	}
}

func TestRegionState(t *testing.T) {
	r := newRegionState([]string{"", "east", "west"})

	if r.current() != "" {
		t.Errorf("current() = %q, want default region", r.current())
	}

	got := []string{r.advance(), r.advance(), r.advance()}
	want := []string{"east", "west", ""}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("advance %d = %q, want %q", i+1, got[i], want[i])
		}
	}
}

func TestRegionStateEmptyListUsesDefaults(t *testing.T) {
	r := newRegionState(nil)
	if len(r.regions) != len(DefaultRegions()) {
		t.Errorf("regions = %v, want defaults", r.regions)
	}
}
