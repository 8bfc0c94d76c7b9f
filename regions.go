package myq

import "strings"

// DefaultRegions is the ordered list of myQ region suffixes. The empty
// entry is the default (unsuffixed) region; the rest are inserted into the
// first label of each API hostname, e.g. devices.myq-cloud.com becomes
// devices-east.myq-cloud.com.
func DefaultRegions() []string {
	return []string{"", "east", "west"}
}

// regionState tracks the active region for one client instance. The index
// advances only on a detected transient failure during a retry attempt and
// never resets except by re-initialization.
type regionState struct {
	regions []string
	index   int
}

func newRegionState(regions []string) *regionState {
	if len(regions) == 0 {
		regions = DefaultRegions()
	}
	return &regionState{regions: regions}
}

// current returns the active region's hostname suffix.
func (r *regionState) current() string {
	return r.regions[r.index]
}

// advance moves to the next region cyclically. It is the only mutator.
func (r *regionState) advance() string {
	r.index = (r.index + 1) % len(r.regions)
	return r.regions[r.index]
}

// applyRegion inserts the region suffix into the first label of host.
// The rewrite is idempotent: a hostname whose first label already carries
// the suffix is returned unchanged. Hosts without a dot (e.g. test servers
// addressed by IP or localhost) are left alone.
func applyRegion(host, suffix string) string {
	if suffix == "" {
		return host
	}
	label, rest, ok := strings.Cut(host, ".")
	if !ok {
		return host
	}
	if strings.HasSuffix(label, "-"+suffix) {
		return host
	}
	return label + "-" + suffix + "." + rest
}
