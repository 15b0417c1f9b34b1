package harvest

import "testing"

func TestJobTTLByStatus(t *testing.T) {
	// Terminal records stick around for inspection, live ones do not.
	if got := ttl(StatusSucceeded); got != 3600 {
		t.Errorf("succeeded ttl = %d, want 3600", got)
	}
	if got := ttl(StatusFailed); got != 3600 {
		t.Errorf("failed ttl = %d, want 3600", got)
	}
	if got := ttl(StatusPending); got != 600 {
		t.Errorf("pending ttl = %d, want 600", got)
	}
	if got := ttl(StatusRunning); got != 600 {
		t.Errorf("running ttl = %d, want 600", got)
	}
}
