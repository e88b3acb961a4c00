package submission

import (
	"net/http"
	"reflect"
	"testing"
	"time"

	"ctfcore/server/settings"
)

func windowSnapshot(paused bool, start, end time.Time) *settings.Snapshot {
	return &settings.Snapshot{GamePaused: paused, StartTime: start, EndTime: end}
}

func TestCheckWindow(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	before := now.Add(-time.Hour)
	after := now.Add(time.Hour)

	cases := []struct {
		name       string
		snap       *settings.Snapshot
		wantReason string
	}{
		{"running", windowSnapshot(false, before, after), ""},
		{"paused", windowSnapshot(true, before, after), "paused"},
		{"paused wins over ended", windowSnapshot(true, before, before), "paused"},
		{"not started", windowSnapshot(false, after, after.Add(time.Hour)), "not_started"},
		{"ended", windowSnapshot(false, before.Add(-time.Hour), before), "ended"},
		{"no window configured", windowSnapshot(false, time.Time{}, time.Time{}), ""},
	}
	for _, tc := range cases {
		gerr := checkWindow(tc.snap, now)
		if tc.wantReason == "" {
			if gerr != nil {
				t.Errorf("%s: checkWindow = %v, want pass", tc.name, gerr)
			}
			continue
		}
		if gerr == nil {
			t.Errorf("%s: checkWindow passed, want %s", tc.name, tc.wantReason)
			continue
		}
		if gerr.reason != tc.wantReason || gerr.status != http.StatusForbidden {
			t.Errorf("%s: got (%d, %s), want (403, %s)", tc.name, gerr.status, gerr.reason, tc.wantReason)
		}
	}
}

func TestCheckBan(t *testing.T) {
	if gerr := checkBan(&principalRow{Status: "active"}); gerr != nil {
		t.Errorf("active principal rejected: %v", gerr)
	}
	gerr := checkBan(&principalRow{Status: "banned"})
	if gerr == nil || gerr.reason != "banned" {
		t.Errorf("banned principal not rejected with reason banned: %v", gerr)
	}
}

func TestUnmetPrereqs(t *testing.T) {
	solved := map[int64]bool{1: true, 3: true}

	if got := unmetPrereqs(nil, solved); got != nil {
		t.Errorf("no prereqs: got %v, want nil", got)
	}
	if got := unmetPrereqs([]int64{1, 3}, solved); got != nil {
		t.Errorf("all met: got %v, want nil", got)
	}
	if got := unmetPrereqs([]int64{1, 2, 4}, solved); !reflect.DeepEqual(got, []int64{2, 4}) {
		t.Errorf("got %v, want [2 4]", got)
	}
}

func TestParseIDArray(t *testing.T) {
	cases := []struct {
		raw  string
		want []int64
	}{
		{"{1,2,3}", []int64{1, 2, 3}},
		{"{42}", []int64{42}},
		{"{ 7 , 9 }", []int64{7, 9}},
		{"{}", nil},
		{"", nil},
		{"not an array", nil},
	}
	for _, tc := range cases {
		if got := parseIDArray([]byte(tc.raw)); !reflect.DeepEqual(got, tc.want) {
			t.Errorf("parseIDArray(%q) = %v, want %v", tc.raw, got, tc.want)
		}
	}
}

func TestRetryAfterSeconds(t *testing.T) {
	cases := []struct {
		oldestElapsed float64
		want          int
	}{
		{0, 60},    // oldest attempt just landed
		{10.5, 50}, // ceil(49.5)
		{59.2, 1},
		{60, 1}, // window already reopened, hint stays valid
		{75, 1},
	}
	for _, tc := range cases {
		if got := retryAfterSeconds(tc.oldestElapsed); got != tc.want {
			t.Errorf("retryAfterSeconds(%v) = %d, want %d", tc.oldestElapsed, got, tc.want)
		}
	}
}
