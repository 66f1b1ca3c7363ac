package domain

import "testing"

func TestNextAssignmentState(t *testing.T) {
	cases := []struct {
		state string
		next  string
		ok    bool
	}{
		{AssignmentEnRoute, AssignmentInProgress, true},
		{AssignmentInProgress, AssignmentCompleted, true},
		{AssignmentCompleted, "", false},
		{"bogus", "", false},
	}
	for _, tc := range cases {
		next, ok := NextAssignmentState(tc.state)
		if next != tc.next || ok != tc.ok {
			t.Fatalf("NextAssignmentState(%q) = %q, %v; want %q, %v", tc.state, next, ok, tc.next, tc.ok)
		}
	}
}

func TestRequestLive(t *testing.T) {
	live := map[string]bool{
		RequestOpen:       true,
		RequestBidding:    true,
		RequestAssigned:   false,
		RequestInProgress: false,
		RequestCompleted:  false,
		RequestCancelled:  false,
	}
	for state, want := range live {
		r := ServiceRequest{State: state}
		if r.Live() != want {
			t.Fatalf("Live() in %q = %v, want %v", state, r.Live(), want)
		}
	}
}
