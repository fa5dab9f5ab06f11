package dialog

import "testing"

func TestTransition(t *testing.T) {
	tests := []struct {
		name    string
		current State
		ev      Event
		admin   bool
		want    State
	}{
		{"admin requests delete", StateIdle, EventRequestDelete, true, StateAwaitingDeleteName},
		{"admin requests date filter", StateIdle, EventRequestDateFilter, true, StateAwaitingDateFilter},
		{"text consumes delete", StateAwaitingDeleteName, EventText, true, StateIdle},
		{"text consumes date filter", StateAwaitingDateFilter, EventText, true, StateIdle},
		{"cancel resets", StateAwaitingDeleteName, EventCancel, true, StateIdle},
		{"start resets", StateAwaitingDateFilter, EventStart, true, StateIdle},
		{"menu button resets", StateAwaitingDeleteName, EventMenu, true, StateIdle},
		{"switch pending action", StateAwaitingDeleteName, EventRequestDateFilter, true, StateAwaitingDateFilter},
		{"idle text stays idle", StateIdle, EventText, true, StateIdle},
		{"non-admin delete denied", StateIdle, EventRequestDelete, false, StateIdle},
		{"non-admin date filter denied", StateIdle, EventRequestDateFilter, false, StateIdle},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Transition(tt.current, tt.ev, tt.admin); got != tt.want {
				t.Errorf("Transition(%s, %d, %v) = %s, want %s", tt.current, tt.ev, tt.admin, got, tt.want)
			}
		})
	}
}

func TestStateValid(t *testing.T) {
	for _, s := range []State{StateIdle, StateAwaitingDeleteName, StateAwaitingDateFilter} {
		if !s.Valid() {
			t.Errorf("%s should be valid", s)
		}
	}
	if State("bogus").Valid() {
		t.Error("bogus state should be invalid")
	}
}
