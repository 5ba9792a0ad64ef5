package database

import "testing"

func TestAlert_State(t *testing.T) {
	tests := []struct {
		name  string
		alert Alert
		want  State
	}{
		{"fresh row", Alert{}, StatePending},
		{"notified", Alert{Notified: true}, StateNotified},
		{"cleared", Alert{Notified: true, UpstreamCleared: true}, StateCleared},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.alert.State(); got != tt.want {
				t.Errorf("State() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestInsertResult_String(t *testing.T) {
	if Inserted.String() != "inserted" || AlreadyExists.String() != "already_exists" {
		t.Errorf("unexpected strings %s / %s", Inserted, AlreadyExists)
	}
}
