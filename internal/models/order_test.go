package models

import "testing"

func TestValidTransition(t *testing.T) {
	tests := []struct {
		from, to OrderStatus
		want     bool
	}{
		{OrderStatusPending, OrderStatusApproved, true},
		{OrderStatusPending, OrderStatusDisapproved, true},
		{OrderStatusPending, OrderStatusCancelled, true},
		{OrderStatusPending, OrderStatusPreparing, false},
		{OrderStatusPending, OrderStatusReady, false},
		{OrderStatusPending, OrderStatusCompleted, false},
		{OrderStatusApproved, OrderStatusPreparing, true},
		{OrderStatusApproved, OrderStatusCancelled, true},
		{OrderStatusApproved, OrderStatusReady, false},
		{OrderStatusApproved, OrderStatusPending, false},
		{OrderStatusPreparing, OrderStatusReady, true},
		{OrderStatusPreparing, OrderStatusCancelled, true},
		{OrderStatusPreparing, OrderStatusCompleted, false},
		{OrderStatusReady, OrderStatusCompleted, true},
		{OrderStatusReady, OrderStatusCancelled, false},
		{OrderStatusReady, OrderStatusPreparing, false},
		{OrderStatusCompleted, OrderStatusPending, false},
		{OrderStatusCancelled, OrderStatusApproved, false},
		{OrderStatusDisapproved, OrderStatusPending, false},
		{"", OrderStatusPending, false},
		{OrderStatusPending, "", false},
	}
	for _, tt := range tests {
		got := ValidTransition(tt.from, tt.to)
		if got != tt.want {
			t.Errorf("ValidTransition(%q, %q) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestPriorStatuses(t *testing.T) {
	tests := []struct {
		target OrderStatus
		want   map[OrderStatus]bool
	}{
		{OrderStatusApproved, map[OrderStatus]bool{OrderStatusPending: true}},
		{OrderStatusPreparing, map[OrderStatus]bool{OrderStatusApproved: true}},
		{OrderStatusReady, map[OrderStatus]bool{OrderStatusPreparing: true}},
		{OrderStatusCompleted, map[OrderStatus]bool{OrderStatusReady: true}},
		{OrderStatusCancelled, map[OrderStatus]bool{
			OrderStatusPending: true, OrderStatusApproved: true, OrderStatusPreparing: true,
		}},
		{OrderStatusDisapproved, map[OrderStatus]bool{OrderStatusPending: true}},
	}
	for _, tt := range tests {
		got := PriorStatuses(tt.target)
		if len(got) != len(tt.want) {
			t.Errorf("PriorStatuses(%q) = %v, want statuses %v", tt.target, got, tt.want)
			continue
		}
		for _, s := range got {
			if !tt.want[s] {
				t.Errorf("PriorStatuses(%q) contains unexpected %q", tt.target, s)
			}
		}
	}
}

func TestIsTerminal(t *testing.T) {
	terminal := []OrderStatus{OrderStatusCompleted, OrderStatusCancelled, OrderStatusDisapproved}
	for _, s := range terminal {
		if !s.IsTerminal() {
			t.Errorf("expected %q to be terminal", s)
		}
	}
	for _, s := range ActiveStatuses() {
		if s.IsTerminal() {
			t.Errorf("expected %q to be non-terminal", s)
		}
	}
}
