package node

import "testing"

func TestStatusCASFromGuardsDoubleTransition(t *testing.T) {
	b := newStatusBox(Pending)
	if !b.casFrom(Pending, Alive) {
		t.Fatal("expected Pending->Alive to succeed")
	}
	if b.casFrom(Pending, Alive) {
		t.Fatal("expected a second Pending->Alive to fail")
	}
	if !b.casFrom(Alive, Completed) {
		t.Fatal("expected Alive->Completed to succeed")
	}
	if b.casFrom(Alive, Terminated) {
		t.Fatal("expected Alive->Terminated to fail once already Completed")
	}
}

func TestStatusIsTerminal(t *testing.T) {
	for s, want := range map[Status]bool{
		Pending:    false,
		Alive:      false,
		Completed:  true,
		Terminated: true,
	} {
		if got := s.IsTerminal(); got != want {
			t.Errorf("%s.IsTerminal() = %v, want %v", s, got, want)
		}
	}
}
