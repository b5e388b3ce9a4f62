package vertebrae

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestAddGroup_Cervical(t *testing.T) {
	r := New()
	if err := r.AddGroup("cervical"); err != nil {
		t.Fatalf("AddGroup(cervical) failed: %v", err)
	}

	want := []string{"C1", "C2", "C3", "C4", "C5", "C6", "C7"}
	if diff := cmp.Diff(want, r.List()); diff != "" {
		t.Errorf("cervical expansion mismatch (-want +got):\n%s", diff)
	}

	// A second expansion must not duplicate or reorder anything.
	if err := r.AddGroup("cervical"); err != nil {
		t.Fatalf("second AddGroup(cervical) failed: %v", err)
	}
	if diff := cmp.Diff(want, r.List()); diff != "" {
		t.Errorf("cervical expansion not idempotent (-want +got):\n%s", diff)
	}
}

func TestAddGroup_Sizes(t *testing.T) {
	cases := []struct {
		group string
		count int
	}{
		{"cervical", 7},
		{"thorax", 12},
		{"lumbar", 5},
	}
	for _, tc := range cases {
		t.Run(tc.group, func(t *testing.T) {
			r := New()
			if err := r.AddGroup(tc.group); err != nil {
				t.Fatalf("AddGroup(%s) failed: %v", tc.group, err)
			}
			if r.Len() != tc.count {
				t.Errorf("expected %d identifiers for %s, got %d", tc.count, tc.group, r.Len())
			}
		})
	}
}

func TestAddGroup_Unknown(t *testing.T) {
	r := New()
	err := r.AddGroup("sacral")
	if err == nil {
		t.Fatal("expected error for unknown group")
	}
	if !errors.Is(err, ErrUnknownGroup) {
		t.Errorf("expected ErrUnknownGroup, got %v", err)
	}
	if r.Len() != 0 {
		t.Errorf("failed group expansion must not add identifiers, got %d", r.Len())
	}
}

func TestAdd_KeepsFirstInsertionOrder(t *testing.T) {
	r := New()
	r.Add("T5")
	r.Add("C3")
	r.Add("T5") // no-op
	r.Add("L1")

	want := []string{"T5", "C3", "L1"}
	if diff := cmp.Diff(want, r.List()); diff != "" {
		t.Errorf("insertion order mismatch (-want +got):\n%s", diff)
	}
}

func TestClear(t *testing.T) {
	r := New()
	if err := r.AddGroup("lumbar"); err != nil {
		t.Fatalf("AddGroup failed: %v", err)
	}
	r.Clear()
	if r.Len() != 0 {
		t.Errorf("expected empty registry after Clear, got %d", r.Len())
	}

	// Cleared identifiers can be re-added.
	r.Add("L3")
	if diff := cmp.Diff([]string{"L3"}, r.List()); diff != "" {
		t.Errorf("re-add after Clear mismatch (-want +got):\n%s", diff)
	}
}

func TestZeroValueRegistry(t *testing.T) {
	var r Registry
	r.Add("C1")
	r.Add("C1")
	if r.Len() != 1 {
		t.Errorf("zero-value registry should deduplicate, got %d entries", r.Len())
	}
}

func TestList_ReturnsCopy(t *testing.T) {
	r := New()
	r.Add("C1")
	r.Add("C2")
	list := r.List()
	list[0] = "tampered"
	if got := r.List()[0]; got != "C1" {
		t.Errorf("List must return a copy; registry now holds %q", got)
	}
}
