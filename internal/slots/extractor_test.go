package slots

import (
	"strings"
	"testing"
)

func strval(t *testing.T, name string, got *string) string {
	t.Helper()
	if got == nil {
		t.Fatalf("%s = nil, want a value", name)
	}
	return *got
}

func TestExtract_ClimbingTrip(t *testing.T) {
	details := Extract("I want an outdoor climbing trip with 5 friends in March in Denver, I'm based in Seattle")

	if got := strval(t, "Activity", details.Activity); got != "outdoor" {
		t.Errorf("Activity = %q, want outdoor", got)
	}
	if got := strval(t, "Hobbies", details.Hobbies); got != "rock climbing" {
		t.Errorf("Hobbies = %q, want rock climbing", got)
	}
	if got := strval(t, "Guests", details.Guests); got != "5 friends" {
		t.Errorf("Guests = %q, want 5 friends", got)
	}
	if got := strval(t, "DateRange", details.DateRange); got != "march" {
		t.Errorf("DateRange = %q, want march", got)
	}
	if got := strval(t, "Location", details.Location); got != "Denver" {
		t.Errorf("Location = %q, want Denver", got)
	}
	if got := strval(t, "UserBase", details.UserBase); got != "Seattle" {
		t.Errorf("UserBase = %q, want Seattle", got)
	}

	if qs := MissingQuestions(details); len(qs) != 0 {
		t.Errorf("MissingQuestions() = %d questions, want 0", len(qs))
	}
}

func TestExtract_IndoorOnly(t *testing.T) {
	details := Extract("let's do something indoors")

	if got := strval(t, "Activity", details.Activity); got != "indoor" {
		t.Errorf("Activity = %q, want indoor", got)
	}
	for name, field := range map[string]*string{
		"Guests":    details.Guests,
		"DateRange": details.DateRange,
		"Hobbies":   details.Hobbies,
		"Location":  details.Location,
		"UserBase":  details.UserBase,
	} {
		if field != nil {
			t.Errorf("%s = %q, want nil", name, *field)
		}
	}

	qs := MissingQuestions(details)
	if len(qs) != 5 {
		t.Fatalf("MissingQuestions() = %d questions, want 5", len(qs))
	}
	for _, q := range qs {
		if q == "Is this an indoor or outdoor activity?" {
			t.Error("activity question present even though activity is set")
		}
	}

	rendered := RenderQuestions(details)
	if !strings.HasPrefix(rendered, "\nPlease provide more details: ") {
		t.Errorf("RenderQuestions() = %q, want the details preamble", rendered)
	}
}

func TestExtract_ClimbingForcesOutdoor(t *testing.T) {
	// The climbing rule wins over an explicit "indoor" elsewhere in the
	// same message. Preserved product behavior, see DESIGN.md.
	details := Extract("indoor rock climbing with my family in June")

	if got := strval(t, "Activity", details.Activity); got != "outdoor" {
		t.Errorf("Activity = %q, want outdoor (climbing override)", got)
	}
	if got := strval(t, "Hobbies", details.Hobbies); got != "rock climbing" {
		t.Errorf("Hobbies = %q, want rock climbing", got)
	}
	if got := strval(t, "Guests", details.Guests); got != "family" {
		t.Errorf("Guests = %q, want family", got)
	}
	if got := strval(t, "DateRange", details.DateRange); got != "june" {
		t.Errorf("DateRange = %q, want june", got)
	}
}

func TestExtract_GuestCountBeatsGroupNoun(t *testing.T) {
	details := Extract("a party for 12 people with colleagues")
	if got := strval(t, "Guests", details.Guests); got != "12 people" {
		t.Errorf("Guests = %q, want 12 people", got)
	}
}

func TestExtract_DaySpan(t *testing.T) {
	details := Extract("sometime from the 3rd to 5th would work")
	if got := strval(t, "DateRange", details.DateRange); got != "3rd to 5th" {
		t.Errorf("DateRange = %q, want 3rd to 5th", got)
	}
}

func TestExtract_LocationSuffixNoun(t *testing.T) {
	details := Extract("We could hold it in Quebec province")
	if got := strval(t, "Location", details.Location); got != "Quebec province" {
		t.Errorf("Location = %q, want Quebec province", got)
	}
}

func TestExtract_NoMatchesYieldsEmptyRecord(t *testing.T) {
	details := Extract("hello there")
	if details.Activity != nil || details.Guests != nil || details.DateRange != nil ||
		details.Hobbies != nil || details.Location != nil || details.UserBase != nil {
		t.Errorf("Extract() = %+v, want all fields nil", details)
	}
	if qs := MissingQuestions(details); len(qs) != 6 {
		t.Errorf("MissingQuestions() = %d, want 6", len(qs))
	}
}

func TestMemory_MonotonicFill(t *testing.T) {
	mem := NewMemory()

	first := mem.Merge("session-1", Extract("let's do something indoors"))
	if first.Activity == nil || *first.Activity != "indoor" {
		t.Fatalf("first merge Activity = %v, want indoor", first.Activity)
	}

	// A turn that matches nothing must not revert the activity.
	second := mem.Merge("session-1", Extract("hmm let me think"))
	if second.Activity == nil || *second.Activity != "indoor" {
		t.Errorf("second merge Activity = %v, want indoor retained", second.Activity)
	}

	// A later match overwrites.
	third := mem.Merge("session-1", Extract("actually make it outdoor"))
	if third.Activity == nil || *third.Activity != "outdoor" {
		t.Errorf("third merge Activity = %v, want outdoor", third.Activity)
	}

	// Sessions are independent.
	if other := mem.Get("session-2"); other.Activity != nil {
		t.Error("unrelated session has accumulated state")
	}
}

func TestMemory_ReturnsCopies(t *testing.T) {
	mem := NewMemory()
	merged := mem.Merge("s", Extract("outdoor hiking"))

	clobber := "clobbered"
	merged.Activity = &clobber

	if got := mem.Get("s"); got.Activity == nil || *got.Activity != "outdoor" {
		t.Errorf("stored record mutated through returned copy: %v", got.Activity)
	}
}
