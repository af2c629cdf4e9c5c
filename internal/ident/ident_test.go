package ident

import (
	"strings"
	"testing"
)

func TestValid_AcceptsIdentifiers(t *testing.T) {
	for _, name := range []string{
		"Alpha",
		"a",
		"DebugComponentA",
		"snake_case_name",
		"Mixed_Case_2",
		strings.Repeat("a", 64),
	} {
		if !Valid(name) {
			t.Errorf("Valid(%q) = false, want true", name)
		}
	}
}

func TestValid_RejectsUnsafeNames(t *testing.T) {
	for _, name := range []string{
		"",
		"1starts_with_digit",
		"_starts_with_underscore",
		"has space",
		"has-dash",
		`quoted"name`,
		"semi;colon",
		"drop table leases; --",
		"ünïcode",
		strings.Repeat("a", 65),
	} {
		if Valid(name) {
			t.Errorf("Valid(%q) = true, want false", name)
		}
	}
}

func TestCheck_ErrorNamesTheOffender(t *testing.T) {
	err := Check("bad name")
	if err == nil {
		t.Fatal("Check() = nil, want error")
	}
	if !strings.Contains(err.Error(), `"bad name"`) {
		t.Errorf("Check() error %q does not quote the offending name", err)
	}

	if err := Check("fine_name"); err != nil {
		t.Errorf("Check(fine_name) = %v, want nil", err)
	}
}
