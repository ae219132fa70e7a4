package loader

import "github.com/rotisserie/eris"

// Canonical result column names used downstream.
const (
	ColCode      = "ons_id"
	ColParty     = "party_name"
	ColFirstName = "firstname"
	ColSurname   = "surname"
	ColVotes     = "votes"
)

// headerRenames maps published House of Commons Library headers to canonical names.
var headerRenames = []struct{ from, to string }{
	{"ONS ID", ColCode},
	{"First party", ColParty},
	{"Member first name", ColFirstName},
	{"Member surname", ColSurname},
	{"Majority", ColVotes},
}

// displayDefaults are injected when a results file lacks a display column.
var displayDefaults = []struct{ col, value string }{
	{ColParty, ""},
	{ColFirstName, ""},
	{ColSurname, ""},
	{ColVotes, "0"},
}

// NormalizeResults rewrites a results table to the canonical schema in place.
// Steps run in a fixed order: add "Of which other winner" when absent, fold
// "UUP (as UCUNF)" into "UUP", apply the canonical renames, then require ons_id.
func NormalizeResults(t *Table) error {
	if !t.Has("Of which other winner") {
		t.addColumn("Of which other winner", "0")
	}
	if t.Has("UUP") {
		t.mergeInto("UUP (as UCUNF)", "UUP")
	} else {
		t.rename("UUP (as UCUNF)", "UUP")
	}
	for _, r := range headerRenames {
		if !t.Has(r.to) {
			t.rename(r.from, r.to)
		}
	}

	if !t.Has(ColCode) {
		return eris.Errorf("missing required column %q (or %q)", ColCode, "ONS ID")
	}

	for _, d := range displayDefaults {
		if !t.Has(d.col) {
			t.addColumn(d.col, d.value)
		}
	}
	return nil
}
