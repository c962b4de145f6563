//go:build go1.18

package domain

import (
	"testing"
	"unicode/utf8"
)

// FuzzParsePersonID tests that parsing never panics on arbitrary input
// and always returns either a valid ID or an error.
func FuzzParsePersonID(f *testing.F) {
	f.Add("")
	f.Add("550e8400-e29b-41d4-a716-446655440000")
	f.Add("00000000-0000-0000-0000-000000000000")
	f.Add("not-a-uuid")
	f.Add("'; DROP TABLE roles;--")
	f.Add(string([]byte{0x00, 0x01, 0x02}))
	f.Add("550e8400-e29b-41d4-a716-446655440000\x00suffix")

	f.Fuzz(func(t *testing.T, input string) {
		id, err := ParsePersonID(input)

		// Either valid ID or error, never both
		if err == nil {
			roundTrip, err2 := ParsePersonID(id.String())
			if err2 != nil {
				t.Errorf("Valid ID failed round-trip: %v", err2)
			}
			if roundTrip != id {
				t.Error("Round-trip changed ID value")
			}
		}

		// Non-UTF8 input must be rejected
		if !utf8.ValidString(input) && err == nil {
			t.Error("Non-UTF8 input was accepted")
		}
	})
}

// FuzzParseAllIDs ensures all ID types behave consistently.
func FuzzParseAllIDs(f *testing.F) {
	f.Add("550e8400-e29b-41d4-a716-446655440000")
	f.Add("")
	f.Add("invalid")

	f.Fuzz(func(t *testing.T, input string) {
		_, errPerson := ParsePersonID(input)
		_, errRole := ParseRoleID(input)
		_, errGroup := ParseGroupID(input)
		_, errHousehold := ParseHouseholdID(input)

		if errPerson == nil {
			if errRole != nil || errGroup != nil || errHousehold != nil {
				t.Error("Inconsistent parsing across ID types")
			}
		}
		if errPerson != nil {
			if errRole == nil || errGroup == nil || errHousehold == nil {
				t.Error("Inconsistent rejection across ID types")
			}
		}
	})
}
