package model

import (
	"encoding/json"
	"testing"
)

func TestParseSubject(t *testing.T) {
	for _, s := range Subjects() {
		got, err := ParseSubject(string(s))
		if err != nil {
			t.Errorf("ParseSubject(%q): %v", s, err)
		}
		if got != s {
			t.Errorf("ParseSubject(%q) = %q", s, got)
		}
	}

	for _, bad := range []string{"", "biology", "Art", "Business"} {
		if _, err := ParseSubject(bad); err == nil {
			t.Errorf("ParseSubject(%q) should fail", bad)
		}
	}
}

func TestSubjectsIsACopy(t *testing.T) {
	s := Subjects()
	s[0] = "Changed"
	if Subjects()[0] != History {
		t.Error("Subjects() should return a copy")
	}
}

func TestSetBooks(t *testing.T) {
	tests := []struct {
		subject Subject
		count   int
		lit     bool
	}{
		{English, 6, true},
		{Kiswahili, 6, true},
		{Biology, 0, false},
		{Math, 0, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.subject), func(t *testing.T) {
			books := SetBooks(tt.subject)
			if len(books) != tt.count {
				t.Errorf("got %d set books, want %d", len(books), tt.count)
			}
			if tt.count == 0 && books != nil {
				t.Error("expected nil for a subject without set books")
			}
			if tt.subject.HasLiterature() != tt.lit {
				t.Errorf("HasLiterature = %v, want %v", tt.subject.HasLiterature(), tt.lit)
			}
		})
	}

	books := SetBooks(English)
	books[0] = "Changed"
	if SetBooks(English)[0] != "Fathers of Nations" {
		t.Error("SetBooks should return a copy")
	}
}

func TestHasImage(t *testing.T) {
	empty := ""
	img := "data:image/png;base64,AAAA"

	if (GenerateRequest{}).HasImage() {
		t.Error("nil image should not count")
	}
	if (GenerateRequest{ImageBase64: &empty}).HasImage() {
		t.Error("empty image should not count")
	}
	if !(GenerateRequest{ImageBase64: &img}).HasImage() {
		t.Error("data URL should count")
	}
}

func TestEmptySnapshotEncodesArrays(t *testing.T) {
	b, err := json.Marshal(EmptySnapshot())
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `{"accessCodes":[],"usedCodes":[]}` {
		t.Errorf("got %s", b)
	}
}

func TestSnapshotLookups(t *testing.T) {
	snap := CodeSnapshot{
		AccessCodes: []AccessCode{{Code: "AAAA1111"}},
		UsedCodes:   []string{"BBBB2222"},
	}
	if !snap.Contains("AAAA1111") || snap.Contains("BBBB2222") {
		t.Error("Contains checks only active codes")
	}
	if !snap.WasUsed("BBBB2222") || snap.WasUsed("AAAA1111") {
		t.Error("WasUsed checks only used codes")
	}
}
