package model

import "fmt"

// Subject is a Kenyan secondary school (KCSE) subject the tutor covers.
type Subject string

const (
	History   Subject = "History"
	Business  Subject = "Business Studies"
	Biology   Subject = "Biology"
	Chemistry Subject = "Chemistry"
	Math      Subject = "Mathematics"
	English   Subject = "English"
	Kiswahili Subject = "Kiswahili"
)

var subjects = []Subject{History, Business, Biology, Chemistry, Math, English, Kiswahili}

var setBooks = map[Subject][]string{
	English: {
		"Fathers of Nations",
		"The Samaritan",
		"An Artist of the Floating World",
		"A Doll's House",
		"Blossoms of the Savannah",
		"The Pearl",
	},
	Kiswahili: {
		"Chozi la Heri",
		"Kigogo",
		"Tumbo Lisiloshiba na Hadithi Nyingine",
		"Bembea ya Maisha",
		"Mapambazuko ya Machweo",
		"Nguu za Jadi",
	},
}

// Subjects returns every supported subject in display order.
func Subjects() []Subject {
	out := make([]Subject, len(subjects))
	copy(out, subjects)
	return out
}

// ParseSubject validates s against the supported subjects.
func ParseSubject(s string) (Subject, error) {
	for _, subj := range subjects {
		if string(subj) == s {
			return subj, nil
		}
	}
	return "", fmt.Errorf("unknown subject %q", s)
}

// SetBooks returns the literature set books for a subject, or nil when the
// subject has none.
func SetBooks(s Subject) []string {
	books := setBooks[s]
	if len(books) == 0 {
		return nil
	}
	out := make([]string, len(books))
	copy(out, books)
	return out
}

// HasLiterature reports whether the subject has a set-book literature paper.
func (s Subject) HasLiterature() bool {
	return s == English || s == Kiswahili
}

// SyllabusNotes maps a subject to the notes text uploaded for it.
type SyllabusNotes map[Subject]string
