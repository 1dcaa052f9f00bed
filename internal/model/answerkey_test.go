package model

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"already normal", "paris", "paris"},
		{"upper case", "PARIS", "paris"},
		{"surrounding spaces", "  Paris ", "paris"},
		{"tabs and newlines", "\tParis\n", "paris"},
		{"inner spaces kept", " New  York ", "new  york"},
		{"empty", "", ""},
		{"only spaces", "   ", ""},
		{"unicode fold", "STRASSE", "strasse"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeEquivalence(t *testing.T) {
	pairs := [][2]string{
		{" Paris ", "paris"},
		{"paris", "Paris"},
		{"PARIS", " paris\t"},
	}
	for _, p := range pairs {
		a, b := Normalize(p[0]), Normalize(p[1])
		if a != b || Normalize(p[1]) != Normalize(p[0]) {
			t.Errorf("Normalize(%q) and Normalize(%q) should be equal", p[0], p[1])
		}
		if Normalize(p[0]) != Normalize(p[0]) {
			t.Errorf("Normalize(%q) is not reflexive", p[0])
		}
	}
}

func TestQuestionTypeValid(t *testing.T) {
	for _, qt := range QuestionTypes {
		if !qt.Valid() {
			t.Errorf("%q should be valid", qt)
		}
	}
	if QuestionType("essay").Valid() {
		t.Error("essay should not be valid")
	}
	if !QuestionShort.FreeText() || !QuestionLong.FreeText() {
		t.Error("short and long should be free text")
	}
	if QuestionFillBlank.FreeText() {
		t.Error("fill_blank should not be free text")
	}
}

func TestUserRoleValid(t *testing.T) {
	for _, r := range []UserRole{UserRoleStudent, UserRoleParent, UserRoleTeacher} {
		if !r.Valid() {
			t.Errorf("%q should be valid", r)
		}
	}
	if UserRole("admin").Valid() {
		t.Error("admin should not be valid")
	}
}

func TestTestQuestionLookup(t *testing.T) {
	tt := Test{Questions: []Question{
		{Text: "q0", Marks: 2},
		{Text: "q1", Marks: 3},
	}}

	if q, ok := tt.Question(1); !ok || q.Text != "q1" {
		t.Errorf("Question(1) = %+v, %v", q, ok)
	}
	for _, i := range []int{-1, 2, 100} {
		if _, ok := tt.Question(i); ok {
			t.Errorf("Question(%d) should be out of range", i)
		}
	}
	if got := tt.MarksSum(); got != 5 {
		t.Errorf("MarksSum() = %d, want 5", got)
	}
}

func TestRedacted(t *testing.T) {
	orig := Test{Questions: []Question{
		{Type: QuestionMultipleChoice, Options: []string{"3", "4"}, CorrectAnswer: "4", Marks: 1},
		{Type: QuestionMatch, MatchPairs: map[string]string{"a": "b"}, Marks: 1},
	}}

	red := orig.Redacted()
	for i, q := range red.Questions {
		if q.CorrectAnswer != "" || q.MatchPairs != nil {
			t.Errorf("question %d still carries answer key: %+v", i, q)
		}
	}
	if len(red.Questions[0].Options) != 2 {
		t.Error("options should survive redaction")
	}
	if orig.Questions[0].CorrectAnswer != "4" {
		t.Error("redaction must not modify the original test")
	}
}
