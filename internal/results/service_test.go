package results

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/pavelanni/examgrader/internal/model"
	"github.com/pavelanni/examgrader/internal/scoring"
)

type memStore struct {
	mu      sync.Mutex
	tests   map[string]model.Test
	results []model.Result
	saveErr error
}

func newMemStore(tests ...model.Test) *memStore {
	m := &memStore{tests: make(map[string]model.Test)}
	for _, t := range tests {
		m.tests[t.ID] = t
	}
	return m
}

func (m *memStore) GetTest(_ context.Context, id string) (*model.Test, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tests[id]
	if !ok {
		return nil, &model.NotFoundError{Kind: "test", ID: id}
	}
	return &t, nil
}

func (m *memStore) SaveResult(_ context.Context, r model.Result) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return "", m.saveErr
	}
	m.results = append(m.results, r)
	return r.ID, nil
}

func (m *memStore) GetResult(_ context.Context, id string) (*model.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.results {
		if r.ID == id {
			return &r, nil
		}
	}
	return nil, &model.NotFoundError{Kind: "result", ID: id}
}

func (m *memStore) ListResultsByStudent(_ context.Context, studentID string) ([]model.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Result
	for _, r := range m.results {
		if r.StudentID == studentID {
			out = append(out, r)
		}
	}
	return out, nil
}

type countingExtractor struct {
	mu    sync.Mutex
	calls int
	text  string
}

func (c *countingExtractor) Extract(context.Context, string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return c.text, nil
}

// fixedGrader awards a fixed fraction of the marks to every answer.
type fixedGrader struct {
	fraction float64
	err      error
}

func (g fixedGrader) Grade(_ context.Context, _, _, _ string, maxMarks int) (float64, error) {
	if g.err != nil {
		return 0, g.err
	}
	return g.fraction * float64(maxMarks), nil
}

// cancelCheckingGrader fails if it sees a cancelled context.
type cancelCheckingGrader struct{}

func (cancelCheckingGrader) Grade(ctx context.Context, _, _, _ string, maxMarks int) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return float64(maxMarks), nil
}

var (
	student      = &model.User{ID: "stu-1", Role: model.UserRoleStudent}
	otherStudent = &model.User{ID: "stu-2", Role: model.UserRoleStudent}
	parent       = &model.User{ID: "par-1", Role: model.UserRoleParent}
	teacher      = &model.User{ID: "tea-1", Role: model.UserRoleTeacher}
)

func physicsTest() model.Test {
	return model.Test{
		ID:    "t-1",
		Title: "Physics",
		Questions: []model.Question{
			{Text: "Unit of force?", Type: model.QuestionMultipleChoice, Options: []string{"Newton", "Joule"}, CorrectAnswer: "Newton", Marks: 2},
			{Text: "Explain inertia.", Type: model.QuestionLong, CorrectAnswer: "Resistance to change in motion.", Marks: 4},
		},
		TotalMarks: 6,
	}
}

func newTestService(store *memStore, ex scoring.Extractor, gr scoring.Grader) *Service {
	s := New(store, store, scoring.New(ex, gr))
	n := 0
	s.newID = func() string {
		n++
		return fmt.Sprintf("r-%d", n)
	}
	s.now = func() time.Time { return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC) }
	return s
}

func TestSubmit(t *testing.T) {
	store := newMemStore(physicsTest())
	svc := newTestService(store, nil, fixedGrader{fraction: 0.5})

	r, err := svc.Submit(context.Background(), student, model.Submission{
		TestID: "t-1",
		Answers: []model.SubmittedAnswer{
			{QuestionIndex: 0, SelectedOption: "Newton"},
			{QuestionIndex: 1, AnswerText: "Objects keep doing what they do."},
		},
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if r.TotalScore != 4 {
		t.Errorf("TotalScore = %v, want 4", r.TotalScore)
	}
	if r.MaxScore != 6 || !r.Evaluated || r.StudentID != "stu-1" || r.TestID != "t-1" {
		t.Errorf("unexpected result: %+v", r)
	}
	if !r.SubmittedAt.Equal(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected submitted_at %v", r.SubmittedAt)
	}
	if len(store.results) != 1 || store.results[0].ID != r.ID {
		t.Fatalf("result not persisted: %+v", store.results)
	}
}

func TestNewResult(t *testing.T) {
	test := physicsTest()
	ev := scoring.New(nil, fixedGrader{fraction: 1}).Evaluate(context.Background(), test, []model.SubmittedAnswer{
		{QuestionIndex: 0, SelectedOption: "Joule"},
		{QuestionIndex: 1, AnswerText: "It resists change."},
	})
	at := time.Date(2026, 3, 1, 15, 30, 0, 0, time.FixedZone("IST", 5*3600+1800))

	r := NewResult("r-9", test, "stu-1", ev, at)
	if r.ID != "r-9" || r.TestID != "t-1" || r.StudentID != "stu-1" || !r.Evaluated {
		t.Errorf("unexpected identity fields: %+v", r)
	}
	if r.TotalScore != 4 || r.MaxScore != 6 {
		t.Errorf("score = %v/%d, want 4/6", r.TotalScore, r.MaxScore)
	}
	if len(r.Outcomes) != 2 || len(r.Answers) != 2 {
		t.Errorf("got %d outcomes and %d answers, want 2 and 2", len(r.Outcomes), len(r.Answers))
	}
	if r.SubmittedAt.Location() != time.UTC || !r.SubmittedAt.Equal(at) {
		t.Errorf("SubmittedAt = %v, want %v in UTC", r.SubmittedAt, at)
	}
	if r.RescoredFrom != "" {
		t.Errorf("RescoredFrom = %q, want empty", r.RescoredFrom)
	}
}

func TestSubmitRejections(t *testing.T) {
	store := newMemStore(physicsTest())
	svc := newTestService(store, nil, fixedGrader{fraction: 1})

	valid := model.Submission{TestID: "t-1", Answers: []model.SubmittedAnswer{{QuestionIndex: 0, SelectedOption: "Newton"}}}

	tests := []struct {
		name    string
		user    *model.User
		sub     model.Submission
		wantErr any
	}{
		{"no user", nil, valid, &model.AccessDeniedError{}},
		{"teacher", teacher, valid, &model.AccessDeniedError{}},
		{"parent", parent, valid, &model.AccessDeniedError{}},
		{"missing test id", student, model.Submission{}, &model.ValidationError{}},
		{"negative index", student, model.Submission{TestID: "t-1", Answers: []model.SubmittedAnswer{{QuestionIndex: -1}}}, &model.ValidationError{}},
		{"bad image payload", student, model.Submission{TestID: "t-1", Answers: []model.SubmittedAnswer{{QuestionIndex: 1, HandwrittenImage: "%%%"}}}, &model.ValidationError{}},
		{"unknown test", student, model.Submission{TestID: "nope"}, &model.NotFoundError{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Submit(context.Background(), tt.user, tt.sub)
			switch want := tt.wantErr.(type) {
			case *model.AccessDeniedError:
				if !errors.As(err, &want) {
					t.Errorf("expected AccessDeniedError, got %v", err)
				}
			case *model.ValidationError:
				if !errors.As(err, &want) {
					t.Errorf("expected ValidationError, got %v", err)
				}
			case *model.NotFoundError:
				if !errors.As(err, &want) {
					t.Errorf("expected NotFoundError, got %v", err)
				}
			}
		})
	}
	if len(store.results) != 0 {
		t.Errorf("rejected submissions must not be stored, got %d", len(store.results))
	}
}

func TestSubmitAcceptsImagePayloads(t *testing.T) {
	store := newMemStore(physicsTest())
	ex := &countingExtractor{text: "things stay put"}
	svc := newTestService(store, ex, fixedGrader{fraction: 1})

	for _, img := range []string{"aGVsbG8=", "data:image/jpeg;base64,aGVsbG8="} {
		r, err := svc.Submit(context.Background(), student, model.Submission{
			TestID:  "t-1",
			Answers: []model.SubmittedAnswer{{QuestionIndex: 1, HandwrittenImage: img}},
		})
		if err != nil {
			t.Fatalf("Submit(%q): %v", img, err)
		}
		if r.Answers[0].OCRText != "things stay put" {
			t.Errorf("ocr text not back-filled: %+v", r.Answers[0])
		}
	}
}

func TestSubmitSurvivesClientCancellation(t *testing.T) {
	store := newMemStore(physicsTest())
	svc := newTestService(store, nil, cancelCheckingGrader{})

	ctx, cancel := context.WithCancel(context.Background())
	svc.tests = cancelAfterLookup{TestStore: store, cancel: cancel}

	r, err := svc.Submit(ctx, student, model.Submission{
		TestID:  "t-1",
		Answers: []model.SubmittedAnswer{{QuestionIndex: 1, AnswerText: "resists change"}},
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if r.TotalScore != 4 {
		t.Errorf("grading should not see the cancellation, got total %v", r.TotalScore)
	}
}

// cancelAfterLookup cancels the request context right after the test lookup,
// simulating a client that disconnects while grading runs.
type cancelAfterLookup struct {
	TestStore
	cancel context.CancelFunc
}

func (c cancelAfterLookup) GetTest(ctx context.Context, id string) (*model.Test, error) {
	t, err := c.TestStore.GetTest(ctx, id)
	c.cancel()
	return t, err
}

func TestSubmitSaveFailure(t *testing.T) {
	store := newMemStore(physicsTest())
	store.saveErr = errors.New("disk full")
	svc := newTestService(store, nil, fixedGrader{fraction: 1})

	_, err := svc.Submit(context.Background(), student, model.Submission{TestID: "t-1"})
	if err == nil || !errors.Is(err, store.saveErr) {
		t.Errorf("expected wrapped save error, got %v", err)
	}
}

func TestRescore(t *testing.T) {
	store := newMemStore(physicsTest())
	ex := &countingExtractor{text: "an object resists changes"}
	svc := newTestService(store, ex, fixedGrader{fraction: 0.25})

	first, err := svc.Submit(context.Background(), student, model.Submission{
		TestID:  "t-1",
		Answers: []model.SubmittedAnswer{{QuestionIndex: 1, HandwrittenImage: "aGVsbG8="}},
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if ex.calls != 1 {
		t.Fatalf("expected one extraction, got %d", ex.calls)
	}

	svc.engine = scoring.New(ex, fixedGrader{fraction: 1})

	if _, err := svc.Rescore(context.Background(), student, first.ID); err == nil {
		t.Error("students must not rescore")
	}

	second, err := svc.Rescore(context.Background(), teacher, first.ID)
	if err != nil {
		t.Fatalf("Rescore: %v", err)
	}
	if ex.calls != 1 {
		t.Errorf("rescoring must reuse the extracted text, extractor called %d times", ex.calls)
	}
	if second.ID == first.ID || second.RescoredFrom != first.ID {
		t.Errorf("rescore should create a new result linked to the old one: %+v", second)
	}
	if second.StudentID != "stu-1" {
		t.Errorf("rescored result should belong to the student, got %q", second.StudentID)
	}
	if first.TotalScore != 1 || second.TotalScore != 4 {
		t.Errorf("scores: first %v, second %v", first.TotalScore, second.TotalScore)
	}
	if len(store.results) != 2 || store.results[0].TotalScore != 1 {
		t.Errorf("original result must stay untouched: %+v", store.results)
	}

	_, err = svc.Rescore(context.Background(), teacher, "missing")
	var nf *model.NotFoundError
	if !errors.As(err, &nf) {
		t.Errorf("expected NotFoundError, got %v", err)
	}
}

func TestReadAccess(t *testing.T) {
	store := newMemStore(physicsTest())
	svc := newTestService(store, nil, fixedGrader{fraction: 1})
	r, err := svc.Submit(context.Background(), student, model.Submission{
		TestID:  "t-1",
		Answers: []model.SubmittedAnswer{{QuestionIndex: 0, SelectedOption: "Newton"}},
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	tests := []struct {
		name    string
		user    *model.User
		allowed bool
	}{
		{"owner", student, true},
		{"other student", otherStudent, false},
		{"parent", parent, true},
		{"teacher", teacher, true},
		{"anonymous", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Result(context.Background(), tt.user, r.ID)
			_, listErr := svc.StudentResults(context.Background(), tt.user, "stu-1")
			if tt.allowed && (err != nil || listErr != nil) {
				t.Errorf("expected access, got %v / %v", err, listErr)
			}
			var denied *model.AccessDeniedError
			if !tt.allowed && (!errors.As(err, &denied) || !errors.As(listErr, &denied)) {
				t.Errorf("expected AccessDeniedError, got %v / %v", err, listErr)
			}
		})
	}
}

func TestStudentResultsOrderAndEmpty(t *testing.T) {
	store := newMemStore(physicsTest())
	svc := newTestService(store, nil, fixedGrader{fraction: 1})

	empty, err := svc.StudentResults(context.Background(), student, "stu-1")
	if err != nil {
		t.Fatalf("StudentResults: %v", err)
	}
	if empty == nil || len(empty) != 0 {
		t.Errorf("expected empty non-nil list, got %#v", empty)
	}

	for range 3 {
		if _, err := svc.Submit(context.Background(), student, model.Submission{TestID: "t-1"}); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}
	list, _ := svc.StudentResults(context.Background(), teacher, "stu-1")
	for i, r := range list {
		if want := fmt.Sprintf("r-%d", i+1); r.ID != want {
			t.Errorf("list[%d] = %s, want %s", i, r.ID, want)
		}
	}
}

func TestAnalytics(t *testing.T) {
	store := newMemStore(physicsTest())
	svc := newTestService(store, nil, fixedGrader{fraction: 0.5})

	a, err := svc.Analytics(context.Background(), parent, "stu-1")
	if err != nil {
		t.Fatalf("Analytics: %v", err)
	}
	if a != (model.Analytics{}) {
		t.Errorf("expected zero analytics, got %+v", a)
	}

	for _, opt := range []string{"Newton", "Joule"} {
		_, err := svc.Submit(context.Background(), student, model.Submission{
			TestID: "t-1",
			Answers: []model.SubmittedAnswer{
				{QuestionIndex: 0, SelectedOption: opt},
				{QuestionIndex: 1, AnswerText: "something"},
			},
		})
		if err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}

	a, err = svc.Analytics(context.Background(), student, "stu-1")
	if err != nil {
		t.Fatalf("Analytics: %v", err)
	}
	want := model.Analytics{TotalTests: 2, ObtainedMarks: 6, TotalMarksPossible: 12, AveragePercent: 50}
	if a != want {
		t.Errorf("Analytics = %+v, want %+v", a, want)
	}

	if _, err := svc.Analytics(context.Background(), otherStudent, "stu-1"); err == nil {
		t.Error("other students must not see analytics")
	}
}

func TestComputeAnalytics(t *testing.T) {
	tests := []struct {
		name string
		in   []model.Result
		want model.Analytics
	}{
		{"empty", nil, model.Analytics{}},
		{
			"zero possible marks",
			[]model.Result{{TotalScore: 0, MaxScore: 0}},
			model.Analytics{TotalTests: 1},
		},
		{
			"rounded",
			[]model.Result{{TotalScore: 1, MaxScore: 3}, {TotalScore: 1.333, MaxScore: 3}},
			model.Analytics{TotalTests: 2, ObtainedMarks: 2.33, TotalMarksPossible: 6, AveragePercent: 38.88},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ComputeAnalytics(tt.in); got != tt.want {
				t.Errorf("ComputeAnalytics() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestAccessPredicates(t *testing.T) {
	if !CanSubmit(student) || CanSubmit(teacher) || CanSubmit(parent) || CanSubmit(nil) {
		t.Error("only students may submit")
	}
	if !CanReadStudent(student, "stu-1") || CanReadStudent(student, "stu-2") {
		t.Error("students read only their own results")
	}
	if !CanReadStudent(parent, "stu-9") || !CanReadStudent(teacher, "stu-9") {
		t.Error("parents and teachers read any student")
	}
	if CanReadStudent(&model.User{ID: "x", Role: "admin"}, "x") {
		t.Error("unknown roles read nothing")
	}
}
