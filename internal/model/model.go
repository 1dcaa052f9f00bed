package model

import (
	"context"
	"time"
)

// UserRole represents a user's access level.
type UserRole string

const (
	// UserRoleStudent is a student user role.
	UserRoleStudent UserRole = "student"
	// UserRoleParent is a parent user role.
	UserRoleParent UserRole = "parent"
	// UserRoleTeacher is a teacher user role.
	UserRoleTeacher UserRole = "teacher"
)

// Valid reports whether r is one of the known roles.
func (r UserRole) Valid() bool {
	switch r {
	case UserRoleStudent, UserRoleParent, UserRoleTeacher:
		return true
	}
	return false
}

// User represents a registered platform user.
type User struct {
	ID           string    `json:"id" bson:"id"`
	Name         string    `json:"name" bson:"name"`
	Nickname     string    `json:"nickname" bson:"nickname"`
	Email        string    `json:"email" bson:"email"`
	Mobile       string    `json:"mobile" bson:"mobile"`
	PasswordHash string    `json:"-" bson:"password_hash"`
	Role         UserRole  `json:"role" bson:"role"`
	DOB          string    `json:"dob" bson:"dob"`
	ClassName    string    `json:"class_name,omitempty" bson:"class_name,omitempty"`
	Section      string    `json:"section,omitempty" bson:"section,omitempty"`
	School       string    `json:"school,omitempty" bson:"school,omitempty"`
	StudentCode  string    `json:"student_code,omitempty" bson:"student_code,omitempty"`
	ParentName   string    `json:"parent_name,omitempty" bson:"parent_name,omitempty"`
	ParentMobile string    `json:"parent_mobile,omitempty" bson:"parent_mobile,omitempty"`
	ParentEmail  string    `json:"parent_email,omitempty" bson:"parent_email,omitempty"`
	CreatedAt    time.Time `json:"created_at" bson:"created_at"`
}

type userCtxKey struct{}

// ContextWithUser stores a user in the request context.
func ContextWithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userCtxKey{}, u)
}

// UserFromContext retrieves the authenticated user from context, or nil.
func UserFromContext(ctx context.Context) *User {
	u, _ := ctx.Value(userCtxKey{}).(*User)
	return u
}

// Subject is a course subject tests are authored for.
type Subject struct {
	ID          string    `json:"id" bson:"id"`
	Name        string    `json:"name" bson:"name"`
	ClassName   string    `json:"class_name" bson:"class_name"`
	Description string    `json:"description,omitempty" bson:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at" bson:"created_at"`
}

// TestType classifies when and why a test is held.
type TestType string

const (
	TestChapter        TestType = "chapter"
	TestSyllabus       TestType = "syllabus"
	TestWeekly         TestType = "weekly"
	TestQuarterly      TestType = "quarterly"
	TestHalfYearly     TestType = "half_yearly"
	TestYearly         TestType = "yearly"
	TestMonthlySpecial TestType = "monthly_special"
)

// Valid reports whether t is one of the known test types.
func (t TestType) Valid() bool {
	switch t {
	case TestChapter, TestSyllabus, TestWeekly, TestQuarterly, TestHalfYearly, TestYearly, TestMonthlySpecial:
		return true
	}
	return false
}

// ServerConfig holds HTTP API settings set via CLI flags.
type ServerConfig struct {
	MaxUploadBytes int64 // upper bound for /upload-image request bodies
}

// TestImport is used for loading tests from JSON files.
type TestImport struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	SubjectID       string     `json:"subject_id"`
	ClassName       string     `json:"class_name"`
	TestType        TestType   `json:"test_type"`
	DurationMinutes int        `json:"duration_minutes"`
	TotalMarks      int        `json:"total_marks"`
	Questions       []Question `json:"questions"`
}

// Test converts an imported record into a Test ready for storage.
func (ti TestImport) Test() Test {
	return Test{
		ID:              ti.ID,
		Title:           ti.Title,
		SubjectID:       ti.SubjectID,
		ClassName:       ti.ClassName,
		TestType:        ti.TestType,
		DurationMinutes: ti.DurationMinutes,
		TotalMarks:      ti.TotalMarks,
		Questions:       ti.Questions,
	}
}
