package results

import "github.com/pavelanni/examgrader/internal/model"

// CanSubmit reports whether user may submit answers to a test.
func CanSubmit(user *model.User) bool {
	return user != nil && user.Role == model.UserRoleStudent
}

// CanReadStudent reports whether user may read the results of studentID.
// Students see only their own results. Parents and teachers see any student.
func CanReadStudent(user *model.User, studentID string) bool {
	if user == nil {
		return false
	}
	switch user.Role {
	case model.UserRoleStudent:
		return user.ID == studentID
	case model.UserRoleParent, model.UserRoleTeacher:
		return true
	}
	return false
}
