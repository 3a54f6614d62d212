package authz

import (
	"github.com/gitclass/gitclass-backend/internal/model"
)

// CourseEntity adapts a course for handler dispatch.
type CourseEntity struct {
	Course *model.Course
}

func (CourseEntity) EntityKind() EntityKind { return KindCourse }

// AssignmentEntity adapts an assignment for handler dispatch.
type AssignmentEntity struct {
	Assignment *model.Assignment
}

func (AssignmentEntity) EntityKind() EntityKind { return KindAssignment }

// GroupEntity adapts a submission group for handler dispatch.
type GroupEntity struct {
	Group *model.SubmissionGroup
}

func (GroupEntity) EntityKind() EntityKind { return KindSubmissionGroup }
