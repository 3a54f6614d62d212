// Package authz implements the course-scoped authorization engine: the
// permission-handler registry, the entity handlers, and the checker that
// combines the role hierarchy with entity-specific rules. Admin bypass
// always takes absolute precedence.
package authz

import (
	"github.com/gitclass/gitclass-backend/internal/model"
)

// EntityKind is the stable type tag a permission handler is registered
// under.
type EntityKind string

const (
	KindCourse          EntityKind = "course"
	KindAssignment      EntityKind = "assignment"
	KindSubmissionGroup EntityKind = "submission_group"
)

// Action selects which capability of a handler applies to a check.
type Action string

const (
	ActionRead   Action = "read"
	ActionWrite  Action = "write"
	ActionDelete Action = "delete"
)

// Entity is anything a permission handler can be dispatched on.
type Entity interface {
	EntityKind() EntityKind
}

// Handler is the capability set for one entity kind. Each check returns
// nil to allow or a Forbidden-class error describing the failed
// requirement.
type Handler interface {
	CheckRead(p *model.Principal, e Entity) error
	CheckWrite(p *model.Principal, e Entity) error
	CheckDelete(p *model.Principal, e Entity) error
}
