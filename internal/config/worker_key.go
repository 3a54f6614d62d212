package config

import "fmt"

type WorkerKeyStruct struct{}

// AssignmentLockLease returns the Redis key used as a short-lived lease so
// that only one deadline-worker instance locks a given assignment.
func (r *WorkerKeyStruct) AssignmentLockLease(assignmentID string) string {
	return fmt.Sprintf("deadline_lock:%s", assignmentID)
}

var WorkerKey = &WorkerKeyStruct{}
