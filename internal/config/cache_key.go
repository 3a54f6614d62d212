package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// UserClaimsKey returns the cache key for a user's authorization claims snapshot.
func (r *CacheKeyStruct) UserClaimsKey(userID int) string {
	return fmt.Sprintf("user:%d:claims", userID)
}

// AssignmentRulesKey returns the cache key for an assignment's resolved
// team formation rules.
func (r *CacheKeyStruct) AssignmentRulesKey(assignmentID string) string {
	return fmt.Sprintf("assignment:%s:team_rules", assignmentID)
}

var CacheKey = NewCacheKeyStruct()
