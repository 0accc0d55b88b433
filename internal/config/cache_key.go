package config

import (
	"fmt"
)

// CacheKeyStruct builds every Redis key the engine touches. All keys are
// prefixed with the tab namespace so the store behaves like tab-scoped storage.
type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// SessionPayloadKey returns the key holding a staged exam session payload
func (r *CacheKeyStruct) SessionPayloadKey(tabID, sessionID string) string {
	return fmt.Sprintf("tab:%s:session:%s:payload", tabID, sessionID)
}

// ExamResultKey returns the key holding the final result for the results view
func (r *CacheKeyStruct) ExamResultKey(tabID, sessionID string) string {
	return fmt.Sprintf("tab:%s:session:%s:result", tabID, sessionID)
}

// SessionEventsChannel returns the Redis PubSub channel name for a session's events
func (r *CacheKeyStruct) SessionEventsChannel(tabID, sessionID string) string {
	return fmt.Sprintf("tab:%s:session:%s:events", tabID, sessionID)
}

// AnalyticsViewPattern matches cached analytics views
func (r *CacheKeyStruct) AnalyticsViewPattern(tabID string) string {
	return fmt.Sprintf("tab:%s:view:analytics:*", tabID)
}

// LeaderboardViewPattern matches cached leaderboard views
func (r *CacheKeyStruct) LeaderboardViewPattern(tabID string) string {
	return fmt.Sprintf("tab:%s:view:leaderboard:*", tabID)
}

// HistoryViewPattern matches cached exam history views
func (r *CacheKeyStruct) HistoryViewPattern(tabID string) string {
	return fmt.Sprintf("tab:%s:view:history:*", tabID)
}

// ExamOutcomeViewPatterns lists every cached view that depends on exam outcomes.
func (r *CacheKeyStruct) ExamOutcomeViewPatterns(tabID string) []string {
	return []string{
		r.AnalyticsViewPattern(tabID),
		r.LeaderboardViewPattern(tabID),
		r.HistoryViewPattern(tabID),
	}
}

var CacheKey = NewCacheKeyStruct()
