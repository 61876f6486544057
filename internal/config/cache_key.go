package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// QuizMonitorChannel returns the Redis PubSub channel proctors watch for a quiz's live incidents.
func (r *CacheKeyStruct) QuizMonitorChannel(quizCode string) string {
	return fmt.Sprintf("quiz:%s:monitor", quizCode)
}

// SessionViolationsKey returns the cache key holding a session's confirmed violation count.
func (r *CacheKeyStruct) SessionViolationsKey(sessionID string) string {
	return fmt.Sprintf("session:%s:violations", sessionID)
}

var CacheKey = NewCacheKeyStruct()
