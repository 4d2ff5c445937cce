package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// ExamWindowKey returns the cache key for an exam's derived time window
// (start, duration, extra time). Refreshed whenever extra time is granted
// or the exam is rescheduled.
func (r *CacheKeyStruct) ExamWindowKey(examID string) string {
	return fmt.Sprintf("exam:%s:window", examID)
}

// ExamEventsChannel returns the Redis PubSub channel name for an exam's
// live submission and advisory events.
func (r *CacheKeyStruct) ExamEventsChannel(examID string) string {
	return fmt.Sprintf("exam:%s:events", examID)
}

var CacheKey = NewCacheKeyStruct()
