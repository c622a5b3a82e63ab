package question

import (
	"strings"

	"studybuddy-engine/internal/domain"
)

// FallbackTopic is used when the learner has no topic memory and no study goal.
const FallbackTopic = "programming and coding"

// ResolveTopic picks a topic: the explicit request, then the most recent
// topic memory, then the study goal, then FallbackTopic.
func ResolveTopic(requested string, profile domain.LearnerProfile) string {
	if t := strings.TrimSpace(requested); t != "" {
		return t
	}

	var latest *domain.Memory
	for i := range profile.Memories {
		m := &profile.Memories[i]
		if m.Type != domain.MemoryTypeTopic || strings.TrimSpace(m.Value) == "" {
			continue
		}
		if latest == nil || m.CreatedAt.After(latest.CreatedAt) {
			latest = m
		}
	}
	if latest != nil {
		return strings.TrimSpace(latest.Value)
	}

	if g := strings.TrimSpace(profile.StudyGoal); g != "" {
		return g
	}
	return FallbackTopic
}
