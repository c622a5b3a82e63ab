// Package mastery holds the proficiency model: how hard the next question
// should be and how a finished assessment moves a topic's proficiency.
package mastery

import (
	"math"
	"time"

	"studybuddy-engine/internal/domain"
)

const (
	easyCeiling   = 0.4
	mediumCeiling = 0.7

	passStep = 0.1
	failStep = 0.05
	// Scores under this floor count as a fail regardless of the pass threshold.
	failFloor = 0.5
)

// Weight is the mastery weight of a difficulty bucket. Unknown buckets weigh like medium.
func Weight(d domain.Difficulty) float64 {
	switch d {
	case domain.DifficultyEasy:
		return 0.5
	case domain.DifficultyHard:
		return 1.5
	default:
		return 1.0
	}
}

// SelectDifficulty maps a proficiency in [0,1] to a difficulty bucket.
func SelectDifficulty(p float64) domain.Difficulty {
	switch {
	case p < easyCeiling:
		return domain.DifficultyEasy
	case p < mediumCeiling:
		return domain.DifficultyMedium
	default:
		return domain.DifficultyHard
	}
}

// AverageWeight is the mean difficulty weight of the questions, 0 for none.
func AverageWeight(questions []domain.Question) float64 {
	if len(questions) == 0 {
		return 0
	}
	var sum float64
	for _, q := range questions {
		sum += Weight(q.Difficulty)
	}
	return sum / float64(len(questions))
}

// Delta is the proficiency change for a score.
func Delta(score, passThreshold, avgWeight float64) float64 {
	switch {
	case score >= passThreshold:
		return passStep * avgWeight
	case score < failFloor:
		return -failStep * avgWeight
	default:
		return 0
	}
}

// ReviewOffset is the spacing before the next review for a proficiency.
func ReviewOffset(p float64) time.Duration {
	day := 24 * time.Hour
	switch {
	case p > 0.8:
		return 7 * day
	case p > 0.6:
		return 3 * day
	default:
		return day
	}
}

// Update is the outcome of applying one assessment to a topic.
type Update struct {
	Score      float64
	Passed     bool
	Before     float64
	After      float64
	Delta      float64
	NextReview time.Time
}

// Apply scores correct/total against passThreshold and moves the old proficiency.
// The result is always clamped to [0,1].
func Apply(old float64, questions []domain.Question, correct int, passThreshold float64, now time.Time) Update {
	score := 0.0
	if n := len(questions); n > 0 {
		score = float64(correct) / float64(n)
	}
	delta := Delta(score, passThreshold, AverageWeight(questions))
	after := clamp(old + delta)
	return Update{
		Score:      score,
		Passed:     score >= passThreshold,
		Before:     old,
		After:      after,
		Delta:      delta,
		NextReview: now.Add(ReviewOffset(after)),
	}
}

func clamp(p float64) float64 {
	return math.Max(0, math.Min(1, p))
}
