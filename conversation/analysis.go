package conversation

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
)

var (
	strengthPool = []string{
		"Clear communication style",
		"Good examples provided",
		"Strong analytical thinking",
		"Appropriate use of metrics",
		"Well-structured responses",
	}
	improvementPool = []string{
		"More specific examples needed",
		"Better framework usage",
		"Stronger data-driven approach",
		"More strategic thinking",
		"Improved storytelling",
	}
	recommendationPool = []string{
		"Practice the STAR method for behavioral questions",
		"Study more case study frameworks",
		"Research company-specific challenges",
		"Prepare more quantitative examples",
		"Work on executive presence",
	}
)

// Analyze scores a transcript. It is a placeholder heuristic, not a model:
// the result is a pure function of the transcript, the duration and the
// word-count seed, and is flagged with Heuristic=true.
func Analyze(transcript string, durationMinutes int) *Analysis {
	words := len(strings.Fields(transcript))
	return AnalyzeWithSeed(transcript, durationMinutes, uint64(words))
}

// AnalyzeWithSeed is Analyze with an explicit seed.
func AnalyzeWithSeed(transcript string, durationMinutes int, seed uint64) *Analysis {
	words := len(strings.Fields(transcript))
	var userTurns, aiTurns int
	for line := range strings.SplitSeq(transcript, "\n") {
		if strings.Contains(line, "You:") {
			userTurns++
		}
		if strings.Contains(line, "AI:") {
			aiTurns++
		}
	}

	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)) //nolint:gosec // scoring is not security sensitive
	between := func(lo, hi int) int { return lo + r.IntN(hi-lo+1) }

	confidence := clamp(3, 10, float64(between(6, 9))+0.1*float64(userTurns))
	fluency := clamp(4, 10, float64(between(6, 9))+0.001*float64(words))
	patience := clamp(3, 10, float64(between(5, 8)))
	preparedness := clamp(3, 10, float64(between(5, 9)))

	points := min(10, max(1, durationMinutes))
	timeline := make([]TimelinePoint, 0, points)
	for i := 1; i <= points; i++ {
		timeline = append(timeline, TimelinePoint{
			Minute: i,
			Topic:  fmt.Sprintf("Discussion topic %d", i),
			Score:  between(6, 9),
			Notes:  fmt.Sprintf("Key points discussed in minute %d", i),
		})
	}

	return &Analysis{
		OverallScore:      round1((confidence + fluency + patience + preparedness) / 4),
		ConfidenceScore:   round1(confidence),
		FluencyScore:      round1(fluency),
		PatienceScore:     round1(patience),
		PreparednessScore: round1(preparedness),
		Timeline:          timeline,
		Strengths:         pick(strengthPool, between(2, 4)),
		Improvements:      pick(improvementPool, between(2, 3)),
		Recommendations:   pick(recommendationPool, between(3, 5)),
		TotalWords:        words,
		UserResponses:     userTurns,
		AIQuestions:       aiTurns,
		Heuristic:         true,
	}
}

func pick(pool []string, n int) []string {
	out := make([]string, n)
	copy(out, pool[:n])
	return out
}

func clamp(lo, hi, v float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
