// Package report builds the end-of-session summary from the emotional
// history accumulated by the risk tracker.
package report

import (
	"fmt"
	"sort"
	"time"

	"github.com/mindwell-dev/mindwell/internal/emotion"
	"github.com/mindwell-dev/mindwell/internal/risk"
)

// EmotionSummary aggregates one label over the session.
type EmotionSummary struct {
	Label    emotion.Label `json:"label"`
	Count    int           `json:"count"`
	AvgScore float64       `json:"avg_score"`
}

// Recommendation is one suggested action in the report.
type Recommendation struct {
	Title string `json:"title"`
	Text  string `json:"text"`
	Icon  string `json:"icon"`
}

// Report is the end-of-session summary returned by EndSession. Building it
// is deterministic: the same history always yields the same report.
type Report struct {
	SessionID       string           `json:"session_id"`
	RiskScore       float64          `json:"risk_score"`
	RiskLevel       risk.Level       `json:"risk_level"`
	Emotions        []EmotionSummary `json:"emotions"`
	Summary         string           `json:"summary"`
	EmotionAnalysis string           `json:"emotion_analysis"`
	Recommendations []Recommendation `json:"recommendations"`
	GeneratedAt     time.Time        `json:"generated_at"`
}

// Build assembles the report for a session from its fused emotion history
// and final risk snapshot.
func Build(sessionID string, history []emotion.Fused, snap risk.Snapshot, generatedAt time.Time) *Report {
	emotions := summarizeEmotions(history)
	return &Report{
		SessionID:       sessionID,
		RiskScore:       snap.Score,
		RiskLevel:       snap.Level,
		Emotions:        emotions,
		Summary:         summaryText(snap.Score),
		EmotionAnalysis: emotionAnalysis(emotions),
		Recommendations: recommendations(snap.Score),
		GeneratedAt:     generatedAt,
	}
}

// summarizeEmotions counts each label and averages its confidence, sorted
// by average score descending with label name as a deterministic tiebreak.
func summarizeEmotions(history []emotion.Fused) []EmotionSummary {
	type acc struct {
		count int
		total float64
	}
	byLabel := make(map[emotion.Label]*acc)
	for _, f := range history {
		if f.Label == "" {
			continue
		}
		a, ok := byLabel[f.Label]
		if !ok {
			a = &acc{}
			byLabel[f.Label] = a
		}
		a.count++
		a.total += f.Confidence
	}

	summaries := make([]EmotionSummary, 0, len(byLabel))
	for label, a := range byLabel {
		summaries = append(summaries, EmotionSummary{
			Label:    label,
			Count:    a.count,
			AvgScore: a.total / float64(a.count),
		})
	}
	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].AvgScore != summaries[j].AvgScore {
			return summaries[i].AvgScore > summaries[j].AvgScore
		}
		return summaries[i].Label < summaries[j].Label
	})
	return summaries
}

func summaryText(score float64) string {
	switch {
	case score > 0.6:
		return "Based on your conversation patterns, there are indicators of significant emotional distress. The analysis shows persistent negative emotional expressions."
	case score > 0.3:
		return "Your conversation patterns show some indicators of mild to moderate emotional strain. While there are some positive emotions present, there are also notable periods of negative emotional expression."
	default:
		return "Based on your conversation patterns, your emotional risk appears to be low. The analysis shows generally balanced emotional responses with predominantly positive or neutral expressions."
	}
}

func emotionAnalysis(emotions []EmotionSummary) string {
	if len(emotions) == 0 {
		return "There isn't enough emotional data to provide a detailed analysis."
	}
	dominant := emotions[0].Label
	switch dominant {
	case emotion.LabelJoy:
		return "Your conversations show predominantly positive emotions, with joy being the most frequent. This suggests a generally positive outlook."
	case emotion.LabelSadness, emotion.LabelFear, emotion.LabelAnger:
		secondary := "other emotions"
		if len(emotions) > 1 {
			secondary = string(emotions[1].Label)
		}
		return fmt.Sprintf("Your conversations show a significant presence of %s, which can be associated with emotional distress when persistent. There are also signs of %s.", dominant, secondary)
	default:
		return fmt.Sprintf("Your conversations show a mix of emotions, with %s being most prominent. The emotional variety suggests normal emotional fluctuations.", dominant)
	}
}

// recommendations returns the mindfulness baseline plus two score-dependent
// suggestions.
func recommendations(score float64) []Recommendation {
	recs := []Recommendation{
		{
			Title: "Practice Mindfulness",
			Text:  "Take 5-10 minutes each day for mindful breathing or meditation to center yourself and reduce stress.",
			Icon:  "fa-leaf",
		},
	}
	switch {
	case score > 0.6:
		recs = append(recs,
			Recommendation{
				Title: "Seek Professional Support",
				Text:  "Consider reaching out to a mental health professional to discuss your feelings and explore treatment options.",
				Icon:  "fa-user-md",
			},
			Recommendation{
				Title: "Establish Daily Routine",
				Text:  "Create and maintain a structured daily routine, including regular sleep times, meals, and activities.",
				Icon:  "fa-calendar",
			},
		)
	case score > 0.3:
		recs = append(recs,
			Recommendation{
				Title: "Physical Activity",
				Text:  "Aim for 30 minutes of moderate exercise at least 3 times a week to boost mood and energy levels.",
				Icon:  "fa-walking",
			},
			Recommendation{
				Title: "Social Connection",
				Text:  "Schedule time to connect with supportive friends or family members, even if briefly.",
				Icon:  "fa-users",
			},
		)
	default:
		recs = append(recs,
			Recommendation{
				Title: "Maintain Healthy Habits",
				Text:  "Continue with activities that bring you joy and maintain your well-being.",
				Icon:  "fa-heart",
			},
			Recommendation{
				Title: "Preventive Self-Care",
				Text:  "Practice regular self-care activities to maintain your emotional resilience.",
				Icon:  "fa-spa",
			},
		)
	}
	return recs
}
