package responder

import (
	"fmt"

	"github.com/mindwell-dev/mindwell/internal/chat"
	"github.com/mindwell-dev/mindwell/internal/emotion"
	"github.com/mindwell-dev/mindwell/internal/risk"
)

// maxHistoryTurns caps how much conversation context is sent to a generator.
const maxHistoryTurns = 5

// systemPrompt builds the companion persona prompt carrying the current
// emotional context so the generator can adjust tone without the user ever
// seeing the analysis.
func systemPrompt(emo EmotionalContext) string {
	return fmt.Sprintf(`You are a compassionate mental health companion designed to create a warm, supportive environment for users.

EMOTIONAL CONTEXT:
- The user's current emotion appears to be: %s (confidence: %.2f)
- Their risk level is: %s (score: %.2f)

APPROACH:
- Respond with empathy, warmth, and genuine care
- Use a conversational, friendly tone while maintaining appropriate professionalism
- Validate the user's feelings without judgment
- Listen actively and reflect back what you hear
- Offer perspective when helpful, but avoid minimizing their experiences
- Ask thoughtful follow-up questions to show interest and deepen understanding

IMPORTANT:
- Never explicitly mention their risk score or emotion analysis
- Subtly adjust your tone and suggestions based on their emotional state
- If they show signs of serious distress or self-harm, gently encourage professional help`,
		emo.Fused.Label, emo.Fused.Confidence, emo.Risk.Level, emo.Risk.Score)
}

// recentTurns returns the tail of the conversation used as generator
// context.
func recentTurns(history []chat.Turn) []chat.Turn {
	if len(history) <= maxHistoryTurns {
		return history
	}
	return history[len(history)-maxHistoryTurns:]
}

// enrich appends supportive context to a reply based on the emotional
// analysis: coping suggestions for strong negative emotions, encouragement
// for elevated risk, reinforcement for strong positive ones.
func enrich(reply string, emo EmotionalContext) string {
	if emo.Risk.Level == risk.LevelHigh && emo.Risk.Score > 0.7 {
		reply += "\n\nIf things feel like too much right now, reaching out to a mental health professional can really help. You deserve support."
	}

	if emo.Fused.Confidence <= 0.7 {
		return reply
	}

	switch emo.Fused.Label {
	case emotion.LabelSadness:
		reply += "\n\nWhen feelings of sadness are present, it can help to engage your senses. Maybe try listening to a favorite uplifting song, enjoying a warm drink, or stepping outside for some fresh air."
	case emotion.LabelFear:
		reply += "\n\nWhen anxiety or fear feels strong, grounding techniques can help. Try the 5-4-3-2-1 technique: notice 5 things you see, 4 things you can touch, 3 things you hear, 2 things you smell, and 1 thing you taste."
	case emotion.LabelAnger:
		reply += "\n\nWhen strong emotions like frustration arise, taking a moment for some deep breaths can help create space between feelings and reactions. Breathing in for 4 counts and out for 6 can be especially calming."
	case emotion.LabelJoy:
		reply += "\n\nIt's wonderful to experience these positive feelings. Taking a moment to savor and appreciate them can help extend their benefits."
	}

	return reply
}
