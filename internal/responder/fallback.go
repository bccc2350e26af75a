package responder

import (
	"github.com/mindwell-dev/mindwell/internal/emotion"
	"github.com/mindwell-dev/mindwell/internal/risk"
)

// Fallback is the rule-based responder used when no generator is reachable.
// The mapping is total: every (label, level) pair yields a non-empty reply.
// Variant selection rotates on the turn index so repeated fallbacks do not
// read identically, while staying fully deterministic.
type Fallback struct {
	byLabel map[emotion.Label][]string
	general []string
}

// NewFallback builds the fallback response tables.
func NewFallback() *Fallback {
	return &Fallback{
		byLabel: map[emotion.Label][]string{
			emotion.LabelSadness: {
				"I'm sorry to hear you're feeling down. Remember that emotions come and go, and difficult moments will pass. Would it help to talk about what's causing these feelings?",
				"It sounds like you're going through a tough time. Sometimes sharing your feelings can help lighten the emotional burden. What's been on your mind lately?",
				"I hear that you're feeling sad. Many people experience these feelings, and it's a normal part of being human. Is there something specific that triggered them?",
			},
			emotion.LabelAnger: {
				"I notice there's some frustration in your message. Taking a few deep breaths can sometimes help clear your mind. Would you like to talk more about what's bothering you?",
				"It seems like you're feeling frustrated. That's a natural emotion when facing challenges. What specifically is triggering these feelings right now?",
				"It sounds like you're feeling angry, which is a completely valid emotion. Sometimes anger points us toward something important that needs our attention. What do you think your anger might be telling you?",
			},
			emotion.LabelFear: {
				"It sounds like you might be experiencing some anxiety. Remember that you're not alone, and many people go through similar feelings. Is there something specific that's causing concern right now?",
				"I notice some worry in your message. Sometimes anxiety is our mind's way of trying to protect us. Can you identify what specifically feels threatening or uncertain?",
				"Feeling anxious or worried is something many of us experience. Sometimes it helps to break down what feels overwhelming into smaller pieces. Would it help to talk about what's causing these feelings?",
			},
			emotion.LabelJoy: {
				"It's wonderful to see you in good spirits! Positive moments like these are great opportunities to reflect on what brings you happiness.",
				"I'm glad to hear you're feeling positive! What's contributed to your good mood today?",
				"It's great to see your upbeat message! Savoring positive emotions can help extend their benefits. Maybe take a moment to appreciate what's going well right now?",
			},
			emotion.LabelDisgust: {
				"It sounds like something has really put you off. Those reactions are worth listening to. Would you like to talk about what happened?",
				"I sense some strong discomfort in your message. It can help to put words to exactly what feels wrong. What's been bothering you?",
			},
			emotion.LabelSurprise: {
				"That sounds unexpected! How are you feeling about it now that you've had a moment to take it in?",
				"Surprises can stir up a lot at once. Would you like to unpack what happened together?",
			},
		},
		general: []string{
			"Thank you for sharing that with me. I'm here to listen and support you. Would you like to tell me more about what's on your mind?",
			"I appreciate you reaching out. Sometimes having someone to talk to can make a difference. How else have you been feeling lately?",
			"I'm here to support you. Feel free to share whatever you're comfortable with, and we can explore it together. What matters most to you right now?",
		},
	}
}

// Reply returns the fallback reply for a label and risk level. turn selects
// the message variant deterministically.
func (f *Fallback) Reply(label emotion.Label, level risk.Level, turn int) string {
	variants, ok := f.byLabel[label]
	if !ok || len(variants) == 0 {
		// Neutral, no-signal and unknown labels all get the general replies.
		variants = f.general
	}
	if turn < 0 {
		turn = 0
	}
	reply := variants[turn%len(variants)]

	switch level {
	case risk.LevelHigh:
		reply += "\n\nIf you're feeling overwhelmed, remember that help is available. Consider talking to a trusted friend, family member, or mental health professional. You don't have to face these feelings alone."
	case risk.LevelModerate:
		reply += "\n\nRemember that it's okay to have difficult days. Taking small steps to care for yourself can make a difference."
	}

	return reply
}
