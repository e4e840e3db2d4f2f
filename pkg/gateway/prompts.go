package gateway

import "github.com/dasmlab/babel/pkg/aitask"

// outputContract closes every system instruction.
const outputContract = "Respond with a single JSON object only."

var systemPrompts = map[aitask.Task]string{
	aitask.TaskTranslate: "You are a precise translation assistant. Translate the provided text into the target language " +
		"while preserving intent, tone, emojis, and formatting. If the text is already in the target language, return it unchanged. " +
		"Provide JSON with keys: translation (string), detected_language (BCP-47 code), and quality (one of excellent|good|fair).",
	aitask.TaskExplain: "You clarify slang, idioms, and cultural nuances succinctly. Reply with JSON { explanation, tips } " +
		"where tips is optional guidance on tone, politeness, or context. Keep responses under 120 words in the target language.",
	aitask.TaskTone: "Rewrite the message in the requested tone (formal, neutral, or casual) while keeping its meaning intact. " +
		"Output JSON { rewritten, notes }. The rewritten message must be ready to send.",
	aitask.TaskSmartReplies: "You generate thoughtful reply suggestions for a chat user. Each suggestion must read as a natural " +
		"continuation of the conversation and directly address the most recent message. Use earlier turns for context, refer to " +
		"specific details such as names, plans, or questions, and avoid bland small talk. Offer up to three varied, concise options " +
		"that are ready to send, shaped as {\"suggestions\": [string...]}.",
}

var temperatures = map[aitask.Task]float32{
	aitask.TaskTranslate:    0.2,
	aitask.TaskExplain:      0.3,
	aitask.TaskTone:         0.4,
	aitask.TaskSmartReplies: 0.4,
}

func systemPrompt(task aitask.Task) string {
	return systemPrompts[task] + " " + outputContract
}

type translateInput struct {
	Text           string `json:"text"`
	TargetLanguage string `json:"target_language"`
	SourceLanguage string `json:"source_language"`
}

type explainInput struct {
	Text           string `json:"text"`
	TargetLanguage string `json:"target_language"`
}

type toneInput struct {
	Text           string           `json:"text"`
	TargetLanguage string           `json:"target_language"`
	Tone           aitask.ToneStyle `json:"tone"`
}

type replyTurn struct {
	Speaker  aitask.Role `json:"speaker"`
	Text     string      `json:"text"`
	Language string      `json:"language,omitempty"`
}

type smartRepliesInput struct {
	TargetLanguage string      `json:"target_language"`
	LatestMessage  replyTurn   `json:"latest_message"`
	History        []replyTurn `json:"history"`
}

func newSmartRepliesInput(target string, history []historyEntry) smartRepliesInput {
	turns := make([]replyTurn, 0, len(history))
	for _, h := range history {
		turns = append(turns, replyTurn{Speaker: h.Role, Text: h.Text, Language: h.Language})
	}
	return smartRepliesInput{
		TargetLanguage: target,
		LatestMessage:  turns[len(turns)-1],
		History:        turns,
	}
}
