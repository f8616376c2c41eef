package turn

import "time"

// EmotionTag 表示回复可以携带的情绪标签。
type EmotionTag string

const (
	Happy   EmotionTag = "happy"
	Sad     EmotionTag = "sad"
	Angry   EmotionTag = "angry"
	Neutral EmotionTag = "neutral"
)

// AnimationCue identifies the avatar animation matching an emotion.
type AnimationCue string

const (
	Wave         AnimationCue = "wave"
	Comfort      AnimationCue = "comfort"
	AngryGesture AnimationCue = "angry_gesture"
	Nod          AnimationCue = "nod"
	Idle         AnimationCue = "idle"
)

// Placeholder outputs returned when an external capability is not configured.
const (
	DummyTranscript = "This is a dummy transcript because the transcription service is not configured."
	DummyReply      = "This is a dummy response because the language model is not configured."
)

// PlaceholderAudio is the fixed audio payload substituted when speech
// synthesis is not configured.
var PlaceholderAudio = []byte("dummy_audio_data")

var labelToEmotion = map[string]EmotionTag{
	"joy":     Happy,
	"sadness": Sad,
	"anger":   Angry,
}

// EmotionFromLabel maps a raw classifier label onto the closed emotion set.
// Unknown labels collapse to Neutral.
func EmotionFromLabel(label string) EmotionTag {
	if emotion, ok := labelToEmotion[label]; ok {
		return emotion
	}
	return Neutral
}

var emotionToAnimation = map[EmotionTag]AnimationCue{
	Happy:   Wave,
	Sad:     Comfort,
	Angry:   AngryGesture,
	Neutral: Nod,
}

// AnimationFor 根据情绪标签返回对应的动画。
// Values outside the emotion table fall back to Idle.
func AnimationFor(emotion EmotionTag) AnimationCue {
	if cue, ok := emotionToAnimation[emotion]; ok {
		return cue
	}
	return Idle
}

// Utterance is one inbound unit of user input, either typed text or spoken
// audio. Exactly one of Text / Audio is set.
type Utterance struct {
	Text     string
	Audio    []byte
	MIMEType string
	Filename string
}

// TextUtterance wraps a typed message.
func TextUtterance(text string) Utterance {
	return Utterance{Text: text}
}

// AudioUtterance wraps a spoken message.
func AudioUtterance(audio []byte, mimeType, filename string) Utterance {
	return Utterance{Audio: audio, MIMEType: mimeType, Filename: filename}
}

// IsAudio reports whether the utterance carries audio rather than text.
func (u Utterance) IsAudio() bool {
	return len(u.Audio) > 0
}

// Result 表示一次完整对话轮次的输出。
// AudioOutput holds the synthesized speech as a base64 string.
type Result struct {
	ReplyText   string       `json:"response_text"`
	Emotion     EmotionTag   `json:"emotion"`
	Animation   AnimationCue `json:"animation"`
	AudioOutput string       `json:"audio_output"`
}

// InteractionRecord persists one completed turn for audit/history.
type InteractionRecord struct {
	UserID    string       `json:"userId"`
	Timestamp time.Time    `json:"timestamp"`
	UserInput string       `json:"userInput"`
	ReplyText string       `json:"responseText"`
	Emotion   EmotionTag   `json:"emotion"`
	Animation AnimationCue `json:"animation"`
}
