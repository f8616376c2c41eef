package pipeline

import (
	"context"
	"encoding/base64"
	"log"
	"time"

	"github.com/averylane/ar-companion/backend/internal/model/turn"
)

// Transcriber 将音频转换为文本。
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, mimeType, filename string) (string, error)
}

// Generator produces the assistant reply for a user message.
type Generator interface {
	Generate(ctx context.Context, userText string) (string, error)
}

// Classifier infers the emotion of a piece of text. It never fails: any
// classification problem collapses to turn.Neutral inside the adapter.
type Classifier interface {
	Classify(ctx context.Context, text string) turn.EmotionTag
}

// Synthesizer 将文本转换为语音字节。
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Recorder persists a completed turn. Failures are logged and discarded by
// the pipeline; they never reach the caller.
type Recorder interface {
	Record(ctx context.Context, rec turn.InteractionRecord) error
}

// Pipeline composes the adapters into one ordered transformation from an
// utterance to a full turn result. Stages run strictly sequentially because
// each stage consumes the previous stage's output.
type Pipeline struct {
	transcriber Transcriber
	generator   Generator
	classifier  Classifier
	synthesizer Synthesizer
	recorder    Recorder
}

// New wires the pipeline with its five collaborators.
func New(transcriber Transcriber, generator Generator, classifier Classifier, synthesizer Synthesizer, recorder Recorder) *Pipeline {
	return &Pipeline{
		transcriber: transcriber,
		generator:   generator,
		classifier:  classifier,
		synthesizer: synthesizer,
		recorder:    recorder,
	}
}

// Process runs one full turn. A degraded capability still completes the turn
// with placeholder output; only a call-time adapter failure aborts it, as a
// *StageError naming the failing stage.
func (p *Pipeline) Process(ctx context.Context, utterance turn.Utterance, userID string) (turn.Result, error) {
	userInput := utterance.Text
	if utterance.IsAudio() {
		transcript, err := p.transcriber.Transcribe(ctx, utterance.Audio, utterance.MIMEType, utterance.Filename)
		if err != nil {
			return turn.Result{}, &StageError{Stage: StageTranscription, Err: err}
		}
		userInput = transcript
	}

	replyText, err := p.generator.Generate(ctx, userInput)
	if err != nil {
		return turn.Result{}, &StageError{Stage: StageGeneration, Err: err}
	}

	emotion := p.classifier.Classify(ctx, replyText)
	animation := turn.AnimationFor(emotion)

	audio, err := p.synthesizer.Synthesize(ctx, replyText)
	if err != nil {
		return turn.Result{}, &StageError{Stage: StageSynthesis, Err: err}
	}

	record := turn.InteractionRecord{
		UserID:    userID,
		Timestamp: time.Now().UTC(),
		UserInput: userInput,
		ReplyText: replyText,
		Emotion:   emotion,
		Animation: animation,
	}
	p.recordAsync(record)

	return turn.Result{
		ReplyText:   replyText,
		Emotion:     emotion,
		Animation:   animation,
		AudioOutput: base64.StdEncoding.EncodeToString(audio),
	}, nil
}

// recordAsync hands the record off without blocking the caller-visible
// result. The goroutine uses a background context so an already-finished
// request cannot cancel the write.
func (p *Pipeline) recordAsync(record turn.InteractionRecord) {
	if p.recorder == nil {
		return
	}
	go func() {
		if err := p.recorder.Record(context.Background(), record); err != nil {
			log.Printf("[pipeline] failed to store interaction for user=%s: %v", record.UserID, err)
		}
	}()
}
