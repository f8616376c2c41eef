package conversation

import (
	"context"
	"errors"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/averylane/ar-companion/backend/internal/model/turn"
	"github.com/averylane/ar-companion/backend/internal/pipeline"
)

type wsFakeProcessor struct {
	mu         sync.Mutex
	result     turn.Result
	err        error
	utterances []turn.Utterance
	dirCounts  []int
	tmpDir     string
}

func (f *wsFakeProcessor) Process(_ context.Context, utterance turn.Utterance, _ string) (turn.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.utterances = append(f.utterances, utterance)
	if f.tmpDir != "" {
		entries, _ := os.ReadDir(f.tmpDir)
		f.dirCounts = append(f.dirCounts, len(entries))
	}
	return f.result, f.err
}

func (f *wsFakeProcessor) snapshot() ([]turn.Utterance, []int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]turn.Utterance(nil), f.utterances...), append([]int(nil), f.dirCounts...)
}

func dialSession(t *testing.T, fake *wsFakeProcessor, tmpDir string) (*websocket.Conn, func()) {
	t.Helper()

	r := chi.NewRouter()
	NewWebSocketHandler(fake, tmpDir).RegisterRoutes(r)
	server := httptest.NewServer(r)

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/alice"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		server.Close()
		t.Fatalf("dial err: %v", err)
	}

	return conn, func() {
		conn.Close()
		server.Close()
	}
}

func TestWebSocketTextTurn(t *testing.T) {
	fake := &wsFakeProcessor{
		result: turn.Result{
			ReplyText:   "hello to you",
			Emotion:     turn.Neutral,
			Animation:   turn.Nod,
			AudioOutput: "YXVkaW8=",
		},
	}

	conn, cleanup := dialSession(t, fake, t.TempDir())
	defer cleanup()

	if err := conn.WriteMessage(websocket.TextMessage, []byte("hello")); err != nil {
		t.Fatalf("write err: %v", err)
	}

	var resp turn.Result
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&resp); err != nil {
		t.Fatalf("read err: %v", err)
	}

	if resp.ReplyText != "hello to you" || resp.Emotion != turn.Neutral || resp.Animation != turn.Nod {
		t.Fatalf("unexpected reply: %+v", resp)
	}

	utterances, _ := fake.snapshot()
	if len(utterances) != 1 {
		t.Fatalf("expected exactly one turn, got %d", len(utterances))
	}
	if utterances[0].IsAudio() || utterances[0].Text != "hello" {
		t.Fatalf("unexpected utterance: %+v", utterances[0])
	}

	// Clean disconnect: one reply was sent, session ends without an error
	// frame from the server.
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second)); err != nil {
		t.Fatalf("close err: %v", err)
	}
}

func TestWebSocketConnectionStaysOpenAcrossTurns(t *testing.T) {
	fake := &wsFakeProcessor{result: turn.Result{ReplyText: "r", Emotion: turn.Neutral, Animation: turn.Nod, AudioOutput: "QQ=="}}

	conn, cleanup := dialSession(t, fake, t.TempDir())
	defer cleanup()

	for i := 0; i < 3; i++ {
		if err := conn.WriteMessage(websocket.TextMessage, []byte("ping")); err != nil {
			t.Fatalf("write #%d err: %v", i, err)
		}
		var resp turn.Result
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		if err := conn.ReadJSON(&resp); err != nil {
			t.Fatalf("read #%d err: %v", i, err)
		}
	}

	utterances, _ := fake.snapshot()
	if len(utterances) != 3 {
		t.Fatalf("expected 3 turns on one connection, got %d", len(utterances))
	}
}

func TestWebSocketBinaryFramesUseScopedResources(t *testing.T) {
	tmpDir := t.TempDir()
	fake := &wsFakeProcessor{
		result: turn.Result{ReplyText: "r", Emotion: turn.Neutral, Animation: turn.Nod, AudioOutput: "QQ=="},
		tmpDir: tmpDir,
	}

	conn, cleanup := dialSession(t, fake, tmpDir)
	defer cleanup()

	for i, payload := range [][]byte{[]byte("frame-one"), []byte("frame-two")} {
		if err := conn.WriteMessage(websocket.BinaryMessage, payload); err != nil {
			t.Fatalf("write frame #%d err: %v", i, err)
		}
		var resp turn.Result
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		if err := conn.ReadJSON(&resp); err != nil {
			t.Fatalf("read frame #%d err: %v", i, err)
		}
	}

	utterances, dirCounts := fake.snapshot()
	if len(utterances) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(utterances))
	}
	if string(utterances[0].Audio) != "frame-one" || string(utterances[1].Audio) != "frame-two" {
		t.Fatalf("unexpected audio payloads: %q %q", utterances[0].Audio, utterances[1].Audio)
	}
	if utterances[0].Filename == utterances[1].Filename {
		t.Fatalf("resource names must not collide: %s", utterances[0].Filename)
	}

	// Frames are handled synchronously: the previous frame's resource is gone
	// before the next one is materialized, so only one file is ever present.
	for i, count := range dirCounts {
		if count != 1 {
			t.Fatalf("expected exactly one live resource during turn %d, saw %d", i, count)
		}
	}

	entries, err := os.ReadDir(tmpDir)
	if err != nil {
		t.Fatalf("ReadDir err: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("temp resources leaked: %d entries", len(entries))
	}
}

func TestWebSocketUpstreamFailureClosesAbnormally(t *testing.T) {
	tmpDir := t.TempDir()
	fake := &wsFakeProcessor{
		err: &pipeline.StageError{Stage: pipeline.StageSynthesis, Err: errors.New("voice down")},
	}

	conn, cleanup := dialSession(t, fake, tmpDir)
	defer cleanup()

	if err := conn.WriteMessage(websocket.TextMessage, []byte("hello")); err != nil {
		t.Fatalf("write err: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	if err == nil {
		t.Fatal("expected the session to be torn down")
	}

	var closeErr *websocket.CloseError
	if !errors.As(err, &closeErr) {
		t.Fatalf("expected close error, got %v", err)
	}
	if closeErr.Code != websocket.CloseInternalServerErr {
		t.Fatalf("expected abnormal status %d, got %d", websocket.CloseInternalServerErr, closeErr.Code)
	}

	// The failing binary-turn path also cleans up; for a text turn there is
	// nothing to leak, but the dir must still be empty.
	entries, _ := os.ReadDir(tmpDir)
	if len(entries) != 0 {
		t.Fatalf("temp resources leaked: %d entries", len(entries))
	}
}

func TestWebSocketBinaryFailureCleansResource(t *testing.T) {
	tmpDir := t.TempDir()
	fake := &wsFakeProcessor{
		err:    &pipeline.StageError{Stage: pipeline.StageTranscription, Err: errors.New("stt down")},
		tmpDir: tmpDir,
	}

	conn, cleanup := dialSession(t, fake, tmpDir)
	defer cleanup()

	if err := conn.WriteMessage(websocket.BinaryMessage, []byte("audio-frame")); err != nil {
		t.Fatalf("write err: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatal("expected the session to be torn down")
	}

	entries, err := os.ReadDir(tmpDir)
	if err != nil {
		t.Fatalf("ReadDir err: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("temp resource leaked after failed turn: %d entries", len(entries))
	}
}
