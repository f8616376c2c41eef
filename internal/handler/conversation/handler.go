package conversation

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/averylane/ar-companion/backend/internal/model/turn"
	"github.com/averylane/ar-companion/backend/internal/pipeline"
	"github.com/averylane/ar-companion/backend/internal/tempaudio"
	"github.com/averylane/ar-companion/backend/pkg/utils"
)

// restUserID identifies turns arriving through the single-shot endpoint in
// the interaction history.
const restUserID = "rest_user"

const maxUploadBytes = 32 << 20 // 32MB

// TurnProcessor 抽象轮次处理管线，便于测试与替换实现。
type TurnProcessor interface {
	Process(ctx context.Context, utterance turn.Utterance, userID string) (turn.Result, error)
}

// Handler 单次对话的HTTP处理器。
type Handler struct {
	processor TurnProcessor
	tmpDir    string
}

// New 创建对话处理器。tmpDir 为空时使用系统临时目录。
func New(processor TurnProcessor, tmpDir string) *Handler {
	return &Handler{processor: processor, tmpDir: tmpDir}
}

// RegisterRoutes 注册对话相关的路由。
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/conversation", h.handleConversation)
}

// handleConversation runs exactly one turn for an uploaded audio file. The
// transient audio resource lives for the duration of this request only and is
// removed on every exit path.
func (h *Handler) handleConversation(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "failed to parse multipart form: "+err.Error())
		return
	}

	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "audio file is required")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "audio/") {
		utils.RespondError(w, http.StatusBadRequest, "file provided is not an audio file")
		return
	}

	resource, err := tempaudio.Materialize(h.tmpDir, restUserID, file)
	if err != nil {
		log.Printf("[conversation] failed to materialize upload: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, "failed to buffer audio upload")
		return
	}
	defer func() {
		if err := resource.Close(); err != nil {
			log.Printf("[conversation] failed to remove temp audio: %v", err)
		}
	}()

	audio, err := resource.Bytes()
	if err != nil {
		log.Printf("[conversation] failed to read temp audio: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, "failed to read audio upload")
		return
	}

	result, err := h.processor.Process(r.Context(), turn.AudioUtterance(audio, contentType, header.Filename), restUserID)
	if err != nil {
		var stageErr *pipeline.StageError
		if errors.As(err, &stageErr) {
			log.Printf("[conversation] upstream failure: %v", stageErr)
			utils.RespondError(w, http.StatusInternalServerError, "error in "+stageErr.Stage)
			return
		}
		log.Printf("[conversation] turn failed: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, "conversation processing failed")
		return
	}

	utils.RespondJSON(w, http.StatusOK, result)
}
