package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/averylane/ar-companion/backend/internal/config"
	"github.com/averylane/ar-companion/backend/internal/handler"
	"github.com/averylane/ar-companion/backend/internal/pipeline"
	"github.com/averylane/ar-companion/backend/internal/service/emotion"
	"github.com/averylane/ar-companion/backend/internal/service/generate"
	"github.com/averylane/ar-companion/backend/internal/service/recorder"
	"github.com/averylane/ar-companion/backend/internal/service/synthesize"
	"github.com/averylane/ar-companion/backend/internal/service/transcribe"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	// Reply generation; degrades to the dummy reply when the model is not
	// configured.
	generateSvc, err := generate.NewService(ctx, cfg.AI)
	if err != nil {
		log.Fatalf("failed to initialize generation service: %v", err)
	}
	if generateSvc.Enabled() {
		log.Println("generation service initialized successfully")
	} else {
		log.Println("Ark 凭证未配置，回复生成将降级为占位文本")
	}

	// Emotion classification reuses the generation chat model.
	emotionSvc, err := emotion.NewService(ctx, generateSvc.GetChatModel())
	if err != nil {
		log.Printf("warning: failed to initialize emotion classifier: %v", err)
		log.Println("continuing with neutral emotion only")
		emotionSvc = nil
	} else if emotionSvc.Enabled() {
		log.Println("emotion classifier initialized successfully")
	} else {
		log.Println("情绪分类未启用，所有回复将标记为 neutral")
	}
	if emotionSvc == nil {
		emotionSvc = &emotion.Service{}
	}

	transcribeSvc := transcribe.NewService(cfg.STT)
	if !cfg.STT.Enabled() {
		log.Println("语音转文本凭证未配置，转写将降级为占位文本")
	}

	synthesizeSvc := synthesize.NewService(cfg.TTS)
	if !cfg.TTS.Enabled() {
		log.Println("语音合成凭证未配置，音频输出将降级为占位数据")
	}

	recorderSvc := recorder.NewService(ctx, cfg.Recorder)
	defer recorderSvc.Close()

	turnPipeline := pipeline.New(transcribeSvc, generateSvc, emotionSvc, synthesizeSvc, recorderSvc)

	router := handler.NewRouter(turnPipeline, "")

	startServer(ctx, cfg.Server, router)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("AR companion backend listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
