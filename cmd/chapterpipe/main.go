package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/castforge/chapterpipe/config"
	"github.com/castforge/chapterpipe/loudness"
	"github.com/castforge/chapterpipe/mediaio"
	"github.com/castforge/chapterpipe/orchestrator"
	"github.com/castforge/chapterpipe/refine"
	"github.com/castforge/chapterpipe/splice"
	"github.com/castforge/chapterpipe/sttclient"
	"github.com/castforge/chapterpipe/vad"
)

const (
	startTimeout = 30 * time.Second
	stopTimeout  = 10 * time.Second
)

func slogReplaceAttr(_ []string, a slog.Attr) slog.Attr {
	if a.Key == slog.SourceKey {
		source := a.Value.Any().(*slog.Source)
		if source.File == "" {
			if pc, file, line, ok := runtime.Caller(7); ok {
				if f := runtime.FuncForPC(pc); f != nil {
					source.File = filepath.Base(filepath.Dir(file)) + "/" + filepath.Base(file)
					source.Line = line
				}
			}
		} else {
			source.File = filepath.Base(source.File)
		}
	}
	return a
}

func main() {
	logFile, err := os.Create("/tmp/chapterpipe.log")
	if err != nil {
		slog.Error("failed to create log file", slog.String("err", err.Error()))
		os.Exit(1)
	}
	defer logFile.Close()

	logWriter := io.MultiWriter(os.Stdout, logFile)
	logger := slog.New(slog.NewTextHandler(logWriter, &slog.HandlerOptions{
		AddSource:   true,
		Level:       slog.LevelDebug,
		ReplaceAttr: slogReplaceAttr,
	}))
	slog.SetDefault(logger)

	pid := os.Getpid()
	if err := os.WriteFile("/tmp/chapterpipe.pid", []byte(fmt.Sprintf("%d", pid)), 0666); err != nil {
		slog.Error("failed to write pid file", slog.String("err", err.Error()))
		os.Exit(1)
	}

	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("failed to load config", slog.String("err", err.Error()))
		os.Exit(1)
	}
	cfg.SetDefaults()
	if err := cfg.IsValid(); err != nil {
		slog.Error("invalid config", slog.String("err", err.Error()))
		os.Exit(1)
	}

	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		slog.Error("failed to create output dir", slog.String("err", err.Error()))
		os.Exit(1)
	}

	transcoder := mediaio.New(cfg.TranscoderPath, cfg.ProbePath, cfg.NumThreads)

	probeCtx, probeCancel := context.WithTimeout(context.Background(), startTimeout)
	chapters, err := transcoder.Probe(probeCtx, cfg.InputPath)
	probeCancel()
	if err != nil {
		slog.Error("failed to probe input", slog.String("err", err.Error()))
		os.Exit(1)
	}

	inputExt := strings.TrimPrefix(filepath.Ext(cfg.InputPath), ".")

	var vadDetector orchestrator.SpeechDetector
	if cfg.VadModelPath != "" {
		vadRunner, err := vad.NewRunner(vad.Config{
			ModelPath:       cfg.VadModelPath,
			SampleRate:      cfg.VadSampleRate,
			WindowSamples:   cfg.VadWindowSamples,
			SpeechThreshold: cfg.VadSpeechThreshold,
			NegThreshold:    cfg.VadNegThreshold,
			MinSilenceMs:    cfg.VadMinSilenceMs,
			MinSpeechMs:     cfg.VadMinSpeechMs,
			SpeechPadMs:     cfg.VadSpeechPadMs,
		})
		if err != nil {
			slog.Warn("VAD model unavailable, falling back to RMS throughout", slog.String("err", err.Error()))
		} else {
			vadDetector = vadRunner
		}
	}

	var sttClient orchestrator.Transcriber
	if cfg.EnableTranscription {
		client, err := sttclient.NewClient(sttclient.Config{
			BinaryPath: cfg.SttBinaryPath,
			ModelPath:  cfg.SttModelPath,
			Language:   cfg.SttLanguage,
			NumThreads: cfg.SttNumThreads,
		})
		if err != nil {
			slog.Error("failed to create STT client", slog.String("err", err.Error()))
			os.Exit(1)
		}
		sttClient = client
	}

	normalizer := &loudness.Normalizer{
		TranscoderPath: cfg.TranscoderPath,
		NumThreads:     cfg.NumThreads,
		ReencodeVideo:  cfg.ReencodeVideo,
		VideoCRF:       cfg.VideoCRF,
		VideoPreset:    cfg.VideoPreset,
		AudioCodec:     cfg.AudioCodec,
		AudioBitrate:   cfg.AudioBitrate,
	}

	refiner := &refine.Refiner{
		Source: transcoder,
		Vad:    vadDetector,
		Params: refine.Params{
			PaddingSeconds:            cfg.CommandTrimPaddingSeconds,
			SilenceRMSThreshold:       cfg.CommandSilenceRMSThreshold,
			SilenceSearchSeconds:      cfg.CommandSilenceSearchSeconds,
			SilenceMaxBackwardSeconds: cfg.CommandSilenceMaxBackwardSeconds,
			RMSWindowMs:               cfg.RMSWindowMs,
			RMSMinSilenceMs:           cfg.RMSMinSilenceMs,
			SampleRate:                cfg.VadSampleRate,
		},
	}

	speechChecker := orchestrator.NewChapterSpeechChecker(transcoder, vadDetector, cfg.VadSampleRate, cfg.CommandSilenceRMSThreshold)
	splicer := &splice.Splicer{
		Extractor: transcoder,
		Speech:    speechChecker,
		TempDir:   filepath.Join(cfg.OutputDir, ".tmp"),
		Options: splice.RenderOptions{
			ReencodeVideo: cfg.ReencodeVideo,
			VideoCRF:      cfg.VideoCRF,
			VideoPreset:   cfg.VideoPreset,
			AudioCodec:    cfg.AudioCodec,
			AudioBitrate:  cfg.AudioBitrate,
		},
	}

	pipeline, err := orchestrator.New(cfg, inputExt, transcoder, normalizer, sttClient, vadDetector, refiner, splicer, logger)
	if err != nil {
		slog.Error("failed to create pipeline", slog.String("err", err.Error()))
		os.Exit(1)
	}

	runner := orchestrator.NewRunner(pipeline, chapters)

	slog.Info("starting chapter pipeline", slog.Int("chapterCount", len(chapters)))

	startCtx, startCancel := context.WithTimeout(context.Background(), startTimeout)
	err = runner.Start(startCtx)
	startCancel()
	if err != nil {
		slog.Error("failed to start chapter pipeline", slog.String("err", err.Error()))
		os.Exit(1)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-runner.Done():
		if err := runner.Err(); err != nil {
			slog.Error("chapter pipeline failed", slog.String("err", err.Error()))
			os.Exit(1)
		}
	case <-sig:
		slog.Info("received signal, stopping chapter pipeline")
		stopCtx, stopCancel := context.WithTimeout(context.Background(), stopTimeout)
		defer stopCancel()
		if err := runner.Stop(stopCtx); err != nil {
			slog.Error("failed to stop chapter pipeline", slog.String("err", err.Error()))
			os.Exit(1)
		}
	}

	slog.Info("chapter pipeline finished, exiting")
}
