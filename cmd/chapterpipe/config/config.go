// Package config defines the chapter pipeline's runtime configuration,
// following the same SetDefaults/IsValid/FromEnv/ToEnv/ToMap/FromMap shape
// used throughout this codebase's tools.
package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
)

const (
	WakeWordDefault    = "jarvis"
	CloseWordDefault   = "thanks"
	SttLanguageDefault = "en"

	NumThreadsDefault = 2

	CommandTailMaxSecondsDefault            = 12.0
	CommandTrimPaddingSecondsDefault         = 0.25
	CommandSilenceRMSThresholdDefault        = 0.02
	CommandSilenceSearchSecondsDefault       = 3.0
	CommandSilenceMaxBackwardSecondsDefault  = 5.0

	MinChapterSecondsDefault    = 2.0
	MinTrimWindowSecondsDefault = 0.5

	PreSpeechPaddingSecondsDefault  = 0.3
	PostSpeechPaddingSecondsDefault = 0.3

	RMSWindowMsDefault      = 20
	RMSMinSilenceMsDefault  = 200
	SilenceEqualEpsilon     = 0.001
	SilenceTouchingEpsilon  = 0.01

	VadSampleRateDefault     = 16000
	VadWindowSamplesDefault  = 512
	VadSpeechThresholdDefault = 0.5
	VadNegThresholdDefault    = 0.35
	VadMinSilenceMsDefault    = 300
	VadMinSpeechMsDefault     = 250
	VadSpeechPadMsDefault     = 30

	LoudnessTargetLUFSDefault   = -16.0
	LoudnessRangeLUDefault      = 11.0
	LoudnessTruePeakDBTPDefault = -1.5

	AudioCodecDefault   = "aac"
	AudioBitrateDefault = "192k"
	VideoCRFDefault     = 18
	VideoPresetDefault  = "medium"
)

// Config carries the tunables of the chapter processing pipeline. The
// loudness fields (LoudnessTargetLUFS, LoudnessRangeLU,
// LoudnessTruePeakDBTP) are not read by the loudness normalizer, which
// uses its own fixed targets, and VadNegThreshold reaches the VAD runner
// but not the model. The configuration is not written to any log.
type Config struct {
	// input/output
	InputPath string
	OutputDir string
	Retention bool // keep <output>/.tmp/ on exit

	// external collaborators
	TranscoderPath string
	ProbePath      string
	SttBinaryPath  string
	SttModelPath   string
	SttLanguage    string
	SttNumThreads  int
	VadModelPath   string

	EnableTranscription bool

	// command grammar
	WakeWord               string
	CloseWord              string
	CommandStarters        []string
	CommandTailMaxSeconds  float64

	// refiner
	CommandTrimPaddingSeconds        float64
	CommandSilenceRMSThreshold       float64
	CommandSilenceSearchSeconds      float64
	CommandSilenceMaxBackwardSeconds float64

	// orchestrator
	MinChapterSeconds    float64
	MinTrimWindowSeconds float64
	PreSpeechPadding     float64
	PostSpeechPadding    float64

	// RMS
	RMSWindowMs     int
	RMSMinSilenceMs int

	// VAD
	VadSampleRate      int
	VadWindowSamples   int
	VadSpeechThreshold float64
	VadNegThreshold    float64
	VadMinSilenceMs    int
	VadMinSpeechMs     int
	VadSpeechPadMs     int

	// loudness
	LoudnessTargetLUFS   float64
	LoudnessRangeLU      float64
	LoudnessTruePeakDBTP float64
	ReencodeVideo        bool
	VideoCRF             int
	VideoPreset          string
	AudioCodec           string
	AudioBitrate         string

	NumThreads int
}

func (cfg Config) IsValid() error {
	if cfg.InputPath == "" {
		return fmt.Errorf("InputPath cannot be empty")
	}
	if cfg.OutputDir == "" {
		return fmt.Errorf("OutputDir cannot be empty")
	}
	if cfg.TranscoderPath == "" {
		return fmt.Errorf("TranscoderPath cannot be empty")
	}
	if cfg.ProbePath == "" {
		return fmt.Errorf("ProbePath cannot be empty")
	}

	if cfg.EnableTranscription {
		if cfg.SttBinaryPath == "" {
			return fmt.Errorf("SttBinaryPath cannot be empty when transcription is enabled")
		}
		if cfg.SttLanguage == "" {
			return fmt.Errorf("SttLanguage cannot be empty")
		}
	}

	if cfg.VadSampleRate != 8000 && cfg.VadSampleRate != 16000 {
		return fmt.Errorf("VadSampleRate must be 8000 or 16000")
	}
	if cfg.VadWindowSamples <= 0 {
		return fmt.Errorf("VadWindowSamples must be positive")
	}
	if cfg.WakeWord == "" || cfg.CloseWord == "" {
		return fmt.Errorf("WakeWord and CloseWord cannot be empty")
	}
	if len(cfg.CommandStarters) == 0 {
		return fmt.Errorf("CommandStarters cannot be empty")
	}
	if cfg.MinChapterSeconds < 0 || cfg.MinTrimWindowSeconds < 0 {
		return fmt.Errorf("MinChapterSeconds and MinTrimWindowSeconds must be non-negative")
	}
	if cfg.NumThreads < 1 || cfg.NumThreads > runtime.NumCPU() {
		return fmt.Errorf("NumThreads should be in the range [1, %d]", runtime.NumCPU())
	}

	return nil
}

func (cfg *Config) SetDefaults() {
	if cfg.WakeWord == "" {
		cfg.WakeWord = WakeWordDefault
	}
	if cfg.CloseWord == "" {
		cfg.CloseWord = CloseWordDefault
	}
	if len(cfg.CommandStarters) == 0 {
		cfg.CommandStarters = []string{"bad", "filename", "file", "edit", "note", "split", "new"}
	}
	if cfg.CommandTailMaxSeconds == 0 {
		cfg.CommandTailMaxSeconds = CommandTailMaxSecondsDefault
	}
	if cfg.CommandTrimPaddingSeconds == 0 {
		cfg.CommandTrimPaddingSeconds = CommandTrimPaddingSecondsDefault
	}
	if cfg.CommandSilenceRMSThreshold == 0 {
		cfg.CommandSilenceRMSThreshold = CommandSilenceRMSThresholdDefault
	}
	if cfg.CommandSilenceSearchSeconds == 0 {
		cfg.CommandSilenceSearchSeconds = CommandSilenceSearchSecondsDefault
	}
	if cfg.CommandSilenceMaxBackwardSeconds == 0 {
		cfg.CommandSilenceMaxBackwardSeconds = CommandSilenceMaxBackwardSecondsDefault
	}
	if cfg.MinChapterSeconds == 0 {
		cfg.MinChapterSeconds = MinChapterSecondsDefault
	}
	if cfg.MinTrimWindowSeconds == 0 {
		cfg.MinTrimWindowSeconds = MinTrimWindowSecondsDefault
	}
	if cfg.PreSpeechPadding == 0 {
		cfg.PreSpeechPadding = PreSpeechPaddingSecondsDefault
	}
	if cfg.PostSpeechPadding == 0 {
		cfg.PostSpeechPadding = PostSpeechPaddingSecondsDefault
	}
	if cfg.RMSWindowMs == 0 {
		cfg.RMSWindowMs = RMSWindowMsDefault
	}
	if cfg.RMSMinSilenceMs == 0 {
		cfg.RMSMinSilenceMs = RMSMinSilenceMsDefault
	}
	if cfg.VadSampleRate == 0 {
		cfg.VadSampleRate = VadSampleRateDefault
	}
	if cfg.VadWindowSamples == 0 {
		cfg.VadWindowSamples = VadWindowSamplesDefault
	}
	if cfg.VadSpeechThreshold == 0 {
		cfg.VadSpeechThreshold = VadSpeechThresholdDefault
	}
	if cfg.VadNegThreshold == 0 {
		cfg.VadNegThreshold = VadNegThresholdDefault
	}
	if cfg.VadMinSilenceMs == 0 {
		cfg.VadMinSilenceMs = VadMinSilenceMsDefault
	}
	if cfg.VadMinSpeechMs == 0 {
		cfg.VadMinSpeechMs = VadMinSpeechMsDefault
	}
	if cfg.VadSpeechPadMs == 0 {
		cfg.VadSpeechPadMs = VadSpeechPadMsDefault
	}
	if cfg.LoudnessTargetLUFS == 0 {
		cfg.LoudnessTargetLUFS = LoudnessTargetLUFSDefault
	}
	if cfg.LoudnessRangeLU == 0 {
		cfg.LoudnessRangeLU = LoudnessRangeLUDefault
	}
	if cfg.LoudnessTruePeakDBTP == 0 {
		cfg.LoudnessTruePeakDBTP = LoudnessTruePeakDBTPDefault
	}
	if cfg.VideoCRF == 0 {
		cfg.VideoCRF = VideoCRFDefault
	}
	if cfg.VideoPreset == "" {
		cfg.VideoPreset = VideoPresetDefault
	}
	if cfg.AudioCodec == "" {
		cfg.AudioCodec = AudioCodecDefault
	}
	if cfg.AudioBitrate == "" {
		cfg.AudioBitrate = AudioBitrateDefault
	}
	if cfg.SttLanguage == "" {
		cfg.SttLanguage = SttLanguageDefault
	}
	if cfg.SttNumThreads == 0 {
		cfg.SttNumThreads = NumThreadsDefault
	}
	if cfg.TranscoderPath == "" {
		cfg.TranscoderPath = "ffmpeg"
	}
	if cfg.ProbePath == "" {
		cfg.ProbePath = "ffprobe"
	}
	if cfg.NumThreads == 0 {
		cfg.NumThreads = max(1, runtime.NumCPU()/2)
	}
}

func (cfg Config) ToEnv() []string {
	return []string{
		fmt.Sprintf("CHAPTERPIPE_INPUT_PATH=%s", cfg.InputPath),
		fmt.Sprintf("CHAPTERPIPE_OUTPUT_DIR=%s", cfg.OutputDir),
		fmt.Sprintf("CHAPTERPIPE_RETENTION=%t", cfg.Retention),
		fmt.Sprintf("CHAPTERPIPE_TRANSCODER_PATH=%s", cfg.TranscoderPath),
		fmt.Sprintf("CHAPTERPIPE_PROBE_PATH=%s", cfg.ProbePath),
		fmt.Sprintf("CHAPTERPIPE_STT_BINARY_PATH=%s", cfg.SttBinaryPath),
		fmt.Sprintf("CHAPTERPIPE_STT_MODEL_PATH=%s", cfg.SttModelPath),
		fmt.Sprintf("CHAPTERPIPE_STT_LANGUAGE=%s", cfg.SttLanguage),
		fmt.Sprintf("CHAPTERPIPE_STT_NUM_THREADS=%d", cfg.SttNumThreads),
		fmt.Sprintf("CHAPTERPIPE_VAD_MODEL_PATH=%s", cfg.VadModelPath),
		fmt.Sprintf("CHAPTERPIPE_ENABLE_TRANSCRIPTION=%t", cfg.EnableTranscription),
		fmt.Sprintf("CHAPTERPIPE_WAKE_WORD=%s", cfg.WakeWord),
		fmt.Sprintf("CHAPTERPIPE_CLOSE_WORD=%s", cfg.CloseWord),
		fmt.Sprintf("CHAPTERPIPE_COMMAND_STARTERS=%s", strings.Join(cfg.CommandStarters, ",")),
		fmt.Sprintf("CHAPTERPIPE_COMMAND_TAIL_MAX_SECONDS=%f", cfg.CommandTailMaxSeconds),
		fmt.Sprintf("CHAPTERPIPE_COMMAND_TRIM_PADDING_SECONDS=%f", cfg.CommandTrimPaddingSeconds),
		fmt.Sprintf("CHAPTERPIPE_COMMAND_SILENCE_RMS_THRESHOLD=%f", cfg.CommandSilenceRMSThreshold),
		fmt.Sprintf("CHAPTERPIPE_COMMAND_SILENCE_SEARCH_SECONDS=%f", cfg.CommandSilenceSearchSeconds),
		fmt.Sprintf("CHAPTERPIPE_COMMAND_SILENCE_MAX_BACKWARD_SECONDS=%f", cfg.CommandSilenceMaxBackwardSeconds),
		fmt.Sprintf("CHAPTERPIPE_MIN_CHAPTER_SECONDS=%f", cfg.MinChapterSeconds),
		fmt.Sprintf("CHAPTERPIPE_MIN_TRIM_WINDOW_SECONDS=%f", cfg.MinTrimWindowSeconds),
		fmt.Sprintf("CHAPTERPIPE_PRE_SPEECH_PADDING=%f", cfg.PreSpeechPadding),
		fmt.Sprintf("CHAPTERPIPE_POST_SPEECH_PADDING=%f", cfg.PostSpeechPadding),
		fmt.Sprintf("CHAPTERPIPE_RMS_WINDOW_MS=%d", cfg.RMSWindowMs),
		fmt.Sprintf("CHAPTERPIPE_RMS_MIN_SILENCE_MS=%d", cfg.RMSMinSilenceMs),
		fmt.Sprintf("CHAPTERPIPE_VAD_SAMPLE_RATE=%d", cfg.VadSampleRate),
		fmt.Sprintf("CHAPTERPIPE_VAD_WINDOW_SAMPLES=%d", cfg.VadWindowSamples),
		fmt.Sprintf("CHAPTERPIPE_VAD_SPEECH_THRESHOLD=%f", cfg.VadSpeechThreshold),
		fmt.Sprintf("CHAPTERPIPE_VAD_NEG_THRESHOLD=%f", cfg.VadNegThreshold),
		fmt.Sprintf("CHAPTERPIPE_VAD_MIN_SILENCE_MS=%d", cfg.VadMinSilenceMs),
		fmt.Sprintf("CHAPTERPIPE_VAD_MIN_SPEECH_MS=%d", cfg.VadMinSpeechMs),
		fmt.Sprintf("CHAPTERPIPE_VAD_SPEECH_PAD_MS=%d", cfg.VadSpeechPadMs),
		fmt.Sprintf("CHAPTERPIPE_LOUDNESS_TARGET_LUFS=%f", cfg.LoudnessTargetLUFS),
		fmt.Sprintf("CHAPTERPIPE_LOUDNESS_RANGE_LU=%f", cfg.LoudnessRangeLU),
		fmt.Sprintf("CHAPTERPIPE_LOUDNESS_TRUE_PEAK_DBTP=%f", cfg.LoudnessTruePeakDBTP),
		fmt.Sprintf("CHAPTERPIPE_REENCODE_VIDEO=%t", cfg.ReencodeVideo),
		fmt.Sprintf("CHAPTERPIPE_VIDEO_CRF=%d", cfg.VideoCRF),
		fmt.Sprintf("CHAPTERPIPE_VIDEO_PRESET=%s", cfg.VideoPreset),
		fmt.Sprintf("CHAPTERPIPE_AUDIO_CODEC=%s", cfg.AudioCodec),
		fmt.Sprintf("CHAPTERPIPE_AUDIO_BITRATE=%s", cfg.AudioBitrate),
		fmt.Sprintf("CHAPTERPIPE_NUM_THREADS=%d", cfg.NumThreads),
	}
}

func (cfg Config) ToMap() map[string]any {
	return map[string]any{
		"input_path":                          cfg.InputPath,
		"output_dir":                          cfg.OutputDir,
		"retention":                           cfg.Retention,
		"transcoder_path":                     cfg.TranscoderPath,
		"probe_path":                          cfg.ProbePath,
		"stt_binary_path":                     cfg.SttBinaryPath,
		"stt_model_path":                      cfg.SttModelPath,
		"stt_language":                        cfg.SttLanguage,
		"stt_num_threads":                     cfg.SttNumThreads,
		"vad_model_path":                      cfg.VadModelPath,
		"enable_transcription":                cfg.EnableTranscription,
		"wake_word":                           cfg.WakeWord,
		"close_word":                          cfg.CloseWord,
		"command_starters":                    cfg.CommandStarters,
		"command_tail_max_seconds":            cfg.CommandTailMaxSeconds,
		"command_trim_padding_seconds":        cfg.CommandTrimPaddingSeconds,
		"command_silence_rms_threshold":       cfg.CommandSilenceRMSThreshold,
		"command_silence_search_seconds":      cfg.CommandSilenceSearchSeconds,
		"command_silence_max_backward_seconds": cfg.CommandSilenceMaxBackwardSeconds,
		"min_chapter_seconds":                 cfg.MinChapterSeconds,
		"min_trim_window_seconds":             cfg.MinTrimWindowSeconds,
		"pre_speech_padding":                  cfg.PreSpeechPadding,
		"post_speech_padding":                 cfg.PostSpeechPadding,
		"rms_window_ms":                       cfg.RMSWindowMs,
		"rms_min_silence_ms":                  cfg.RMSMinSilenceMs,
		"vad_sample_rate":                     cfg.VadSampleRate,
		"vad_window_samples":                  cfg.VadWindowSamples,
		"vad_speech_threshold":                cfg.VadSpeechThreshold,
		"vad_neg_threshold":                   cfg.VadNegThreshold,
		"vad_min_silence_ms":                  cfg.VadMinSilenceMs,
		"vad_min_speech_ms":                   cfg.VadMinSpeechMs,
		"vad_speech_pad_ms":                   cfg.VadSpeechPadMs,
		"loudness_target_lufs":                cfg.LoudnessTargetLUFS,
		"loudness_range_lu":                   cfg.LoudnessRangeLU,
		"loudness_true_peak_dbtp":             cfg.LoudnessTruePeakDBTP,
		"reencode_video":                      cfg.ReencodeVideo,
		"video_crf":                           cfg.VideoCRF,
		"video_preset":                        cfg.VideoPreset,
		"audio_codec":                         cfg.AudioCodec,
		"audio_bitrate":                       cfg.AudioBitrate,
		"num_threads":                         cfg.NumThreads,
	}
}

func (cfg *Config) FromMap(m map[string]any) *Config {
	cfg.InputPath, _ = m["input_path"].(string)
	cfg.OutputDir, _ = m["output_dir"].(string)
	cfg.Retention, _ = m["retention"].(bool)
	cfg.TranscoderPath, _ = m["transcoder_path"].(string)
	cfg.ProbePath, _ = m["probe_path"].(string)
	cfg.SttBinaryPath, _ = m["stt_binary_path"].(string)
	cfg.SttModelPath, _ = m["stt_model_path"].(string)
	cfg.SttLanguage, _ = m["stt_language"].(string)
	cfg.VadModelPath, _ = m["vad_model_path"].(string)
	cfg.EnableTranscription, _ = m["enable_transcription"].(bool)
	cfg.WakeWord, _ = m["wake_word"].(string)
	cfg.CloseWord, _ = m["close_word"].(string)

	switch v := m["command_starters"].(type) {
	case []string:
		cfg.CommandStarters = v
	case []any:
		for _, s := range v {
			if str, ok := s.(string); ok {
				cfg.CommandStarters = append(cfg.CommandStarters, str)
			}
		}
	}

	cfg.SttNumThreads = toInt(m["stt_num_threads"])
	cfg.RMSWindowMs = toInt(m["rms_window_ms"])
	cfg.RMSMinSilenceMs = toInt(m["rms_min_silence_ms"])
	cfg.VadSampleRate = toInt(m["vad_sample_rate"])
	cfg.VadWindowSamples = toInt(m["vad_window_samples"])
	cfg.VadMinSilenceMs = toInt(m["vad_min_silence_ms"])
	cfg.VadMinSpeechMs = toInt(m["vad_min_speech_ms"])
	cfg.VadSpeechPadMs = toInt(m["vad_speech_pad_ms"])
	cfg.VideoCRF = toInt(m["video_crf"])
	cfg.NumThreads = toInt(m["num_threads"])

	cfg.CommandTailMaxSeconds = toFloat(m["command_tail_max_seconds"])
	cfg.CommandTrimPaddingSeconds = toFloat(m["command_trim_padding_seconds"])
	cfg.CommandSilenceRMSThreshold = toFloat(m["command_silence_rms_threshold"])
	cfg.CommandSilenceSearchSeconds = toFloat(m["command_silence_search_seconds"])
	cfg.CommandSilenceMaxBackwardSeconds = toFloat(m["command_silence_max_backward_seconds"])
	cfg.MinChapterSeconds = toFloat(m["min_chapter_seconds"])
	cfg.MinTrimWindowSeconds = toFloat(m["min_trim_window_seconds"])
	cfg.PreSpeechPadding = toFloat(m["pre_speech_padding"])
	cfg.PostSpeechPadding = toFloat(m["post_speech_padding"])
	cfg.VadSpeechThreshold = toFloat(m["vad_speech_threshold"])
	cfg.VadNegThreshold = toFloat(m["vad_neg_threshold"])
	cfg.LoudnessTargetLUFS = toFloat(m["loudness_target_lufs"])
	cfg.LoudnessRangeLU = toFloat(m["loudness_range_lu"])
	cfg.LoudnessTruePeakDBTP = toFloat(m["loudness_true_peak_dbtp"])

	cfg.ReencodeVideo, _ = m["reencode_video"].(bool)
	cfg.VideoPreset, _ = m["video_preset"].(string)
	cfg.AudioCodec, _ = m["audio_codec"].(string)
	cfg.AudioBitrate, _ = m["audio_bitrate"].(string)

	return cfg
}

// toInt and toFloat mirror the teacher's map decoding: values may arrive as
// int/float64 depending on whether they were round-tripped through JSON.
func toInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	default:
		return 0
	}
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return 0
	}
}

func FromEnv() (Config, error) {
	var cfg Config
	cfg.InputPath = os.Getenv("CHAPTERPIPE_INPUT_PATH")
	cfg.OutputDir = os.Getenv("CHAPTERPIPE_OUTPUT_DIR")
	cfg.Retention, _ = strconv.ParseBool(os.Getenv("CHAPTERPIPE_RETENTION"))
	cfg.TranscoderPath = os.Getenv("CHAPTERPIPE_TRANSCODER_PATH")
	cfg.ProbePath = os.Getenv("CHAPTERPIPE_PROBE_PATH")
	cfg.SttBinaryPath = os.Getenv("CHAPTERPIPE_STT_BINARY_PATH")
	cfg.SttModelPath = os.Getenv("CHAPTERPIPE_STT_MODEL_PATH")
	cfg.SttLanguage = os.Getenv("CHAPTERPIPE_STT_LANGUAGE")
	cfg.SttNumThreads, _ = strconv.Atoi(os.Getenv("CHAPTERPIPE_STT_NUM_THREADS"))
	cfg.VadModelPath = os.Getenv("CHAPTERPIPE_VAD_MODEL_PATH")
	cfg.EnableTranscription, _ = strconv.ParseBool(os.Getenv("CHAPTERPIPE_ENABLE_TRANSCRIPTION"))
	cfg.WakeWord = os.Getenv("CHAPTERPIPE_WAKE_WORD")
	cfg.CloseWord = os.Getenv("CHAPTERPIPE_CLOSE_WORD")

	if val := os.Getenv("CHAPTERPIPE_COMMAND_STARTERS"); val != "" {
		cfg.CommandStarters = strings.Split(val, ",")
	}

	cfg.CommandTailMaxSeconds, _ = strconv.ParseFloat(os.Getenv("CHAPTERPIPE_COMMAND_TAIL_MAX_SECONDS"), 64)
	cfg.CommandTrimPaddingSeconds, _ = strconv.ParseFloat(os.Getenv("CHAPTERPIPE_COMMAND_TRIM_PADDING_SECONDS"), 64)
	cfg.CommandSilenceRMSThreshold, _ = strconv.ParseFloat(os.Getenv("CHAPTERPIPE_COMMAND_SILENCE_RMS_THRESHOLD"), 64)
	cfg.CommandSilenceSearchSeconds, _ = strconv.ParseFloat(os.Getenv("CHAPTERPIPE_COMMAND_SILENCE_SEARCH_SECONDS"), 64)
	cfg.CommandSilenceMaxBackwardSeconds, _ = strconv.ParseFloat(os.Getenv("CHAPTERPIPE_COMMAND_SILENCE_MAX_BACKWARD_SECONDS"), 64)
	cfg.MinChapterSeconds, _ = strconv.ParseFloat(os.Getenv("CHAPTERPIPE_MIN_CHAPTER_SECONDS"), 64)
	cfg.MinTrimWindowSeconds, _ = strconv.ParseFloat(os.Getenv("CHAPTERPIPE_MIN_TRIM_WINDOW_SECONDS"), 64)
	cfg.PreSpeechPadding, _ = strconv.ParseFloat(os.Getenv("CHAPTERPIPE_PRE_SPEECH_PADDING"), 64)
	cfg.PostSpeechPadding, _ = strconv.ParseFloat(os.Getenv("CHAPTERPIPE_POST_SPEECH_PADDING"), 64)

	cfg.RMSWindowMs, _ = strconv.Atoi(os.Getenv("CHAPTERPIPE_RMS_WINDOW_MS"))
	cfg.RMSMinSilenceMs, _ = strconv.Atoi(os.Getenv("CHAPTERPIPE_RMS_MIN_SILENCE_MS"))
	cfg.VadSampleRate, _ = strconv.Atoi(os.Getenv("CHAPTERPIPE_VAD_SAMPLE_RATE"))
	cfg.VadWindowSamples, _ = strconv.Atoi(os.Getenv("CHAPTERPIPE_VAD_WINDOW_SAMPLES"))
	cfg.VadSpeechThreshold, _ = strconv.ParseFloat(os.Getenv("CHAPTERPIPE_VAD_SPEECH_THRESHOLD"), 64)
	cfg.VadNegThreshold, _ = strconv.ParseFloat(os.Getenv("CHAPTERPIPE_VAD_NEG_THRESHOLD"), 64)
	cfg.VadMinSilenceMs, _ = strconv.Atoi(os.Getenv("CHAPTERPIPE_VAD_MIN_SILENCE_MS"))
	cfg.VadMinSpeechMs, _ = strconv.Atoi(os.Getenv("CHAPTERPIPE_VAD_MIN_SPEECH_MS"))
	cfg.VadSpeechPadMs, _ = strconv.Atoi(os.Getenv("CHAPTERPIPE_VAD_SPEECH_PAD_MS"))

	cfg.LoudnessTargetLUFS, _ = strconv.ParseFloat(os.Getenv("CHAPTERPIPE_LOUDNESS_TARGET_LUFS"), 64)
	cfg.LoudnessRangeLU, _ = strconv.ParseFloat(os.Getenv("CHAPTERPIPE_LOUDNESS_RANGE_LU"), 64)
	cfg.LoudnessTruePeakDBTP, _ = strconv.ParseFloat(os.Getenv("CHAPTERPIPE_LOUDNESS_TRUE_PEAK_DBTP"), 64)
	cfg.ReencodeVideo, _ = strconv.ParseBool(os.Getenv("CHAPTERPIPE_REENCODE_VIDEO"))
	cfg.VideoCRF, _ = strconv.Atoi(os.Getenv("CHAPTERPIPE_VIDEO_CRF"))
	cfg.VideoPreset = os.Getenv("CHAPTERPIPE_VIDEO_PRESET")
	cfg.AudioCodec = os.Getenv("CHAPTERPIPE_AUDIO_CODEC")
	cfg.AudioBitrate = os.Getenv("CHAPTERPIPE_AUDIO_BITRATE")
	cfg.NumThreads, _ = strconv.Atoi(os.Getenv("CHAPTERPIPE_NUM_THREADS"))

	return cfg, nil
}
