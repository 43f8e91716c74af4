package config

const (
	defaultCacheDir     = "~/.cache/shortify"
	defaultOutputDir    = "."
	defaultStateDB      = "~/.local/share/shortify/runs.db"
	defaultFFmpeg       = "ffmpeg"
	defaultFFprobe      = "ffprobe"
	defaultFPS          = 24
	defaultWidth        = 1080
	defaultHeight       = 1920
	defaultHistory      = 25
	defaultCascade      = "/usr/share/opencv4/haarcascades/haarcascade_frontalface_default.xml"
	defaultScaleFactor  = 1.3
	defaultMinNeighbors = 5
	defaultMinFaceSize  = 30
	defaultCaptionColor = "#FFFF00"
	defaultLanguage     = "en"
	defaultFontSize     = 85
	defaultStrokeWidth  = 3
	defaultWrapColumns  = 18
	defaultWidthRatio   = 0.9
	defaultTopRatio     = 0.75
	defaultBackend      = BackendWhisperCPP
	defaultWhisperBin   = "whisper-cli"
	defaultWhisperModel = "~/.cache/shortify/models/ggml-base.bin"
	defaultWhisperURL   = "https://api.openai.com"
	defaultWhisperAPI   = "whisper-1"
	defaultAPIBind      = "127.0.0.1:8765"
	defaultMaxUploadMB  = 512
	defaultLogFormat    = "auto"
	defaultLogLevel     = "info"
	maxOutputSide       = 4096
)

// Transcriber backends.
const (
	BackendWhisperCPP = "whispercpp"
	BackendHTTP       = "http"
)

// APIKeyEnv overrides transcriber.api_key when set.
const APIKeyEnv = "SHORTIFY_WHISPER_API_KEY"

// Default returns a Config populated with shortify defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			CacheDir:  defaultCacheDir,
			OutputDir: defaultOutputDir,
			StateDB:   defaultStateDB,
		},
		Video: Video{
			FFmpeg:  defaultFFmpeg,
			FFprobe: defaultFFprobe,
			FPS:     defaultFPS,
			Width:   defaultWidth,
			Height:  defaultHeight,
			History: defaultHistory,
		},
		Faces: Faces{
			Cascade:      defaultCascade,
			ScaleFactor:  defaultScaleFactor,
			MinNeighbors: defaultMinNeighbors,
			MinSize:      defaultMinFaceSize,
		},
		Captions: Captions{
			Enabled:     true,
			Color:       defaultCaptionColor,
			Language:    defaultLanguage,
			FontSize:    defaultFontSize,
			StrokeWidth: defaultStrokeWidth,
			WrapColumns: defaultWrapColumns,
			WidthRatio:  defaultWidthRatio,
			TopRatio:    defaultTopRatio,
		},
		Transcriber: Transcriber{
			Backend:      defaultBackend,
			WhisperBin:   defaultWhisperBin,
			WhisperModel: defaultWhisperModel,
			BaseURL:      defaultWhisperURL,
			Model:        defaultWhisperAPI,
		},
		API: API{
			Bind:        defaultAPIBind,
			MaxUploadMB: defaultMaxUploadMB,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
