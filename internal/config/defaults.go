package config

const (
	defaultConfigPath = "~/.config/vsub/config.toml"
	defaultWorkDir    = "~/.cache/vsub/work"
	defaultLogDir     = "~/.local/state/vsub/logs"
	defaultLedgerPath = "~/.local/state/vsub/ledger.db"

	defaultSilenceThresholdDBFS = -40.0
	defaultMinSilenceMS         = 700
	defaultMinSegmentMS         = 1000
	defaultMaxSegmentMS         = 30000

	defaultContinuationGapMS = 800
	defaultMaxChars          = 84
	defaultMaxDurationMS     = 7000

	defaultEngine           = EngineWhisperX
	defaultWorkers          = 1
	defaultWhisperXModel    = "large-v3"
	defaultWhisperXVAD      = "silero"
	defaultOpenAIBaseURL    = "https://api.openai.com/v1"
	defaultOpenAIModel      = "whisper-1"
	defaultOpenAITimeoutSec = 300

	defaultEncoding = "utf-8"
	defaultCacheKey = CacheKeyContent

	defaultLogFormat = "console"
	defaultLogLevel  = "info"
)

// Engine names accepted by transcription.engine.
const (
	EngineWhisperX = "whisperx"
	EngineOpenAI   = "openai"
)

// Cache key modes accepted by cache.key.
const (
	CacheKeyContent = "content"
	CacheKeyName    = "name"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkDir:    defaultWorkDir,
			LogDir:     defaultLogDir,
			LedgerPath: defaultLedgerPath,
		},
		Splitter: Splitter{
			SilenceThresholdDBFS: defaultSilenceThresholdDBFS,
			MinSilenceMS:         defaultMinSilenceMS,
			MinSegmentMS:         defaultMinSegmentMS,
			MaxSegmentMS:         defaultMaxSegmentMS,
		},
		Merge: Merge{
			ContinuationGapMS: defaultContinuationGapMS,
			MaxChars:          defaultMaxChars,
			MaxDurationMS:     defaultMaxDurationMS,
		},
		Transcription: Transcription{
			Engine:  defaultEngine,
			Workers: defaultWorkers,
			WhisperX: WhisperX{
				Model:     defaultWhisperXModel,
				VADMethod: defaultWhisperXVAD,
			},
			OpenAI: OpenAI{
				BaseURL:        defaultOpenAIBaseURL,
				Model:          defaultOpenAIModel,
				TimeoutSeconds: defaultOpenAITimeoutSec,
			},
		},
		Subtitles: Subtitles{
			Encoding: defaultEncoding,
		},
		Cache: Cache{
			Key: defaultCacheKey,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
