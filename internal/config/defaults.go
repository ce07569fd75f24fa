package config

const (
	defaultWorkDir   = "~/.local/share/aegis/work"
	defaultOutputDir = "~/.local/share/aegis/output"
	defaultLogDir    = "~/.local/share/aegis/logs"
	defaultStateDir  = "~/.local/share/aegis/state"
	defaultLogFormat = "console"
	defaultLogLevel  = "info"

	defaultStreamAudioWorkers    = 12
	defaultStreamVideoWorkers    = 20
	defaultStreamFinalizeWorkers = 2
	defaultStreamJobQueueSize    = 256
	defaultStreamResultQueueSize = 256
	defaultStreamOutputQueueSize = 256
	defaultStreamSampleFPS       = 1.0
	defaultStreamChunkSeconds    = 10
	defaultStreamPollIntervalMS  = 50

	defaultFileSampleFPS     = 2.0
	defaultFileFrameWorkers  = 4
	defaultFileExtendBefore  = 0.2
	defaultFileExtendAfter   = 0.3
	defaultFileVideoMergeGap = 0.5

	defaultTrackingStaleAfterSeconds  = 2.0
	defaultTrackingMatchThreshold     = 0.3
	defaultTrackingLabelBonus         = 0.3
	defaultTrackingCenterWeight       = 0.5
	defaultTrackingMinIoU             = 0.1
	defaultTrackingMaxCenterDistance  = 0.2
	defaultTrackingPersistencePeriods = 3
	defaultTrackingMergeIoU           = 0.3
	defaultTrackingExpandRatio        = 0.25
	defaultTrackingExpandMinPixels    = 15

	defaultModerationBlockSeverity    = 2
	defaultModerationWordPadding      = 0.15
	defaultModerationWordMaxGap       = 0.25
	defaultModerationMinConfidence    = 0.08
	defaultModerationTranscriptWindow = 30.0

	defaultWhisperXModel     = "large-v3"
	defaultWhisperXVADMethod = "silero"

	defaultVisionTimeoutSeconds = 15
	defaultVisionRetryAttempts  = 3

	defaultFFmpegBinary   = "ffmpeg"
	defaultFFprobeBinary  = "ffprobe"
	defaultVideoPreset    = "ultrafast"
	defaultAudioCodec     = "aac"
	defaultBlurRadius     = 20
	defaultPixelateFactor = 16
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkDir:   defaultWorkDir,
			OutputDir: defaultOutputDir,
			LogDir:    defaultLogDir,
			StateDir:  defaultStateDir,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Stream: Stream{
			AudioWorkers:    defaultStreamAudioWorkers,
			VideoWorkers:    defaultStreamVideoWorkers,
			FinalizeWorkers: defaultStreamFinalizeWorkers,
			JobQueueSize:    defaultStreamJobQueueSize,
			ResultQueueSize: defaultStreamResultQueueSize,
			OutputQueueSize: defaultStreamOutputQueueSize,
			SampleFPS:       defaultStreamSampleFPS,
			ChunkSeconds:    defaultStreamChunkSeconds,
			PollIntervalMS:  defaultStreamPollIntervalMS,
		},
		File: File{
			SampleFPS:     defaultFileSampleFPS,
			FrameWorkers:  defaultFileFrameWorkers,
			ExtendBefore:  defaultFileExtendBefore,
			ExtendAfter:   defaultFileExtendAfter,
			VideoMergeGap: defaultFileVideoMergeGap,
		},
		Tracking: Tracking{
			StaleAfterSeconds:  defaultTrackingStaleAfterSeconds,
			MatchThreshold:     defaultTrackingMatchThreshold,
			LabelBonus:         defaultTrackingLabelBonus,
			CenterWeight:       defaultTrackingCenterWeight,
			MinIoU:             defaultTrackingMinIoU,
			MaxCenterDistance:  defaultTrackingMaxCenterDistance,
			PersistencePeriods: defaultTrackingPersistencePeriods,
			MergeIoU:           defaultTrackingMergeIoU,
			ExpandRatio:        defaultTrackingExpandRatio,
			ExpandMinPixels:    defaultTrackingExpandMinPixels,
		},
		Moderation: Moderation{
			BlockSeverity:           defaultModerationBlockSeverity,
			WordPadding:             defaultModerationWordPadding,
			WordMaxGap:              defaultModerationWordMaxGap,
			MinDetectionConfidence:  defaultModerationMinConfidence,
			TranscriptWindowSeconds: defaultModerationTranscriptWindow,
		},
		WhisperX: WhisperX{
			Model:     defaultWhisperXModel,
			VADMethod: defaultWhisperXVADMethod,
		},
		Vision: Vision{
			TimeoutSeconds: defaultVisionTimeoutSeconds,
			RetryAttempts:  defaultVisionRetryAttempts,
		},
		Render: Render{
			FFmpegBinary:   defaultFFmpegBinary,
			FFprobeBinary:  defaultFFprobeBinary,
			VideoPreset:    defaultVideoPreset,
			AudioCodec:     defaultAudioCodec,
			BlurRadius:     defaultBlurRadius,
			PixelateFactor: defaultPixelateFactor,
		},
		History: History{
			Enabled: true,
		},
	}
}
