package pipeline

// ASROptions mirrors the ULCA ASR stage config keys the gateway understands.
type ASROptions struct {
	ServiceID      string
	SourceLanguage string
	SamplingRate   int
	AudioFormat    string
	PostProcessors []string
}

type TranslationOptions struct {
	ServiceID      string
	SourceLanguage string
	TargetLanguage string
}

type TTSOptions struct {
	ServiceID      string
	SourceLanguage string
	Gender         string
}

// Each builder returns a fresh Stage. Callers may mutate the result freely.

func ASRStage(opts ASROptions) Stage {
	format := opts.AudioFormat
	if format == "" {
		format = AudioFormatWAV
	}
	cfg := map[string]any{
		"language":     map[string]any{"sourceLanguage": opts.SourceLanguage},
		"samplingRate": opts.SamplingRate,
		"audioFormat":  format,
	}
	if format == AudioFormatWAV {
		cfg["encoding"] = "base64"
	}
	if len(opts.PostProcessors) > 0 {
		cfg["postProcessors"] = append([]string(nil), opts.PostProcessors...)
	}
	if opts.ServiceID != "" {
		cfg["serviceId"] = opts.ServiceID
	}
	return Stage{TaskType: TaskASR, Config: cfg}
}

func TranslationStage(opts TranslationOptions) Stage {
	cfg := map[string]any{
		"language": map[string]any{
			"sourceLanguage": opts.SourceLanguage,
			"targetLanguage": opts.TargetLanguage,
		},
	}
	if opts.ServiceID != "" {
		cfg["serviceId"] = opts.ServiceID
	}
	return Stage{TaskType: TaskTranslation, Config: cfg}
}

func TTSStage(opts TTSOptions) Stage {
	gender := opts.Gender
	if gender == "" {
		gender = "female"
	}
	cfg := map[string]any{
		"language": map[string]any{"sourceLanguage": opts.SourceLanguage},
		"gender":   gender,
	}
	if opts.ServiceID != "" {
		cfg["serviceId"] = opts.ServiceID
	}
	return Stage{TaskType: TaskTTS, Config: cfg}
}
