package consts

const (
	AppName    = "vancelle"
	AppVersion = "v1.0.0"
)

// Persistence document keys.
const (
	LogsKey     = AppName + ".logs"
	SettingsKey = AppName + ".settings"
)

// Inference providers.
const (
	ProviderGemini   = "gemini"
	ProviderOpenAI   = "openai"
	ProviderDeepSeek = "deepseek"
)

// Storage backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

const (
	// HistoryWindow caps the prior verdicts sent as learning context.
	HistoryWindow = 3

	// DiagnosticCue is the literal text part sent next to the chart image.
	DiagnosticCue = "Diagnostic request: Forex chart analysis."
)

// Timeframes offered by the intake form.
var Timeframes = []string{"15m", "30m", "1H", "4H", "Daily"}
