package config

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/iamwavecut/tool"
	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
	log "github.com/sirupsen/logrus"
)

type Config struct {
	TelegramAPIToken string  `env:"BOT_TOKEN,required"`
	DefaultLanguage  string  `env:"LANG,default=ru"`
	LogLevel         int     `env:"LOG_LEVEL,default=4"`
	AdminIDs         []int64 `env:"ADMIN_IDS"`
	DataDir          string  `env:"DATA_DIR,default=data"`
	TimeZone         string  `env:"TIMEZONE,default=Europe/Moscow"`
	BirthdayHour     int     `env:"BIRTHDAY_HOUR,default=9"`

	DefaultPersonality string `env:"DEFAULT_PERSONALITY,default=upupa"`
	ProviderOrder      string `env:"PROVIDER_ORDER,default=gemini,groq,openrouter,gigachat"`

	GeminiAPIKey     string `env:"GEMINI_API_KEY"`
	GeminiModels     string `env:"GEMINI_MODELS,default=gemini-2.5-flash,gemini-2.0-flash,gemini-2.0-flash-lite"`
	GeminiImageModel string `env:"GEMINI_IMAGE_MODEL,default=gemini-2.0-flash-preview-image-generation"`
	GeminiTTSModel   string `env:"GEMINI_TTS_MODEL,default=gemini-2.5-flash-preview-tts"`
	GeminiTTSVoice   string `env:"GEMINI_TTS_VOICE,default=Kore"`
	GeminiEmbedModel string `env:"GEMINI_EMBED_MODEL,default=gemini-embedding-001"`

	GroqAPIKey       string `env:"GROQ_API_KEY"`
	GroqBaseURL      string `env:"GROQ_BASE_URL,default=https://api.groq.com/openai/v1"`
	GroqModel        string `env:"GROQ_MODEL,default=llama-3.3-70b-versatile"`
	GroqWhisperModel string `env:"GROQ_WHISPER_MODEL,default=whisper-large-v3"`

	OpenRouterAPIKey  string `env:"OPENROUTER_API_KEY"`
	OpenRouterBaseURL string `env:"OPENROUTER_BASE_URL,default=https://openrouter.ai/api/v1"`
	OpenRouterModel   string `env:"OPENROUTER_MODEL,default=deepseek/deepseek-chat-v3-0324:free"`

	GigaChatAuthKey  string `env:"GIGACHAT_AUTH_KEY"`
	GigaChatScope    string `env:"GIGACHAT_SCOPE,default=GIGACHAT_API_PERS"`
	GigaChatModel    string `env:"GIGACHAT_MODEL,default=GigaChat"`
	GigaChatAuthURL  string `env:"GIGACHAT_AUTH_URL,default=https://ngw.devices.sberbank.ru:9443/api/v2/oauth"`
	GigaChatBaseURL  string `env:"GIGACHAT_BASE_URL,default=https://gigachat.devices.sberbank.ru/api/v1"`
	GigaChatInsecure bool   `env:"GIGACHAT_INSECURE,default=true"`

	ReactionChance float64 `env:"REACTION_CHANCE,default=0.05"`
	ReplyChance    float64 `env:"REPLY_CHANCE,default=0.03"`
	VoiceChance    float64 `env:"VOICE_CHANCE,default=0.005"`
	ImageChance    float64 `env:"IMAGE_CHANCE,default=0.002"`
	TriggerChance  float64 `env:"TRIGGER_CHANCE,default=0.5"`
	QuietThreshold int     `env:"QUIET_THRESHOLD,default=150"`
	ReplyCooldown  int     `env:"REPLY_COOLDOWN_SECONDS,default=60"`
}

var once sync.Once
var globalConfig = &Config{}

func Get() Config {
	once.Do(func() {
		if err := godotenv.Load(); err != nil {
			log.Traceln("no .env file, using process environment")
		}
		cfg := &Config{}
		tool.Must(envconfig.ProcessWith(context.Background(), cfg, envconfig.OsLookuper()))
		globalConfig = cfg
	})
	return *globalConfig
}

func (c Config) IsAdmin(userID int64) bool {
	for _, id := range c.AdminIDs {
		if id == userID {
			return true
		}
	}
	return false
}

func (c Config) Providers() []string {
	return splitList(c.ProviderOrder)
}

func (c Config) GeminiModelQueue() []string {
	return splitList(c.GeminiModels)
}

// Location falls back to UTC when the zone database lacks TimeZone.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		log.WithError(err).Warnln("unknown timezone, using UTC")
		return time.UTC
	}
	return loc
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
