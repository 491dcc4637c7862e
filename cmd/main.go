package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/iamwavecut/tool"
	"github.com/mr-linch/go-tg"
	"github.com/mr-linch/go-tg/tgb"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/iamwavecut/upupa/internal/adventure"
	"github.com/iamwavecut/upupa/internal/birthday"
	"github.com/iamwavecut/upupa/internal/broadcast"
	"github.com/iamwavecut/upupa/internal/chatlog"
	"github.com/iamwavecut/upupa/internal/config"
	"github.com/iamwavecut/upupa/internal/handlers"
	"github.com/iamwavecut/upupa/internal/infra"
	"github.com/iamwavecut/upupa/internal/llm"
	"github.com/iamwavecut/upupa/internal/moderation"
	"github.com/iamwavecut/upupa/internal/personality"
	"github.com/iamwavecut/upupa/internal/picture"
	"github.com/iamwavecut/upupa/internal/quiz"
	"github.com/iamwavecut/upupa/internal/reactions"
	"github.com/iamwavecut/upupa/internal/storage"
	"github.com/iamwavecut/upupa/resources/consts"
)

func main() {
	cfg := config.Get()
	log.SetFormatter(&config.NbFormatter{})
	log.SetLevel(log.Level(cfg.LogLevel))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- run(ctx, cfg) }()

	select {
	case err := <-done:
		if err != nil && ctx.Err() == nil {
			log.WithError(err).Errorln("bot stopped")
			defer os.Exit(1)
		}
	case <-infra.MonitorExecutable(ctx):
		log.Errorln("executable file was modified")
		cancel()
		<-done
	}
}

func run(ctx context.Context, cfg config.Config) error {
	tool.Must(os.MkdirAll(cfg.DataDir, 0o755))

	client := tg.New(cfg.TelegramAPIToken)
	me := tool.MustReturn(client.GetMe().Do(ctx))
	log.WithField("username", me.Username).Infoln("authorized")

	gemini, router := providers(ctx, cfg)
	if len(router.Names()) == 0 {
		log.Warnln("no llm provider configured, replies fall back to canned phrases")
	}

	store := tool.MustReturn(storage.New(ctx, filepath.Join(cfg.DataDir, "state.json"), defaultSettings(cfg)))
	defer store.Close()
	stats := tool.MustReturn(storage.OpenStats(filepath.Join(cfg.DataDir, "stats.db")))
	defer stats.Close()
	history := chatlog.Open(filepath.Join(cfg.DataDir, "chat.log"))
	defer history.Close()

	telegram := handlers.NewTelegram(client)
	personalities := personality.Builtin(cfg.DefaultPersonality)
	dispatcher := reactions.NewDispatcher(nil)

	deps := handlers.Deps{
		Config:        cfg,
		Telegram:      telegram,
		Me:            &me,
		Router:        router,
		Personalities: personalities,
		Store:         store,
		Stats:         stats,
		Log:           history,
		Dispatcher:    dispatcher,
		Quizzes:       quiz.New(router, store, telegram),
		Adventure:     adventure.New(router, store),
		Broadcaster:   broadcast.New(store, telegram, rate.NewLimiter(rate.Limit(consts.BroadcastPerSecond), 1)),
		Filter:        moderation.NewFilter(moderation.DefaultNewcomerWindow, moderation.DefaultMinMessages, moderation.DefaultBlacklist),
		Tracker:       moderation.NewTracker(store, stats),
		Limiter:       rate.NewLimiter(rate.Every(consts.MinTimeBetweenRequests), 1),
	}
	reactorOpts := reactions.ReactorOptions{
		Generator:  router,
		History:    history,
		Sender:     telegram,
		Dispatcher: dispatcher,
		BotID:      int64(me.ID),
		BotName:    me.FirstName,
	}
	if gemini != nil {
		deps.Speaker, deps.Describer, deps.Embedder = gemini, gemini, gemini
		reactorOpts.Speaker, reactorOpts.Imager = gemini, gemini
		deps.Pictures = picture.NewGenerator(gemini)
		deps.Birthdays = birthday.New(router, gemini, store, telegram, cfg.Location(), cfg.BirthdayHour)
	} else {
		deps.Pictures = picture.NewGenerator(nil)
		deps.Birthdays = birthday.New(router, nil, store, telegram, cfg.Location(), cfg.BirthdayHour)
	}
	if cfg.GroqAPIKey != "" {
		deps.Transcriber = llm.NewWhisper(cfg.GroqAPIKey, cfg.GroqBaseURL, cfg.GroqWhisperModel)
	}
	deps.Reactor = reactions.NewReactor(reactorOpts)
	bot := handlers.New(deps)

	go infra.Every(ctx, "birthdays", time.Minute, deps.Birthdays.Tick)

	log.Infoln("starting")
	return tgb.NewPoller(
		bot.Routes(),
		client,
		tgb.WithPollerRetryAfter(time.Minute),
	).Run(ctx)
}

// providers builds the clients that have credentials; Gemini is returned separately
// because it also serves images, speech and embeddings.
func providers(ctx context.Context, cfg config.Config) (*llm.Gemini, *llm.Router) {
	var (
		gemini *llm.Gemini
		list   []llm.Provider
	)
	if cfg.GeminiAPIKey != "" {
		gemini = tool.MustReturn(llm.NewGemini(ctx, llm.GeminiOptions{
			APIKey:     cfg.GeminiAPIKey,
			Models:     cfg.GeminiModelQueue(),
			ImageModel: cfg.GeminiImageModel,
			TTSModel:   cfg.GeminiTTSModel,
			TTSVoice:   cfg.GeminiTTSVoice,
			EmbedModel: cfg.GeminiEmbedModel,
		}))
		list = append(list, gemini)
	}
	if cfg.GroqAPIKey != "" {
		list = append(list, llm.NewGroq(cfg.GroqAPIKey, cfg.GroqBaseURL, cfg.GroqModel))
	}
	if cfg.OpenRouterAPIKey != "" {
		list = append(list, llm.NewOpenRouter(cfg.OpenRouterAPIKey, cfg.OpenRouterBaseURL, cfg.OpenRouterModel))
	}
	if cfg.GigaChatAuthKey != "" {
		list = append(list, llm.NewGigaChat(llm.GigaChatOptions{
			AuthKey:  cfg.GigaChatAuthKey,
			Scope:    cfg.GigaChatScope,
			AuthURL:  cfg.GigaChatAuthURL,
			BaseURL:  cfg.GigaChatBaseURL,
			Model:    cfg.GigaChatModel,
			Insecure: cfg.GigaChatInsecure,
		}))
	}
	return gemini, llm.NewRouter(cfg.Providers(), list...)
}

func defaultSettings(cfg config.Config) storage.ChatSettings {
	return storage.ChatSettings{
		Personality:     cfg.DefaultPersonality,
		RandomEnabled:   true,
		SpamFilter:      true,
		ReactionChance:  cfg.ReactionChance,
		ReplyChance:     cfg.ReplyChance,
		VoiceChance:     cfg.VoiceChance,
		ImageChance:     cfg.ImageChance,
		TriggerChance:   cfg.TriggerChance,
		QuietThreshold:  cfg.QuietThreshold,
		CooldownSeconds: cfg.ReplyCooldown,
	}
}
