// Package bot wires the source, the Discord session and the background loops together.
package bot

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"
	"golang.org/x/sync/errgroup"

	"github.com/cancetinn/ldm-discord/command"
	"github.com/cancetinn/ldm-discord/command/def"
	"github.com/cancetinn/ldm-discord/discord"
	"github.com/cancetinn/ldm-discord/handler"
	"github.com/cancetinn/ldm-discord/health"
	"github.com/cancetinn/ldm-discord/model"
	"github.com/cancetinn/ldm-discord/poller"
	"github.com/cancetinn/ldm-discord/provision"
	"github.com/cancetinn/ldm-discord/reconcile"
	"github.com/cancetinn/ldm-discord/review"
	"github.com/cancetinn/ldm-discord/source"
	"github.com/cancetinn/ldm-discord/utils"
)

// Bot owns every long-running component.
type Bot struct {
	cfg     model.Config
	logger  *slog.Logger
	session *discordgo.Session
	cache   provision.Cache
	router  *handler.Router

	poller     *poller.Poller
	reconciler *reconcile.Reconciler
	health     *health.Server
}

// New builds the bot from cfg without connecting to Discord yet.
func New(ctx context.Context, cfg model.Config, logger *slog.Logger) (*Bot, error) {
	if logger == nil {
		logger = slog.Default()
	}

	// Create a new Discord session using the provided bot token.
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}

	src, err := source.NewClient(cfg.Source, nil)
	if err != nil {
		return nil, err
	}
	src.WithLogger(logger.With("component", "source"))

	cache, err := newCache(ctx, cfg.Cache)
	if err != nil {
		return nil, err
	}

	b := &Bot{cfg: cfg, logger: logger, session: session, cache: cache}

	transport := discord.NewTransport(session, cfg.Channels, cfg.Chat.Footer, cfg.Chat.CallTimeout)
	guild := discord.NewGuild(session, cfg.GuildID, cfg.Chat.CallTimeout)
	prov := provision.New(guild, cache, logger.With("component", "provision"))

	// Shared by the review workflow and the reconciler so they never move
	// the same submission at once.
	locks := utils.NewKeyedMutex()
	applier := review.NewApplier(transport, prov, logger.With("component", "applier"))
	workflow := review.New(src, transport, applier, locks, logger.With("component", "review"))

	var reporter poller.HealthReporter
	if cfg.Health.Addr != "" {
		b.health = health.NewServer(logger.With("component", "health"))
		reporter = b.health
	}
	b.poller = poller.New(src, workflow, cfg.Poll, reporter, logger.With("component", "poller"))
	b.reconciler = reconcile.New(src, transport, applier, prov, locks, cfg.Reconcile, logger.With("component", "reconcile"))

	b.router = handler.NewRouter()
	b.router.AddComponentHandler(discord.ReviewPrefix,
		handler.NewReviewHandler(workflow, transport, logger.With("component", "interaction")).Handle)
	b.router.AddCommandHandler(def.ReconcileCommand.Name,
		handler.NewReconcileHandler(b.reconciler, cfg.Auth, logger.With("component", "interaction")).Handle)

	return b, nil
}

func newCache(ctx context.Context, cfg model.Cache) (provision.Cache, error) {
	if cfg.RedisURL == "" {
		return provision.NewMemoryCache(cfg.TTL), nil
	}
	cache, err := provision.NewRedisCache(ctx, cfg.RedisURL, cfg.TTL)
	if err != nil {
		return nil, fmt.Errorf("team cache: %w", err)
	}
	return cache, nil
}

// Run connects to Discord, registers commands and runs the poller, the
// reconciler and the health server until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	defer b.closeCache()

	registerEventHandlers(b.session, b.router, b.logger)

	if err := b.session.Open(); err != nil {
		return fmt.Errorf("open discord connection: %w", err)
	}
	defer b.session.Close()

	for _, cmd := range command.AllCommands {
		if _, err := b.session.ApplicationCommandCreate(b.session.State.User.ID, b.cfg.GuildID, cmd); err != nil {
			return fmt.Errorf("create %q command: %w", cmd.Name, err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return b.poller.Run(gctx) })
	g.Go(func() error { return b.reconciler.Run(gctx) })
	if b.health != nil {
		g.Go(func() error { return b.health.ListenAndServe(gctx, b.cfg.Health.Addr) })
	}

	b.logger.Info("bot is now running", "guild", b.cfg.GuildID)
	err := g.Wait()
	b.logger.Info("bot stopped")
	return err
}

func (b *Bot) closeCache() {
	if closer, ok := b.cache.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			b.logger.Warn("closing team cache failed", "error", err)
		}
	}
}
