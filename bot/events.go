package bot

import (
	"log/slog"

	"github.com/bwmarrin/discordgo"

	"github.com/cancetinn/ldm-discord/handler"
)

func registerEventHandlers(s *discordgo.Session, router *handler.Router, logger *slog.Logger) {
	s.AddHandler(router.OnInteractionCreate)
	s.AddHandler(func(_ *discordgo.Session, r *discordgo.Ready) {
		logger.Info("logged in", "user", r.User.Username, "guilds", len(r.Guilds))
	})

	// Only guild and message events are needed.
	s.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsGuilds
}
