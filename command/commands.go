package command

import (
	"github.com/cancetinn/ldm-discord/command/def"

	"github.com/bwmarrin/discordgo"
)

// AllCommands contains all of the commands
var AllCommands = []*discordgo.ApplicationCommand{
	def.ReconcileCommand,
}
