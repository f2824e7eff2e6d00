package def

import (
	"github.com/bwmarrin/discordgo"
)

var ReconcileCommand = &discordgo.ApplicationCommand{
	Name:        "reconcile",
	Description: "Repair review messages that no longer match the form source",
	Options: []*discordgo.ApplicationCommandOption{
		{
			Type:        discordgo.ApplicationCommandOptionBoolean,
			Name:        "dry_run",
			Description: "Only list the repairs, do not apply them",
			Required:    false,
		},
	},
}
