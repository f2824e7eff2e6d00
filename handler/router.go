package handler

import (
	"strings"

	"github.com/bwmarrin/discordgo"
)

// HandlerFunc handles one interaction.
type HandlerFunc func(s *discordgo.Session, i *discordgo.InteractionCreate)

// Router dispatches interactions to registered handlers.
type Router struct {
	commandHandlers   map[string]HandlerFunc
	componentHandlers map[string]HandlerFunc
}

// NewRouter creates an empty Router.
func NewRouter() *Router {
	return &Router{
		commandHandlers:   make(map[string]HandlerFunc),
		componentHandlers: make(map[string]HandlerFunc),
	}
}

// AddCommandHandler registers a handler for a slash command.
func (r *Router) AddCommandHandler(name string, handler HandlerFunc) {
	r.commandHandlers[name] = handler
}

// AddComponentHandler registers a handler for message components whose custom
// ID starts with prefix followed by ':'.
func (r *Router) AddComponentHandler(prefix string, handler HandlerFunc) {
	r.componentHandlers[prefix] = handler
}

// OnInteractionCreate is the main interaction router. Register it with
// session.AddHandler before opening the session.
func (r *Router) OnInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		if handler, ok := r.commandHandlers[i.ApplicationCommandData().Name]; ok {
			handler(s, i)
		}
	case discordgo.InteractionMessageComponent:
		customID := i.MessageComponentData().CustomID
		parts := strings.SplitN(customID, ":", 2)
		handlerKey := parts[0]

		if handler, ok := r.componentHandlers[handlerKey]; ok {
			handler(s, i)
		}
	}
}
