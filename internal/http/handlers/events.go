package handlers

import (
	"context"
	"net/http"
	"strings"

	"supportdesk/internal/relay"
	"supportdesk/internal/services"
	"supportdesk/pkg/models"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// ActorResolver resolves transport identities to users
type ActorResolver interface {
	GetByExternalID(externalID string) (*models.User, error)
	Create(user *models.User) error
	Update(user *models.User) error
}

// SessionStore loads and persists per-actor routing hints
type SessionStore interface {
	Get(ctx context.Context, externalID string) (*services.Session, error)
	Save(ctx context.Context, externalID string, session *services.Session) error
}

// EventHandler is the router entry point: it receives inbound transport
// events, resolves the actor and session context, runs the authorization
// gate and dispatches into the state machine or the listing surfaces.
type EventHandler struct {
	users        ActorResolver
	authorizer   *services.Authorizer
	conversation *services.ConversationService
	onboarding   *services.OnboardingService
	listing      *services.ListingService
	sessions     SessionStore
	publisher    relay.Publisher
	hub          *ConsoleHub
	shutdown     func()
}

// NewEventHandler creates a new event handler
func NewEventHandler(users ActorResolver, authorizer *services.Authorizer, conversation *services.ConversationService, onboarding *services.OnboardingService, listing *services.ListingService, sessions SessionStore, publisher relay.Publisher, hub *ConsoleHub, shutdown func()) *EventHandler {
	return &EventHandler{
		users:        users,
		authorizer:   authorizer,
		conversation: conversation,
		onboarding:   onboarding,
		listing:      listing,
		sessions:     sessions,
		publisher:    publisher,
		hub:          hub,
		shutdown:     shutdown,
	}
}

// InboundEvent is one transport event: a command, a button press or a
// free-text message. Channel is the opaque address replies to this sender
// go to.
type InboundEvent struct {
	ExternalID  string `json:"external_id" validate:"required"`
	DisplayName string `json:"display_name"`
	Username    string `json:"username"`
	Channel     string `json:"channel" validate:"required"`
	Kind        string `json:"kind" validate:"required,oneof=command callback text"`
	Command     string `json:"command,omitempty"`
	Argument    string `json:"argument,omitempty"`
	Callback    string `json:"callback,omitempty"`
	Text        string `json:"text,omitempty"`
}

// EventResponse tells the transport what to render. Reply is a semantic
// code, never a localized string.
type EventResponse struct {
	Reply        string                `json:"reply"`
	Conversation *models.Conversation  `json:"conversation,omitempty"`
	Message      *models.Message       `json:"message,omitempty"`
	Token        *models.Token         `json:"token,omitempty"`
	Listing      interface{}           `json:"listing,omitempty"`
	Relay        *services.RelaySignal `json:"relay,omitempty"`
}

// Handle processes one inbound transport event
func (h *EventHandler) Handle(c echo.Context) error {
	var event InboundEvent
	if err := c.Bind(&event); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if err := c.Validate(event); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	ctx := c.Request().Context()
	actor, err := h.users.GetByExternalID(event.ExternalID)
	if err != nil {
		return httpError(c, err)
	}
	session, err := h.sessions.Get(ctx, event.ExternalID)
	if err != nil {
		log.Warn().Err(err).Msg("session load failed, continuing with empty session")
		session = &services.Session{}
	}

	var response *EventResponse
	switch event.Kind {
	case "command":
		response, err = h.handleCommand(ctx, &event, actor, session)
	case "callback":
		response, err = h.handleCallback(ctx, &event, actor, session)
	default:
		response, err = h.handleText(ctx, &event, actor, session)
	}
	if err != nil {
		if code := replyCode(err); code != "" {
			// Business errors still mutate session hints (a closed
			// conversation clears the routing hint), so persist before
			// answering.
			if saveErr := h.sessions.Save(ctx, event.ExternalID, session); saveErr != nil {
				log.Warn().Err(saveErr).Msg("session save failed")
			}
			return c.JSON(http.StatusOK, EventResponse{Reply: code})
		}
		return httpError(c, err)
	}

	if err := h.sessions.Save(ctx, event.ExternalID, session); err != nil {
		log.Warn().Err(err).Msg("session save failed")
	}
	return c.JSON(http.StatusOK, response)
}

func (h *EventHandler) handleCommand(ctx context.Context, event *InboundEvent, actor *models.User, session *services.Session) (*EventResponse, error) {
	switch event.Command {
	case "start":
		return &EventResponse{Reply: "choose_language"}, nil

	case "agent":
		if actor == nil {
			return nil, models.ErrNotRegistered
		}
		if actor.IsAgent || actor.IsAdmin {
			return &EventResponse{Reply: "agent_menu"}, nil
		}
		if err := h.onboarding.RedeemByAllowlist(actor); err != nil {
			if err == models.ErrNotAllowlisted {
				return &EventResponse{Reply: "choose_authorization"}, nil
			}
			return nil, err
		}
		return &EventResponse{Reply: "agent_menu"}, nil

	case "admin":
		if actor == nil {
			return nil, models.ErrNotRegistered
		}
		if !actor.IsAdmin {
			return nil, models.ErrInsufficientRole
		}
		return &EventResponse{Reply: "admin_menu"}, nil

	case "end":
		if err := h.authorizer.Authorize(actor, models.ActionCloseConversation); err != nil {
			return nil, err
		}
		conversationID, err := h.conversationFromSession(session, event.Argument)
		if err != nil {
			return nil, err
		}
		conversation, err := h.conversation.Close(conversationID)
		if err != nil {
			return nil, err
		}
		session.ConversationID = nil
		h.hub.Broadcast(ConsoleEvent{Type: "conversation_closed", ConversationID: conversation.ID})
		return &EventResponse{Reply: "conversation_closed", Conversation: conversation}, nil

	case "inspect":
		if err := h.authorizer.Authorize(actor, models.ActionInspectTranscript); err != nil {
			return nil, err
		}
		conversationID, err := uuid.Parse(event.Argument)
		if err != nil {
			return nil, models.ErrValidation
		}
		result, err := h.listing.ListTranscript(conversationID, 1)
		if err != nil {
			return nil, err
		}
		session.ConversationID = &conversationID
		session.SetPage("inspect", result.Page)
		return &EventResponse{Reply: "transcript", Listing: result}, nil

	default:
		return &EventResponse{Reply: "unknown_command"}, nil
	}
}

func (h *EventHandler) handleCallback(ctx context.Context, event *InboundEvent, actor *models.User, session *services.Session) (*EventResponse, error) {
	callback := event.Callback

	if language, ok := strings.CutPrefix(callback, "lang_"); ok {
		return h.registerLanguage(event, actor, language)
	}
	if claimed, ok := strings.CutPrefix(callback, "claim_"); ok {
		return h.claim(ctx, event, actor, session, claimed)
	}

	switch callback {
	case "start_conversation":
		if err := h.authorizer.Authorize(actor, models.ActionStartConversation); err != nil {
			return nil, err
		}
		conversation, err := h.conversation.Start(actor, event.Channel)
		if err != nil {
			return nil, err
		}
		session.ConversationID = &conversation.ID
		h.hub.Broadcast(ConsoleEvent{Type: "conversation_started", ConversationID: conversation.ID})
		return &EventResponse{Reply: "conversation_started", Conversation: conversation}, nil

	case "redeem_token":
		if err := h.authorizer.Authorize(actor, models.ActionRedeemToken); err != nil {
			return nil, err
		}
		session.PendingPrompt = services.PromptToken
		return &EventResponse{Reply: "send_token"}, nil

	case "agent_add":
		if err := h.authorizer.Authorize(actor, models.ActionAddFutureAgent); err != nil {
			return nil, err
		}
		session.PendingPrompt = services.PromptUsername
		return &EventResponse{Reply: "send_username"}, nil

	case "token_gen":
		if err := h.authorizer.Authorize(actor, models.ActionGenerateToken); err != nil {
			return nil, err
		}
		token, err := h.onboarding.GenerateToken()
		if err != nil {
			return nil, err
		}
		return &EventResponse{Reply: "token_created", Token: token}, nil

	case "token_list", "tokens_previous", "tokens_next":
		if err := h.authorizer.Authorize(actor, models.ActionListTokens); err != nil {
			return nil, err
		}
		page := pageFor(session, "tokens", callback)
		result, err := h.listing.ListTokens(page)
		if err != nil {
			return nil, err
		}
		session.SetPage("tokens", result.Page)
		return &EventResponse{Reply: "token_list", Listing: result}, nil

	case "active_list", "active_previous", "active_next":
		if err := h.authorizer.Authorize(actor, models.ActionListActiveConversations); err != nil {
			return nil, err
		}
		page := pageFor(session, "active", callback)
		result, err := h.listing.ListActiveConversations(page)
		if err != nil {
			return nil, err
		}
		session.SetPage("active", result.Page)
		return &EventResponse{Reply: "active_conversations", Listing: result}, nil

	case "joined_list", "joined_previous", "joined_next":
		if err := h.authorizer.Authorize(actor, models.ActionListJoinedConversations); err != nil {
			return nil, err
		}
		page := pageFor(session, "joined", callback)
		result, err := h.listing.ListConversationsClaimedBy(actor.ID, page)
		if err != nil {
			return nil, err
		}
		session.SetPage("joined", result.Page)
		return &EventResponse{Reply: "joined_conversations", Listing: result}, nil

	case "closed_list", "closed_previous", "closed_next":
		if err := h.authorizer.Authorize(actor, models.ActionListClosedConversations); err != nil {
			return nil, err
		}
		page := pageFor(session, "closed", callback)
		result, err := h.listing.ListClosedConversations(page)
		if err != nil {
			return nil, err
		}
		session.SetPage("closed", result.Page)
		return &EventResponse{Reply: "closed_conversations", Listing: result}, nil

	case "agents_list", "agents_previous", "agents_next":
		if err := h.authorizer.Authorize(actor, models.ActionListAgents); err != nil {
			return nil, err
		}
		page := pageFor(session, "agents", callback)
		result, err := h.listing.ListAgents(page)
		if err != nil {
			return nil, err
		}
		session.SetPage("agents", result.Page)
		return &EventResponse{Reply: "agent_list", Listing: result}, nil

	case "inspect_previous", "inspect_next":
		if err := h.authorizer.Authorize(actor, models.ActionInspectTranscript); err != nil {
			return nil, err
		}
		if session.ConversationID == nil {
			return nil, models.ErrNotFound
		}
		page := pageFor(session, "inspect", callback)
		result, err := h.listing.ListTranscript(*session.ConversationID, page)
		if err != nil {
			return nil, err
		}
		session.SetPage("inspect", result.Page)
		return &EventResponse{Reply: "transcript", Listing: result}, nil

	case "cancel":
		session.PendingPrompt = services.PromptNone
		session.Pages = nil
		return &EventResponse{Reply: "welcome"}, nil

	case "shutdown":
		if err := h.authorizer.Authorize(actor, models.ActionShutdown); err != nil {
			return nil, err
		}
		log.Info().Str("admin", actor.ExternalID).Msg("shutdown requested")
		h.shutdown()
		return &EventResponse{Reply: "shutting_down"}, nil

	default:
		return &EventResponse{Reply: "unknown_callback"}, nil
	}
}

func (h *EventHandler) handleText(ctx context.Context, event *InboundEvent, actor *models.User, session *services.Session) (*EventResponse, error) {
	if actor == nil {
		return nil, models.ErrNotRegistered
	}

	switch session.PendingPrompt {
	case services.PromptToken:
		granted, err := h.onboarding.RedeemBootstrapSecret(actor, event.Text)
		if err != nil {
			return nil, err
		}
		if granted {
			session.PendingPrompt = services.PromptNone
			return &EventResponse{Reply: "admin_menu"}, nil
		}
		if err := h.onboarding.RedeemToken(actor, event.Text); err != nil {
			return nil, err
		}
		session.PendingPrompt = services.PromptNone
		return &EventResponse{Reply: "agent_menu"}, nil

	case services.PromptUsername:
		if err := h.authorizer.Authorize(actor, models.ActionAddFutureAgent); err != nil {
			return nil, err
		}
		entry, err := h.onboarding.AddFutureAgent(event.Text)
		if err != nil {
			return nil, err
		}
		session.PendingPrompt = services.PromptNone
		log.Info().Str("username", entry.Username).Msg("future agent pre-approved")
		return &EventResponse{Reply: "future_agent_added"}, nil
	}

	return h.relayText(ctx, event, actor, session)
}

// relayText routes a free-text message into the conversation the session
// points at, falling back to the customer's last-conversation hint. Both are
// hints: the conversation is re-read and the sender's role in it decides the
// direction.
func (h *EventHandler) relayText(ctx context.Context, event *InboundEvent, actor *models.User, session *services.Session) (*EventResponse, error) {
	conversationID := session.ConversationID
	if conversationID == nil {
		conversationID = actor.LastConversationID
	}
	if conversationID == nil {
		return &EventResponse{Reply: "no_active_conversation"}, nil
	}

	conversation, err := h.conversation.Get(*conversationID)
	if err != nil {
		return nil, err
	}
	if conversation == nil {
		session.ConversationID = nil
		return &EventResponse{Reply: "no_active_conversation"}, nil
	}

	var message *models.Message
	var signal *services.RelaySignal
	switch {
	case conversation.AgentID != nil && *conversation.AgentID == actor.ID:
		if err := h.authorizer.Authorize(actor, models.ActionAgentReply); err != nil {
			return nil, err
		}
		message, signal, err = h.conversation.AppendAgentMessage(conversation.ID, actor, event.Text)
	case conversation.CustomerID == actor.ID:
		message, signal, err = h.conversation.AppendCustomerMessage(conversation.ID, actor, event.Text)
	default:
		return nil, models.ErrInsufficientRole
	}
	if err != nil {
		if err == models.ErrConversationClosed {
			session.ConversationID = nil
		}
		return nil, err
	}

	if signal != nil {
		if err := h.publisher.Publish(ctx, signal); err != nil {
			log.Error().Err(err).Str("conversation_id", conversation.ID.String()).Msg("relay publish failed")
		}
	}
	session.ConversationID = &conversation.ID
	return &EventResponse{Reply: "message_accepted", Message: message, Relay: signal}, nil
}

func (h *EventHandler) registerLanguage(event *InboundEvent, actor *models.User, language string) (*EventResponse, error) {
	if actor == nil {
		actor = &models.User{
			ID:          uuid.New(),
			ExternalID:  event.ExternalID,
			DisplayName: event.DisplayName,
			Username:    event.Username,
			Language:    language,
		}
		if err := h.users.Create(actor); err != nil {
			return nil, err
		}
		return &EventResponse{Reply: "welcome"}, nil
	}
	if actor.Language != language {
		actor.Language = language
		if err := h.users.Update(actor); err != nil {
			return nil, err
		}
	}
	return &EventResponse{Reply: "welcome"}, nil
}

func (h *EventHandler) claim(ctx context.Context, event *InboundEvent, actor *models.User, session *services.Session, rawID string) (*EventResponse, error) {
	if err := h.authorizer.Authorize(actor, models.ActionClaimConversation); err != nil {
		return nil, err
	}
	conversationID, err := uuid.Parse(rawID)
	if err != nil {
		return nil, models.ErrValidation
	}
	result, err := h.conversation.Claim(conversationID, actor, event.Channel)
	if err != nil {
		return nil, err
	}
	session.ConversationID = &conversationID
	h.hub.Broadcast(ConsoleEvent{Type: "conversation_claimed", ConversationID: conversationID})

	reply := "claimed"
	if result.FirstJoin {
		reply = "claimed_first"
	}
	return &EventResponse{Reply: reply, Conversation: result.Conversation}, nil
}

func (h *EventHandler) conversationFromSession(session *services.Session, argument string) (uuid.UUID, error) {
	if argument != "" {
		id, err := uuid.Parse(argument)
		if err != nil {
			return uuid.Nil, models.ErrValidation
		}
		return id, nil
	}
	if session.ConversationID == nil {
		return uuid.Nil, models.ErrNotFound
	}
	return *session.ConversationID, nil
}

// pageFor turns a pagination callback into the requested page number; the
// listing service clamps it afterwards
func pageFor(session *services.Session, surface, callback string) int {
	current := session.Page(surface)
	switch {
	case strings.HasSuffix(callback, "_previous"):
		return current - 1
	case strings.HasSuffix(callback, "_next"):
		return current + 1
	default:
		return 1
	}
}
