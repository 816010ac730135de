package models

// Action identifies an operation an actor requests through the router
type Action string

const (
	// Bootstrap, allowed even for unresolved actors
	ActionRegisterLanguage Action = "register_language"

	// Admin actions
	ActionGenerateToken  Action = "generate_token"
	ActionListTokens     Action = "list_tokens"
	ActionAddFutureAgent Action = "add_future_agent"
	ActionListAgents     Action = "list_agents"
	ActionShutdown       Action = "shutdown"

	// Agent actions
	ActionClaimConversation       Action = "claim_conversation"
	ActionListActiveConversations Action = "list_active_conversations"
	ActionListJoinedConversations Action = "list_joined_conversations"
	ActionListClosedConversations Action = "list_closed_conversations"
	ActionInspectTranscript       Action = "inspect_transcript"
	ActionAgentReply              Action = "agent_reply"
	ActionCloseConversation       Action = "close_conversation"

	// Customer actions, any registered actor
	ActionStartConversation Action = "start_conversation"
	ActionCustomerReply     Action = "customer_reply"
	ActionRedeemToken       Action = "redeem_token"
)

// RoleGatePolicy picks how agent actions combine the two role flags. The
// legacy behavior gated some agent actions on holding agent AND admin at
// once; RequireEither is the coherent policy and the default.
type RoleGatePolicy string

const (
	RoleGateRequireEither RoleGatePolicy = "either"
	RoleGateRequireBoth   RoleGatePolicy = "both"
)

// ClaimPolicy arbitrates concurrent claims on the same conversation.
// FirstClaimerWins surfaces ErrConcurrentModification to the loser;
// LastClaimerWins reproduces the legacy silent overwrite.
type ClaimPolicy string

const (
	ClaimFirstWins ClaimPolicy = "first_claimer_wins"
	ClaimLastWins  ClaimPolicy = "last_claimer_wins"
)

// RelayTarget says which side of a conversation a relay-signal addresses
type RelayTarget string

const (
	RelayToCustomer RelayTarget = "customer"
	RelayToAgent    RelayTarget = "agent"
)
