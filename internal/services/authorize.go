package services

import (
	"supportdesk/pkg/models"
)

// Authorizer is the pure decision gate between a resolved actor and the
// action it requests. It holds no state beyond policy and performs no I/O.
type Authorizer struct {
	roleGate models.RoleGatePolicy
}

// NewAuthorizer creates an authorizer with the given agent-action role policy
func NewAuthorizer(roleGate models.RoleGatePolicy) *Authorizer {
	if roleGate == "" {
		roleGate = models.RoleGateRequireEither
	}
	return &Authorizer{roleGate: roleGate}
}

// Authorize decides whether actor may perform action. A nil actor is only
// allowed the language bootstrap. Returns nil when allowed.
func (a *Authorizer) Authorize(actor *models.User, action models.Action) error {
	if action == models.ActionRegisterLanguage {
		return nil
	}
	if actor == nil {
		return models.ErrNotRegistered
	}

	switch action {
	case models.ActionGenerateToken,
		models.ActionListTokens,
		models.ActionAddFutureAgent,
		models.ActionListAgents,
		models.ActionShutdown:
		if !actor.IsAdmin {
			return models.ErrInsufficientRole
		}
		return nil

	case models.ActionClaimConversation,
		models.ActionListActiveConversations,
		models.ActionListJoinedConversations,
		models.ActionListClosedConversations,
		models.ActionInspectTranscript,
		models.ActionAgentReply,
		models.ActionCloseConversation:
		if a.roleGate == models.RoleGateRequireBoth {
			if !actor.IsAgent || !actor.IsAdmin {
				return models.ErrInsufficientRole
			}
			return nil
		}
		if !actor.IsAgent && !actor.IsAdmin {
			return models.ErrInsufficientRole
		}
		return nil

	default:
		// Customer actions only need a resolved actor
		return nil
	}
}
