package models

import "errors"

// Business errors surfaced by the core. Handlers map these to transport
// responses; only ErrStoreUnavailable is a candidate for caller-side retry.
var (
	// ErrValidation indicates malformed input, never retried
	ErrValidation = errors.New("validation failed")

	// ErrNotRegistered indicates the actor has never interacted with the system
	ErrNotRegistered = errors.New("actor not registered")

	// ErrInsufficientRole indicates the actor lacks the role an action requires
	ErrInsufficientRole = errors.New("insufficient role")

	// ErrConversationClosed indicates an append or claim on a closed conversation
	ErrConversationClosed = errors.New("conversation is closed")

	// ErrNotClaimed indicates a close on a conversation no agent ever claimed
	ErrNotClaimed = errors.New("conversation was never claimed")

	// ErrTokenInvalid indicates the redeemed secret matches no token
	ErrTokenInvalid = errors.New("token invalid")

	// ErrTokenAlreadyActivated indicates the token was already redeemed
	ErrTokenAlreadyActivated = errors.New("token already activated")

	// ErrNotAllowlisted indicates the username has no pending allow-list entry
	ErrNotAllowlisted = errors.New("username not allow-listed")

	// ErrAlreadyPending indicates the username already has an allow-list entry
	ErrAlreadyPending = errors.New("username already pending")

	// ErrNotFound indicates the referenced row does not exist
	ErrNotFound = errors.New("not found")

	// ErrStoreUnavailable indicates a transient persistence failure; the
	// caller decides retry policy, the core never retries
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrConcurrentModification indicates a compare-and-set lost a race and
	// must be retried with fresh state or surfaced as a conflict
	ErrConcurrentModification = errors.New("concurrent modification")
)
