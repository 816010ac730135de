package services

import (
	"errors"
	"sync"
	"testing"

	"supportdesk/pkg/models"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

func newOnboardingFixture(bootstrapBcrypt string) (*OnboardingService, *memTokenStore, *memFutureAgentStore, *memUserStore) {
	tokens := newMemTokenStore()
	futureAgents := newMemFutureAgentStore()
	users := newMemUserStore()
	service := NewOnboardingService(tokens, futureAgents, users, bootstrapBcrypt)
	return service, tokens, futureAgents, users
}

func TestGenerateToken(t *testing.T) {
	service, tokens, _, _ := newOnboardingFixture("")

	token, err := service.GenerateToken()
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}
	if len(token.Secret) != tokenSecretLength {
		t.Errorf("secret length = %d, want %d", len(token.Secret), tokenSecretLength)
	}
	if token.IsActivated {
		t.Error("fresh token should not be activated")
	}
	stored, err := tokens.GetBySecret(token.Secret)
	if err != nil || stored == nil {
		t.Fatalf("minted token not stored: %v", err)
	}

	other, err := service.GenerateToken()
	if err != nil {
		t.Fatalf("second GenerateToken() error = %v", err)
	}
	if other.Secret == token.Secret {
		t.Error("token secrets must not repeat")
	}
}

func TestRedeemToken(t *testing.T) {
	service, _, _, _ := newOnboardingFixture("")
	user := &models.User{ID: uuid.New(), ExternalID: "ext-user"}

	token, err := service.GenerateToken()
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	if err := service.RedeemToken(nil, token.Secret); !errors.Is(err, models.ErrNotRegistered) {
		t.Errorf("nil user = %v, want ErrNotRegistered", err)
	}
	if err := service.RedeemToken(user, ""); !errors.Is(err, models.ErrValidation) {
		t.Errorf("empty secret = %v, want ErrValidation", err)
	}
	if err := service.RedeemToken(user, "not-a-real-secret"); !errors.Is(err, models.ErrTokenInvalid) {
		t.Errorf("unknown secret = %v, want ErrTokenInvalid", err)
	}

	if err := service.RedeemToken(user, token.Secret); err != nil {
		t.Fatalf("RedeemToken() error = %v", err)
	}
	if !user.IsAgent {
		t.Error("redemption should grant the agent role")
	}

	// Single use: a second redemption fails even for a different user
	second := &models.User{ID: uuid.New(), ExternalID: "ext-second"}
	if err := service.RedeemToken(second, token.Secret); !errors.Is(err, models.ErrTokenAlreadyActivated) {
		t.Errorf("second redemption = %v, want ErrTokenAlreadyActivated", err)
	}
	if second.IsAgent {
		t.Error("losing redemption must not grant the agent role")
	}
}

func TestRedeemTokenConcurrentUsers(t *testing.T) {
	// Two users race on the same secret from separate goroutines; exactly
	// one gains the agent role.
	service, _, _, _ := newOnboardingFixture("")
	token, err := service.GenerateToken()
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	users := []*models.User{
		{ID: uuid.New(), ExternalID: "ext-first"},
		{ID: uuid.New(), ExternalID: "ext-second"},
	}
	results := make(chan error, len(users))
	var wg sync.WaitGroup
	for _, user := range users {
		wg.Add(1)
		go func(user *models.User) {
			defer wg.Done()
			results <- service.RedeemToken(user, token.Secret)
		}(user)
	}
	wg.Wait()
	close(results)

	var granted, denied int
	for err := range results {
		switch {
		case err == nil:
			granted++
		case errors.Is(err, models.ErrTokenAlreadyActivated):
			denied++
		default:
			t.Fatalf("unexpected redemption error = %v", err)
		}
	}
	if granted != 1 || denied != 1 {
		t.Errorf("granted/denied = %d/%d, want 1/1", granted, denied)
	}

	agents := 0
	for _, user := range users {
		if user.IsAgent {
			agents++
		}
	}
	if agents != 1 {
		t.Errorf("%d users hold the agent role, want exactly 1", agents)
	}
}

func TestRedeemTokenGuardedActivation(t *testing.T) {
	// Both redeemers read the token as unactivated; the store-level guard
	// still admits exactly one.
	_, tokens, _, _ := newOnboardingFixture("")
	token := &models.Token{Secret: "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"}
	if err := tokens.Create(token); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := tokens.RedeemForUser(token.ID, uuid.New()); err != nil {
		t.Fatalf("first RedeemForUser() error = %v", err)
	}
	if err := tokens.RedeemForUser(token.ID, uuid.New()); !errors.Is(err, models.ErrTokenAlreadyActivated) {
		t.Errorf("second RedeemForUser() = %v, want ErrTokenAlreadyActivated", err)
	}
}

func TestAddFutureAgent(t *testing.T) {
	tests := []struct {
		name     string
		username string
		want     string
		wantErr  error
	}{
		{"plain handle", "alice_support", "alice_support", nil},
		{"leading at stripped", "@bob_support", "bob_support", nil},
		{"surrounding space trimmed", "  carol_support  ", "carol_support", nil},
		{"too short", "abcd", "", models.ErrValidation},
		{"empty", "", "", models.ErrValidation},
		{"bare at", "@", "", models.ErrValidation},
		{"inner whitespace", "not a handle", "", models.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, _, _, _ := newOnboardingFixture("")
			entry, err := service.AddFutureAgent(tt.username)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("AddFutureAgent(%q) = %v, want %v", tt.username, err, tt.wantErr)
			}
			if tt.wantErr == nil && entry.Username != tt.want {
				t.Errorf("stored username = %q, want %q", entry.Username, tt.want)
			}
		})
	}
}

func TestAddFutureAgentDuplicate(t *testing.T) {
	service, _, _, _ := newOnboardingFixture("")
	if _, err := service.AddFutureAgent("alice_support"); err != nil {
		t.Fatalf("AddFutureAgent() error = %v", err)
	}
	if _, err := service.AddFutureAgent("@alice_support"); !errors.Is(err, models.ErrAlreadyPending) {
		t.Errorf("duplicate = %v, want ErrAlreadyPending", err)
	}
}

func TestRedeemByAllowlist(t *testing.T) {
	service, _, futureAgents, _ := newOnboardingFixture("")
	if _, err := service.AddFutureAgent("alice_support"); err != nil {
		t.Fatalf("AddFutureAgent() error = %v", err)
	}

	if err := service.RedeemByAllowlist(nil); !errors.Is(err, models.ErrNotRegistered) {
		t.Errorf("nil user = %v, want ErrNotRegistered", err)
	}

	anonymous := &models.User{ID: uuid.New()}
	if err := service.RedeemByAllowlist(anonymous); !errors.Is(err, models.ErrNotAllowlisted) {
		t.Errorf("user without username = %v, want ErrNotAllowlisted", err)
	}

	stranger := &models.User{ID: uuid.New(), Username: "mallory_support"}
	if err := service.RedeemByAllowlist(stranger); !errors.Is(err, models.ErrNotAllowlisted) {
		t.Errorf("unlisted user = %v, want ErrNotAllowlisted", err)
	}

	alice := &models.User{ID: uuid.New(), Username: "alice_support"}
	if err := service.RedeemByAllowlist(alice); err != nil {
		t.Fatalf("RedeemByAllowlist() error = %v", err)
	}
	if !alice.IsAgent {
		t.Error("allow-list redemption should grant the agent role")
	}
	entry, err := futureAgents.GetByUsername("alice_support")
	if err != nil || entry == nil {
		t.Fatalf("entry lookup failed: %v", err)
	}
	if !entry.IsAdded {
		t.Error("redeemed entry should be marked added")
	}

	// The entry is spent now
	late := &models.User{ID: uuid.New(), Username: "alice_support"}
	if err := service.RedeemByAllowlist(late); !errors.Is(err, models.ErrNotAllowlisted) {
		t.Errorf("spent entry = %v, want ErrNotAllowlisted", err)
	}
}

func TestRedeemBootstrapSecret(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("launch-code"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt error = %v", err)
	}
	service, _, _, users := newOnboardingFixture(string(hash))

	user := &models.User{ID: uuid.New(), ExternalID: "ext-user"}
	users.add(user)

	granted, err := service.RedeemBootstrapSecret(user, "wrong-code")
	if err != nil {
		t.Fatalf("RedeemBootstrapSecret() error = %v", err)
	}
	if granted {
		t.Error("wrong secret must not grant admin")
	}

	granted, err = service.RedeemBootstrapSecret(user, "launch-code")
	if err != nil {
		t.Fatalf("RedeemBootstrapSecret() error = %v", err)
	}
	if !granted || !user.IsAdmin || !user.IsAgent {
		t.Error("correct secret should grant admin and agent roles")
	}
	if stored := users.items[user.ID]; !stored.IsAdmin {
		t.Error("admin grant should persist")
	}
}

func TestRedeemBootstrapSecretDisabled(t *testing.T) {
	service, _, _, _ := newOnboardingFixture("")
	user := &models.User{ID: uuid.New()}
	granted, err := service.RedeemBootstrapSecret(user, "anything")
	if err != nil {
		t.Fatalf("RedeemBootstrapSecret() error = %v", err)
	}
	if granted {
		t.Error("bootstrap without a configured hash must never grant")
	}
}
