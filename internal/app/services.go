package app

import (
	"os"
	"strconv"

	"supportdesk/internal/auth"
	"supportdesk/internal/relay"
	"supportdesk/internal/repo"
	"supportdesk/internal/services"
	"supportdesk/pkg/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Services holds all application services
type Services struct {
	DB                  *gorm.DB
	UserRepo            *repo.UserRepository
	TokenRepo           *repo.TokenRepository
	FutureAgentRepo     *repo.FutureAgentRepository
	ConversationRepo    *repo.ConversationRepository
	MessageRepo         *repo.MessageRepository
	AuthService         *auth.Service
	Authorizer          *services.Authorizer
	ConversationService *services.ConversationService
	OnboardingService   *services.OnboardingService
	ListingService      *services.ListingService
	SessionService      *services.SessionService
	RelayPublisher      relay.Publisher
	RoleGate            models.RoleGatePolicy
	Shutdown            func()
}

// NewServices creates a new services container. shutdown stops the process
// gracefully when an admin requests it.
func NewServices(db *gorm.DB, shutdown func()) *Services {
	// Initialize repositories
	userRepo := repo.NewUserRepository(db)
	tokenRepo := repo.NewTokenRepository(db)
	futureAgentRepo := repo.NewFutureAgentRepository(db)
	conversationRepo := repo.NewConversationRepository(db)
	messageRepo := repo.NewMessageRepository(db)

	// Behavior policies, read once at startup
	roleGate := models.RoleGatePolicy(getEnv("ROLE_GATE_POLICY", string(models.RoleGateRequireEither)))
	claimPolicy := models.ClaimPolicy(getEnv("CLAIM_POLICY", string(models.ClaimFirstWins)))
	allowCloseUnclaimed := getEnv("ALLOW_CLOSE_UNCLAIMED", "true") == "true"
	bootstrapHash := os.Getenv("ADMIN_BOOTSTRAP_HASH")

	// Relay publisher is optional; without a broker signals stay in the
	// router response only
	var publisher relay.Publisher = relay.NoopPublisher{}
	if url := os.Getenv("RELAY_AMQP_URL"); url != "" {
		amqpPublisher, err := relay.NewAMQPPublisher(url)
		if err != nil {
			log.Warn().Err(err).Msg("relay broker unavailable, continuing without it")
		} else {
			publisher = amqpPublisher
		}
	}

	// Session store is optional; without it every event starts from an
	// empty session
	var sessionClient *redis.Client
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		sessionClient = redis.NewClient(&redis.Options{Addr: addr})
	}

	pageSize, _ := strconv.Atoi(os.Getenv("LIST_PAGE_SIZE"))

	return &Services{
		DB:               db,
		UserRepo:         userRepo,
		TokenRepo:        tokenRepo,
		FutureAgentRepo:  futureAgentRepo,
		ConversationRepo: conversationRepo,
		MessageRepo:      messageRepo,
		AuthService:      auth.NewService(userRepo, bootstrapHash),
		Authorizer:       services.NewAuthorizer(roleGate),
		ConversationService: services.NewConversationService(
			conversationRepo, messageRepo, userRepo, claimPolicy, allowCloseUnclaimed),
		OnboardingService: services.NewOnboardingService(
			tokenRepo, futureAgentRepo, userRepo, bootstrapHash),
		ListingService: services.NewListingService(
			conversationRepo, messageRepo, tokenRepo, userRepo, pageSize),
		SessionService: services.NewSessionService(sessionClient),
		RelayPublisher: publisher,
		RoleGate:       roleGate,
		Shutdown:       shutdown,
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
