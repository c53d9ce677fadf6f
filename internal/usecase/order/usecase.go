package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/LavaJover/shvark-settlement-service/internal/domain"
	"github.com/LavaJover/shvark-settlement-service/internal/security"
	orderdto "github.com/LavaJover/shvark-settlement-service/internal/usecase/dto/order"
	"github.com/LavaJover/shvark-settlement-service/internal/usecase/queue"
)

// OrderUsecase is the boundary the HTTP and background layers call into.
type OrderUsecase interface {
	InitiateOrder(ctx context.Context, input *orderdto.InitiateOrderInput, rc domain.RequestContext) (*orderdto.InitiateOrderOutput, error)
	ConfirmOrder(ctx context.Context, input *orderdto.ConfirmOrderInput, rc domain.RequestContext) (*orderdto.ConfirmOrderOutput, error)
	AbandonOrder(ctx context.Context, input *orderdto.AbandonOrderInput) (*orderdto.ConfirmOrderOutput, error)
	GetOrderHistory(ctx context.Context, orderID string) ([]*domain.TransactionHistoryEntry, error)
	EnqueueSettlement(ctx context.Context, orderID string) (string, error)
	RunQueueOnce(ctx context.Context, batch int) (int, error)
	RunCleanup(ctx context.Context) (int, error)
	RefundOrder(ctx context.Context, input *orderdto.RefundOrderInput) (*orderdto.RefundOrderOutput, error)
	CaptureOrder(ctx context.Context, input *orderdto.CaptureOrderInput) (*orderdto.CaptureOrderOutput, error)
}

// Metrics is the subset of the settlement metrics the usecase reports to.
type Metrics interface {
	RecordOrderCreated(amount int64)
	RecordTransition(status string, applied bool, amount int64)
	RecordOutcome(outcome string)
	RecordError(stage string)
	RecordCleanup(purged int)
	RecordSecurityViolation(reason string)
}

type DefaultOrderUsecase struct {
	OrderRepo   domain.OrderRepository
	Gateway     domain.PaymentGateway
	Validator   *security.TransactionValidator
	Replay      domain.ReplayGuard
	Queue       *queue.WorkQueue
	Handlers    queue.Handlers
	Events      domain.SecurityEventRepository
	Publisher   domain.OrderEventPublisher
	Metrics     Metrics
	ReturnURL   string
	Retention   time.Duration
	logger      *zap.Logger
	newBuyOrder func() string
	newSession  func() string
}

func NewDefaultOrderUsecase(
	orderRepo domain.OrderRepository,
	gateway domain.PaymentGateway,
	validator *security.TransactionValidator,
	replay domain.ReplayGuard,
	workQueue *queue.WorkQueue,
	handlers queue.Handlers,
	logger *zap.Logger,
	opts ...Option,
) (*DefaultOrderUsecase, error) {
	buyOrder, err := newIDGenerator(buyOrderLength)
	if err != nil {
		return nil, err
	}
	session, err := newIDGenerator(sessionIDLength)
	if err != nil {
		return nil, err
	}

	uc := &DefaultOrderUsecase{
		OrderRepo:   orderRepo,
		Gateway:     gateway,
		Validator:   validator,
		Replay:      replay,
		Queue:       workQueue,
		Handlers:    handlers,
		Retention:   queue.DefaultRetention,
		logger:      logger.With(zap.String("component", "order_usecase")),
		newBuyOrder: buyOrder,
		newSession:  session,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc, nil
}

type Option func(*DefaultOrderUsecase)

func WithSecurityEvents(repo domain.SecurityEventRepository) Option {
	return func(uc *DefaultOrderUsecase) { uc.Events = repo }
}

func WithPublisher(p domain.OrderEventPublisher) Option {
	return func(uc *DefaultOrderUsecase) { uc.Publisher = p }
}

func WithMetrics(m Metrics) Option {
	return func(uc *DefaultOrderUsecase) { uc.Metrics = m }
}

// WithReturnURL sets the URL the gateway redirects to when the caller does
// not supply one.
func WithReturnURL(url string) Option {
	return func(uc *DefaultOrderUsecase) { uc.ReturnURL = url }
}

func WithRetention(d time.Duration) Option {
	return func(uc *DefaultOrderUsecase) {
		if d > 0 {
			uc.Retention = d
		}
	}
}
