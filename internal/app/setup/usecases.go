package setup

import (
	"github.com/LavaJover/shvark-settlement-service/internal/client"
	"github.com/LavaJover/shvark-settlement-service/internal/domain"
	publisher "github.com/LavaJover/shvark-settlement-service/internal/infrastructure/kafka"
	"github.com/LavaJover/shvark-settlement-service/internal/infrastructure/notifier"
	"github.com/LavaJover/shvark-settlement-service/internal/security"
	usecase "github.com/LavaJover/shvark-settlement-service/internal/usecase/order"
	"github.com/LavaJover/shvark-settlement-service/internal/usecase/queue"
	"github.com/LavaJover/shvark-settlement-service/internal/usecase/settlement"
)

type UseCases struct {
	OrderUsecase *usecase.DefaultOrderUsecase
	Validator    *security.TransactionValidator
	Queue        *queue.WorkQueue
	Worker       *settlement.Worker
	Gateway      *client.WebpayClient
}

func InitializeUseCases(deps *Dependencies) (*UseCases, error) {
	cfg := deps.Config
	log := deps.Logger

	var events domain.OrderEventPublisher
	if deps.Publisher != nil {
		events = publisher.NewOrderEventWriter(deps.Publisher, cfg.KafkaService.Topic)
	}

	validator := security.NewTransactionValidator(
		security.NewSigner(cfg.Security.SigningSecret, cfg.Security.EncryptionSecret),
		deps.ReplayGuard,
		security.Policy{
			MaxAmount:      cfg.Security.MaxAmount,
			AllowedDomains: cfg.Security.AllowedDomains,
			MaxSkew:        cfg.Security.MaxSkew,
		},
		log,
		security.WithEventRepository(deps.Repositories.SecurityEvents),
		security.WithRecorder(deps.Metrics),
	)

	workQueue := queue.NewWorkQueue(deps.QueueStore, cfg.Queue.Name, log,
		queue.WithMaxAttempts(cfg.Queue.MaxAttempts),
		queue.WithRecorder(deps.Metrics),
	)

	workerOpts := []settlement.Option{
		settlement.WithRecorder(deps.Metrics),
		settlement.WithAdminAddress(cfg.Mail.AdminAddress),
	}
	if events != nil {
		workerOpts = append(workerOpts, settlement.WithEventPublisher(events))
	}
	worker := settlement.NewWorker(
		deps.Repositories.OrderRepo,
		notifier.NewSMTPMailer(cfg.Mail, log),
		notifier.NewFileAttachmentSource(deps.Repositories.CourseFileRepo, cfg.Mail.AttachmentsDir, log),
		log,
		workerOpts...,
	)

	gateway := client.NewWebpayClient(cfg.Webpay, log, client.WithObserver(deps.Metrics))

	orderOpts := []usecase.Option{
		usecase.WithSecurityEvents(deps.Repositories.SecurityEvents),
		usecase.WithMetrics(deps.Metrics),
		usecase.WithReturnURL(cfg.HTTPServer.PublicURL + "/api/checkout/return"),
		usecase.WithRetention(cfg.Queue.Retention),
	}
	if events != nil {
		orderOpts = append(orderOpts, usecase.WithPublisher(events))
	}
	orderUsecase, err := usecase.NewDefaultOrderUsecase(
		deps.Repositories.OrderRepo,
		gateway,
		validator,
		deps.ReplayGuard,
		workQueue,
		worker.Handlers(),
		log,
		orderOpts...,
	)
	if err != nil {
		return nil, err
	}

	return &UseCases{
		OrderUsecase: orderUsecase,
		Validator:    validator,
		Queue:        workQueue,
		Worker:       worker,
		Gateway:      gateway,
	}, nil
}
