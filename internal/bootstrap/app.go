package bootstrap

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"ragchat/internal/ai"
	appsvc "ragchat/internal/app"
	"ragchat/internal/cache"
	"ragchat/internal/config"
	"ragchat/internal/model"
	mysqlClient "ragchat/internal/platform/mysql"
	rabbitmqClient "ragchat/internal/platform/rabbitmq"
	redisClient "ragchat/internal/platform/redis"
	"ragchat/internal/repository"
	"ragchat/internal/vectorstore"
	"ragchat/internal/worker"
)

type App struct {
	Config *config.Config
	MySQL  *gorm.DB
	Redis  *redis.Client
	MQConn *amqp.Connection

	Sessions     *appsvc.SessionService
	Chat         *appsvc.ChatService
	Ingest       *appsvc.IngestService
	IngestWorker *worker.IngestWorker

	StartedAt time.Time
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}

	mysqlDB, err := mysqlClient.New(ctx, cfg.MySQLDSN())
	if err != nil {
		return nil, err
	}
	if err := mysqlDB.AutoMigrate(
		&model.Session{}, &model.Document{}, &model.Message{}, &model.Embedding{},
	); err != nil {
		return nil, fmt.Errorf("auto migrate tables failed: %w", err)
	}

	redisCli, err := redisClient.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return nil, err
	}

	mqConn, err := rabbitmqClient.New(ctx, cfg.RabbitMQ.URL, cfg.RabbitMQ.IngestQueue)
	if err != nil {
		return nil, err
	}

	sessionRepo := repository.NewSessionRepository(mysqlDB)
	documentRepo := repository.NewDocumentRepository(mysqlDB)
	messageRepo := repository.NewMessageRepository(mysqlDB)
	embeddingRepo := repository.NewEmbeddingRepository(mysqlDB)
	vectors := vectorstore.New(embeddingRepo)

	historyCache := cache.NewHistoryCache(
		redisCli,
		time.Duration(cfg.Redis.HistoryTTLSeconds)*time.Second,
		time.Duration(cfg.Redis.HistoryDirtyTTLSeconds)*time.Second,
	)

	providerTimeout := time.Duration(cfg.LLM.RequestTimeoutSec) * time.Second
	llmClient := ai.NewOpenAICompatibleClient(providerTimeout)
	embedder := ai.NewEmbeddingProvider(llmClient, ai.EmbeddingConfig{
		BaseURL: cfg.LLM.BaseURL,
		APIKey:  cfg.LLM.APIKey,
		Model:   cfg.LLM.EmbeddingModel,
	}, cfg.LLM.EmbeddingDimension, providerTimeout)
	generator := ai.NewGenerationProvider(llmClient, ai.ChatConfig{
		BaseURL: cfg.LLM.BaseURL,
		APIKey:  cfg.LLM.APIKey,
		Model:   cfg.LLM.Model,
	}, providerTimeout)

	publisher := rabbitmqClient.NewIngestPublisher(mqConn, cfg.RabbitMQ.IngestQueue)
	backoff := time.Duration(cfg.Ingest.BackoffMillis) * time.Millisecond

	sessions := appsvc.NewSessionService(sessionRepo, documentRepo, messageRepo, embeddingRepo, historyCache)
	chat := appsvc.NewChatService(
		sessions, messageRepo, vectors, embedder, generator, historyCache,
		cfg.Retrieval.TopK, cfg.Retrieval.HistoryLimit, cfg.Ingest.MaxAttempts, backoff,
	)
	ingest := appsvc.NewIngestService(
		sessions, documentRepo, embeddingRepo, vectors, embedder, publisher,
		cfg.Chunking.Size, cfg.Chunking.Overlap, cfg.Ingest.EmbedBatchSize, cfg.Ingest.MaxAttempts, backoff,
	)

	ingestWorker, err := worker.NewIngestWorker(mqConn, ingest, cfg.RabbitMQ.IngestQueue, cfg.Ingest.WorkerPoolSize)
	if err != nil {
		return nil, err
	}
	if err := ingestWorker.Start(ctx); err != nil {
		return nil, fmt.Errorf("start ingest worker failed: %w", err)
	}

	return &App{
		Config:       cfg,
		MySQL:        mysqlDB,
		Redis:        redisCli,
		MQConn:       mqConn,
		Sessions:     sessions,
		Chat:         chat,
		Ingest:       ingest,
		IngestWorker: ingestWorker,
		StartedAt:    time.Now(),
	}, nil
}

func (a *App) Close() error {
	var closeErr error
	if a.IngestWorker != nil {
		a.IngestWorker.Close()
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			closeErr = err
		}
	}
	if a.MQConn != nil {
		if err := a.MQConn.Close(); err != nil {
			closeErr = err
		}
	}
	if a.MySQL != nil {
		sqlDB, err := a.MySQL.DB()
		if err == nil {
			if err := sqlDB.Close(); err != nil {
				closeErr = err
			}
		}
	}
	return closeErr
}
