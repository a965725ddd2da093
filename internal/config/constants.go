package config

import "time"

const (
	// Telegram limits. Replies are chunked below the hard 4096 cap.
	MaxTelegramMessageLen = 4000
	MaxDownloadSize       = 20 << 20

	// Provider request timeouts
	RequestTimeout     = 90 * time.Second
	UploadPollInterval = 2 * time.Second
	UploadPollTimeout  = 2 * time.Minute
	DeleteTimeout      = 30 * time.Second

	// Provider retry policy for transient failures
	RetryMaxAttempts     = 3
	RetryInitialInterval = 2 * time.Second
	RetryMaxInterval     = 10 * time.Second

	// Short style cap quoted to the model
	ShortDescriptionChars = 200

	// Database pool
	PoolMaxConns = 10
	PoolMinConns = 2

	// Graceful shutdown budget for background deletions
	ShutdownTimeout = 15 * time.Second
)

// SystemInstruction frames every provider call.
const SystemInstruction = "Você é um assistente de audiodescrição e análise rigorosa para pessoas cegas. " +
	"Responda em português, texto puro, sem markdown. " +
	"Use o arquivo enviado como referência principal."
