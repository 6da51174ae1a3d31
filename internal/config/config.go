package config

import "github.com/kelseyhightower/envconfig"

type APIConfig struct {
	DBDSN     string `envconfig:"DB_DSN" required:"true"`
	Port      string `envconfig:"PORT" default:"8080"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`

	// storage failover
	FallbackStorePath    string `envconfig:"FALLBACK_STORE_PATH" default:"/var/lib/respondr/responders.json"`
	StorageProbeInterval int    `envconfig:"STORAGE_PROBE_INTERVAL_SECONDS" default:"15"`
	StorageOpAttempts    int    `envconfig:"STORAGE_OP_ATTEMPTS" default:"2"`
}

type WorkerConfig struct {
	DBDSN     string `envconfig:"DB_DSN" required:"true"`
	Port      string `envconfig:"PORT" default:"8080"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`

	// AWS / SQS
	AWSRegion          string `envconfig:"AWS_REGION" required:"true"`
	SQSQueueURL        string `envconfig:"SQS_QUEUE_URL" required:"true"`
	LocalstackEndpoint string `envconfig:"LOCALSTACK_ENDPOINT"`
	SQSWaitTime        int32  `envconfig:"SQS_WAIT_TIME" default:"20"`
	SQSMaxMsgs         int32  `envconfig:"SQS_MAX_MSGS" default:"10"`
	SQSVizTimeout      int32  `envconfig:"SQS_VISIBILITY_TIMEOUT" default:"60"`

	WorkerConcurrency int `envconfig:"WORKER_CONCURRENCY" default:"20"`

	// OpenAI extraction
	OpenAIAPIKey      string  `envconfig:"OPENAI_API_KEY" required:"true"`
	OpenAIBaseURL     string  `envconfig:"OPENAI_BASE_URL"`
	OpenAIModel       string  `envconfig:"OPENAI_MODEL" default:"gpt-4o-mini"`
	ExtractTimeout    int     `envconfig:"EXTRACT_TIMEOUT_SECONDS" default:"8"`
	ExtractMaxRetries int     `envconfig:"EXTRACT_MAX_RETRIES" default:"2"`
	ExtractRPSPerPod  float64 `envconfig:"EXTRACT_RPS_PER_POD" default:"5"`
	ExtractBurst      int     `envconfig:"EXTRACT_BURST" default:"10"`

	// unit roster, comma separated (e.g. "SAR-7,SAR-12,SAR-78")
	VehicleUnits []string `envconfig:"VEHICLE_UNITS" default:"SAR-7,SAR-12,SAR-78"`

	// TimeZone is the IANA zone ETAs in messages are written in.
	TimeZone           string `envconfig:"TIME_ZONE" default:"UTC"`
	ContinuityLookback int    `envconfig:"CONTINUITY_LOOKBACK" default:"10"`

	// storage failover
	FallbackStorePath    string `envconfig:"FALLBACK_STORE_PATH" default:"/var/lib/respondr/responders.json"`
	StorageProbeInterval int    `envconfig:"STORAGE_PROBE_INTERVAL_SECONDS" default:"15"`
	StorageOpAttempts    int    `envconfig:"STORAGE_OP_ATTEMPTS" default:"2"`
}

type WebhookConfig struct {
	Port      string `envconfig:"PORT" default:"8080"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`

	// AWS / SQS
	AWSRegion          string `envconfig:"AWS_REGION" required:"true"`
	SQSQueueURL        string `envconfig:"SQS_QUEUE_URL" required:"true"`
	LocalstackEndpoint string `envconfig:"LOCALSTACK_ENDPOINT"`

	// shared secret checked against X-Webhook-Token; empty disables the check
	WebhookToken string `envconfig:"WEBHOOK_TOKEN"`
}

func LoadAPI() APIConfig {
	var cfg APIConfig
	if err := envconfig.Process("", &cfg); err != nil {
		panic(err)
	}
	return cfg
}

func LoadWorker() WorkerConfig {
	var cfg WorkerConfig
	if err := envconfig.Process("", &cfg); err != nil {
		panic(err)
	}
	return cfg
}

func LoadWebhook() WebhookConfig {
	var cfg WebhookConfig
	if err := envconfig.Process("", &cfg); err != nil {
		panic(err)
	}
	return cfg
}
