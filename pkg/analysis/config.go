package analysis

type AppConfig struct {
	EnvName         string   `default:"local" split_words:"true"`
	TraceExporter   string   `split_words:"true" default:"nop"`
	ProfileExporter string   `split_words:"true" default:"nop"`
	ProfileTypes    []string `split_words:"true"`
	TraceDebug      bool     `split_words:"true" default:"false"`

	// sqs
	Debug string `default:"false"`

	AWSRegion   string `envconfig:"aws_region"    default:"ap-northeast-1"`
	SQSEndpoint string `envconfig:"sqs_endpoint"  default:"http://queue.middleware.svc.cluster.local:9324"`

	AnalyzeQueueName   string `split_words:"true" default:"fixit-analyze"`
	AnalyzeQueueURL    string `split_words:"true" default:"http://queue.middleware.svc.cluster.local:9324/queue/fixit-analyze"`
	MaxNumberOfMessage int32  `split_words:"true" default:"5"`
	WaitTimeSecond     int32  `split_words:"true" default:"20"`

	// db
	DBMasterHost     string `split_words:"true" default:"db.middleware.svc.cluster.local"`
	DBMasterUser     string `split_words:"true" default:"fixit"`
	DBMasterPassword string `split_words:"true" required:"true"`
	DBSlaveHost      string `split_words:"true"`
	DBSlaveUser      string `split_words:"true"`
	DBSlavePassword  string `split_words:"true"`
	DBSchema         string `required:"true" default:"fixit"`
	DBPort           int    `required:"true" default:"3306"`
	DBLogMode        bool   `split_words:"true" default:"false"`

	// github
	GithubDefaultToken string `required:"true" split_words:"true"`
	GithubBaseURL      string `split_words:"true"`
	GithubFetchMode    string `split_words:"true" default:"api"`
	FileFilterPath     string `split_words:"true"`

	// gemini
	GeminiAPIKey    string `envconfig:"gemini_api_key" required:"true"`
	GeminiBaseURL   string `envconfig:"gemini_base_url"`
	GeminiModelName string `envconfig:"gemini_model_name" default:"gemini-3-flash-preview"`

	// notify
	NotifyWebhookURL string `split_words:"true"`
	NotifyTimeout    int    `split_words:"true" default:"10"`
}
