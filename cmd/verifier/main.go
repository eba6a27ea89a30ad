package main

import (
	"context"
	"fmt"
	"time"

	"github.com/ca-risken/common/pkg/logging"
	"github.com/ca-risken/common/pkg/profiler"
	mimosasqs "github.com/ca-risken/common/pkg/sqs"
	"github.com/ca-risken/common/pkg/tracer"
	"github.com/gassara-kys/envconfig"
	"k8s.io/utils/exec"

	"github.com/fixit-ai/fixit/pkg/db"
	"github.com/fixit-ai/fixit/pkg/gemini"
	"github.com/fixit-ai/fixit/pkg/githubcli"
	"github.com/fixit-ai/fixit/pkg/notify"
	"github.com/fixit-ai/fixit/pkg/sqs"
	"github.com/fixit-ai/fixit/pkg/verify"
)

const (
	nameSpace   = "fixit"
	serviceName = "verifier"
)

var appLogger = logging.NewLogger()

func getFullServiceName() string {
	return fmt.Sprintf("%s.%s", nameSpace, serviceName)
}

func main() {
	ctx := context.Background()
	var conf verify.AppConfig
	err := envconfig.Process("", &conf)
	if err != nil {
		appLogger.Fatal(ctx, err.Error())
	}

	pTypes, err := profiler.ConvertProfileTypeFrom(conf.ProfileTypes)
	if err != nil {
		appLogger.Fatal(ctx, err.Error())
	}
	pExporter, err := profiler.ConvertExporterTypeFrom(conf.ProfileExporter)
	if err != nil {
		appLogger.Fatal(ctx, err.Error())
	}
	pc := profiler.Config{
		ServiceName:  getFullServiceName(),
		EnvName:      conf.EnvName,
		ProfileTypes: pTypes,
		ExporterType: pExporter,
	}
	err = pc.Start()
	if err != nil {
		appLogger.Fatal(ctx, err.Error())
	}
	defer pc.Stop()

	tc := &tracer.Config{
		ServiceName: getFullServiceName(),
		Environment: conf.EnvName,
		Debug:       conf.TraceDebug,
	}
	tracer.Start(tc)
	defer tracer.Stop()

	store, err := db.NewClient(&db.Config{
		MasterHost:     conf.DBMasterHost,
		MasterUser:     conf.DBMasterUser,
		MasterPassword: conf.DBMasterPassword,
		SlaveHost:      conf.DBSlaveHost,
		SlaveUser:      conf.DBSlaveUser,
		SlavePassword:  conf.DBSlavePassword,
		Schema:         conf.DBSchema,
		Port:           conf.DBPort,
		LogMode:        conf.DBLogMode,
	}, appLogger)
	if err != nil {
		appLogger.Fatalf(ctx, "Failed to create DB client, err=%+v", err)
	}
	githubClient, err := githubcli.NewGithubClient(&githubcli.Config{
		Token:   conf.GithubDefaultToken,
		BaseURL: conf.GithubBaseURL,
	}, appLogger)
	if err != nil {
		appLogger.Fatalf(ctx, "Failed to create GitHub client, err=%+v", err)
	}
	geminiClient := gemini.NewClient(&gemini.Config{
		APIKey:    conf.GeminiAPIKey,
		BaseURL:   conf.GeminiBaseURL,
		ModelName: conf.GeminiModelName,
	}, appLogger)
	notifier := notify.NewNotifier(&notify.Config{
		WebhookURL: conf.NotifyWebhookURL,
		Timeout:    conf.NotifyTimeout,
	}, appLogger)
	executor := verify.NewPytestExecutor(conf.PythonPath,
		time.Duration(conf.TestTimeoutSeconds)*time.Second, exec.New(), appLogger)

	orchestrator := verify.NewOrchestrator(store,
		verify.NewGenerator(geminiClient, appLogger), executor, githubClient, notifier, appLogger)
	handler := verify.NewHandler(store, orchestrator, appLogger)

	sqsConf := &sqs.SQSConfig{
		Debug:              conf.Debug,
		AWSRegion:          conf.AWSRegion,
		SQSEndpoint:        conf.SQSEndpoint,
		QueueName:          conf.VerifyQueueName,
		QueueURL:           conf.VerifyQueueURL,
		MaxNumberOfMessage: conf.MaxNumberOfMessage,
		WaitTimeSecond:     conf.WaitTimeSecond,
	}
	consumer, err := sqs.NewSQSConsumer(ctx, sqsConf, appLogger)
	if err != nil {
		appLogger.Fatalf(ctx, "Failed to create SQS consumer, err=%+v", err)
	}
	appLogger.Info(ctx, "Start the verifier SQS consumer server...")
	consumer.Start(ctx,
		mimosasqs.InitializeHandler(
			mimosasqs.RetryableErrorHandler(
				mimosasqs.TracingHandler(getFullServiceName(),
					mimosasqs.StatusLoggingHandler(appLogger, handler)))))
}
