package main

import (
	"context"
	"fmt"

	"github.com/ca-risken/common/pkg/logging"
	"github.com/ca-risken/common/pkg/profiler"
	mimosasqs "github.com/ca-risken/common/pkg/sqs"
	"github.com/ca-risken/common/pkg/tracer"
	"github.com/gassara-kys/envconfig"

	"github.com/fixit-ai/fixit/pkg/analysis"
	"github.com/fixit-ai/fixit/pkg/db"
	"github.com/fixit-ai/fixit/pkg/gemini"
	"github.com/fixit-ai/fixit/pkg/githubcli"
	"github.com/fixit-ai/fixit/pkg/notify"
	"github.com/fixit-ai/fixit/pkg/sqs"
)

const (
	nameSpace   = "fixit"
	serviceName = "analyzer"
)

var appLogger = logging.NewLogger()

func getFullServiceName() string {
	return fmt.Sprintf("%s.%s", nameSpace, serviceName)
}

func main() {
	ctx := context.Background()
	var conf analysis.AppConfig
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
		Token:      conf.GithubDefaultToken,
		BaseURL:    conf.GithubBaseURL,
		FetchMode:  conf.GithubFetchMode,
		FilterPath: conf.FileFilterPath,
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

	runner := analysis.NewRunner(store, githubClient,
		analysis.NewFileAnalyzer(geminiClient, appLogger), notifier, appLogger)
	handler := analysis.NewHandler(store, runner, appLogger)

	sqsConf := &sqs.SQSConfig{
		Debug:              conf.Debug,
		AWSRegion:          conf.AWSRegion,
		SQSEndpoint:        conf.SQSEndpoint,
		QueueName:          conf.AnalyzeQueueName,
		QueueURL:           conf.AnalyzeQueueURL,
		MaxNumberOfMessage: conf.MaxNumberOfMessage,
		WaitTimeSecond:     conf.WaitTimeSecond,
	}
	consumer, err := sqs.NewSQSConsumer(ctx, sqsConf, appLogger)
	if err != nil {
		appLogger.Fatalf(ctx, "Failed to create SQS consumer, err=%+v", err)
	}
	appLogger.Info(ctx, "Start the analyzer SQS consumer server...")
	consumer.Start(ctx,
		mimosasqs.InitializeHandler(
			mimosasqs.RetryableErrorHandler(
				mimosasqs.TracingHandler(getFullServiceName(),
					mimosasqs.StatusLoggingHandler(appLogger, handler)))))
}
