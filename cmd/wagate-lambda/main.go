// Command wagate-lambda receives gateway webhooks behind API Gateway.
// Configuration comes from WAGATE_ environment variables and, when set,
// the file named by WAGATE_CONFIG.
package main

import (
	"context"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/Abraxas-365/wagate/appx"
	"github.com/Abraxas-365/wagate/logx"
)

func main() {
	ctx := context.Background()

	cfg, err := appx.LoadConfig(os.Getenv("WAGATE_CONFIG"), "")
	if err != nil {
		logx.Fatal("Loading config: %v", err)
	}

	// Lambda freezes the process between invocations, so the in-process
	// stream is left off and events go to the local bus and SQS only.
	app, err := appx.New(ctx, cfg, appx.WithoutStream())
	if err != nil {
		logx.Fatal("Starting: %v", err)
	}

	receiver, err := app.Receiver()
	if err != nil {
		logx.Fatal("Building receiver: %v", err)
	}

	lambda.Start(receiver.HandleLambda)
}
