package main

import (
	"context"

	"example/meal-planner-api/app"
	"example/meal-planner-api/app/config"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

var ginLambda *ginadapter.GinLambda

// init runs once per Lambda container (cold start)
func init() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	if err := app.ConfigureLogging(cfg.Logs); err != nil {
		logrus.WithError(err).Fatal("Failed to configure logging")
	}
	gin.SetMode(gin.ReleaseMode)

	// Connections live for the container's lifetime.
	deps, _, err := app.Bootstrap(context.Background(), cfg)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize dependencies")
	}
	ginLambda = ginadapter.New(app.NewRouter(deps))
}

// Handler is the Lambda entrypoint for API Gateway REST/HTTP API (proxy integration)
func Handler(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	return ginLambda.ProxyWithContext(ctx, req)
}

func main() {
	lambda.Start(Handler)
}
