package main

import (
	"fmt"
	"os"

	"github.com/dcosta/orderbot/common/environment"
	"github.com/dcosta/orderbot/common/version"
	"github.com/dcosta/orderbot/internal/orderbot/app"
	"github.com/dcosta/orderbot/internal/orderbot/matrix"
	"github.com/dcosta/orderbot/internal/orderbot/nlp"
	"github.com/dcosta/orderbot/internal/orderbot/observability"
	"github.com/dcosta/orderbot/internal/orderbot/sweep"
)

func main() {
	fmt.Printf("Order Bot\n")
	fmt.Printf("Version: %s\n", version.Version)
	fmt.Printf("Commit: %s\n", version.GitCommit)
	fmt.Printf("Build Time: %s\n", version.BuildTime)
	fmt.Println()

	observability.Setup(
		environment.StringOr("LOG_LEVEL", "info"),
		environment.StringOr("LOG_FORMAT", "text"),
	)

	config, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	bot, err := app.New(config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize order bot: %v\n", err)
		os.Exit(1)
	}
	defer bot.Stop()

	if err := bot.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running order bot: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads configuration from environment variables.
func loadConfig() (*app.Config, error) {
	homeserver, err := environment.RequiredString("MATRIX_HOMESERVER")
	if err != nil {
		return nil, err
	}
	userID, err := environment.RequiredString("MATRIX_USER_ID")
	if err != nil {
		return nil, err
	}
	accessToken, err := environment.RequiredString("MATRIX_ACCESS_TOKEN")
	if err != nil {
		return nil, err
	}

	return &app.Config{
		DatabasePath: environment.StringOr("DATABASE_PATH", "./orderbot.db"),
		CatalogPath:  environment.StringOr("CATALOG_PATH", ""),
		Matrix: matrix.Config{
			Homeserver:  homeserver,
			UserID:      userID,
			AccessToken: accessToken,
		},
		OperatorRoom: environment.StringOr("OPERATOR_ROOM", ""),

		// The API key is always read from the environment, never from chat.
		NLPAPIKey:   environment.StringOr("ORDERBOT_NLP_API_KEY", ""),
		NLPModel:    environment.StringOr("NLP_MODEL", ""),
		NLPEndpoint: environment.StringOr("NLP_ENDPOINT", ""),
		NLPTimeout:  environment.DurationOr("NLP_TIMEOUT", nlp.DefaultClassifyTimeout),

		SweepInterval: environment.DurationOr("SWEEP_INTERVAL", sweep.DefaultInterval),
		AbandonAfter:  environment.DurationOr("ABANDON_AFTER", sweep.DefaultThreshold),
	}, nil
}
