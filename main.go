package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/secretsmanager"
	"github.com/spf13/cobra"
)

func main() {
	if os.Getenv("AWS_LAMBDA_RUNTIME_API") != "" {
		h, err := setupHandler(context.Background(), os.Getenv(EnvConfigPath), false)
		if err != nil {
			slog.Error("startup failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		lambda.Start(h.HandleLambdaEvent)

		return
	}

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		verbose    bool
	)

	cmd := &cobra.Command{
		Use:           "s3-to-onedrive s3://bucket/key",
		Short:         "Copy an S3 object into a OneDrive shared folder",
		Args:          cobra.ExactArgs(1),
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				configPath = os.Getenv(EnvConfigPath)
			}

			h, err := setupHandler(cmd.Context(), configPath, verbose)
			if err != nil {
				return err
			}

			outcome, err := h.HandleS3URL(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(outcome); err != nil {
				return err
			}

			if outcome.StatusCode != 200 {
				return fmt.Errorf("%s: %s", outcome.Body.Message, outcome.Body.Error)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "TOML config file (default $"+EnvConfigPath+")")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	return cmd
}

// setupHandler builds the immutable Config, installs the logger and wires the
// handler. Missing settings fail here rather than mid-invocation.
func setupHandler(ctx context.Context, configPath string, verbose bool) (*Handler, error) {
	config, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	logger := newLogger(os.Stderr, config.LogLevel, verbose)
	slog.SetDefault(logger)

	sess := session.Must(session.NewSession())

	config, err = ResolveRefreshToken(ctx, config, secretsmanager.New(sess), logger)
	if err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return NewHandler(config, sess, logger), nil
}
