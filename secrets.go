package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/secretsmanager"
)

// SecretsManagerAPI is the slice of the Secrets Manager client used to read
// the refresh token.
type SecretsManagerAPI interface {
	GetSecretValueWithContext(ctx aws.Context, input *secretsmanager.GetSecretValueInput, opts ...request.Option) (*secretsmanager.GetSecretValueOutput, error)
}

// ResolveRefreshToken fills RefreshToken from Secrets Manager when only a
// secret ID is configured. A literal refresh token always wins.
func ResolveRefreshToken(ctx context.Context, config Config, client SecretsManagerAPI, logger *slog.Logger) (Config, error) {
	if config.RefreshToken != "" || config.RefreshTokenSecretID == "" {
		return config, nil
	}

	logger.Info("reading refresh token from secrets manager",
		slog.String("secret_id", config.RefreshTokenSecretID))

	out, err := client.GetSecretValueWithContext(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(config.RefreshTokenSecretID),
	})
	if err != nil {
		return config, fmt.Errorf("%w: reading secret %s: %w", ErrConfiguration, config.RefreshTokenSecretID, err)
	}

	token, err := refreshTokenFromSecret(aws.StringValue(out.SecretString))
	if err != nil {
		return config, fmt.Errorf("%w: secret %s: %w", ErrConfiguration, config.RefreshTokenSecretID, err)
	}

	config.RefreshToken = token

	return config, nil
}

// refreshTokenFromSecret accepts either the bare token or a JSON object with
// a refresh_token field.
func refreshTokenFromSecret(secret string) (string, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return "", fmt.Errorf("secret string is empty")
	}

	if !strings.HasPrefix(secret, "{") {
		return secret, nil
	}

	var payload struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.Unmarshal([]byte(secret), &payload); err != nil {
		return "", fmt.Errorf("parsing secret JSON: %w", err)
	}

	if payload.RefreshToken == "" {
		return "", fmt.Errorf("secret JSON has no refresh_token field")
	}

	return payload.RefreshToken, nil
}
