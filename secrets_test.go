package main

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/secretsmanager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockSecretsManager struct {
	mock.Mock
}

func (m *MockSecretsManager) GetSecretValueWithContext(_ aws.Context, input *secretsmanager.GetSecretValueInput, _ ...request.Option) (*secretsmanager.GetSecretValueOutput, error) {
	args := m.Called(input)
	out, _ := args.Get(0).(*secretsmanager.GetSecretValueOutput)
	return out, args.Error(1)
}

func TestResolveRefreshToken(t *testing.T) {
	secretInput := &secretsmanager.GetSecretValueInput{SecretId: aws.String("onedrive/refresh")}

	t.Run("Literal token wins", func(t *testing.T) {
		sm := new(MockSecretsManager)
		config := Config{RefreshToken: "literal", RefreshTokenSecretID: "onedrive/refresh"}

		resolved, err := ResolveRefreshToken(context.Background(), config, sm, discardLogger())
		require.NoError(t, err)
		assert.Equal(t, "literal", resolved.RefreshToken)
		sm.AssertNotCalled(t, "GetSecretValueWithContext", mock.Anything)
	})

	t.Run("Plain secret string", func(t *testing.T) {
		sm := new(MockSecretsManager)
		sm.On("GetSecretValueWithContext", secretInput).
			Return(&secretsmanager.GetSecretValueOutput{SecretString: aws.String("  from-secret\n")}, nil)

		resolved, err := ResolveRefreshToken(context.Background(), Config{RefreshTokenSecretID: "onedrive/refresh"}, sm, discardLogger())
		require.NoError(t, err)
		assert.Equal(t, "from-secret", resolved.RefreshToken)
	})

	t.Run("JSON secret string", func(t *testing.T) {
		sm := new(MockSecretsManager)
		sm.On("GetSecretValueWithContext", secretInput).
			Return(&secretsmanager.GetSecretValueOutput{SecretString: aws.String(`{"refresh_token":"json-token"}`)}, nil)

		resolved, err := ResolveRefreshToken(context.Background(), Config{RefreshTokenSecretID: "onedrive/refresh"}, sm, discardLogger())
		require.NoError(t, err)
		assert.Equal(t, "json-token", resolved.RefreshToken)
	})

	t.Run("JSON without refresh_token", func(t *testing.T) {
		sm := new(MockSecretsManager)
		sm.On("GetSecretValueWithContext", secretInput).
			Return(&secretsmanager.GetSecretValueOutput{SecretString: aws.String(`{"token":"x"}`)}, nil)

		_, err := ResolveRefreshToken(context.Background(), Config{RefreshTokenSecretID: "onedrive/refresh"}, sm, discardLogger())
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrConfiguration)
		assert.Contains(t, err.Error(), "no refresh_token field")
	})

	t.Run("Secrets Manager error", func(t *testing.T) {
		sm := new(MockSecretsManager)
		sm.On("GetSecretValueWithContext", secretInput).Return(nil, errors.New("AccessDeniedException"))

		_, err := ResolveRefreshToken(context.Background(), Config{RefreshTokenSecretID: "onedrive/refresh"}, sm, discardLogger())
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrConfiguration)
		assert.Contains(t, err.Error(), "AccessDeniedException")
	})

	t.Run("Nothing configured", func(t *testing.T) {
		sm := new(MockSecretsManager)

		resolved, err := ResolveRefreshToken(context.Background(), Config{}, sm, discardLogger())
		require.NoError(t, err)
		assert.Empty(t, resolved.RefreshToken)
		assert.ErrorIs(t, resolved.Validate(), ErrConfiguration)
	})
}
