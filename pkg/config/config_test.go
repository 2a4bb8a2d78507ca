package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
}

func TestValidateRejectsBadDrawdown(t *testing.T) {
	cfg := Default()
	cfg.Risk.DailyDrawdownLimitPct = 0
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsBadProtectionLevel(t *testing.T) {
	cfg := Default()
	cfg.Bundle.ProtectionLevel = 11
	assert.Error(t, cfg.Validate())
}

func TestValidatePrivateKeyLiteralRejectsEmbeddedKey(t *testing.T) {
	raw := []byte("wallet:\n  private_key: \"abcdef1234567890\"\n")
	assert.Error(t, ValidatePrivateKeyLiteral(raw))
}

func TestValidatePrivateKeyLiteralAllowsEnvReference(t *testing.T) {
	raw := []byte("wallet:\n  private_key: \"env:WALLET_KEY\"\n")
	assert.NoError(t, ValidatePrivateKeyLiteral(raw))
}
