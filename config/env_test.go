package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestLoadFromFilesPrecedence(t *testing.T) {
	dir := t.TempDir()
	jsonPath := writeFile(t, dir, "app.json", `{"app_port":"9000","database_name":"from-json","nested":{"x":1}}`)
	yamlPath := writeFile(t, dir, "app.yaml", "database_name: from-yaml\nmongo_transactions: false\nmax_body_bytes: 1024\n")
	envPath := writeFile(t, dir, ".env", "# comment\nWHATSAPP_PHONE=\"5550001111\"\n")

	require.NoError(t, loadFromFiles(jsonPath, yamlPath, envPath))

	assert.Equal(t, "9000", get("APP_PORT", ""))
	assert.Equal(t, "from-yaml", get("DATABASE_NAME", ""))
	assert.Equal(t, "false", get("MONGO_TRANSACTIONS", ""))
	assert.Equal(t, "1024", get("MAX_BODY_BYTES", ""))
	assert.Equal(t, "5550001111", get("WHATSAPP_PHONE", ""))
	assert.Empty(t, get("NESTED", ""))
}

func TestLoadFromFilesMissingFilesKeepDefaults(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, loadFromFiles(
		filepath.Join(dir, "nope.json"),
		filepath.Join(dir, "nope.yaml"),
		filepath.Join(dir, "nope.env"),
	))
	assert.Equal(t, defaultDatabaseName, get("DATABASE_NAME", ""))
	assert.Equal(t, defaultWhatsAppPhone, get("WHATSAPP_PHONE", ""))
}

func TestLoadFromFilesEnvOverridesFiles(t *testing.T) {
	dir := t.TempDir()
	yamlPath := writeFile(t, dir, "app.yaml", "app_env: staging\n")
	t.Setenv("APP_ENV", "production")

	require.NoError(t, loadFromFiles(filepath.Join(dir, "x.json"), yamlPath, filepath.Join(dir, "x.env")))
	assert.Equal(t, "production", get("APP_ENV", ""))
}

func TestLoadFromFilesRejectsBadYAML(t *testing.T) {
	dir := t.TempDir()
	yamlPath := writeFile(t, dir, "app.yaml", "a: [unclosed\n")
	err := loadFromFiles(filepath.Join(dir, "x.json"), yamlPath, filepath.Join(dir, "x.env"))
	assert.Error(t, err)
}
