package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestLoad_DefaultsWhenMissing(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadDir(dir)
	require.NoError(t, err)
	require.True(t, cfg.Commands.EnableNonVanilla)
	require.Equal(t, 1, cfg.Commands.AutoComplete.MinLength)
	require.Equal(t, filepath.Join(dir, "history.db"), cfg.History.Path)
	require.Equal(t, filepath.Join(dir, "logs", "vcterm.log"), cfg.Log.Path)
}

func TestLoad_OverridesAndNormalizes(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, FileName, `
server:
  url: wss://world.example/v1/ws
commands:
  enable_non_vanilla: false
  aliases:
    " FB ": "follow $name=bob"
  autocomplete:
    min_length: -4
    color: "#ff00aa"
hooks:
  ON_SPAWN: ".send hello"
plugins: [OWO, owo, ""]
`)
	cfg, err := LoadDir(dir)
	require.NoError(t, err)
	require.Equal(t, "wss://world.example/v1/ws", cfg.Server.URL)
	require.False(t, cfg.Commands.EnableNonVanilla)
	require.Equal(t, map[string]string{"fb": "follow $name=bob"}, cfg.Commands.Aliases)
	require.Equal(t, 0, cfg.Commands.AutoComplete.MinLength)
	require.Equal(t, map[string]string{"on_spawn": ".send hello"}, cfg.Hooks)
	require.Equal(t, []string{"owo"}, cfg.Plugins)
	// Untouched sections keep their defaults.
	require.True(t, cfg.History.Enabled)
}

func TestLoad_ValidationErrors(t *testing.T) {
	cases := map[string]string{
		"url":   "server:\n  url: http://nope\n",
		"color": "commands:\n  autocomplete:\n    color: grey\n",
		"regex": "remote:\n  enabled: true\n  pattern: \"([\"\n",
		"group": "remote:\n  enabled: true\n  pattern: \"!#.+\"\n",
		"hook":  "hooks:\n  after_spawn: .send hi\n",
		"event": "hooks:\n  on_sunrise: .send hi\n",
		"alias": "commands:\n  aliases:\n    x: \"\"\n",
		"yaml":  "server: [",
	}
	for name, body := range cases {
		dir := t.TempDir()
		p := writeFile(t, dir, FileName, body)
		_, err := Load(p)
		require.Error(t, err, name)
		require.Contains(t, err.Error(), FileName, name)
	}
}

func TestParseHook(t *testing.T) {
	h, err := ParseHook("once_login")
	require.NoError(t, err)
	require.Equal(t, Hook{Event: "login", Once: true}, h)
	h, err = ParseHook("on_message")
	require.NoError(t, err)
	require.Equal(t, Hook{Event: "message"}, h)
}

func TestWriteDefault(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	path, err := WriteDefault(dir)
	require.NoError(t, err)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, Default().Server.URL, cfg.Server.URL)

	_, err = WriteDefault(dir)
	require.Error(t, err, "existing file is not overwritten")
}

func TestLoadCredentials_FileEnvAndFlag(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, CredentialsFileName, "auth: token\nusername: steve\ntoken: from-file\n")
	envFile := writeFile(t, dir, ".env", "VCTERM_SERVER=ws://dotenv:1/ws\n")
	t.Setenv("VCTERM_TOKEN", "from-env")
	t.Cleanup(func() { os.Unsetenv("VCTERM_SERVER") })

	c, err := LoadCredentials(p, envFile, filepath.Join(dir, "missing.env"))
	require.NoError(t, err)
	require.Equal(t, Credentials{Auth: "token", Username: "steve", Token: "from-env", Server: "ws://dotenv:1/ws"}, c)
	require.NoError(t, c.Validate())

	over, err := ParseCredFlag("offline,alex")
	require.NoError(t, err)
	c = c.Merge(over)
	require.Equal(t, "offline", c.Auth)
	require.Equal(t, "alex", c.Username)
	require.Equal(t, "from-env", c.Token)

	_, err = ParseCredFlag("a,b,c,d,e")
	require.Error(t, err)
}

func TestCredentials_Validate(t *testing.T) {
	require.Error(t, Credentials{Auth: "offline"}.Validate())
	require.Error(t, Credentials{Auth: "token", Username: "x"}.Validate())
	require.Error(t, Credentials{Auth: "magic", Username: "x"}.Validate())
	require.NoError(t, Credentials{Auth: "offline", Username: "x"}.Validate())
}
