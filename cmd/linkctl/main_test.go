package main

import (
	"bytes"
	"context"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type harness struct {
	t    *testing.T
	base []string
}

func newHarness(t *testing.T) *harness {
	dir := t.TempDir()
	return &harness{t: t, base: []string{
		"--db", filepath.Join(dir, "modernauth.db"),
		"--pepper", filepath.Join(dir, "pepper"),
		"--base-url", "https://auth.example.com",
	}}
}

func (h *harness) run(args ...string) (string, error) {
	h.t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), append(append([]string{}, h.base...), args...), &stdout, &stderr)
	return stdout.String(), err
}

var secretLine = regexp.MustCompile(`(?m)^secret: (\S+)$`)

func TestLinkctl_ServerLifecycle(t *testing.T) {
	h := newHarness(t)

	out, err := h.run("add", "bonk-network")
	require.NoError(t, err)
	first := secretLine.FindStringSubmatch(out)
	require.Len(t, first, 2)

	_, err = h.run("add", "bonk-network")
	require.Error(t, err)

	out, err = h.run("list")
	require.NoError(t, err)
	require.Contains(t, out, "bonk-network")

	out, err = h.run("reset-key", "bonk-network")
	require.NoError(t, err)
	second := secretLine.FindStringSubmatch(out)
	require.Len(t, second, 2)
	require.NotEqual(t, first[1], second[1])

	_, err = h.run("remove", "bonk-network")
	require.NoError(t, err)

	out, err = h.run("list")
	require.NoError(t, err)
	require.NotContains(t, out, "bonk-network")
}

func TestLinkctl_Invite(t *testing.T) {
	h := newHarness(t)

	_, err := h.run("add", "s1")
	require.NoError(t, err)

	out, err := h.run("--role", "manager", "--email", "mgr@example.com", "--server", "s1", "invite")
	require.NoError(t, err)
	require.Contains(t, out, "link: https://auth.example.com/invite?token=")

	_, err = h.run("--role", "manager", "--email", "mgr@example.com", "--server", "nope", "invite")
	require.Error(t, err)

	_, err = h.run("--role", "owner", "--email", "mgr@example.com", "invite")
	require.Error(t, err)
}

func TestLinkctl_GrantAdmin(t *testing.T) {
	h := newHarness(t)

	out, err := h.run("--email", "admin@example.com", "grant-admin", "google-oauth2|123")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(out, "administrator granted"))
}

func TestLinkctl_Usage(t *testing.T) {
	h := newHarness(t)

	_, err := h.run()
	require.ErrorContains(t, err, "missing command")

	_, err = h.run("frobnicate")
	require.ErrorContains(t, err, "unknown command")

	_, err = h.run("add")
	require.ErrorContains(t, err, "exactly one argument")
}
