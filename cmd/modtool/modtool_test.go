package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validUnit = `[core]
name: tank
class: CustomUnitMetadata
price: 300
maxHp: 400
techLevel: 1
radius: 12
buildSpeed: 1

[graphics]
image: tank.png

[movement]
movementType: LAND
`

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestValidateCmd(t *testing.T) {
	good := writeFile(t, "tank.ini", validUnit)
	bad := writeFile(t, "broken.ini", "[core]\nname tank\n")

	out, err := run(t, "validate", good)
	require.NoError(t, err)
	assert.Equal(t, good+": ok\n", out)

	out, err = run(t, "validate", good, bad)
	assert.ErrorIs(t, err, errInvalidFiles)
	assert.Contains(t, out, bad+": invalid (line 2)")

	_, err = run(t, "validate", filepath.Join(t.TempDir(), "missing.ini"))
	assert.Error(t, err)
}

func TestValidateCmd_LintFindings(t *testing.T) {
	path := writeFile(t, "tank.ini", strings.Replace(validUnit, "LAND", "LNAD", 1))

	out, err := run(t, "validate", path)
	require.NoError(t, err, "findings alone do not fail without --strict")
	assert.Contains(t, out, "did you mean LAND?")

	_, err = run(t, "validate", "--strict", path)
	assert.ErrorIs(t, err, errInvalidFiles)

	out, err = run(t, "validate", "--json", path)
	require.NoError(t, err)
	var reports []fileReport
	require.NoError(t, json.Unmarshal([]byte(out), &reports))
	require.Len(t, reports, 1)
	assert.True(t, reports[0].Result.IsValid)
	assert.NotEmpty(t, reports[0].Findings)
}

func TestReconcileCmd(t *testing.T) {
	path := writeFile(t, "Heavy Tank.ini", strings.Replace(validUnit, "name: tank", "name: wrong", 1))

	out, err := run(t, "reconcile", path)
	require.NoError(t, err)
	assert.Contains(t, out, "name: heavy_tank\n")

	out, err = run(t, "reconcile", "--unit", "scout", "--diff", path)
	require.NoError(t, err)
	assert.Contains(t, out, "- name: wrong\n")
	assert.Contains(t, out, "+ name: scout\n")

	out, err = run(t, "reconcile", "--unit", "scout", "-w", path)
	require.NoError(t, err)
	assert.Contains(t, out, "name set to scout")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "name: scout\n")

	out, err = run(t, "reconcile", "--unit", "scout", "-w", path)
	require.NoError(t, err)
	assert.Contains(t, out, "unchanged")
}

func TestRulesCmd(t *testing.T) {
	out, err := run(t, "rules", "--units", "tank,scout")
	require.NoError(t, err)
	assert.Contains(t, out, "LAND")
	assert.Contains(t, out, "tank")

	_, err = run(t, "rules", "--rules", filepath.Join(t.TempDir(), "none.yaml"))
	assert.Error(t, err)
}

func TestEnqueue(t *testing.T) {
	mr := miniredis.RunT(t)

	var out bytes.Buffer
	err := enqueue(context.Background(), &out, &enqueueOptions{redisURL: mr.Addr(), kind: "generate", autoFix: true}, "a scout bike")
	require.NoError(t, err)
	assert.Contains(t, out.String(), "queue depth: 1")

	list, err := mr.List("requests")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Contains(t, list[0], `"message":"a scout bike"`)

	err = enqueue(context.Background(), &out, &enqueueOptions{redisURL: mr.Addr(), kind: "generate",
		sessionID: "00000000-0000-0000-0000-000000000001"}, "x")
	assert.ErrorContains(t, err, "not found")

	err = enqueue(context.Background(), &out, &enqueueOptions{redisURL: mr.Addr(), kind: "delete"}, "x")
	assert.ErrorContains(t, err, "unknown request type")
}
