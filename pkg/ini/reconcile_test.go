package ini

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconcile_OverwritesExistingName(t *testing.T) {
	in := "[core]\nname: baz\nprice: 100\n[graphics]\nimage: tank.png\n"

	out := Reconcile(in, "foo_bar")

	inLines := strings.Split(in, "\n")
	outLines := strings.Split(out, "\n")
	require.Len(t, outLines, len(inLines))
	for i := range inLines {
		if i == 1 {
			assert.Equal(t, "name: foo_bar", outLines[i])
			continue
		}
		assert.Equal(t, inLines[i], outLines[i], "line %d changed", i+1)
	}

	v, ok := Value(out, "core", "name")
	require.True(t, ok)
	assert.Equal(t, "foo_bar", v)
}

func TestReconcile_InsertsMissingName(t *testing.T) {
	in := "[core]\nprice: 100\n[graphics]\nimage: tank.png"

	out := Reconcile(in, "light_tank")

	assert.Equal(t, "[core]\nname: light_tank\nprice: 100\n[graphics]\nimage: tank.png", out)
	v, _ := Value(out, "core", "price")
	assert.Equal(t, "100", v)
	assert.True(t, Validate(out).IsValid)
}

func TestReconcile_PrependsCoreWhenMissing(t *testing.T) {
	in := "[graphics]\nimage: tank.png\n"

	out := Reconcile(in, "light_tank")

	assert.Equal(t, "[core]\nname: light_tank\n\n[graphics]\nimage: tank.png\n", out)
	assert.True(t, strings.HasSuffix(out, in))
}

func TestReconcile_OnlyLooksInsideCore(t *testing.T) {
	in := "[core]\nprice: 5\n[graphics]\nname: other\nimage: a.png"

	out := Reconcile(in, "scout")

	assert.Equal(t, "[core]\nname: scout\nprice: 5\n[graphics]\nname: other\nimage: a.png", out)
}

func TestReconcile_CaseInsensitiveHeaderAndKey(t *testing.T) {
	out := Reconcile("  [CORE] \nNAME : Tank\n", "tank")
	assert.Equal(t, "  [CORE] \nname: tank\n", out)
}

func TestReconcile_Idempotent(t *testing.T) {
	inputs := []string{
		"",
		"[core]\nname: baz\n[graphics]\nimage: a.png",
		"[core]\nprice: 100\n[graphics]\nimage: tank.png\n",
		"[graphics]\nimage: tank.png",
		"garbage line\n[core]name: x",
		"[core]\r\nname:   spaced   \r\n",
	}
	for _, in := range inputs {
		once := Reconcile(in, "light_tank")
		twice := Reconcile(once, "light_tank")
		assert.Equal(t, once, twice, "input %q", in)
	}
}

func TestReconcile_ScenarioFromMissingName(t *testing.T) {
	in := "[core]\nprice: 100\n[graphics]\nimage: tank.png"

	out := Reconcile(in, "light_tank")

	price, ok := Value(out, "core", "price")
	require.True(t, ok)
	assert.Equal(t, "100", price)
	name, ok := Value(out, "core", "name")
	require.True(t, ok)
	assert.Equal(t, "light_tank", name)

	res := Validate(out)
	assert.True(t, res.IsValid, res.Error)
}

func TestReconcile_KeepsLineTerminators(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "overwrite",
			in:   "[core]\r\nname: baz\r\nprice: 100\r\n[graphics]\r\nimage: tank.png\r\n",
			want: "[core]\r\nname: tank\r\nprice: 100\r\n[graphics]\r\nimage: tank.png\r\n",
		},
		{
			name: "insert",
			in:   "[core]\r\nprice: 100\r\n",
			want: "[core]\r\nname: tank\r\nprice: 100\r\n",
		},
		{
			name: "prepend",
			in:   "[graphics]\r\nimage: tank.png\r\n",
			want: "[core]\r\nname: tank\r\n\r\n[graphics]\r\nimage: tank.png\r\n",
		},
		{
			name: "mixed endings are left alone",
			in:   "[core]\nname: baz\r\nprice: 1\n",
			want: "[core]\nname: tank\r\nprice: 1\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Reconcile(tt.in, "tank"))
		})
	}
}

func TestReconcile_ByteOrderMark(t *testing.T) {
	out := Reconcile("\ufeff[core]\nname: baz\n[graphics]\nimage: a.png\n", "tank")

	assert.Equal(t, "[core]\nname: tank\n[graphics]\nimage: a.png\n", out)
	assert.Equal(t, 1, strings.Count(out, "[core]"))
}
