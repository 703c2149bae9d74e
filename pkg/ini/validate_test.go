package ini

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const validDoc = `# Light tank
[core]
name: light_tank
class: CustomUnitMetadata
price: 100

[graphics]
image: light_tank.png

[movement]
movementType: LAND
`

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		wantValid bool
		wantError string
		wantKind  ErrorKind
		wantLine  int
	}{
		{
			name:      "well formed document",
			text:      validDoc,
			wantValid: true,
		},
		{
			name:      "empty string",
			text:      "",
			wantError: "Generated code is empty.",
			wantKind:  EmptyDocument,
		},
		{
			name:      "whitespace only",
			text:      "  \n\t\n",
			wantError: "Generated code is empty.",
			wantKind:  EmptyDocument,
		},
		{
			name:      "missing core section",
			text:      "[graphics]\nimage: tank.png\n",
			wantError: MsgMissingCore,
			wantKind:  StructuralError,
		},
		{
			name:      "missing name key",
			text:      "[core]\nprice: 100\n[graphics]\nimage: tank.png\n",
			wantError: MsgMissingName,
			wantKind:  StructuralError,
		},
		{
			name:      "missing graphics section",
			text:      "[core]\nname: tank\n",
			wantError: MsgMissingGraphic,
			wantKind:  StructuralError,
		},
		{
			name:      "missing image key",
			text:      "[core]\nname: tank\n[graphics]\nimage_wreak: dead.png\n",
			wantError: MsgMissingImage,
			wantKind:  StructuralError,
		},
		{
			name:      "name outside core does not count",
			text:      "[graphics]\nname: tank\nimage: tank.png\n[core]\nprice: 1\n",
			wantError: MsgMissingName,
			wantKind:  StructuralError,
		},
		{
			name:      "section and key names are case insensitive",
			text:      "[CORE]\nName: tank\n[Graphics]\nIMAGE: tank.png\n",
			wantValid: true,
		},
		{
			name:      "header and key on one line",
			text:      "# unit\n[core]name: x\n[graphics]\nimage: a.png\n",
			wantError: `Syntax error on line 2: "[core]name: x"`,
			wantKind:  SyntaxError,
			wantLine:  2,
		},
		{
			name:      "first syntax error wins over structural checks",
			text:      "price 100\nalso bad\n",
			wantError: `Syntax error on line 1: "price 100"`,
			wantKind:  SyntaxError,
			wantLine:  1,
		},
		{
			name:      "comments and padding are accepted",
			text:      "; note\n  [core]  \n  name :  tank\n// other\n[graphics]\nimage:tank.png",
			wantValid: true,
		},
		{
			name:      "windows line endings",
			text:      "[core]\r\nname: tank\r\n[graphics]\r\nimage: tank.png\r\n",
			wantValid: true,
		},
		{
			name:      "byte order mark",
			text:      "\ufeff[core]\nname: tank\n[graphics]\nimage: tank.png\n",
			wantValid: true,
		},
		{
			name:      "syntax error quoted without carriage return",
			text:      "[core]\r\nname: tank\r\noops\r\n",
			wantError: `Syntax error on line 3: "oops"`,
			wantKind:  SyntaxError,
			wantLine:  3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Validate(tt.text)
			assert.Equal(t, tt.wantValid, got.IsValid)
			assert.Equal(t, tt.wantError, got.Error)
			assert.Equal(t, tt.wantKind, got.Kind)
			assert.Equal(t, tt.wantLine, got.Line)
		})
	}
}

func TestValidate_MissingCoreNeverReportsSyntaxError(t *testing.T) {
	docs := []string{
		"[graphics]\nimage: a.png",
		"# only graphics\n\n[graphics]\nimage: a.png\n[movement]\nmovementType: AIR",
		"[Core_unit]\nname: x\n[graphics]\nimage: a.png",
	}
	for _, d := range docs {
		got := Validate(d)
		assert.False(t, got.IsValid)
		assert.Equal(t, MsgMissingCore, got.Error)
		assert.Equal(t, StructuralError, got.Kind)
	}
}
