// File: internal/browser/locator_test.go
package browser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLocator(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantKind LocatorKind
		wantExpr string
		wantErr  bool
	}{
		{name: "explicit css", input: `css=input[type="email"]`, wantKind: ByCSS, wantExpr: `input[type="email"]`},
		{name: "explicit xpath", input: "xpath=html/body/div/form/button", wantKind: ByXPath, wantExpr: "html/body/div/form/button"},
		{name: "explicit text", input: "text=Sign In", wantKind: ByText, wantExpr: "Sign In"},
		{name: "bare absolute xpath", input: "/html/body/div", wantKind: ByXPath, wantExpr: "/html/body/div"},
		{name: "bare relative xpath", input: "html/body/div[2]/input", wantKind: ByXPath, wantExpr: "html/body/div[2]/input"},
		{name: "bare css selector", input: "button.primary", wantKind: ByCSS, wantExpr: "button.primary"},
		{name: "text with equals sign", input: "text=a = b", wantKind: ByText, wantExpr: "a = b"},
		{name: "empty", input: "", wantErr: true},
		{name: "blank expression", input: "css=   ", wantErr: true},
		{name: "whitespace only", input: "   ", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			loc, err := ParseLocator(tc.input)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantKind, loc.Kind)
			assert.Equal(t, tc.wantExpr, loc.Expr)
			assert.Equal(t, 0, loc.Index)
		})
	}
}

func TestLocatorWithIndex(t *testing.T) {
	loc, err := ParseLocator("text=Apply")
	require.NoError(t, err)

	indexed := loc.WithIndex(2)
	assert.Equal(t, 2, indexed.Index)
	// The receiver is unchanged.
	assert.Equal(t, 0, loc.Index)
}

func TestLocatorString(t *testing.T) {
	loc, err := ParseLocator("xpath=html/body/div")
	require.NoError(t, err)
	assert.Equal(t, "xpath=html/body/div", loc.String())

	assert.Contains(t, loc.WithIndex(3).String(), "[3]")
}

func TestMatchesJSPerKind(t *testing.T) {
	css, err := ParseLocator("css=button.primary")
	require.NoError(t, err)
	assert.Contains(t, css.matchesJS(), "querySelectorAll")

	xp, err := ParseLocator("xpath=html/body/div")
	require.NoError(t, err)
	assert.Contains(t, xp.matchesJS(), "document.evaluate")

	txt, err := ParseLocator("text=Sign In")
	require.NoError(t, err)
	assert.Contains(t, txt.matchesJS(), `"Sign In"`)
}

func TestMatchesJSEscapesExpression(t *testing.T) {
	// A hostile expression must arrive as a JS string literal, not as code.
	loc, err := ParseLocator(`text="];alert(1);//`)
	require.NoError(t, err)

	js := loc.matchesJS()
	assert.Contains(t, js, jsString(loc.Expr), "expression must be embedded as an escaped literal")
	assert.True(t, strings.Contains(js, `\"`), "quotes must be escaped")
}
