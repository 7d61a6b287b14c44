// File: internal/browser/actions_test.go
package browser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJSString(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`plain`, `"plain"`},
		{`with "quotes"`, `"with \"quotes\""`},
		{"line\nbreak", `"line\nbreak"`},
		{`back\slash`, `"back\\slash"`},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, jsString(tc.in))
	}
}
