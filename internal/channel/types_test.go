package channel

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseDirective(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		want Directive
	}{
		{name: "begin", text: "/start", want: Directive{Kind: DirectiveBegin}},
		{name: "begin with param", text: "/start project-7", want: Directive{Kind: DirectiveBegin, Param: "project-7"}},
		{name: "connect alias", text: "/connect", want: Directive{Kind: DirectiveBegin}},
		{name: "case insensitive", text: "/START", want: Directive{Kind: DirectiveBegin}},
		{name: "reset", text: "/reset", want: Directive{Kind: DirectiveReset}},
		{name: "reset ignores trailing words", text: "/reset please", want: Directive{Kind: DirectiveReset}},
		{name: "surrounding whitespace", text: "  /start  abc  ", want: Directive{Kind: DirectiveBegin, Param: "abc"}},
		{name: "ordinary content", text: "hello there", want: Directive{}},
		{name: "directive not at start", text: "please /reset", want: Directive{}},
		{name: "empty", text: "", want: Directive{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ParseDirective(tt.text))
		})
	}
}
