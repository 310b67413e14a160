package extract

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransfer(t *testing.T) {
	e := New("reputest")
	cases := map[string]Intent{
		"send 100 #megajoules to @alice":            {Kind: Transfer, Handle: "alice", Amount: 100},
		"Send 50 #megajoules to bob":                {Kind: Transfer, Handle: "bob", Amount: 50},
		"hey SEND 7 #MegaJoules TO @Carol_99 thx":   {Kind: Transfer, Handle: "Carol_99", Amount: 7},
		"send 5 #megajoules to @dave #gmgv":         {Kind: Transfer, Handle: "dave", Amount: 5},
		"send   12\n#megajoules   to   @erin":       {Kind: Transfer, Handle: "erin", Amount: 12},
	}
	for in, want := range cases {
		assert.Equal(t, want, e.Extract(in, Context{}), in)
	}
}

func TestTransferRejectsNonPositiveOrOverlongHandle(t *testing.T) {
	e := New("reputest")
	assert.Equal(t, NoIntent, e.Extract("send 0 #megajoules to @alice", Context{}).Kind)
	assert.Equal(t, NoIntent, e.Extract("send -3 #megajoules to @alice", Context{}).Kind)
	assert.Equal(t, NoIntent, e.Extract("send 3 #megajoules to @averyveryverylonghandle", Context{}).Kind)
}

func TestVibeDeclaration(t *testing.T) {
	e := New("reputest")
	cases := map[string]string{
		"@alice #gmgv":                           "alice",
		"alice #gmgv":                            "alice",
		"@alice#gmgv":                            "alice",
		"big thanks to @Bob_1 #GMGV today":       "Bob_1",
		"good vibes #gmgv and also @carol #gmgv": "carol",
	}
	for in, want := range cases {
		got := e.Extract(in, Context{})
		assert.Equal(t, Intent{Kind: VibeDeclaration, Handle: want}, got, in)
	}
}

func TestVibeDeclarationExclusions(t *testing.T) {
	e := New("reputest")
	assert.Equal(t, NoIntent, e.Extract("good vibes #gmgv", Context{}).Kind)
	assert.Equal(t, NoIntent, e.Extract("@alice #gmgv", Context{ExcludeHandle: "alice"}).Kind)
	assert.Equal(t, NoIntent, e.Extract("@ALICE #gmgv", Context{ExcludeHandle: "@alice"}).Kind)
	assert.Equal(t, NoIntent, e.Extract("@reputest #gmgv", Context{}).Kind)
	assert.Equal(t, NoIntent, e.Extract("#summer #gmgv", Context{}).Kind)
	assert.Equal(t, NoIntent, e.Extract("mail@alice #gmgv", Context{}).Kind)

	got := e.Extract("@alice @bob #gmgv", Context{ExcludeHandle: "alice"})
	assert.Equal(t, Intent{Kind: VibeDeclaration, Handle: "bob"}, got)
}

func TestQueries(t *testing.T) {
	e := New("reputest")
	assert.Equal(t, Intent{Kind: FollowQuery, Handle: "alice"}, e.Extract("@reputest @alice following?", Context{}))
	assert.Equal(t, Intent{Kind: FollowQuery, Handle: "alice"}, e.Extract("@reputest alice following ?", Context{}))
	assert.Equal(t, Intent{Kind: DirectQuery, Handle: "alice"}, e.Extract("@reputest @alice?", Context{}))
	assert.Equal(t, Intent{Kind: DirectQuery, Handle: "bob"}, e.Extract("@Reputest bob ?", Context{}))

	for _, in := range []string{
		"@reputest what?",
		"@reputest who ?",
		"@reputest reputest?",
		"@reputest alice",
		"hey @reputest alice?",
		"@reputest alice and bob?",
	} {
		assert.Equal(t, NoIntent, e.Extract(in, Context{}).Kind, in)
	}
}

func TestOtherBotHandle(t *testing.T) {
	e := New("vibecheck")
	assert.Equal(t, DirectQuery, e.Extract("@vibecheck alice?", Context{}).Kind)
	assert.Equal(t, NoIntent, e.Extract("@reputest alice?", Context{}).Kind)
}

func TestOversizedInputIsRejected(t *testing.T) {
	e := New("reputest")
	in := "@alice #gmgv " + strings.Repeat("x", MaxInputLen)
	assert.Equal(t, NoIntent, e.Extract(in, Context{}).Kind)

	// under the limit in characters, over it in bytes
	emoji := strings.Repeat("🙂", 150) + " @alice #gmgv"
	assert.Greater(t, len(emoji), MaxInputLen)
	assert.Equal(t, Intent{Kind: VibeDeclaration, Handle: "alice"}, e.Extract(emoji, Context{}))
}

func TestCustomMatcherOrder(t *testing.T) {
	// vibe before transfer: the first matching rule wins
	e := NewWith(newVibeMatcher("reputest"), newTransferMatcher())
	got := e.Extract("send 5 #megajoules to @dave and @erin #gmgv", Context{})
	assert.Equal(t, Intent{Kind: VibeDeclaration, Handle: "erin"}, got)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "vibe", VibeDeclaration.String())
	assert.Equal(t, "transfer(3 -> bob)", Intent{Kind: Transfer, Handle: "bob", Amount: 3}.String())
	assert.Equal(t, "none", Intent{}.String())
}
