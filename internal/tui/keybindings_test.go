package tui

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyMap_NoOverlappingKeys(t *testing.T) {
	km := defaultKeyMap()

	seen := map[string]string{}
	for _, group := range km.FullHelp() {
		for _, b := range group {
			for _, k := range b.Keys() {
				if owner, dup := seen[k]; dup {
					t.Errorf("key %q bound to both %q and %q", k, owner, b.Help().Desc)
				}
				seen[k] = b.Help().Desc
			}
		}
	}
}

func TestKeyMap_ShortHelpIsSubsetOfFullHelp(t *testing.T) {
	km := defaultKeyMap()

	full := map[string]bool{}
	for _, group := range km.FullHelp() {
		for _, b := range group {
			full[b.Help().Key] = true
		}
	}

	for _, b := range km.ShortHelp() {
		assert.True(t, full[b.Help().Key], "short help key %q missing from full help", b.Help().Key)
		assert.True(t, b.Enabled())
	}
}
