package webdriver

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocatorConstructors(t *testing.T) {
	tests := []struct {
		name     string
		loc      Locator
		strategy string
		value    string
	}{
		{"css", ByCSS("#main > a"), StrategyCSS, "#main > a"},
		{"link text", ByLinkText("Next"), StrategyLinkText, "Next"},
		{"partial link text", ByPartialLinkText("Ne"), StrategyPartialLinkText, "Ne"},
		{"xpath", ByXPath("//a[@id='x']"), StrategyXPath, "//a[@id='x']"},
		{"tag name", ByTagName("iframe"), StrategyTagName, "iframe"},
		{"id", ByID("root_button"), StrategyCSS, `[id="root_button"]`},
		{"id escaped", ByID(`we"ird\id`), StrategyCSS, `[id="we\"ird\\id"]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.strategy, tt.loc.Strategy())
			assert.Equal(t, tt.value, tt.loc.Value())
			assert.False(t, tt.loc.IsZero())
		})
	}
}

func TestLocatorWireForm(t *testing.T) {
	data, err := json.Marshal(ByXPath("//button").request())
	require.NoError(t, err)
	assert.JSONEq(t, `{"using":"xpath","value":"//button"}`, string(data))
}

func TestLocatorString(t *testing.T) {
	assert.Equal(t, `css selector="#a"`, ByCSS("#a").String())
	assert.True(t, Locator{}.IsZero())
}
