package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit(t *testing.T) {
	verb, args, err := Split("weather san francisco")
	require.NoError(t, err)
	assert.Equal(t, "weather", verb)
	assert.Equal(t, []string{"san", "francisco"}, args)

	verb, args, err = Split(`issue "broken thing" "long description here"`)
	require.NoError(t, err)
	assert.Equal(t, "issue", verb)
	assert.Equal(t, []string{"broken thing", "long description here"}, args)

	verb, args, err = Split("")
	require.NoError(t, err)
	assert.Equal(t, "", verb)
	assert.Empty(t, args)

	_, _, err = Split(`calc "unterminated`)
	assert.Error(t, err)
}

func TestRequestString(t *testing.T) {
	req := &Request{Options: map[string]interface{}{
		"key":    "secret",
		"number": 42,
	}}
	assert.Equal(t, "secret", req.String("key"))
	assert.Equal(t, "", req.String("number"))
	assert.Equal(t, "", req.String("missing"))
}

func TestIsDigits(t *testing.T) {
	assert.True(t, isDigits("94103"))
	assert.False(t, isDigits("9410a"))
	assert.False(t, isDigits(""))
	assert.False(t, isDigits("new york"))
}

func TestLabelList(t *testing.T) {
	assert.Equal(t, []string{"bug", "irc"}, labelList([]interface{}{"bug", "irc"}))
	assert.Nil(t, labelList([]interface{}{1, 2}))
	assert.Nil(t, labelList("bug"))
	assert.Nil(t, labelList(nil))
}
