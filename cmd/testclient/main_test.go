package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dasmlab/babel/pkg/aitask"
)

func TestParseHistory(t *testing.T) {
	history, err := parseHistory([]string{"other:Hola: ¿qué tal?", "user:Bien"})
	require.NoError(t, err)
	assert.Equal(t, []aitask.ReplyContextMessage{
		{Role: aitask.RoleOther, Text: "Hola: ¿qué tal?"},
		{Role: aitask.RoleUser, Text: "Bien"},
	}, history)

	_, err = parseHistory([]string{"no separator"})
	assert.Error(t, err)

	_, err = parseHistory([]string{"bot:hi"})
	assert.Error(t, err)
}
