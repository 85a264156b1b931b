package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"infogenai/pkg/plugin"
)

func TestBuildListsAgentsInOrder(t *testing.T) {
	text := Build([]plugin.Summary{
		{Name: "a", Description: "D1"},
		{Name: "b", Description: "D2"},
	})

	assert.True(t, strings.HasPrefix(text, "You are an assistant capable of analyzing news articles for trustworthiness. \n"))
	assert.Contains(t, text, "criteria:\n1. a - D1\n2. b - D2\n\nYour task is to:")
	assert.Equal(t, 1, strings.Count(text, " a - "))
	assert.Equal(t, 1, strings.Count(text, " b - "))
	assert.True(t, strings.HasSuffix(text, "bias detection, and linguistic analysis."))
}

func TestBuildWithoutAgents(t *testing.T) {
	text := Build(nil)
	assert.Contains(t, text, "criteria:\n\n\nYour task is to:")
	assert.Contains(t, text, "trustworthiness")
}

func TestAgentLines(t *testing.T) {
	assert.Equal(t, "", AgentLines(nil))
	assert.Equal(t, "1. solo - No description provided",
		AgentLines([]plugin.Summary{{Name: "solo", Description: plugin.DefaultDescription}}))
}
