// Package prompt renders the static system prompt that describes the gateway
// and the agents it dispatches to.
package prompt

import (
	"fmt"
	"strings"

	"infogenai/pkg/plugin"
)

const (
	header = "You are an assistant capable of analyzing news articles for trustworthiness. \n" +
		"You will use the following agents to evaluate the article based on different criteria:\n"

	footer = "\n\nYour task is to:\n" +
		"1. Provide the article to all agents.\n" +
		"2. Collect RAG (Retrieval-Augmented Generation) data from each agent.\n" +
		"3. Combine the RAG data and analyze it to generate a trustworthiness score and detailed explanation.\n" +
		"\n" +
		"Always ensure the analysis is comprehensive and includes metadata evaluation, factual consistency, bias detection, and linguistic analysis."
)

// Build 根据代理列表生成系统提示词，代理按传入顺序编号。
func Build(agents []plugin.Summary) string {
	var b strings.Builder
	b.WriteString(header)
	b.WriteString(AgentLines(agents))
	b.WriteString(footer)
	return strings.TrimSpace(b.String())
}

// AgentLines 返回 "N. name - description" 形式的编号列表。
func AgentLines(agents []plugin.Summary) string {
	lines := make([]string, 0, len(agents))
	for i, agent := range agents {
		lines = append(lines, fmt.Sprintf("%d. %s - %s", i+1, agent.Name, agent.Description))
	}
	return strings.Join(lines, "\n")
}
