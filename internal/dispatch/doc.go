// Package dispatch implements the request logic behind the /infogenai
// endpoint. A Dispatcher recognises the list_agents and system_prompt
// commands and treats every other input as article text that is handed to
// each processing agent in registry order. The combined raw outputs are
// written as one JSON object with ": " and ", " separators and non-ASCII
// characters escaped, a layout existing text-parsing callers depend on.
package dispatch
