package plugin

import "context"

// Symbol is the name a shared object must export for the loader to find its agent.
const Symbol = "Agent"

// DefaultDescription is reported for agents that do not describe themselves.
const DefaultDescription = "No description provided"

// SourceManual marks records added through Register instead of a directory scan.
const SourceManual = "manual"

// Factory constructs a fresh agent instance.
type Factory func() (any, error)

// Describer is implemented by agents that carry a human readable description.
type Describer interface {
	Description() string
}

// Processor is implemented by agents that can evaluate article text. The
// returned value must be JSON serialisable.
type Processor interface {
	Process(ctx context.Context, article string) (any, error)
}

// Configurable agents receive their manifest config block once, right after construction.
type Configurable interface {
	Configure(cfg map[string]any) error
}

// Versioned agents report a semantic version checked against manifest constraints.
type Versioned interface {
	Version() string
}

// Record is one discovered agent.
type Record struct {
	Name        string
	Description string
	Version     string
	Source      string
	Instance    any
}

// Summary is the public view of a record used for listings and prompts.
type Summary struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Summary returns the listing view of the record.
func (r Record) Summary() Summary {
	return Summary{Name: r.Name, Description: r.Description}
}

// CanProcess reports whether the agent exposes a Process method.
func (r Record) CanProcess() bool {
	_, ok := r.Instance.(Processor)
	return ok
}
