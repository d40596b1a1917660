// Package cut implements atomic batches of registry mutations: validation
// of add/replace/remove entries against the current composition, and
// all-or-nothing application inside a single store transaction.
package cut

import (
	"encoding/json"
	"fmt"

	"github.com/tessera-dev/tessera/internal/opid"
)

// Action is the mutation kind of one cut entry.
type Action string

const (
	// Add assigns currently-unowned operations to a deployed module.
	Add Action = "add"
	// Replace reassigns currently-owned operations to a deployed module.
	Replace Action = "replace"
	// Remove releases currently-owned operations. By convention a Remove
	// entry names the null address, not a destination module.
	Remove Action = "remove"
)

// Entry is one registry mutation within a batch.
type Entry struct {
	Module     opid.Address       `json:"module"`
	Action     Action             `json:"action"`
	Operations []opid.OperationID `json:"operations"`
}

// InitCall is the optional one-shot initializer invoked inside the same
// transaction as the batch it accompanies.
type InitCall struct {
	Target  opid.Address `json:"target"`
	Payload []byte       `json:"payload"`
}

// Cut is an atomic batch of registry mutations plus an optional
// initializer. ID is assigned at submission.
type Cut struct {
	ID          string    `json:"id"`
	Entries     []Entry   `json:"entries"`
	Initializer *InitCall `json:"initializer,omitempty"`
}

// MarshalPayload serializes the cut for the cuts table.
func (c Cut) MarshalPayload() (string, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("marshal cut payload: %w", err)
	}
	return string(b), nil
}

// UnmarshalPayload restores a cut from its persisted payload.
func UnmarshalPayload(payload string) (Cut, error) {
	var c Cut
	if err := json.Unmarshal([]byte(payload), &c); err != nil {
		return Cut{}, fmt.Errorf("unmarshal cut payload: %w", err)
	}
	return c, nil
}

// canonicalMap renders the cut for canonical-JSON digests and the change
// journal. Initializer payloads appear hex-encoded.
func (c Cut) canonicalMap() map[string]any {
	entries := make([]any, len(c.Entries))
	for i, e := range c.Entries {
		ops := make([]any, len(e.Operations))
		for j, op := range e.Operations {
			ops[j] = op
		}
		entries[i] = map[string]any{
			"module":     e.Module,
			"action":     string(e.Action),
			"operations": ops,
		}
	}
	m := map[string]any{
		"id":      c.ID,
		"entries": entries,
	}
	if c.Initializer != nil {
		m["initializer"] = map[string]any{
			"target":  c.Initializer.Target,
			"payload": fmt.Sprintf("%x", c.Initializer.Payload),
		}
	}
	return m
}

// ChangeRecord returns the canonical JSON change record for the batch:
// one record listing every entry applied.
func (c Cut) ChangeRecord() (string, error) {
	b, err := opid.MarshalCanonical(c.canonicalMap())
	if err != nil {
		return "", fmt.Errorf("change record: %w", err)
	}
	return string(b), nil
}
