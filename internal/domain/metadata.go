package domain

import (
	"encoding/json"
	"fmt"
)

// Metadata is the queue-specific tagged payload carried by a Job. Each queue
// has one canonical shape, discriminated by Kind and validated once at the
// gateway boundary, never deeper in the pipeline.
type Metadata interface {
	Kind() string
	Validate() error
}

// ApprovalMetadata accompanies jobs on the approval queue.
type ApprovalMetadata struct {
	Evidence      []string `json:"evidence"`
	ReasonCode    string   `json:"reasonCode"`
	RiskLevel     string   `json:"riskLevel"`
	RequiresHuman bool     `json:"requiresHuman"`
}

func (ApprovalMetadata) Kind() string { return "approval" }

func (m ApprovalMetadata) Validate() error {
	switch m.RiskLevel {
	case "", "low", "medium", "high":
		return nil
	}
	return fmt.Errorf("riskLevel must be one of low, medium, high; got %q", m.RiskLevel)
}

// PublishMetadata accompanies jobs on the publish queue.
type PublishMetadata struct {
	SourceURLs    []string `json:"sourceUrls"`
	Claims        []string `json:"claims"`
	FactChecks    []string `json:"factChecks"`
	ToneChecks    []string `json:"toneChecks"`
	RequiresHuman bool     `json:"requiresHuman"`
}

func (PublishMetadata) Kind() string { return "publish" }

func (m PublishMetadata) Validate() error {
	if len(m.SourceURLs) == 0 {
		return fmt.Errorf("publish jobs require at least one source URL")
	}
	return nil
}

// Audience describes the resolved recipient set of an outbound send.
type Audience struct {
	Segment string `json:"segment"`
	Size    int    `json:"size"`
}

// EmailMetadata accompanies jobs on the email queue and is the input to the
// safe-send gate.
type EmailMetadata struct {
	Audience         Audience `json:"audienceDefinition"`
	TemplateKey      string   `json:"templateKey"`
	TemplateVersion  int      `json:"templateVersion"`
	TemplateCategory string   `json:"templateCategory"`
	SendingDomain    string   `json:"sendingDomain"`
	ThrottleMs       int      `json:"throttleMs"`
	UnsubscribeLink  bool     `json:"unsubscribeLink"`
	ComplianceFlags  []string `json:"complianceFlags"`
}

func (EmailMetadata) Kind() string { return "email" }

func (m EmailMetadata) Validate() error {
	if m.TemplateKey == "" {
		return fmt.Errorf("email jobs require templateKey")
	}
	if m.SendingDomain == "" {
		return fmt.Errorf("email jobs require sendingDomain")
	}
	if m.Audience.Size < 0 {
		return fmt.Errorf("audience size cannot be negative")
	}
	return nil
}

// GenericMetadata carries the payload for queues without a dedicated shape
// (notification, webhook, embedding).
type GenericMetadata struct {
	Data map[string]any `json:"data"`
}

func (GenericMetadata) Kind() string { return "generic" }

func (GenericMetadata) Validate() error { return nil }

// DecodeMetadata parses the submission payload into the canonical shape for
// queueName. A nil or empty payload is allowed for generic queues only.
func DecodeMetadata(queueName string, data json.RawMessage) (Metadata, error) {
	decode := func(v Metadata) (Metadata, error) {
		if len(data) > 0 {
			if err := json.Unmarshal(data, v); err != nil {
				return nil, fmt.Errorf("decode %s metadata: %w", queueName, err)
			}
		}
		m := deref(v)
		if err := m.Validate(); err != nil {
			return nil, err
		}
		return m, nil
	}

	switch queueName {
	case "approval":
		return decode(&ApprovalMetadata{})
	case "publish":
		return decode(&PublishMetadata{})
	case "email":
		return decode(&EmailMetadata{})
	default:
		var g GenericMetadata
		if len(data) > 0 {
			if err := json.Unmarshal(data, &g.Data); err != nil {
				return nil, fmt.Errorf("decode %s metadata: %w", queueName, err)
			}
		}
		return g, nil
	}
}

func deref(v Metadata) Metadata {
	switch t := v.(type) {
	case *ApprovalMetadata:
		return *t
	case *PublishMetadata:
		return *t
	case *EmailMetadata:
		return *t
	default:
		return v
	}
}
