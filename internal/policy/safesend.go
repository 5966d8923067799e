// Package policy implements the safe-send gate for outbound email jobs.
package policy

import (
	"fmt"
	"time"

	"github.com/hedgeco/agentkernel/internal/domain"
)

// Outcome is the gate's verdict for one send request.
type Outcome string

const (
	Send             Outcome = "send"
	QueueForApproval Outcome = "queue_for_approval"
	Block            Outcome = "block"
)

// ApprovalLevel grades how senior a human reviewer must be.
type ApprovalLevel string

const (
	LevelLow    ApprovalLevel = "low"
	LevelMedium ApprovalLevel = "medium"
	LevelHigh   ApprovalLevel = "high"
)

func levelRank(l ApprovalLevel) int {
	switch l {
	case LevelHigh:
		return 3
	case LevelMedium:
		return 2
	case LevelLow:
		return 1
	}
	return 0
}

// Decision is the gate's full answer. Reasons are ordered by rule
// evaluation; when the decision is not Send the job's effective queue
// changes from email to approval.
type Decision struct {
	Outcome           Outcome
	Reasons           []string
	ApprovalRequired  bool
	ApprovalLevel     ApprovalLevel
	EstimatedSendTime *time.Time
}

// flagSeverity ranks compliance flags. Flags absent from the table default
// to low; the severest flag present sets the approval level.
var flagSeverity = map[string]ApprovalLevel{
	"regulatory_hold":     LevelHigh,
	"legal_review":        LevelHigh,
	"finra_communication": LevelHigh,
	"new_sending_domain":  LevelMedium,
	"content_flagged":     LevelMedium,
	"first_send":          LevelLow,
}

// Gate evaluates send requests against the ordered safe-send rules.
type Gate struct {
	// AudienceThreshold is the resolved audience size above which any send
	// needs human approval regardless of compliance flags.
	AudienceThreshold int
}

func NewGate(audienceThreshold int) *Gate {
	if audienceThreshold <= 0 {
		audienceThreshold = 5000
	}
	return &Gate{AudienceThreshold: audienceThreshold}
}

// Evaluate runs the rules in order. A block short-circuits; otherwise
// decisions accumulate to the strictest applicable outcome.
func (g *Gate) Evaluate(m domain.EmailMetadata) Decision {
	// Rule 1: marketing template without an unsubscribe link is never sent.
	if m.TemplateCategory == "marketing" && !m.UnsubscribeLink {
		return Decision{
			Outcome: Block,
			Reasons: []string{fmt.Sprintf("template %q: missing unsubscribe link on marketing category", m.TemplateKey)},
		}
	}

	d := Decision{Outcome: Send}

	// Rule 2: any compliance flag escalates to approval, level set by the
	// most severe flag.
	if len(m.ComplianceFlags) > 0 {
		level := LevelLow
		for _, f := range m.ComplianceFlags {
			if l, ok := flagSeverity[f]; ok && levelRank(l) > levelRank(level) {
				level = l
			}
		}
		d.escalate(level, fmt.Sprintf("compliance flags present: %v", m.ComplianceFlags))
	}

	// Rule 3: volume control. Large audiences always get a human look.
	if m.Audience.Size > g.AudienceThreshold {
		d.escalate(LevelMedium, fmt.Sprintf("audience size %d exceeds threshold %d", m.Audience.Size, g.AudienceThreshold))
	}

	if d.Outcome == Send {
		t := estimateSendTime(m)
		d.EstimatedSendTime = &t
	}
	return d
}

// escalate raises the decision to queue_for_approval, keeping the highest
// level seen so far.
func (d *Decision) escalate(level ApprovalLevel, reason string) {
	d.Outcome = QueueForApproval
	d.ApprovalRequired = true
	if levelRank(level) > levelRank(d.ApprovalLevel) {
		d.ApprovalLevel = level
	}
	d.Reasons = append(d.Reasons, reason)
}

// estimateSendTime projects when a throttled send of the full audience
// completes.
func estimateSendTime(m domain.EmailMetadata) time.Time {
	throttle := time.Duration(m.ThrottleMs) * time.Millisecond
	if throttle <= 0 {
		throttle = 50 * time.Millisecond
	}
	return time.Now().Add(time.Duration(m.Audience.Size) * throttle)
}
