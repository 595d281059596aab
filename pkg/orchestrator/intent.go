package orchestrator

import (
	"context"
	"strings"

	"nimbus-hq/ganymede/pkg/admission"
)

// Classification is the result of intent analysis on an inbound message.
type Classification struct {
	// Intent is the label attached to the request trace.
	Intent string

	// Strategy hints how the request should be handled downstream.
	Strategy string

	// Priority, when non-empty, overrides the caller-supplied priority.
	Priority admission.Priority
}

// Classifier analyzes an inbound message. Implementations must be pure:
// no model calls, no I/O, deterministic for a given message.
type Classifier interface {
	Classify(ctx context.Context, message string) (Classification, error)
}

// intentRule maps trigger substrings to a classification.
type intentRule struct {
	triggers []string
	result   Classification
}

// KeywordClassifier is the default classifier: case-insensitive substring
// rules, first match wins.
type KeywordClassifier struct {
	rules []intentRule
}

// NewKeywordClassifier builds the default rule set.
func NewKeywordClassifier() *KeywordClassifier {
	return &KeywordClassifier{
		rules: []intentRule{
			{
				triggers: []string{"refund", "money back", "charged twice"},
				result:   Classification{Intent: "refund_request", Strategy: "escalate", Priority: admission.PriorityHigh},
			},
			{
				triggers: []string{"complaint", "unacceptable", "terrible"},
				result:   Classification{Intent: "complaint", Strategy: "escalate", Priority: admission.PriorityUrgent},
			},
			{
				triggers: []string{"cancel my order", "cancel order", "cancellation"},
				result:   Classification{Intent: "cancellation", Strategy: "single_agent", Priority: admission.PriorityHigh},
			},
			{
				triggers: []string{"where is my order", "order status", "tracking", "delivery"},
				result:   Classification{Intent: "order_status", Strategy: "single_agent", Priority: admission.PriorityMedium},
			},
		},
	}
}

// Classify implements Classifier.
func (c *KeywordClassifier) Classify(ctx context.Context, message string) (Classification, error) {
	lower := strings.ToLower(message)
	for _, rule := range c.rules {
		for _, trigger := range rule.triggers {
			if strings.Contains(lower, trigger) {
				return rule.result, nil
			}
		}
	}
	return Classification{Intent: "general", Strategy: "single_agent"}, nil
}
