package n

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Kind specifies the type of Alert that gets sent to operators
type Kind uint32

const (
	// ignore zero value of iota
	_ Kind = iota
	// ThresholdBreached indicates the consecutive failures reached the threshold
	ThresholdBreached
	// Restarted indicates a remediation succeeded
	Restarted
	// RestartFailed indicates a remediation failed
	RestartFailed
	// Recovered indicates a probe succeeded after failures
	Recovered
)

// String returns a string representation of the current Kind
func (k Kind) String() string {
	switch k {
	case ThresholdBreached:
		return "ThresholdBreached"
	case Restarted:
		return "Restarted"
	case RestartFailed:
		return "RestartFailed"
	case Recovered:
		return "Recovered"
	default:
		return "<Unknown>"
	}
}

// ParseKind returns the Kind with the given name (case insensitive)
func ParseKind(input string) (Kind, error) {
	for _, k := range []Kind{ThresholdBreached, Restarted, RestartFailed, Recovered} {
		if strings.EqualFold(k.String(), strings.TrimSpace(input)) {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown alert kind %q", input)
}

// Alert is a record created at a state transition of a monitored service
type Alert struct {
	ID          uuid.UUID
	Kind        Kind
	ServiceName string
	Detail      string
	Timestamp   time.Time
}

// NewAlert creates an Alert with a fresh identifier
func NewAlert(kind Kind, serviceName, detail string, ts time.Time) Alert {
	return Alert{
		ID:          uuid.New(),
		Kind:        kind,
		ServiceName: serviceName,
		Detail:      detail,
		Timestamp:   ts,
	}
}

// String returns an string representation for the Alert
func (a Alert) String() string {
	return fmt.Sprintf(
		"Alert{id: %s, kind: %s, service: %s, detail: %q}",
		a.ID, a.Kind, a.ServiceName, a.Detail,
	)
}

// Message is the human readable rendition of an Alert that sinks deliver
type Message struct {
	Subject   string
	Body      string
	Recipient string
}

var headlines = map[Kind]string{
	ThresholdBreached: "is unhealthy",
	Restarted:         "was restarted",
	RestartFailed:     "could not be restarted",
	Recovered:         "recovered",
}

// Render builds the Message for an Alert addressed to the given recipient
func Render(a Alert, recipient string) Message {
	headline, ok := headlines[a.Kind]
	if !ok {
		headline = a.Kind.String()
	}
	var body strings.Builder
	body.WriteString(fmt.Sprintf("Service: %s\n", a.ServiceName))
	body.WriteString(fmt.Sprintf("Event: %s\n", a.Kind))
	body.WriteString(fmt.Sprintf("Time: %s\n", a.Timestamp.Format(time.RFC3339)))
	if a.Detail != "" {
		body.WriteString(fmt.Sprintf("Detail: %s\n", a.Detail))
	}
	body.WriteString(fmt.Sprintf("Alert ID: %s\n", a.ID))
	return Message{
		Subject:   fmt.Sprintf("[medic] %s %s", a.ServiceName, headline),
		Body:      body.String(),
		Recipient: recipient,
	}
}
