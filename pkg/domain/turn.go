package domain

// InboundMessage is a gateway message event, normalized to what the
// conversation layer needs.
type InboundMessage struct {
	ThreadID     int64
	AuthorID     int64
	AuthorName   string
	Text         string
	ImageURLs    []string
	AddressesBot bool
	FromSelf     bool
}

// TurnResult is the outcome of one orchestrated turn. ResponseMessages are
// transport-safe chunks, each deliverable as a standalone message.
type TurnResult struct {
	ResponseMessages []string
	InputTokens      int
	OutputTokens     int
}
