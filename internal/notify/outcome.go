package notify

// Channel identifies which delivery channel an outcome belongs to.
type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelTelegram Channel = "telegram"
)

type Status string

const (
	StatusSent   Status = "sent"
	StatusFailed Status = "failed"
	// StatusSkipped means the channel was deliberately not attempted, e.g.
	// no Telegram chat is registered for the owner. Not a failure.
	StatusSkipped Status = "skipped"
)

// Outcome records one channel attempt for one reminder within one cycle.
// Outcomes are transient: they exist for logging and for the manual-send
// response, and are discarded after the cycle.
type Outcome struct {
	Channel Channel
	Status  Status
	Err     error
}
