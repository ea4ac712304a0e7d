package realtime

type SSEEvent string

const (
	SSEEventCourseEnrolled  SSEEvent = "courseEnrolled"
	SSEEventProgressChanged SSEEvent = "progressChanged"
	SSEEventPaymentRejected SSEEvent = "paymentRejected"
)

// SSEMessage is a push notification. Channel is the recipient user id; Data
// is a small cue, clients refetch authoritative state on receipt.
type SSEMessage struct {
	Channel string   `json:"channel"`
	Event   SSEEvent `json:"event"`
	Data    any      `json:"data,omitempty"`
}

// UserChannel is the channel every session of a user subscribes to.
func UserChannel(userID string) string { return userID }
