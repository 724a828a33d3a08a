// Package notify fans new-message and failure events out to subscribers.
// The sync engine publishes; consumers (UI frontends, automation) subscribe.
package notify

import (
	gosync "sync"

	"github.com/sirupsen/logrus"

	"github.com/goforwarder2016/GfMail-sub000/pkg/types"
)

// Event is one delivery to subscribers
type Event struct {
	Account  types.Account
	Messages []types.Message

	// Failure fields; set when Messages is empty
	FailedAccountID int64
	FailureReason   string
}

// IsFailure reports whether the event carries a sync failure
func (e Event) IsFailure() bool {
	return e.FailureReason != ""
}

const subscriberBuffer = 16

// Hub distributes engine events. Subscribers that fall behind have events
// dropped rather than blocking the sync path.
type Hub struct {
	logger *logrus.Logger

	mu          gosync.Mutex
	subscribers []chan Event
}

// NewHub creates an event hub
func NewHub(logger *logrus.Logger) *Hub {
	if logger == nil {
		logger = logrus.New()
	}
	return &Hub{logger: logger}
}

// Subscribe registers a new consumer and returns its event channel along with
// an unsubscribe function
func (h *Hub) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	h.mu.Lock()
	h.subscribers = append(h.subscribers, ch)
	h.mu.Unlock()

	unsubscribe := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		for i, sub := range h.subscribers {
			if sub == ch {
				h.subscribers = append(h.subscribers[:i], h.subscribers[i+1:]...)
				close(ch)
				return
			}
		}
	}
	return ch, unsubscribe
}

// NotifyNewMessages publishes a batch of freshly mirrored messages
func (h *Hub) NotifyNewMessages(account types.Account, msgs []types.Message) {
	if len(msgs) == 0 {
		return
	}
	h.logger.WithFields(logrus.Fields{
		"account_id": account.ID,
		"address":    account.Address,
		"count":      len(msgs),
	}).Info("New messages mirrored")

	h.publish(Event{Account: account, Messages: msgs})
}

// NotifySyncFailure publishes a persistent sync failure
func (h *Hub) NotifySyncFailure(accountID int64, reason string) {
	h.logger.WithFields(logrus.Fields{
		"account_id": accountID,
		"reason":     reason,
	}).Error("Account sync failure")

	h.publish(Event{FailedAccountID: accountID, FailureReason: reason})
}

func (h *Hub) publish(event Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, sub := range h.subscribers {
		select {
		case sub <- event:
		default:
			h.logger.Warn("Dropping event for slow subscriber")
		}
	}
}
