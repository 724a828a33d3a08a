package sync

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/goforwarder2016/GfMail-sub000/pkg/types"
)

const defaultFetchBatchSize = 50

// FetchWindow is a 1-based inclusive server-side sequence range, where 1 is
// the oldest message in the folder
type FetchWindow struct {
	Start uint32
	End   uint32
	Count int
}

// ComputeFetchWindow bounds an incremental fetch by the difference between
// the server's count and the local mirror's count. A folder with remote
// messages but an empty mirror forces a full-window fetch even though the
// naive delta might be zero or negative: providers that previously rejected
// the folder report a non-zero count the first time it becomes reachable,
// and the mirror must catch up.
func ComputeFetchWindow(remoteCount, localCount, offset int) FetchWindow {
	newCount := remoteCount - localCount
	if newCount < 0 {
		newCount = 0
	}
	if remoteCount > 0 && localCount == 0 {
		newCount = remoteCount
	}
	if newCount == 0 {
		return FetchWindow{}
	}

	start := remoteCount - offset - newCount + 1
	if start < 1 {
		start = 1
	}
	end := remoteCount - offset
	if end < 1 {
		end = 1
	}

	return FetchWindow{Start: uint32(start), End: uint32(end), Count: newCount}
}

// Fetcher retrieves new messages for one folder through an open session and
// deduplicates them against the message store by Message-ID.
type Fetcher struct {
	session   ProtocolSession
	messages  MessageStore
	logger    *logrus.Logger
	batchSize uint32
}

// NewFetcher creates a fetcher bound to a session and message store
func NewFetcher(session ProtocolSession, messages MessageStore, logger *logrus.Logger) *Fetcher {
	if logger == nil {
		logger = logrus.New()
	}
	return &Fetcher{
		session:   session,
		messages:  messages,
		logger:    logger,
		batchSize: defaultFetchBatchSize,
	}
}

// FetchIncremental retrieves messages the local mirror is missing for the
// folder, newest first. Messages whose Message-ID is already stored are
// silently skipped. When the window is empty the folder is not opened at all.
func (f *Fetcher) FetchIncremental(ctx context.Context, folder types.LocalFolder, remoteCount, localCount int) ([]types.Message, error) {
	window := ComputeFetchWindow(remoteCount, localCount, 0)
	if window.Count == 0 {
		return nil, nil
	}

	f.logger.WithFields(logrus.Fields{
		"folder": folder.FullName,
		"start":  window.Start,
		"end":    window.End,
	}).Debug("Fetching incremental window")

	var fetched []types.Message
	// Large windows are fetched in bounded batches, newest batch first
	for end := window.End; end >= window.Start; {
		start := window.Start
		if end >= f.batchSize && end-f.batchSize+1 > start {
			start = end - f.batchSize + 1
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		raws, err := f.session.FetchRange(ctx, folder.FullName, start, end)
		if err != nil {
			return nil, fmt.Errorf("fetch %s %d:%d: %w", folder.FullName, start, end, err)
		}

		// Server order is oldest-first within the batch; results are newest-first
		for i := len(raws) - 1; i >= 0; i-- {
			msg := messageFromRaw(raws[i], folder.AccountID, folder.ID)

			exists, err := f.messages.HasMessage(ctx, folder.AccountID, msg.MessageID)
			if err != nil {
				return nil, fmt.Errorf("dedup lookup for %q: %w", msg.MessageID, err)
			}
			if exists {
				continue
			}
			fetched = append(fetched, msg)
		}

		if start == window.Start {
			break
		}
		end = start - 1
	}

	return fetched, nil
}
