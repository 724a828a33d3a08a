package sync

import (
	"context"
	"fmt"
	"sort"
	gosync "sync"
	"time"

	"github.com/emersion/go-imap"

	"github.com/goforwarder2016/GfMail-sub000/internal/imapx"
	"github.com/goforwarder2016/GfMail-sub000/pkg/types"
)

// rawTextMessage builds a fetchable message with a parseable RFC822 body
func rawTextMessage(uid uint32, messageID, subject string) imapx.RawMessage {
	return imapx.RawMessage{
		UID: uid,
		Envelope: &imap.Envelope{
			Subject:   subject,
			MessageId: messageID,
			Date:      time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
			From:      []*imap.Address{{PersonalName: "Sender", MailboxName: "sender", HostName: "example.com"}},
		},
		Raw: []byte("Subject: " + subject + "\r\nMessage-Id: " + messageID + "\r\n\r\nbody of " + subject + "\r\n"),
	}
}

// rawSequence builds n messages with UIDs and ids derived from a folder tag
func rawSequence(tag string, n int) []imapx.RawMessage {
	msgs := make([]imapx.RawMessage, 0, n)
	for i := 1; i <= n; i++ {
		msgs = append(msgs, rawTextMessage(uint32(i), fmt.Sprintf("<%s-%d@example.com>", tag, i), fmt.Sprintf("%s message %d", tag, i)))
	}
	return msgs
}

// fakeSession is an in-memory ProtocolSession. Message slices are
// oldest-first, mirroring server-side sequence numbering.
type fakeSession struct {
	mu gosync.Mutex

	remoteFolders []types.RemoteFolder
	msgs          map[string][]imapx.RawMessage
	fetchErrs     map[string]error
	failOnces     map[string]error
	connectErr    error
	idleErr       error // consumed by the next IdleWait call
	fetchDelay    time.Duration

	connected     bool
	openName      string
	fetchCalls    int
	inFlight      int
	maxInFlight   int
	disconnects   int
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		msgs:      make(map[string][]imapx.RawMessage),
		fetchErrs: make(map[string]error),
		failOnces: make(map[string]error),
	}
}

func (s *fakeSession) addFolder(folder types.RemoteFolder, msgs []imapx.RawMessage) {
	s.msgs[folder.FullName] = msgs
	s.remoteFolders = append(s.remoteFolders, folder)
}

func (s *fakeSession) Connect(ctx context.Context, secret string) error {
	if s.connectErr != nil {
		return s.connectErr
	}
	s.mu.Lock()
	s.connected = true
	s.mu.Unlock()
	return nil
}

func (s *fakeSession) ListFolders(ctx context.Context) ([]types.RemoteFolder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.RemoteFolder, len(s.remoteFolders))
	copy(out, s.remoteFolders)
	for i := range out {
		out[i].MessageCount = len(s.msgs[out[i].FullName])
	}
	return out, nil
}

func (s *fakeSession) OpenFolder(ctx context.Context, name string, mode imapx.Mode) error {
	s.mu.Lock()
	s.openName = name
	s.mu.Unlock()
	return nil
}

func (s *fakeSession) FetchRange(ctx context.Context, folder string, start, end uint32) ([]imapx.RawMessage, error) {
	s.mu.Lock()
	s.fetchCalls++
	s.inFlight++
	if s.inFlight > s.maxInFlight {
		s.maxInFlight = s.inFlight
	}
	s.openName = folder
	err := s.fetchErrs[folder]
	if once, ok := s.failOnces[folder]; ok {
		delete(s.failOnces, folder)
		err = once
	}
	delay := s.fetchDelay
	s.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	s.mu.Lock()
	s.inFlight--
	defer s.mu.Unlock()

	if err != nil {
		return nil, err
	}

	all := s.msgs[folder]
	if int(start) > len(all) {
		return nil, nil
	}
	if int(end) > len(all) {
		end = uint32(len(all))
	}
	out := make([]imapx.RawMessage, 0, end-start+1)
	for i := start; i <= end; i++ {
		out = append(out, all[i-1])
	}
	return out, nil
}

func (s *fakeSession) HighestUID(ctx context.Context, folder string) (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.openName = folder
	all := s.msgs[folder]
	if len(all) == 0 {
		return 0, nil
	}
	return all[len(all)-1].UID, nil
}

func (s *fakeSession) MessageCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.msgs[s.openName])
}

func (s *fakeSession) IdleWait(ctx context.Context, timeout time.Duration) error {
	s.mu.Lock()
	err := s.idleErr
	s.idleErr = nil
	s.mu.Unlock()
	if err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(time.Millisecond):
		return nil
	}
}

func (s *fakeSession) Disconnect() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = false
	s.disconnects++
	return nil
}

// in-memory collaborator stores

type memAccountStore struct {
	mu       gosync.Mutex
	accounts map[int64]types.Account
}

func newMemAccountStore(accounts ...types.Account) *memAccountStore {
	s := &memAccountStore{accounts: make(map[int64]types.Account)}
	for _, a := range accounts {
		s.accounts[a.ID] = a
	}
	return s
}

func (s *memAccountStore) GetAccountByID(ctx context.Context, id int64) (*types.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return nil, nil
	}
	copied := a
	return &copied, nil
}

func (s *memAccountStore) UpdateSyncStatus(ctx context.Context, id int64, lastSync *time.Time, syncErr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.accounts[id]
	if lastSync != nil {
		a.LastSync = lastSync
	}
	a.LastError = syncErr
	s.accounts[id] = a
	return nil
}

type memFolderStore struct {
	mu      gosync.Mutex
	folders map[string]types.LocalFolder
}

func newMemFolderStore() *memFolderStore {
	return &memFolderStore{folders: make(map[string]types.LocalFolder)}
}

func (s *memFolderStore) GetFoldersByAccount(ctx context.Context, accountID int64) ([]types.LocalFolder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []types.LocalFolder
	for _, f := range s.folders {
		if f.AccountID == accountID {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FullName < out[j].FullName })
	return out, nil
}

func (s *memFolderStore) InsertFolder(ctx context.Context, folder *types.LocalFolder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.folders[folder.ID] = *folder
	return nil
}

func (s *memFolderStore) UpdateFolder(ctx context.Context, folder *types.LocalFolder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.folders[folder.ID] = *folder
	return nil
}

func (s *memFolderStore) DeleteFolder(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.folders, id)
	return nil
}

func (s *memFolderStore) byFullName(fullName string) (types.LocalFolder, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range s.folders {
		if f.FullName == fullName {
			return f, true
		}
	}
	return types.LocalFolder{}, false
}

type memMessageStore struct {
	mu       gosync.Mutex
	messages []types.Message
}

func newMemMessageStore() *memMessageStore { return &memMessageStore{} }

func (s *memMessageStore) GetMessageCountInFolder(ctx context.Context, folderID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, m := range s.messages {
		if m.FolderID == folderID {
			count++
		}
	}
	return count, nil
}

func (s *memMessageStore) HasMessage(ctx context.Context, accountID int64, messageID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.messages {
		if m.AccountID == accountID && m.MessageID == messageID {
			return true, nil
		}
	}
	return false, nil
}

func (s *memMessageStore) InsertMessage(ctx context.Context, msg *types.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.messages {
		if m.AccountID == msg.AccountID && m.MessageID == msg.MessageID {
			return fmt.Errorf("duplicate message %q", msg.MessageID)
		}
	}
	s.messages = append(s.messages, *msg)
	return nil
}

func (s *memMessageStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

type memNotifier struct {
	mu       gosync.Mutex
	batches  [][]types.Message
	failures []string
}

func (n *memNotifier) NotifyNewMessages(account types.Account, msgs []types.Message) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.batches = append(n.batches, msgs)
}

func (n *memNotifier) NotifySyncFailure(accountID int64, reason string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failures = append(n.failures, reason)
}

func (n *memNotifier) failureCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.failures)
}
