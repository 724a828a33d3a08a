package imapx

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	id "github.com/emersion/go-imap-id"
	"github.com/sirupsen/logrus"

	"github.com/goforwarder2016/GfMail-sub000/internal/provider"
	"github.com/goforwarder2016/GfMail-sub000/pkg/types"
)

// Mode is the folder open mode
type Mode int

const (
	ModeReadWrite Mode = iota
	ModeReadOnly
)

// session lifecycle states
type sessionState int

const (
	stateDisconnected sessionState = iota
	stateConnecting
	stateAuthenticated
	stateFolderOpen
)

const (
	defaultConnectTimeout = 30 * time.Second
	defaultCommandTimeout = 60 * time.Second
	defaultStaleRetries   = 2
	defaultStaleBackoff   = 500 * time.Millisecond

	clientName    = "gfmail"
	clientVersion = "1.0"
)

// RawMessage is one fetched message before MIME parsing
type RawMessage struct {
	UID      uint32
	SeqNum   uint32
	Flags    []string
	Envelope *imap.Envelope
	Raw      []byte
}

// Session owns one IMAP connection for one account and drives it through
// Disconnected → Connecting → Authenticated → FolderOpen. A Session must only
// be used from one goroutine at a time; the sync job or the watcher loop that
// holds it has exclusive access.
type Session struct {
	address string
	profile provider.ServerProfile
	logger  *logrus.Logger

	conn     *client.Client
	state    sessionState
	openName string
	openMode Mode

	connectTimeout time.Duration
	commandTimeout time.Duration
	staleRetries   int
	staleBackoff   time.Duration
}

// NewSession creates a disconnected session for the given account address
func NewSession(address string, profile provider.ServerProfile, logger *logrus.Logger) *Session {
	if logger == nil {
		logger = logrus.New()
	}
	return &Session{
		address:        address,
		profile:        profile,
		logger:         logger,
		state:          stateDisconnected,
		connectTimeout: defaultConnectTimeout,
		commandTimeout: defaultCommandTimeout,
		staleRetries:   defaultStaleRetries,
		staleBackoff:   defaultStaleBackoff,
	}
}

// Connect establishes the transport, verifies TLS where possible,
// authenticates, and performs the client-identification handshake when the
// provider requires one. Identification failure is logged but non-fatal.
func (s *Session) Connect(ctx context.Context, secret string) error {
	if s.state != stateDisconnected {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.state = stateConnecting
	addr := fmt.Sprintf("%s:%d", s.profile.IMAPHost, s.profile.IMAPPort)
	tlsConfig := &tls.Config{
		ServerName: s.profile.IMAPHost,
		MinVersion: s.profile.RequireTLSMinVersion,
	}
	dialer := &net.Dialer{Timeout: s.connectTimeout}

	var conn *client.Client
	var err error
	switch s.profile.IMAPEncryption {
	case provider.EncryptionSSL:
		conn, err = client.DialWithDialerTLS(dialer, addr, tlsConfig)
	case provider.EncryptionStartTLS:
		conn, err = client.DialWithDialer(dialer, addr)
		if err == nil {
			err = conn.StartTLS(tlsConfig)
		}
	default:
		conn, err = client.DialWithDialer(dialer, addr)
	}
	if err != nil {
		s.state = stateDisconnected
		return &ConnectError{Err: err}
	}

	conn.Timeout = s.commandTimeout
	s.conn = conn

	// Best-effort TLS introspection. Not every runtime can report the
	// negotiated version; absence only downgrades diagnostic confidence,
	// a provably low version fails closed.
	if s.profile.IMAPEncryption != provider.EncryptionNone {
		if tlsState, ok := conn.TLSConnectionState(); ok {
			if s.profile.RequireTLSMinVersion != 0 && tlsState.Version < s.profile.RequireTLSMinVersion {
				_ = conn.Logout()
				s.conn = nil
				s.state = stateDisconnected
				return &ConnectError{Err: fmt.Errorf("negotiated TLS version %#x below required %#x", tlsState.Version, s.profile.RequireTLSMinVersion)}
			}
			s.logger.WithFields(logrus.Fields{
				"account":     s.address,
				"tls_version": tlsState.Version,
				"cipher":      tlsState.CipherSuite,
			}).Debug("TLS negotiated")
		} else {
			s.logger.WithField("account", s.address).Debug("TLS parameters not introspectable")
		}
	}

	if err := conn.Login(s.address, secret); err != nil {
		_ = conn.Logout()
		s.conn = nil
		s.state = stateDisconnected
		if matchesAuth(err) {
			return &AuthError{Err: err}
		}
		return &ConnectError{Err: err}
	}

	if s.profile.RequiresClientID {
		idClient := id.NewClient(conn)
		if _, err := idClient.ID(id.ID{
			id.FieldName:    clientName,
			id.FieldVersion: clientVersion,
		}); err != nil {
			// Some servers advertise quirks without supporting ID
			s.logger.WithError(err).WithField("account", s.address).Warn("Client identification handshake failed")
		}
	}

	s.state = stateAuthenticated
	s.logger.WithFields(logrus.Fields{
		"account": s.address,
		"host":    s.profile.IMAPHost,
	}).Info("IMAP session authenticated")
	return nil
}

// ListFolders enumerates server folders with their subscription state and
// counts. Valid from Authenticated or FolderOpen states.
func (s *Session) ListFolders(ctx context.Context) ([]types.RemoteFolder, error) {
	if s.state != stateAuthenticated && s.state != stateFolderOpen {
		return nil, fmt.Errorf("list folders: session not authenticated")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	subscribed, err := s.subscribedSet()
	if err != nil {
		s.logger.WithError(err).WithField("account", s.address).Debug("LSUB failed, subscription state unknown")
		subscribed = nil
	}

	mailboxes := make(chan *imap.MailboxInfo, 16)
	done := make(chan error, 1)
	go func() {
		done <- s.conn.List("", "*", mailboxes)
	}()

	var infos []*imap.MailboxInfo
	for m := range mailboxes {
		infos = append(infos, m)
	}
	if err := <-done; err != nil {
		return nil, fmt.Errorf("failed to list folders: %w", err)
	}

	var folders []types.RemoteFolder
	for _, info := range infos {
		folderType, canHold := ClassifyFolder(info)
		folder := types.RemoteFolder{
			FullName:        info.Name,
			DisplayName:     displayNameOf(info.Name, info.Delimiter),
			Type:            folderType,
			CanHoldMessages: canHold,
			Parent:          parentOf(info.Name, info.Delimiter),
		}
		if subscribed != nil {
			folder.Subscribed = subscribed[info.Name]
		}

		// STATUS is advisory here; providers with folder restrictions reject
		// it for unauthorized folders, which must not fail the listing.
		if canHold {
			if status, err := s.conn.Status(info.Name, []imap.StatusItem{imap.StatusMessages, imap.StatusUnseen}); err == nil {
				folder.MessageCount = int(status.Messages)
				folder.UnreadCount = int(status.Unseen)
			} else {
				s.logger.WithError(err).WithFields(logrus.Fields{
					"account": s.address,
					"folder":  info.Name,
				}).Debug("STATUS failed during listing")
			}
		}

		folders = append(folders, folder)
	}

	return folders, nil
}

// subscribedSet returns the full names the account is subscribed to
func (s *Session) subscribedSet() (map[string]bool, error) {
	mailboxes := make(chan *imap.MailboxInfo, 16)
	done := make(chan error, 1)
	go func() {
		done <- s.conn.Lsub("", "*", mailboxes)
	}()

	set := make(map[string]bool)
	for m := range mailboxes {
		set[m.Name] = true
	}
	if err := <-done; err != nil {
		return nil, err
	}
	return set, nil
}

// OpenFolder selects the named folder in the given mode, closing any other
// open folder first. For providers with folder-access restrictions, failures
// matching the restricted-access signature on non-INBOX folders surface as
// RestrictedAccessError so callers can skip instead of fail.
func (s *Session) OpenFolder(ctx context.Context, name string, mode Mode) error {
	if s.state != stateAuthenticated && s.state != stateFolderOpen {
		return fmt.Errorf("open folder %q: session not authenticated", name)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if s.state == stateFolderOpen {
		if s.openName == name && s.openMode == mode {
			return nil
		}
		s.closeOpenFolder()
	}

	restricted := s.profile.HasFolderAccessRestrictions && !strings.EqualFold(name, "INBOX")

	// Quirky providers and preferSelectOverExamine both mean: read-write
	// first, then read-only, regardless of the requested mode.
	order := []Mode{mode}
	if mode == ModeReadWrite || restricted || s.profile.PreferSelectOverExamine {
		order = []Mode{ModeReadWrite, ModeReadOnly}
	}

	var lastErr error
	for _, m := range order {
		if _, err := s.conn.Select(name, m == ModeReadOnly); err != nil {
			lastErr = err
			continue
		}
		s.state = stateFolderOpen
		s.openName = name
		s.openMode = m
		return nil
	}

	if restricted && matchesRestricted(lastErr) {
		return &RestrictedAccessError{Folder: name, Err: lastErr}
	}
	return fmt.Errorf("failed to open folder %q: %w", name, lastErr)
}

// WithOpenFolder runs op against the named folder with stale-handle recovery:
// if op fails because the handle went away, the folder is reopened and the
// same op retried up to the retry bound with a fixed short backoff.
func (s *Session) WithOpenFolder(ctx context.Context, name string, mode Mode, op func(mbox *imap.MailboxStatus) error) error {
	if err := s.OpenFolder(ctx, name, mode); err != nil {
		return err
	}

	reopen := func() error {
		// drop the dead handle so OpenFolder actually reselects
		s.state = stateAuthenticated
		s.openName = ""
		if err := s.OpenFolder(ctx, name, mode); err != nil {
			return err
		}
		s.logger.WithFields(logrus.Fields{
			"account": s.address,
			"folder":  name,
		}).Debug("Reopened folder after stale handle")
		return nil
	}

	err := retryWithReopen(ctx, s.staleRetries, s.staleBackoff, reopen, func() error {
		return op(s.conn.Mailbox())
	})
	if err != nil && IsStaleHandle(err) {
		return &StaleHandleError{Folder: name, Err: err}
	}
	return err
}

// retryWithReopen runs op, and on a stale-handle class failure reopens the
// folder and retries the same op, up to the retry bound with a fixed backoff
// between attempts. Non-stale errors propagate immediately.
func retryWithReopen(ctx context.Context, retries int, backoff time.Duration, reopen func() error, op func() error) error {
	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if attempt > 0 {
			time.Sleep(backoff)
			if err := reopen(); err != nil {
				lastErr = err
				continue
			}
		}

		err := op()
		if err == nil {
			return nil
		}
		if !IsStaleHandle(err) {
			return err
		}
		lastErr = err
	}
	return lastErr
}

// FetchRange retrieves the 1-based inclusive sequence range [start, end] from
// the named folder. Each message carries its envelope, flags, UID and the raw
// RFC822 content for MIME parsing by the caller.
func (s *Session) FetchRange(ctx context.Context, name string, start, end uint32) ([]RawMessage, error) {
	if start == 0 || end < start {
		return nil, fmt.Errorf("invalid fetch range %d:%d", start, end)
	}

	var result []RawMessage
	err := s.WithOpenFolder(ctx, name, ModeReadOnly, func(mbox *imap.MailboxStatus) error {
		upper := end
		if mbox != nil && mbox.Messages < upper {
			upper = mbox.Messages
		}
		if upper < start {
			result = nil
			return nil
		}

		seqSet := new(imap.SeqSet)
		seqSet.AddRange(start, upper)
		items := []imap.FetchItem{imap.FetchEnvelope, imap.FetchFlags, imap.FetchUid, imap.FetchRFC822}

		messages := make(chan *imap.Message, 16)
		done := make(chan error, 1)
		go func() {
			done <- s.conn.Fetch(seqSet, items, messages)
		}()

		var batch []RawMessage
		for msg := range messages {
			batch = append(batch, rawFromIMAP(msg))
		}
		if err := <-done; err != nil {
			return fmt.Errorf("failed to fetch %d:%d from %q: %w", start, upper, name, err)
		}
		result = batch
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// HighestUID returns the UID of the newest message in the named folder, or 0
// for an empty folder. Used by the watcher as its wake-up watermark.
func (s *Session) HighestUID(ctx context.Context, name string) (uint32, error) {
	var highest uint32
	err := s.WithOpenFolder(ctx, name, ModeReadOnly, func(mbox *imap.MailboxStatus) error {
		highest = 0
		if mbox == nil || mbox.Messages == 0 {
			return nil
		}

		seqSet := new(imap.SeqSet)
		seqSet.AddNum(mbox.Messages)

		messages := make(chan *imap.Message, 1)
		done := make(chan error, 1)
		go func() {
			done <- s.conn.Fetch(seqSet, []imap.FetchItem{imap.FetchUid}, messages)
		}()
		for msg := range messages {
			highest = msg.Uid
		}
		return <-done
	})
	return highest, err
}

// MessageCount returns the message count of the currently open folder
func (s *Session) MessageCount() int {
	if s.state != stateFolderOpen || s.conn == nil {
		return 0
	}
	if mbox := s.conn.Mailbox(); mbox != nil {
		return int(mbox.Messages)
	}
	return 0
}

// IdleWait blocks until the server reports activity on the open folder, the
// timeout elapses, or ctx is cancelled. The underlying client degrades to
// STATUS polling when the server lacks the long-poll capability.
func (s *Session) IdleWait(ctx context.Context, timeout time.Duration) error {
	if s.state != stateFolderOpen {
		return fmt.Errorf("idle: no folder open")
	}

	stop := make(chan struct{})
	idleDone := make(chan error, 1)
	go func() {
		idleDone <- s.conn.Idle(stop, &client.IdleOptions{
			LogoutTimeout: timeout,
			PollInterval:  0,
		})
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err := <-idleDone:
		return err
	case <-timer.C:
		close(stop)
		return <-idleDone
	case <-ctx.Done():
		close(stop)
		<-idleDone
		return ctx.Err()
	}
}

// Disconnect closes the open folder (if any) and then the transport.
// Idempotent; safe to call from any state.
func (s *Session) Disconnect() error {
	if s.conn == nil {
		s.state = stateDisconnected
		return nil
	}

	s.closeOpenFolder()
	err := s.conn.Logout()
	if err != nil {
		// Logout needs a live connection; force the transport shut
		_ = s.conn.Terminate()
	}
	s.conn = nil
	s.state = stateDisconnected
	s.openName = ""
	return nil
}

// Connected reports whether the session is past authentication
func (s *Session) Connected() bool {
	return s.state == stateAuthenticated || s.state == stateFolderOpen
}

// closeOpenFolder closes the currently selected folder, swallowing errors
func (s *Session) closeOpenFolder() {
	if s.state != stateFolderOpen {
		return
	}
	if err := s.conn.Close(); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"account": s.address,
			"folder":  s.openName,
		}).Debug("Close folder failed")
	}
	s.state = stateAuthenticated
	s.openName = ""
}

// rawFromIMAP flattens a fetched message into a RawMessage
func rawFromIMAP(msg *imap.Message) RawMessage {
	raw := RawMessage{
		UID:      msg.Uid,
		SeqNum:   msg.SeqNum,
		Envelope: msg.Envelope,
	}
	raw.Flags = append(raw.Flags, msg.Flags...)

	for _, literal := range msg.Body {
		body, err := io.ReadAll(literal)
		if err == nil && len(body) > 0 {
			raw.Raw = body
			break
		}
	}
	return raw
}
