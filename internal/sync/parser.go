package sync

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/google/uuid"
	"github.com/jaytaylor/html2text"
	"github.com/jhillyerd/enmime"

	"github.com/goforwarder2016/GfMail-sub000/internal/imapx"
	"github.com/goforwarder2016/GfMail-sub000/pkg/types"
)

// parsedBody is the extracted content of one message. The original HTML is
// preserved unmodified alongside any derived plain text: the original is
// needed for faithful rendering, the derived text for previews and search.
type parsedBody struct {
	Text       string
	HTML       string
	MessageID  string
	InReplyTo  string
	References []string
	Failed     bool
}

// parseBody extracts bodies and threading headers from raw RFC822 content.
// A failure never propagates; it degrades to an empty body marked failed.
func parseBody(raw []byte) parsedBody {
	if len(raw) == 0 {
		return parsedBody{Failed: true}
	}

	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return parsedBody{Failed: true}
	}

	body := parsedBody{
		Text:       env.Text,
		HTML:       env.HTML,
		MessageID:  strings.TrimSpace(env.GetHeader("Message-Id")),
		InReplyTo:  strings.TrimSpace(env.GetHeader("In-Reply-To")),
		References: strings.Fields(env.GetHeader("References")),
	}

	// No plain part: derive preview text from the HTML part
	if body.Text == "" && body.HTML != "" {
		if text, err := html2text.FromString(body.HTML, html2text.Options{TextOnly: true}); err == nil {
			body.Text = text
		}
	}

	return body
}

// messageFromRaw converts one fetched message into the mirror representation.
// Every message parses independently; when both the envelope and the MIME
// content are unusable the result is a placeholder record with a synthesized
// identity rather than an error, so one broken message cannot sink a batch.
func messageFromRaw(raw imapx.RawMessage, accountID int64, folderID string) types.Message {
	msg := types.Message{
		AccountID: accountID,
		FolderID:  folderID,
		UID:       raw.UID,
		CachedAt:  time.Now(),
	}

	for _, flag := range raw.Flags {
		switch flag {
		case imap.SeenFlag:
			msg.Read = true
		case imap.FlaggedFlag:
			msg.Starred = true
		case imap.DraftFlag:
			msg.Draft = true
		}
	}

	if raw.Envelope != nil {
		msg.Subject = raw.Envelope.Subject
		msg.Date = raw.Envelope.Date
		msg.MessageID = strings.TrimSpace(raw.Envelope.MessageId)
		msg.InReplyTo = strings.TrimSpace(raw.Envelope.InReplyTo)
		if len(raw.Envelope.From) > 0 {
			msg.FromName = raw.Envelope.From[0].PersonalName
			msg.FromAddress = raw.Envelope.From[0].Address()
		}
		msg.To = addressList(raw.Envelope.To)
		msg.Cc = addressList(raw.Envelope.Cc)
		msg.Bcc = addressList(raw.Envelope.Bcc)
	}

	body := parseBody(raw.Raw)
	msg.BodyText = body.Text
	msg.BodyHTML = body.HTML
	if msg.MessageID == "" {
		msg.MessageID = body.MessageID
	}
	if msg.InReplyTo == "" {
		msg.InReplyTo = body.InReplyTo
	}
	msg.References = body.References

	if body.Failed && raw.Envelope == nil {
		msg.Subject = "(message failed to parse)"
		msg.ParseFailed = true
	} else if body.Failed {
		msg.ParseFailed = true
	}

	// A message without a Message-ID header gets a synthesized identity so
	// dedup and threading still have a stable key
	if msg.MessageID == "" {
		msg.MessageID = fmt.Sprintf("<%s@gfmail.synthesized>", uuid.NewString())
	}
	if msg.Date.IsZero() {
		msg.Date = msg.CachedAt
	}

	return msg
}

// addressList flattens envelope addresses into bare address strings
func addressList(addrs []*imap.Address) []string {
	var out []string
	for _, addr := range addrs {
		out = append(out, addr.Address())
	}
	return out
}
