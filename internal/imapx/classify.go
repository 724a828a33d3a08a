package imapx

import (
	"strings"

	"github.com/emersion/go-imap"

	"github.com/goforwarder2016/GfMail-sub000/pkg/types"
)

// localized name patterns for servers that advertise no special-use
// attributes. Checked against the lowercased last path segment.
var folderNamePatterns = map[types.FolderType][]string{
	types.FolderSent:    {"sent", "sent items", "sent messages", "已发送", "gesendet", "envoyés"},
	types.FolderDrafts:  {"draft", "drafts", "草稿箱", "entwürfe", "brouillons"},
	types.FolderTrash:   {"trash", "deleted", "deleted items", "已删除", "papierkorb", "corbeille"},
	types.FolderSpam:    {"spam", "junk", "junk e-mail", "bulk mail", "垃圾邮件", "courrier indésirable"},
	types.FolderArchive: {"archive", "archives", "all mail", "归档"},
}

// ClassifyFolder derives a folder's role and whether it can hold messages
// from a LIST response. Classification order: non-selectable container
// attribute, special-use attribute, exact INBOX match, localized name
// patterns, else custom.
func ClassifyFolder(info *imap.MailboxInfo) (types.FolderType, bool) {
	for _, attr := range info.Attributes {
		switch attr {
		case imap.NoSelectAttr:
			return types.FolderCustom, false
		case imap.SentAttr:
			return types.FolderSent, true
		case imap.DraftsAttr:
			return types.FolderDrafts, true
		case imap.TrashAttr:
			return types.FolderTrash, true
		case imap.JunkAttr:
			return types.FolderSpam, true
		case imap.ArchiveAttr, imap.AllAttr:
			return types.FolderArchive, true
		}
	}

	if strings.EqualFold(info.Name, "INBOX") {
		return types.FolderInbox, true
	}

	display := displayNameOf(info.Name, info.Delimiter)
	lower := strings.ToLower(display)
	for folderType, patterns := range folderNamePatterns {
		for _, pattern := range patterns {
			if lower == pattern {
				return folderType, true
			}
		}
	}

	return types.FolderCustom, true
}

// displayNameOf returns the last path segment of a full folder name
func displayNameOf(fullName, delimiter string) string {
	if delimiter == "" {
		return fullName
	}
	parts := strings.Split(fullName, delimiter)
	return parts[len(parts)-1]
}

// parentOf returns the full name of the folder's parent, or "" for top level
func parentOf(fullName, delimiter string) string {
	if delimiter == "" {
		return ""
	}
	idx := strings.LastIndex(fullName, delimiter)
	if idx < 0 {
		return ""
	}
	return fullName[:idx]
}
