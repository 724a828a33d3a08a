package provider

import (
	"crypto/tls"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveNetEase(t *testing.T) {
	for _, addr := range []string{"user@163.com", "user@126.com", "user@yeah.net"} {
		prof := Resolve(addr)
		assert.True(t, prof.RequiresClientID, addr)
		assert.True(t, prof.HasFolderAccessRestrictions, addr)
		assert.True(t, prof.PreferSelectOverExamine, addr)
		assert.Equal(t, EncryptionSSL, prof.IMAPEncryption, addr)
		assert.Equal(t, 993, prof.IMAPPort, addr)
	}

	prof := Resolve("user@163.com")
	assert.Equal(t, "imap.163.com", prof.IMAPHost)
	assert.Equal(t, "smtp.163.com", prof.SMTPHost)

	prof = Resolve("user@126.com")
	assert.Equal(t, "imap.126.com", prof.IMAPHost)
}

func TestResolveKnownProviders(t *testing.T) {
	tests := []struct {
		address  string
		imapHost string
		smtpEnc  Encryption
	}{
		{"a@gmail.com", "imap.gmail.com", EncryptionSSL},
		{"a@googlemail.com", "imap.gmail.com", EncryptionSSL},
		{"a@outlook.com", "outlook.office365.com", EncryptionStartTLS},
		{"a@hotmail.com", "outlook.office365.com", EncryptionStartTLS},
		{"a@qq.com", "imap.qq.com", EncryptionSSL},
		{"a@yahoo.com", "imap.mail.yahoo.com", EncryptionSSL},
		{"a@icloud.com", "imap.mail.me.com", EncryptionStartTLS},
	}

	for _, tt := range tests {
		prof := Resolve(tt.address)
		assert.Equal(t, tt.imapHost, prof.IMAPHost, tt.address)
		assert.Equal(t, tt.smtpEnc, prof.SMTPEncryption, tt.address)
	}
}

func TestResolveUnknownDomainFallsBackToGeneric(t *testing.T) {
	prof := Resolve("someone@example.org")
	assert.Equal(t, "imap.example.org", prof.IMAPHost)
	assert.Equal(t, 993, prof.IMAPPort)
	assert.Equal(t, EncryptionSSL, prof.IMAPEncryption)
	assert.Equal(t, "smtp.example.org", prof.SMTPHost)
	assert.False(t, prof.RequiresClientID)
	assert.False(t, prof.HasFolderAccessRestrictions)
	assert.Equal(t, uint16(tls.VersionTLS12), prof.RequireTLSMinVersion)
}

func TestResolveSubdomainSuffixMatch(t *testing.T) {
	prof := Resolve("user@mail.163.com")
	assert.True(t, prof.HasFolderAccessRestrictions)
}

func TestResolveIsDeterministic(t *testing.T) {
	first := Resolve("user@188.com")
	second := Resolve("user@188.com")
	require.Equal(t, first, second)
}

func TestResolveMalformedAddress(t *testing.T) {
	prof := Resolve("not-an-address")
	assert.Equal(t, "imap.", prof.IMAPHost)
	assert.Equal(t, 993, prof.IMAPPort)

	prof = Resolve("User@MIXED.163.COM")
	assert.True(t, prof.RequiresClientID)
}
