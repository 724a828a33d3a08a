package provider

import (
	"crypto/tls"
	"strings"
)

// Encryption is the transport security mode for a server endpoint
type Encryption string

const (
	EncryptionSSL      Encryption = "ssl"
	EncryptionStartTLS Encryption = "starttls"
	EncryptionNone     Encryption = "none"
)

// ServerProfile holds the resolved connection parameters and behavioral
// quirks for one account. It is derived from the account address and never
// persisted; callers recompute it per connection attempt.
type ServerProfile struct {
	IMAPHost       string
	IMAPPort       int
	IMAPEncryption Encryption

	SMTPHost       string
	SMTPPort       int
	SMTPEncryption Encryption

	// RequiresClientID means the session must declare a client name/version
	// (IMAP ID command) before folder operations are trusted. NetEase servers
	// gate folder access on this.
	RequiresClientID bool

	// PreferSelectOverExamine makes folder opens attempt read-write before
	// read-only regardless of the requested mode.
	PreferSelectOverExamine bool

	// HasFolderAccessRestrictions means non-INBOX folders may reject open
	// attempts with a provider-specific "access restricted" response. Such
	// failures are expected and must be treated as skip-not-fail.
	HasFolderAccessRestrictions bool

	// RequireTLSMinVersion is the minimum acceptable negotiated TLS version.
	// Where the negotiated version is verifiable and lower, the connection
	// fails closed. Zero means no constraint beyond library defaults.
	RequireTLSMinVersion uint16
}

// profile table entry, keyed by domain suffix
type knownProvider struct {
	suffixes []string
	profile  ServerProfile
}

var knownProviders = []knownProvider{
	{
		// NetEase mailboxes require the ID handshake and reject SELECT on
		// non-INBOX folders until the user authorizes third-party clients
		// ("Unsafe Login" responses).
		suffixes: []string{"163.com", "126.com", "yeah.net", "188.com"},
		profile: ServerProfile{
			IMAPPort: 993, IMAPEncryption: EncryptionSSL,
			SMTPPort: 465, SMTPEncryption: EncryptionSSL,
			RequiresClientID:            true,
			PreferSelectOverExamine:     true,
			HasFolderAccessRestrictions: true,
			RequireTLSMinVersion:        tls.VersionTLS12,
		},
	},
	{
		suffixes: []string{"qq.com", "foxmail.com"},
		profile: ServerProfile{
			IMAPHost: "imap.qq.com", IMAPPort: 993, IMAPEncryption: EncryptionSSL,
			SMTPHost: "smtp.qq.com", SMTPPort: 465, SMTPEncryption: EncryptionSSL,
			RequiresClientID:     true,
			RequireTLSMinVersion: tls.VersionTLS12,
		},
	},
	{
		suffixes: []string{"gmail.com", "googlemail.com"},
		profile: ServerProfile{
			IMAPHost: "imap.gmail.com", IMAPPort: 993, IMAPEncryption: EncryptionSSL,
			SMTPHost: "smtp.gmail.com", SMTPPort: 465, SMTPEncryption: EncryptionSSL,
			RequireTLSMinVersion: tls.VersionTLS12,
		},
	},
	{
		suffixes: []string{"outlook.com", "hotmail.com", "live.com", "msn.com"},
		profile: ServerProfile{
			IMAPHost: "outlook.office365.com", IMAPPort: 993, IMAPEncryption: EncryptionSSL,
			SMTPHost: "smtp-mail.outlook.com", SMTPPort: 587, SMTPEncryption: EncryptionStartTLS,
			RequireTLSMinVersion: tls.VersionTLS12,
		},
	},
	{
		suffixes: []string{"yahoo.com", "ymail.com"},
		profile: ServerProfile{
			IMAPHost: "imap.mail.yahoo.com", IMAPPort: 993, IMAPEncryption: EncryptionSSL,
			SMTPHost: "smtp.mail.yahoo.com", SMTPPort: 465, SMTPEncryption: EncryptionSSL,
			RequireTLSMinVersion: tls.VersionTLS12,
		},
	},
	{
		suffixes: []string{"icloud.com", "me.com", "mac.com"},
		profile: ServerProfile{
			IMAPHost: "imap.mail.me.com", IMAPPort: 993, IMAPEncryption: EncryptionSSL,
			SMTPHost: "smtp.mail.me.com", SMTPPort: 587, SMTPEncryption: EncryptionStartTLS,
			RequireTLSMinVersion: tls.VersionTLS12,
		},
	},
}

// Resolve maps an account address to connection parameters and quirk flags.
// Pure and deterministic; no network calls. Unknown domains resolve to a safe
// generic profile (SSL on default ports, imap./smtp. host prefixes).
func Resolve(address string) ServerProfile {
	domain := domainOf(address)

	for _, p := range knownProviders {
		for _, suffix := range p.suffixes {
			if domain == suffix || strings.HasSuffix(domain, "."+suffix) {
				prof := p.profile
				// NetEase suffixes share quirks but each has its own hosts
				if prof.IMAPHost == "" {
					prof.IMAPHost = "imap." + suffix
					prof.SMTPHost = "smtp." + suffix
				}
				return prof
			}
		}
	}

	return genericProfile(domain)
}

// genericProfile is the safe default for unrecognized domains
func genericProfile(domain string) ServerProfile {
	return ServerProfile{
		IMAPHost: "imap." + domain, IMAPPort: 993, IMAPEncryption: EncryptionSSL,
		SMTPHost: "smtp." + domain, SMTPPort: 465, SMTPEncryption: EncryptionSSL,
		RequireTLSMinVersion: tls.VersionTLS12,
	}
}

// domainOf extracts the lowercase domain part of an address
func domainOf(address string) string {
	at := strings.LastIndex(address, "@")
	if at < 0 || at == len(address)-1 {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(address[at+1:]))
}
