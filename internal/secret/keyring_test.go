package secret

import (
	"context"
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goforwarder2016/GfMail-sub000/pkg/types"
)

// fileStore pins the file backend so tests never touch a system keyring
func fileStore(dir string) *Store {
	return &Store{
		config: keyring.Config{
			ServiceName:      serviceName,
			AllowedBackends:  []keyring.BackendType{keyring.FileBackend},
			FileDir:          dir,
			FilePasswordFunc: keyring.FixedStringPrompt("test-key"),
		},
	}
}

func TestEnvVarFor(t *testing.T) {
	assert.Equal(t, "GFMAIL_PASSWORD_USER_EXAMPLE_ORG", EnvVarFor("user@example.org"))
	assert.Equal(t, "GFMAIL_PASSWORD_A_B_C_163_COM", EnvVarFor("a.b-c@163.com"))
}

func TestEnvOverrideWinsOverKeyring(t *testing.T) {
	t.Setenv(EnvVarFor("user@example.org"), "from-env")

	s := fileStore(t.TempDir())
	got, err := s.GetPassword(context.Background(), types.Account{Address: "user@example.org"})
	require.NoError(t, err)
	assert.Equal(t, "from-env", got)
}

func TestKeyringRoundTrip(t *testing.T) {
	s := fileStore(t.TempDir())

	require.NoError(t, s.SetPassword("user@example.org", "app-password"))

	got, err := s.GetPassword(context.Background(), types.Account{Address: "user@example.org"})
	require.NoError(t, err)
	assert.Equal(t, "app-password", got)

	require.NoError(t, s.DeletePassword("user@example.org"))
	_, err = s.GetPassword(context.Background(), types.Account{Address: "user@example.org"})
	assert.Error(t, err)
}
