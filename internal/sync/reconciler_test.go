package sync

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goforwarder2016/GfMail-sub000/pkg/types"
)

func remoteFolder(fullName string, folderType types.FolderType, count int) types.RemoteFolder {
	return types.RemoteFolder{
		FullName:        fullName,
		DisplayName:     fullName,
		Type:            folderType,
		MessageCount:    count,
		CanHoldMessages: true,
	}
}

func applyResult(result ReconcileResult, local []types.LocalFolder) []types.LocalFolder {
	byID := make(map[string]types.LocalFolder)
	for _, f := range local {
		byID[f.ID] = f
	}
	for _, f := range result.Inserts {
		byID[f.ID] = f
	}
	for _, f := range result.Updates {
		byID[f.ID] = f
	}
	for _, f := range result.Deletions {
		delete(byID, f.ID)
	}
	out := make([]types.LocalFolder, 0, len(byID))
	for _, f := range byID {
		out = append(out, f)
	}
	return out
}

func TestReconcileFreshAccountInsertsEverything(t *testing.T) {
	remote := []types.RemoteFolder{
		remoteFolder("INBOX", types.FolderInbox, 50),
		remoteFolder("Sent", types.FolderSent, 10),
	}

	result := Reconcile(1, remote, nil)
	require.Len(t, result.Inserts, 2)
	assert.Empty(t, result.Updates)
	assert.Empty(t, result.Deletions)

	for _, f := range result.Inserts {
		assert.NotEmpty(t, f.ID)
		assert.Equal(t, int64(1), f.AccountID)
		assert.False(t, f.EverSynced)
	}
}

func TestReconcileIsIdempotent(t *testing.T) {
	remote := []types.RemoteFolder{
		remoteFolder("INBOX", types.FolderInbox, 50),
		remoteFolder("Sent", types.FolderSent, 10),
		remoteFolder("Work/Projects", types.FolderCustom, 3),
	}

	first := Reconcile(1, remote, nil)
	local := applyResult(first, nil)

	second := Reconcile(1, remote, local)
	assert.Empty(t, second.Inserts)
	assert.Empty(t, second.Deletions)
	assert.Len(t, second.Updates, 3)
}

func TestReconcileDeletesVanishedFolders(t *testing.T) {
	remote := []types.RemoteFolder{remoteFolder("INBOX", types.FolderInbox, 1)}
	local := []types.LocalFolder{
		{ID: "a", AccountID: 1, FullName: "INBOX", DisplayName: "INBOX"},
		{ID: "b", AccountID: 1, FullName: "Old", DisplayName: "Old"},
	}

	result := Reconcile(1, remote, local)
	require.Len(t, result.Deletions, 1)
	assert.Equal(t, "Old", result.Deletions[0].FullName)
	assert.Empty(t, result.Inserts)
}

func TestReconcileMatchesByDisplayNameWhenEncodingDrifts(t *testing.T) {
	// provider re-encoded the full name between listing calls
	remote := []types.RemoteFolder{{
		FullName:        "&g0l6P3ux-",
		DisplayName:     "Receipts",
		Type:            types.FolderCustom,
		MessageCount:    7,
		CanHoldMessages: true,
	}}
	local := []types.LocalFolder{{
		ID: "f1", AccountID: 1, FullName: "Receipts", DisplayName: "Receipts",
		EverSynced: true,
	}}

	result := Reconcile(1, remote, local)
	require.Len(t, result.Updates, 1)
	assert.Empty(t, result.Inserts)
	// matched record must not also be deleted
	assert.Empty(t, result.Deletions)

	merged := result.Updates[0]
	assert.Equal(t, "f1", merged.ID)
	assert.Equal(t, "&g0l6P3ux-", merged.FullName)
	assert.Equal(t, 7, merged.MessageCount)
	assert.True(t, merged.EverSynced, "local bookkeeping must survive the merge")
}

func TestReconcileMergePreservesBookkeeping(t *testing.T) {
	remote := []types.RemoteFolder{remoteFolder("INBOX", types.FolderInbox, 51)}
	local := []types.LocalFolder{{
		ID: "f1", AccountID: 1, FullName: "INBOX", DisplayName: "INBOX",
		Type: types.FolderInbox, MessageCount: 50, EverSynced: true,
	}}

	result := Reconcile(1, remote, local)
	require.Len(t, result.Updates, 1)
	assert.Equal(t, 51, result.Updates[0].MessageCount)
	assert.True(t, result.Updates[0].EverSynced)
	assert.Equal(t, "f1", result.Updates[0].ID)
}
