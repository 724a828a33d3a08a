package sync

import (
	"github.com/google/uuid"

	"github.com/goforwarder2016/GfMail-sub000/pkg/types"
)

// ReconcileResult is the pure diff between a remote folder listing and the
// local mirror. Persistence of the diff belongs to the caller.
type ReconcileResult struct {
	Inserts   []types.LocalFolder
	Updates   []types.LocalFolder
	Deletions []types.LocalFolder
}

// Reconcile diffs the server's folder listing against local folder records.
// Matching priority per remote folder: full name, then display name, then the
// local record id (covers providers that change the encoding of the full
// name between listing calls). Matched folders become updates that merge
// server-reported counts, subscription and type into the local record while
// preserving local bookkeeping; unmatched remotes become inserts with fresh
// local identities; local folders absent from the remote full-name set become
// deletions. Running the same input twice yields no further inserts or
// deletions.
func Reconcile(accountID int64, remote []types.RemoteFolder, local []types.LocalFolder) ReconcileResult {
	byFullName := make(map[string]*types.LocalFolder, len(local))
	byDisplayName := make(map[string]*types.LocalFolder, len(local))
	byID := make(map[string]*types.LocalFolder, len(local))
	for i := range local {
		folder := &local[i]
		byFullName[folder.FullName] = folder
		if _, taken := byDisplayName[folder.DisplayName]; !taken {
			byDisplayName[folder.DisplayName] = folder
		}
		byID[folder.ID] = folder
	}

	var result ReconcileResult
	matched := make(map[string]bool, len(local))

	for _, rf := range remote {
		existing := byFullName[rf.FullName]
		if existing == nil {
			existing = byDisplayName[rf.DisplayName]
		}
		if existing == nil {
			existing = byID[rf.FullName]
		}

		if existing != nil && !matched[existing.ID] {
			matched[existing.ID] = true
			result.Updates = append(result.Updates, mergeFolder(*existing, rf))
			continue
		}

		result.Inserts = append(result.Inserts, types.LocalFolder{
			ID:              uuid.NewString(),
			AccountID:       accountID,
			FullName:        rf.FullName,
			DisplayName:     rf.DisplayName,
			Type:            rf.Type,
			MessageCount:    rf.MessageCount,
			UnreadCount:     rf.UnreadCount,
			Subscribed:      rf.Subscribed,
			CanHoldMessages: rf.CanHoldMessages,
			Parent:          rf.Parent,
		})
	}

	remoteNames := make(map[string]bool, len(remote))
	for _, rf := range remote {
		remoteNames[rf.FullName] = true
	}
	for i := range local {
		folder := local[i]
		if !remoteNames[folder.FullName] && !matched[folder.ID] {
			result.Deletions = append(result.Deletions, folder)
		}
	}

	return result
}

// mergeFolder applies server-reported state onto an existing local record,
// keeping local-only bookkeeping (id, ever-synced, last-synced) intact
func mergeFolder(existing types.LocalFolder, rf types.RemoteFolder) types.LocalFolder {
	existing.FullName = rf.FullName
	existing.DisplayName = rf.DisplayName
	existing.Type = rf.Type
	existing.MessageCount = rf.MessageCount
	existing.UnreadCount = rf.UnreadCount
	existing.Subscribed = rf.Subscribed
	existing.CanHoldMessages = rf.CanHoldMessages
	existing.Parent = rf.Parent
	return existing
}
