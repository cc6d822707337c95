package engine

import (
	"context"
	"database/sql"
	"errors"

	"gigline/internal/domain"
	"gigline/internal/engine/auth"
	"gigline/internal/events"
	"gigline/internal/repo"
)

// ListMembers returns the reconciled membership view of a batch:
// every record (legacy or structured, across all managers) decoded,
// unioned and de-duplicated.
func (e Engine) ListMembers(ctx context.Context, batchID int64) ([]domain.Member, error) {
	if _, err := e.Repo.GetBatch(ctx, batchID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, NotFoundError{Entity: "Batch"}
		}
		return nil, err
	}
	records, err := e.Repo.ListMemberRecords(ctx, batchID)
	if err != nil {
		return nil, err
	}
	return toMembers(reconcileRecords(records)), nil
}

// AddMembers merges freelancers into the calling manager's membership
// record for the batch, skipping any freelancer already present in the
// reconciled view, and returns the full reconciled membership list.
func (e Engine) AddMembers(ctx context.Context, mgr auth.ActingManager, batchID int64, freelancerIDs []int64) ([]domain.Member, error) {
	if len(freelancerIDs) == 0 {
		return nil, invalidArgf("at least one freelancer id is required")
	}
	freelancers := make([]domain.User, 0, len(freelancerIDs))
	for _, id := range freelancerIDs {
		fl, err := e.Gate.Freelancer(ctx, id)
		if err != nil {
			// a non-freelancer id reads the same as an unknown one
			var roleErr auth.RoleError
			if errors.Is(err, repo.ErrNotFound) || errors.As(err, &roleErr) {
				return nil, NotFoundError{Entity: "Freelancer"}
			}
			return nil, err
		}
		freelancers = append(freelancers, fl.User)
	}

	release := e.locks.acquire(batchID)
	defer release()

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	b, err := e.Repo.GetBatchTx(ctx, tx, batchID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, NotFoundError{Entity: "Batch"}
		}
		return nil, err
	}
	if b.CreatedBy != mgr.User.ID {
		return nil, PermissionDeniedError{Msg: "batch belongs to another manager"}
	}
	added, err := e.addMembersTx(ctx, tx, b, mgr.User.ID, freelancers)
	if err != nil {
		return nil, err
	}
	for _, fl := range added {
		if err := e.Events.Append(ctx, tx, "member.added", b.JobID, "batch", idString(batchID), mgr.User.ID, events.EventPayload{
			"freelancer_id": fl.ID,
			"username":      fl.Username,
		}); err != nil {
			return nil, err
		}
	}
	records, err := e.Repo.ListMemberRecordsTx(ctx, tx, batchID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return toMembers(reconcileRecords(records)), nil
}

// addMembersTx appends freelancers not already present anywhere in the
// batch's reconciled view to managerID's own record, creating the
// record if absent. The touched record is re-persisted structured even
// when it was legacy delimited. Returns the freelancers actually added.
func (e Engine) addMembersTx(ctx context.Context, tx *sql.Tx, b domain.Batch, managerID int64, freelancers []domain.User) ([]domain.User, error) {
	records, err := e.Repo.ListMemberRecordsTx(ctx, tx, b.ID)
	if err != nil {
		return nil, err
	}
	view := reconcileRecords(records)

	rec, err := e.Repo.GetMemberRecordTx(ctx, tx, b.ID, managerID)
	haveRecord := err == nil
	if err != nil && !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}
	var own []memberEntry
	if haveRecord {
		own = decodeMembers(rec.Members)
	}

	var added []domain.User
	for _, fl := range freelancers {
		entry := memberEntry{ID: fl.ID, Name: fl.Username}
		if containsMember(view, entry) {
			continue
		}
		own = append(own, entry)
		view = append(view, entry)
		added = append(added, fl)
	}
	if len(added) == 0 {
		return nil, nil
	}
	return added, e.persistRecordTx(ctx, tx, b, managerID, rec, haveRecord, own)
}

// bumpAssignedTx adjusts the cached assigned count for one freelancer
// inside managerID's record, upgrading a matching legacy entry to a
// structured one or appending a fresh entry when none matches.
func (e Engine) bumpAssignedTx(ctx context.Context, tx *sql.Tx, b domain.Batch, managerID int64, fl domain.User, delta int64) error {
	rec, err := e.Repo.GetMemberRecordTx(ctx, tx, b.ID, managerID)
	haveRecord := err == nil
	if err != nil && !errors.Is(err, repo.ErrNotFound) {
		return err
	}
	var entries []memberEntry
	if haveRecord {
		entries = decodeMembers(rec.Members)
	}

	target := memberEntry{ID: fl.ID, Name: fl.Username}
	matched := false
	for i := range entries {
		if !sameMember(entries[i], target) {
			continue
		}
		if entries[i].ID == 0 {
			entries[i].ID = fl.ID
		}
		entries[i].AssignedCount += delta
		matched = true
		break
	}
	if !matched {
		target.AssignedCount = delta
		entries = append(entries, target)
	}
	return e.persistRecordTx(ctx, tx, b, managerID, rec, haveRecord, entries)
}

func (e Engine) persistRecordTx(ctx context.Context, tx *sql.Tx, b domain.Batch, managerID int64, rec domain.MemberRecord, haveRecord bool, entries []memberEntry) error {
	encoded, err := encodeMembers(entries)
	if err != nil {
		return err
	}
	if haveRecord {
		return e.Repo.UpdateMemberRecordTx(ctx, tx, rec.ID, encoded)
	}
	_, err = e.Repo.InsertMemberRecordTx(ctx, tx, domain.MemberRecord{
		BatchID:   b.ID,
		JobID:     b.JobID,
		ManagerID: managerID,
		Members:   encoded,
		CreatedAt: e.nowString(),
	})
	return err
}

// reconcileRecords folds every record's entries into one de-duplicated
// list, ordered by first appearance across records (records arrive in
// insertion order).
func reconcileRecords(records []domain.MemberRecord) []memberEntry {
	var view []memberEntry
	for _, rec := range records {
		view = mergeMembers(view, decodeMembers(rec.Members))
	}
	return view
}

func containsMember(view []memberEntry, entry memberEntry) bool {
	for _, v := range view {
		if sameMember(v, entry) {
			return true
		}
	}
	return false
}

func toMembers(entries []memberEntry) []domain.Member {
	members := make([]domain.Member, 0, len(entries))
	for _, e := range entries {
		members = append(members, domain.Member{ID: e.ID, Name: e.Name, AssignedCount: e.AssignedCount})
	}
	return members
}
