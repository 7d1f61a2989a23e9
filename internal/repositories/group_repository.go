package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"conversation-service/internal/models"
)

var (
	ErrGroupNotFound = errors.New("group not found")
	ErrNotMember     = errors.New("not a group member")
)

// GroupRepository abstracts group-conversation persistence: the summary row,
// the member list, the per-member unread counters and the message log.
type GroupRepository interface {
	CreateGroup(ctx context.Context, creatorID, name, avatar string, memberIDs []string) (models.GroupConversation, error)
	GetGroup(ctx context.Context, groupID string) (models.GroupConversation, error)
	ListForUser(ctx context.Context, userID string) ([]models.GroupSnapshot, error)
	RecordMessage(ctx context.Context, group models.GroupConversation, senderID, senderName, text string) (models.GroupMessage, error)
	ResetUnread(ctx context.Context, groupID, userID string) error
	UnreadCounts(ctx context.Context, groupID string) (map[string]int, error)
	TogglePin(ctx context.Context, groupID string) (bool, error)
	Leave(ctx context.Context, groupID, userID string) error
	Delete(ctx context.Context, groupID string) error
	ReconcileSummary(ctx context.Context, groupID string) error
}

// GroupRepo is a sqlx implementation of GroupRepository.
type GroupRepo struct {
	db *sqlx.DB
}

// NewGroupRepo constructs a GroupRepo.
func NewGroupRepo(db *sqlx.DB) *GroupRepo {
	return &GroupRepo{db: db}
}

const groupColumns = `id, name, avatar, created_by, last_message, last_sender_id, last_sender_name, last_time, pinned, created_at`

// CreateGroup creates the group, its member list and zeroed unread rows in
// one transaction. The creator is always a member.
func (r *GroupRepo) CreateGroup(ctx context.Context, creatorID, name, avatar string, memberIDs []string) (models.GroupConversation, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.GroupConversation{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var group models.GroupConversation
	err = tx.QueryRowxContext(ctx,
		`INSERT INTO groups (id, name, avatar, created_by) VALUES ($1, $2, $3, $4) RETURNING `+groupColumns,
		uuid.NewString(), name, avatar, creatorID).StructScan(&group)
	if err != nil {
		return models.GroupConversation{}, fmt.Errorf("groupRepo.CreateGroup: %w", err)
	}

	// creator first, then requested members in order, deduplicated
	members := []string{creatorID}
	seen := map[string]struct{}{creatorID: {}}
	for _, id := range memberIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		members = append(members, id)
	}

	for _, id := range members {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO group_members (group_id, user_id) VALUES ($1, $2)`, group.ID, id); err != nil {
			return models.GroupConversation{}, fmt.Errorf("groupRepo.CreateGroup member: %w", err)
		}
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO group_unread (group_id, user_id, count) VALUES ($1, $2, 0)`, group.ID, id); err != nil {
			return models.GroupConversation{}, fmt.Errorf("groupRepo.CreateGroup unread: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return models.GroupConversation{}, err
	}
	group.Members = members
	return group, nil
}

// GetGroup fetches a group with its member list in join order.
func (r *GroupRepo) GetGroup(ctx context.Context, groupID string) (models.GroupConversation, error) {
	var group models.GroupConversation
	err := r.db.GetContext(ctx, &group, `SELECT `+groupColumns+` FROM groups WHERE id=$1`, groupID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.GroupConversation{}, ErrGroupNotFound
	}
	if err != nil {
		return models.GroupConversation{}, err
	}

	if err := r.db.SelectContext(ctx, &group.Members,
		`SELECT user_id FROM group_members WHERE group_id=$1 ORDER BY joined_at, user_id`, groupID); err != nil {
		return models.GroupConversation{}, fmt.Errorf("groupRepo.GetGroup members: %w", err)
	}
	return group, nil
}

// ListForUser returns every group the user is a member of, with members and
// the user's unread count.
func (r *GroupRepo) ListForUser(ctx context.Context, userID string) ([]models.GroupSnapshot, error) {
	rows, err := r.db.QueryxContext(ctx,
		`SELECT g.id, g.name, g.avatar, g.created_by, g.last_message, g.last_sender_id, g.last_sender_name, g.last_time, g.pinned, g.created_at,
                COALESCE(u.count, 0) AS unread
         FROM groups g
         INNER JOIN group_members gm ON gm.group_id = g.id AND gm.user_id = $1
         LEFT JOIN group_unread u ON u.group_id = g.id AND u.user_id = $1
         ORDER BY g.last_time DESC NULLS LAST`, userID)
	if err != nil {
		return nil, fmt.Errorf("groupRepo.ListForUser: %w", err)
	}
	defer rows.Close()

	var snaps []models.GroupSnapshot
	ids := make([]string, 0, 8)
	for rows.Next() {
		var row struct {
			models.GroupConversation
			Unread int `db:"unread"`
		}
		if err := rows.StructScan(&row); err != nil {
			return nil, fmt.Errorf("groupRepo.ListForUser scan: %w", err)
		}
		snaps = append(snaps, models.GroupSnapshot{Group: row.GroupConversation, Unread: row.Unread})
		ids = append(ids, row.GroupConversation.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(snaps) == 0 {
		return snaps, nil
	}

	membersByGroup, err := r.membersFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range snaps {
		snaps[i].Group.Members = membersByGroup[snaps[i].Group.ID]
	}
	return snaps, nil
}

func (r *GroupRepo) membersFor(ctx context.Context, groupIDs []string) (map[string][]string, error) {
	query, args, err := sqlx.In(
		`SELECT group_id, user_id FROM group_members WHERE group_id IN (?) ORDER BY joined_at, user_id`, groupIDs)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryxContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("groupRepo.membersFor: %w", err)
	}
	defer rows.Close()

	byGroup := map[string][]string{}
	for rows.Next() {
		var groupID, userID string
		if err := rows.Scan(&groupID, &userID); err != nil {
			return nil, err
		}
		byGroup[groupID] = append(byGroup[groupID], userID)
	}
	return byGroup, rows.Err()
}

// RecordMessage appends to the group log and updates the summary in one
// transaction: last message fields including the sender's display name, the
// sender's unread reset and atomic increments for every other member.
func (r *GroupRepo) RecordMessage(ctx context.Context, group models.GroupConversation, senderID, senderName, text string) (models.GroupMessage, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.GroupMessage{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var msg models.GroupMessage
	err = tx.QueryRowxContext(ctx,
		`INSERT INTO group_messages (id, group_id, sender_id, text)
         VALUES ($1, $2, $3, $4)
         RETURNING id, group_id, sender_id, text, created_at`,
		uuid.NewString(), group.ID, senderID, text).StructScan(&msg)
	if err != nil {
		return models.GroupMessage{}, fmt.Errorf("groupRepo.RecordMessage append: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE groups SET last_message=$1, last_sender_id=$2, last_sender_name=$3, last_time=$4 WHERE id=$5`,
		text, senderID, senderName, msg.CreatedAt, group.ID)
	if err != nil {
		return models.GroupMessage{}, fmt.Errorf("groupRepo.RecordMessage summary: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO group_unread (group_id, user_id, count) VALUES ($1, $2, 0)
         ON CONFLICT (group_id, user_id) DO UPDATE SET count = 0`,
		group.ID, senderID)
	if err != nil {
		return models.GroupMessage{}, fmt.Errorf("groupRepo.RecordMessage reset: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO group_unread (group_id, user_id, count)
         SELECT group_id, user_id, 1 FROM group_members WHERE group_id=$1 AND user_id <> $2
         ON CONFLICT (group_id, user_id) DO UPDATE SET count = group_unread.count + 1`,
		group.ID, senderID)
	if err != nil {
		return models.GroupMessage{}, fmt.Errorf("groupRepo.RecordMessage increment: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return models.GroupMessage{}, err
	}
	return msg, nil
}

// ResetUnread zeroes the member's own unread counter only.
func (r *GroupRepo) ResetUnread(ctx context.Context, groupID, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO group_unread (group_id, user_id, count) VALUES ($1, $2, 0)
         ON CONFLICT (group_id, user_id) DO UPDATE SET count = 0`,
		groupID, userID)
	if err != nil {
		return fmt.Errorf("groupRepo.ResetUnread: %w", err)
	}
	return nil
}

// UnreadCounts returns the whole unread mapping of a group.
func (r *GroupRepo) UnreadCounts(ctx context.Context, groupID string) (map[string]int, error) {
	rows, err := r.db.QueryxContext(ctx, `SELECT user_id, count FROM group_unread WHERE group_id=$1`, groupID)
	if err != nil {
		return nil, fmt.Errorf("groupRepo.UnreadCounts: %w", err)
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var userID string
		var count int
		if err := rows.Scan(&userID, &count); err != nil {
			return nil, err
		}
		counts[userID] = count
	}
	return counts, rows.Err()
}

// TogglePin flips the pinned flag and returns the new value.
func (r *GroupRepo) TogglePin(ctx context.Context, groupID string) (bool, error) {
	var pinned bool
	err := r.db.QueryRowxContext(ctx, `UPDATE groups SET pinned = NOT pinned WHERE id=$1 RETURNING pinned`, groupID).Scan(&pinned)
	if errors.Is(err, sql.ErrNoRows) {
		return false, ErrGroupNotFound
	}
	return pinned, err
}

// Leave removes the user from the member list and drops the user's unread
// row, keeping the unread mapping keyed by current members only. The group
// and its log persist for the remaining members.
func (r *GroupRepo) Leave(ctx context.Context, groupID, userID string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `DELETE FROM group_members WHERE group_id=$1 AND user_id=$2`, groupID, userID)
	if err != nil {
		return fmt.Errorf("groupRepo.Leave: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		err = ErrNotMember
		return err
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM group_unread WHERE group_id=$1 AND user_id=$2`, groupID, userID); err != nil {
		return fmt.Errorf("groupRepo.Leave unread: %w", err)
	}
	return tx.Commit()
}

// Delete removes the group, its member list and unread counters. The message
// log is left in place.
func (r *GroupRepo) Delete(ctx context.Context, groupID string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `DELETE FROM groups WHERE id=$1`, groupID)
	if err != nil {
		return fmt.Errorf("groupRepo.Delete: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		err = ErrGroupNotFound
		return err
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM group_members WHERE group_id=$1`, groupID); err != nil {
		return fmt.Errorf("groupRepo.Delete members: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM group_unread WHERE group_id=$1`, groupID); err != nil {
		return fmt.Errorf("groupRepo.Delete unread: %w", err)
	}
	return tx.Commit()
}

// ReconcileSummary recomputes the last message fields from the log tail.
// The sender display name cannot be recovered from the log and is reconciled
// separately by the caller if needed.
func (r *GroupRepo) ReconcileSummary(ctx context.Context, groupID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE groups SET last_message = m.text, last_time = m.created_at, last_sender_id = m.sender_id
         FROM (SELECT text, sender_id, created_at FROM group_messages WHERE group_id=$1 ORDER BY created_at DESC LIMIT 1) m
         WHERE groups.id = $1`, groupID)
	if err != nil {
		return fmt.Errorf("groupRepo.ReconcileSummary: %w", err)
	}
	return nil
}
