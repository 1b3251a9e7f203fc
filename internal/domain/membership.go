package domain

import "context"

// MembershipStore maps a user identity to the room that user most recently joined.
// A later RecordJoin for the same user overwrites the earlier one.
type MembershipStore interface {
	RecordJoin(ctx context.Context, userID, roomID string) error
	CurrentRoom(ctx context.Context, userID string) (string, bool, error)
	// Forget removes the record for userID, but only while it still points at roomID.
	Forget(ctx context.Context, userID, roomID string) error
}
