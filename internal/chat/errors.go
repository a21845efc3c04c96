package chat

import "errors"

// Typed failures surfaced to the transport layer. Write operations either
// fully succeed or fail with one of these; storage errors pass through
// wrapped, never swallowed.
var (
	// ErrNotAMember: the caller has no membership in the room.
	ErrNotAMember = errors.New("not a room member")
	// ErrForbidden: action-specific denial, e.g. deleting another
	// sender's message.
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound: room, message, or membership does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidRoomKind: unrecognized room kind on creation.
	ErrInvalidRoomKind = errors.New("invalid room kind")
	// ErrInvalidMembership: a personal room request did not resolve to
	// exactly one other member.
	ErrInvalidMembership = errors.New("invalid membership")
)
