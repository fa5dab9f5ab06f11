package inventory

// Admins is the read-only set of Telegram user ids with admin privileges.
type Admins struct {
	ids map[int64]struct{}
}

// NewAdmins builds the admin set. It is never modified afterwards.
func NewAdmins(ids ...int64) Admins {
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return Admins{ids: set}
}

// Contains reports whether userID is an admin.
func (a Admins) Contains(userID int64) bool {
	_, ok := a.ids[userID]
	return ok
}

