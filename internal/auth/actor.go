// Package auth describes who is calling.
package auth

// Actor is the authenticated caller. StoreID is set for staff members and
// names the store they work for.
type Actor struct {
	UserID  int64
	StoreID *int64
}

func (a Actor) StaffOf(storeID int64) bool {
	return a.StoreID != nil && *a.StoreID == storeID
}

func (a Actor) IsStaff() bool {
	return a.StoreID != nil
}
