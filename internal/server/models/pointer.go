// Package models defines server-side data models persisted in the database.
package models

// ContentPointer maps a logical object id to the physical blob currently
// holding its ciphertext. Version starts at 1 on first write and is bumped
// by the database on every accepted update.
type ContentPointer struct {
	ObjectID  string
	OwnerID   string
	StorageID string
	Version   uint64
}
