package domain

import "time"

// DirectoryProfile holds the attributes fetched from the directory after a
// successful bind. It is produced fresh on every authentication and never
// cached across requests.
type DirectoryProfile struct {
	Username    string
	Email       *string
	DisplayName *string
	CommonName  *string
	Department  *string
	Title       *string
	Phone       *string
	// Groups carries the raw memberOf distinguished names in directory order.
	Groups []string
}

// LocalIdentity mirrors the persisted representation in the identities table.
// The profile mirror columns are overwritten wholesale on each successful
// login; IsActive and IsPrivileged are administrator-owned and survive syncs.
type LocalIdentity struct {
	Username          string
	Email             *string
	DisplayName       *string
	CommonName        *string
	Department        *string
	Title             *string
	Phone             *string
	Groups            []string
	IsActive          bool
	IsPrivileged      bool
	FirstSeen         time.Time
	LastLogin         time.Time
	LastDirectorySync time.Time
}

// ApplyProfile overwrites the directory-owned mirror fields from the supplied
// profile and advances the login and sync timestamps. Status flags are left
// untouched.
func (i *LocalIdentity) ApplyProfile(profile DirectoryProfile, at time.Time) {
	i.Email = profile.Email
	i.DisplayName = profile.DisplayName
	i.CommonName = profile.CommonName
	i.Department = profile.Department
	i.Title = profile.Title
	i.Phone = profile.Phone
	i.Groups = append([]string(nil), profile.Groups...)
	i.LastLogin = at
	i.LastDirectorySync = at
}

// NewLocalIdentity builds the identity record created on a user's first
// successful authentication.
func NewLocalIdentity(profile DirectoryProfile, at time.Time) LocalIdentity {
	identity := LocalIdentity{
		Username:     profile.Username,
		IsActive:     true,
		IsPrivileged: false,
		FirstSeen:    at,
	}
	identity.ApplyProfile(profile, at)
	return identity
}
