// Package services removes service and driver registrations.
package services

// Manager deletes services by name. Deleting a service that does not exist
// returns a sysops NotFound error.
type Manager interface {
	Delete(name string) error
}
