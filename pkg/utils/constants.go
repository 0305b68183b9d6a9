package utils

const (
	ServiceCreated   = "service added"
	ServiceUpdated   = "service updated"
	ServiceDeleted   = "service removed"
	ServiceRefreshed = "refresh scheduled"
	ServicesListed   = "services retrieved"
)
