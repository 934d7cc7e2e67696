package model

// FileEventType is the kind of change that happened on a file.
type FileEventType string

const (
	FileEventCreated  FileEventType = "created"
	FileEventModified FileEventType = "modified"
	FileEventDeleted  FileEventType = "deleted"
)

// FileEvent is a single file system change notification.
type FileEvent struct {
	Path string
	Type FileEventType
}
