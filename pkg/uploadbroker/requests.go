package uploadbroker

// ConfirmUploadRequest carries a client's claim that an upload completed.
// Status must equal "uploaded"; anything else is rejected before the store
// is consulted.
type ConfirmUploadRequest struct {
	ObjectID string
	Status   string
}

// DownloadRequest asks for a download grant for an object. TTLSeconds is the
// requested grant lifetime; zero means "use the configured default" and a
// negative value is rejected.
type DownloadRequest struct {
	ObjectID   string
	TTLSeconds int
}
