package uploadbroker

import "time"

// ObjectStatus is the value of the store-side status attribute.
type ObjectStatus string

const (
	// StatusUploaded marks an object whose upload has been confirmed.
	StatusUploaded ObjectStatus = "uploaded"
)

// MetadataStatusKey is the name of the store metadata attribute that holds
// the object's upload status.
const MetadataStatusKey = "status"

// UploadGrant is a time-limited authorization for a single constrained
// deposit to one object key. URL is the destination endpoint; Fields are the
// form fields the client must include verbatim with the deposit.
type UploadGrant struct {
	URL       string            `json:"url"`
	Fields    map[string]string `json:"fields"`
	ExpiresAt time.Time         `json:"expires_at"`
}

// DownloadGrant is a time-limited, read-only reference to one object.
type DownloadGrant struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Upload is the result of reserving a new object identifier.
type Upload struct {
	ID    string       `json:"id"`
	Grant *UploadGrant `json:"grant"`
}

// ObjectMeta contains metadata about an object in storage. Metadata holds
// the store's user-defined attributes only; well-known fields are lifted
// into their own members.
type ObjectMeta struct {
	Key         string
	Size        int64
	ContentType string
	UpdatedAt   time.Time
	ETag        string
	Metadata    map[string]string
}

// Uploaded reports whether the object's status attribute equals "uploaded".
// Absence of the attribute, or any other value, yields false.
func (m *ObjectMeta) Uploaded() bool {
	return m.Metadata[MetadataStatusKey] == string(StatusUploaded)
}
