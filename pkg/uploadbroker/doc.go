// Package uploadbroker brokers client access to an object store without
// handing out storage credentials. It issues short-lived, scoped upload and
// download grants and tracks whether an object has completed its upload
// lifecycle through a single status attribute kept on the object itself.
//
// The package exposes a Service interface with three operations: reserve a
// new identifier together with its upload grant, confirm that an upload has
// completed, and request a download grant for a completed object. All state
// lives in the backing store; the service holds no state of its own and
// queries the store fresh on every request. Blob store implementations
// (memory, filesystem, S3) are provided under the storage subpackages.
package uploadbroker
