package neocities

// Gateway is the raw transport surface: every call returns the response body as text.
type Gateway interface {
	Get(endpoint string) (string, error)
	PostMultipart(endpoint string, parts []Part) (string, error)
	PostQuery(endpoint string, pairs []QueryPair) (string, error)
}

// ClientAPI defines the methods required to interact with Neocities.
// It mirrors the concrete client so it can be mocked in tests.
type ClientAPI interface {
	Gateway
	Info() (string, error)
	InfoNoAuth(siteName string) (string, error)
	ListAll() (string, error)
	List(path string) (string, error)
	Upload(localPath, remotePath string) (string, error)
	UploadMultiple(paths []UploadPath) (string, error)
	UploadBytes(data []byte, remotePath string) (string, error)
	UploadBytesMultiple(parts []Part) (string, error)
	Delete(path string) (string, error)
	DeleteMultiple(paths []string) (string, error)
	GetKey() (string, error)
}
