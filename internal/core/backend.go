package core

import "context"

// Backend is the capability set every platform family implements. Exactly one
// Backend is bound per process.
type Backend interface {
	// Name identifies the backend family ("desktop", "mobile").
	Name() string

	Ping(ctx context.Context, req PingRequest) (PingResponse, error)

	DownloadPrivate(ctx context.Context, req DownloadPrivateRequest) (DownloadResponse, error)
	DownloadPublic(ctx context.Context, req DownloadPublicRequest) (DownloadResponse, error)

	SaveFilePrivateFromBuffer(ctx context.Context, req SaveFilePrivateFromBufferRequest) (DownloadResponse, error)
	SaveFilePublicFromBuffer(ctx context.Context, req SaveFilePublicFromBufferRequest) (DownloadResponse, error)

	SaveFilePrivateFromPath(ctx context.Context, req SaveFilePrivateFromPathRequest) (DownloadResponse, error)
	SaveFilePublicFromPath(ctx context.Context, req SaveFilePublicFromPathRequest) (DownloadResponse, error)

	// CopyFilePath copies src to dest, creating dest's parent, and returns dest.
	CopyFilePath(ctx context.Context, src, dest string) (string, error)
}
