package mobile

import (
	"context"
	"errors"
	"log/slog"

	"github.com/melih-ucgun/pldownloader/internal/bridge"
	"github.com/melih-ucgun/pldownloader/internal/core"
)

// Backend forwards operations to native code through a bridge.Caller.
// Storage locations are decided entirely on the native side.
type Backend struct {
	caller bridge.Caller
	logger *slog.Logger
}

func New(caller bridge.Caller, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{caller: caller, logger: logger}
}

func (b *Backend) Name() string { return string(core.FamilyMobile) }

func (b *Backend) Ping(ctx context.Context, req core.PingRequest) (core.PingResponse, error) {
	var resp core.PingResponse
	if err := b.call(ctx, core.OpPing, req, &resp); err != nil {
		return core.PingResponse{}, err
	}
	return resp, nil
}

func (b *Backend) DownloadPrivate(ctx context.Context, req core.DownloadPrivateRequest) (core.DownloadResponse, error) {
	return b.download(ctx, core.OpDownloadPrivate, req)
}

func (b *Backend) DownloadPublic(ctx context.Context, req core.DownloadPublicRequest) (core.DownloadResponse, error) {
	return b.download(ctx, core.OpDownloadPublic, req)
}

func (b *Backend) SaveFilePrivateFromBuffer(ctx context.Context, req core.SaveFilePrivateFromBufferRequest) (core.DownloadResponse, error) {
	return core.DownloadResponse{}, b.unsupported(core.OpSaveFilePrivateFromBuffer)
}

func (b *Backend) SaveFilePublicFromBuffer(ctx context.Context, req core.SaveFilePublicFromBufferRequest) (core.DownloadResponse, error) {
	return core.DownloadResponse{}, b.unsupported(core.OpSaveFilePublicFromBuffer)
}

func (b *Backend) SaveFilePrivateFromPath(ctx context.Context, req core.SaveFilePrivateFromPathRequest) (core.DownloadResponse, error) {
	return core.DownloadResponse{}, b.unsupported(core.OpSaveFilePrivateFromPath)
}

func (b *Backend) SaveFilePublicFromPath(ctx context.Context, req core.SaveFilePublicFromPathRequest) (core.DownloadResponse, error) {
	return core.DownloadResponse{}, b.unsupported(core.OpSaveFilePublicFromPath)
}

func (b *Backend) CopyFilePath(ctx context.Context, src, dest string) (string, error) {
	return "", b.unsupported(core.OpCopyFilePath)
}

func (b *Backend) download(ctx context.Context, op string, req any) (core.DownloadResponse, error) {
	var resp core.DownloadResponse
	if err := b.call(ctx, op, req, &resp); err != nil {
		return core.DownloadResponse{}, err
	}
	var missing string
	switch {
	case resp.FileName == "":
		missing = "fileName"
	case resp.Location() == "":
		missing = "uri or path"
	}
	if missing != "" {
		err := core.PlatformCallFailed(op, nil, "native response is missing %s", missing)
		b.logger.Warn("Remote call failed", "op", op, "error", err)
		return core.DownloadResponse{}, err
	}
	b.logger.Debug("Remote call done", "op", op, "file", resp.FileName, "location", resp.Location())
	return resp, nil
}

// call performs exactly one remote call. Every failure, including a caller
// that stopped waiting, is a PlatformCallFailed.
func (b *Backend) call(ctx context.Context, op string, req, resp any) error {
	err := b.caller.Call(ctx, op, req, resp)
	if err == nil {
		return nil
	}
	var coreErr *core.Error
	if errors.As(err, &coreErr) && coreErr.Kind == core.KindPlatformCallFailed {
		return err
	}
	err = core.PlatformCallFailed(op, err, "remote call failed")
	b.logger.Warn("Remote call failed", "op", op, "error", err)
	return err
}

func (b *Backend) unsupported(op string) error {
	return core.Unsupported(op, "not forwarded to native code on mobile")
}
