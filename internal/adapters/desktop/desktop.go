package desktop

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/melih-ucgun/pldownloader/internal/core"
)

// ConflictPolicy decides what happens when the target name is taken.
type ConflictPolicy string

const (
	ConflictOverwrite ConflictPolicy = "overwrite"
	ConflictRename    ConflictPolicy = "rename"
)

// PrivateDirName is the directory under the data root that holds private files.
const PrivateDirName = "private"

// Rule places public files matching When under PublicRoot/Subdir.
type Rule struct {
	When   *core.Condition
	Subdir string
}

type Options struct {
	// Storage holds the private and public roots. Defaults to the OS file system.
	Storage afero.Fs
	// Source is where SourcePath and CopyFilePath paths live. Defaults to the OS file system.
	Source afero.Fs

	DataRoot   string // app-scoped data root, private files go to DataRoot/private
	PublicRoot string // user-visible downloads directory

	// Fetcher enables DownloadPrivate/DownloadPublic. Nil keeps them Unsupported.
	Fetcher    core.Fetcher
	OnConflict ConflictPolicy
	Rules      []Rule

	Logger *slog.Logger
}

// Backend performs every operation directly against the file system.
type Backend struct {
	storage    afero.Fs
	source     afero.Fs
	privateDir string
	publicRoot string
	fetcher    core.Fetcher
	onConflict ConflictPolicy
	rules      []Rule
	logger     *slog.Logger
}

func New(opts Options) (*Backend, error) {
	if opts.DataRoot == "" {
		return nil, fmt.Errorf("desktop backend: data root is required")
	}
	if opts.PublicRoot == "" {
		return nil, fmt.Errorf("desktop backend: public root is required")
	}

	b := &Backend{
		storage:    opts.Storage,
		source:     opts.Source,
		privateDir: filepath.Join(opts.DataRoot, PrivateDirName),
		publicRoot: opts.PublicRoot,
		fetcher:    opts.Fetcher,
		onConflict: opts.OnConflict,
		rules:      opts.Rules,
		logger:     opts.Logger,
	}
	if b.storage == nil {
		b.storage = afero.NewOsFs()
	}
	if b.source == nil {
		b.source = afero.NewOsFs()
	}
	if b.onConflict == "" {
		b.onConflict = ConflictOverwrite
	}
	if b.onConflict != ConflictOverwrite && b.onConflict != ConflictRename {
		return nil, fmt.Errorf("desktop backend: unknown conflict policy %q", b.onConflict)
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}
	return b, nil
}

func (b *Backend) Name() string { return string(core.FamilyDesktop) }

// PrivateDir is the directory private files are written to.
func (b *Backend) PrivateDir() string { return b.privateDir }

// PublicRoot is the base directory for public files.
func (b *Backend) PublicRoot() string { return b.publicRoot }

func (b *Backend) Ping(ctx context.Context, req core.PingRequest) (core.PingResponse, error) {
	return core.PingResponse{Value: req.Value}, nil
}

func (b *Backend) DownloadPrivate(ctx context.Context, req core.DownloadPrivateRequest) (core.DownloadResponse, error) {
	resp, err := b.download(ctx, core.OpDownloadPrivate, req.URL, req.FileName, nil, false)
	return b.done(core.OpDownloadPrivate, resp, err)
}

func (b *Backend) DownloadPublic(ctx context.Context, req core.DownloadPublicRequest) (core.DownloadResponse, error) {
	resp, err := b.download(ctx, core.OpDownloadPublic, req.URL, req.FileName, req.MimeType, true)
	return b.done(core.OpDownloadPublic, resp, err)
}

func (b *Backend) SaveFilePrivateFromBuffer(ctx context.Context, req core.SaveFilePrivateFromBufferRequest) (core.DownloadResponse, error) {
	op := core.OpSaveFilePrivateFromBuffer
	resp, err := b.store(op, b.privateDir, req.FileName, newBytesReader(req.Data))
	return b.done(op, resp, err)
}

func (b *Backend) SaveFilePublicFromBuffer(ctx context.Context, req core.SaveFilePublicFromBufferRequest) (core.DownloadResponse, error) {
	op := core.OpSaveFilePublicFromBuffer
	dir, err := b.publicDir(op, req.FileName, core.Deref(req.MimeType))
	if err != nil {
		return b.done(op, core.DownloadResponse{}, err)
	}
	resp, err := b.store(op, dir, req.FileName, newBytesReader(req.Data))
	return b.done(op, resp, err)
}

func (b *Backend) SaveFilePrivateFromPath(ctx context.Context, req core.SaveFilePrivateFromPathRequest) (core.DownloadResponse, error) {
	op := core.OpSaveFilePrivateFromPath
	src, err := b.openSource(op, req.SourcePath)
	if err != nil {
		return b.done(op, core.DownloadResponse{}, err)
	}
	defer src.Close()

	name := core.ResolveFileName(req.FileName, filepath.Base(req.SourcePath))
	resp, err := b.store(op, b.privateDir, name, src)
	return b.done(op, resp, err)
}

func (b *Backend) SaveFilePublicFromPath(ctx context.Context, req core.SaveFilePublicFromPathRequest) (core.DownloadResponse, error) {
	op := core.OpSaveFilePublicFromPath
	src, err := b.openSource(op, req.SourcePath)
	if err != nil {
		return b.done(op, core.DownloadResponse{}, err)
	}
	defer src.Close()

	name := core.ResolveFileName(req.FileName, filepath.Base(req.SourcePath))
	dir, err := b.publicDir(op, name, core.Deref(req.MimeType))
	if err != nil {
		return b.done(op, core.DownloadResponse{}, err)
	}
	resp, err := b.store(op, dir, name, src)
	return b.done(op, resp, err)
}

// CopyFilePath copies src to dest on the source file system. dest is always
// overwritten, the conflict policy applies to storage roots only.
func (b *Backend) CopyFilePath(ctx context.Context, src, dest string) (string, error) {
	op := core.OpCopyFilePath
	if strings.TrimSpace(dest) == "" {
		return "", b.fail(op, core.IO(op, nil, "destination path is required"))
	}

	in, err := b.openSource(op, src)
	if err != nil {
		return "", b.fail(op, err)
	}
	defer in.Close()

	if err := b.source.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", b.fail(op, core.NotFound(op, err, "cannot create directory for %s", dest))
	}
	if err := writeAtomic(b.source, dest, in); err != nil {
		return "", b.fail(op, core.IO(op, err, "copy %s to %s", src, dest))
	}

	b.logger.Debug("File copied", "op", op, "src", src, "dest", dest)
	return dest, nil
}

func (b *Backend) download(ctx context.Context, op, rawURL string, fileName, mimeType *string, public bool) (core.DownloadResponse, error) {
	if b.fetcher == nil {
		return core.DownloadResponse{}, core.Unsupported(op, "download is not available on desktop without a fetcher")
	}
	if strings.TrimSpace(rawURL) == "" {
		return core.DownloadResponse{}, core.IO(op, nil, "url is required")
	}
	if fileName != nil && strings.TrimSpace(*fileName) != "" {
		if err := core.ValidateFileName(*fileName); err != nil {
			return core.DownloadResponse{}, core.IO(op, err, "invalid file name")
		}
	}

	fetched, err := b.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		var coreErr *core.Error
		if errors.As(err, &coreErr) {
			return core.DownloadResponse{}, err
		}
		return core.DownloadResponse{}, core.IO(op, err, "fetch %s", rawURL)
	}
	defer fetched.Body.Close()

	fallback := fetched.SuggestedName
	if core.ValidateFileName(fallback) != nil {
		fallback = core.FileNameFromURL(rawURL)
	}
	name := core.ResolveFileName(fileName, fallback)

	dir := b.privateDir
	if public {
		mt := core.Deref(mimeType)
		if mt == "" {
			mt = fetched.ContentType
		}
		if dir, err = b.publicDir(op, name, mt); err != nil {
			return core.DownloadResponse{}, err
		}
	}
	return b.store(op, dir, name, fetched.Body)
}

// store writes r to dir/name, honoring the conflict policy.
func (b *Backend) store(op, dir, name string, r io.Reader) (core.DownloadResponse, error) {
	if err := core.ValidateFileName(name); err != nil {
		return core.DownloadResponse{}, core.IO(op, err, "invalid file name")
	}
	if err := b.storage.MkdirAll(dir, 0o755); err != nil {
		return core.DownloadResponse{}, core.NotFound(op, err, "cannot create directory %s", dir)
	}

	if b.onConflict == ConflictRename {
		name = core.UniqueFileName(name, func(candidate string) bool {
			_, err := b.storage.Stat(filepath.Join(dir, candidate))
			return err == nil
		})
	}

	target := filepath.Join(dir, name)
	if err := writeAtomic(b.storage, target, r); err != nil {
		return core.DownloadResponse{}, core.IO(op, err, "write %s", target)
	}

	b.logger.Debug("File stored", "op", op, "file", name, "path", target)
	return core.DownloadResponse{FileName: name, Path: core.String(target)}, nil
}

// openSource checks that path names an existing, readable regular file.
func (b *Backend) openSource(op, path string) (afero.File, error) {
	if strings.TrimSpace(path) == "" {
		return nil, core.NotFound(op, nil, "source path is empty")
	}
	info, err := b.source.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, core.NotFound(op, err, "source %s does not exist", path)
		}
		return nil, core.IO(op, err, "stat %s", path)
	}
	if !info.Mode().IsRegular() {
		return nil, core.NotFound(op, nil, "source %s is not a regular file", path)
	}
	f, err := b.source.Open(path)
	if err != nil {
		return nil, core.NotFound(op, err, "source %s is not readable", path)
	}
	return f, nil
}

func (b *Backend) publicDir(op, name, mimeType string) (string, error) {
	if len(b.rules) == 0 {
		return b.publicRoot, nil
	}
	env := core.NewRuleEnv(name, mimeType)
	for _, rule := range b.rules {
		ok, err := rule.When.Match(env)
		if err != nil {
			return "", core.IO(op, err, "public rule %q", rule.When.String())
		}
		if ok {
			return filepath.Join(b.publicRoot, rule.Subdir), nil
		}
	}
	return b.publicRoot, nil
}

func (b *Backend) done(op string, resp core.DownloadResponse, err error) (core.DownloadResponse, error) {
	if err != nil {
		return core.DownloadResponse{}, b.fail(op, err)
	}
	return resp, nil
}

func (b *Backend) fail(op string, err error) error {
	b.logger.Warn("Operation failed", "op", op, "kind", core.KindOf(err).String(), "error", err)
	return err
}
