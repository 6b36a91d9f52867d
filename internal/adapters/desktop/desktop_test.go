package desktop

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/melih-ucgun/pldownloader/internal/core"
)

const (
	dataRoot   = "/data/com.example.app"
	publicRoot = "/home/user/Downloads"
)

type stubFetcher struct {
	body        string
	contentType string
	suggested   string
	err         error
	calls       int
}

func (f *stubFetcher) Fetch(ctx context.Context, rawURL string) (*core.Fetched, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &core.Fetched{
		Body:          io.NopCloser(strings.NewReader(f.body)),
		ContentType:   f.contentType,
		SuggestedName: f.suggested,
	}, nil
}

func newTestBackend(t *testing.T, mutate func(*Options)) (*Backend, afero.Fs, afero.Fs) {
	t.Helper()
	storage := afero.NewMemMapFs()
	source := afero.NewMemMapFs()
	opts := Options{
		Storage:    storage,
		Source:     source,
		DataRoot:   dataRoot,
		PublicRoot: publicRoot,
	}
	if mutate != nil {
		mutate(&opts)
	}
	b, err := New(opts)
	require.NoError(t, err)
	return b, storage, source
}

func readFile(t *testing.T, fsys afero.Fs, path string) string {
	t.Helper()
	data, err := afero.ReadFile(fsys, path)
	require.NoError(t, err)
	return string(data)
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Options{PublicRoot: publicRoot})
	assert.Error(t, err)

	_, err = New(Options{DataRoot: dataRoot})
	assert.Error(t, err)

	_, err = New(Options{DataRoot: dataRoot, PublicRoot: publicRoot, OnConflict: "merge"})
	assert.Error(t, err)
}

func TestPing(t *testing.T) {
	b, _, _ := newTestBackend(t, nil)
	ctx := context.Background()

	resp, err := b.Ping(ctx, core.PingRequest{Value: core.String("hello")})
	require.NoError(t, err)
	assert.Equal(t, "hello", core.Deref(resp.Value))

	resp, err = b.Ping(ctx, core.PingRequest{})
	require.NoError(t, err)
	assert.Nil(t, resp.Value)
}

func TestSaveFromBuffer(t *testing.T) {
	b, storage, _ := newTestBackend(t, nil)
	ctx := context.Background()

	t.Run("private", func(t *testing.T) {
		resp, err := b.SaveFilePrivateFromBuffer(ctx, core.SaveFilePrivateFromBufferRequest{
			Data:     core.Bytes{1, 2, 3},
			FileName: "blob.bin",
		})
		require.NoError(t, err)

		want := filepath.Join(dataRoot, "private", "blob.bin")
		assert.Equal(t, "blob.bin", resp.FileName)
		assert.Equal(t, want, core.Deref(resp.Path))
		assert.Nil(t, resp.URI)
		assert.Equal(t, "\x01\x02\x03", readFile(t, storage, want))
	})

	t.Run("public", func(t *testing.T) {
		resp, err := b.SaveFilePublicFromBuffer(ctx, core.SaveFilePublicFromBufferRequest{
			Data:     core.Bytes("report"),
			FileName: "report.txt",
			MimeType: core.String("text/plain"),
		})
		require.NoError(t, err)

		want := filepath.Join(publicRoot, "report.txt")
		assert.Equal(t, want, core.Deref(resp.Path))
		assert.Equal(t, "report", readFile(t, storage, want))
	})

	t.Run("empty buffer", func(t *testing.T) {
		resp, err := b.SaveFilePrivateFromBuffer(ctx, core.SaveFilePrivateFromBufferRequest{FileName: "empty"})
		require.NoError(t, err)
		assert.Equal(t, "", readFile(t, storage, core.Deref(resp.Path)))
	})
}

func TestSaveFromBuffer_InvalidName(t *testing.T) {
	b, storage, _ := newTestBackend(t, nil)

	for _, name := range []string{"", "..", "../escape.txt", "a/b"} {
		t.Run(fmt.Sprintf("%q", name), func(t *testing.T) {
			_, err := b.SaveFilePrivateFromBuffer(context.Background(), core.SaveFilePrivateFromBufferRequest{
				Data:     core.Bytes("x"),
				FileName: name,
			})
			assert.True(t, errors.Is(err, core.ErrIO))
			assert.True(t, errors.Is(err, core.ErrInvalidFileName))
		})
	}

	exists, _ := afero.DirExists(storage, filepath.Join(dataRoot, "private"))
	assert.False(t, exists, "no directory may be created for a rejected name")
}

func TestSave_Overwrite(t *testing.T) {
	b, storage, _ := newTestBackend(t, nil)
	ctx := context.Background()

	for _, content := range []string{"first", "second"} {
		_, err := b.SaveFilePrivateFromBuffer(ctx, core.SaveFilePrivateFromBufferRequest{
			Data:     core.Bytes(content),
			FileName: "same.txt",
		})
		require.NoError(t, err)
	}

	assert.Equal(t, "second", readFile(t, storage, filepath.Join(dataRoot, "private", "same.txt")))

	entries, err := afero.ReadDir(storage, filepath.Join(dataRoot, "private"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestSave_RenameOnConflict(t *testing.T) {
	b, storage, _ := newTestBackend(t, func(o *Options) { o.OnConflict = ConflictRename })
	ctx := context.Background()

	var names []string
	for i := 0; i < 3; i++ {
		resp, err := b.SaveFilePublicFromBuffer(ctx, core.SaveFilePublicFromBufferRequest{
			Data:     core.Bytes(fmt.Sprint(i)),
			FileName: "photo.jpg",
		})
		require.NoError(t, err)
		names = append(names, resp.FileName)
	}

	assert.Equal(t, []string{"photo.jpg", "photo (1).jpg", "photo (2).jpg"}, names)
	assert.Equal(t, "2", readFile(t, storage, filepath.Join(publicRoot, "photo (2).jpg")))
}

func TestSaveFromPath(t *testing.T) {
	b, storage, source := newTestBackend(t, nil)
	ctx := context.Background()
	require.NoError(t, afero.WriteFile(source, "/tmp/in/notes.md", []byte("# notes"), 0o644))

	t.Run("private keeps base name", func(t *testing.T) {
		resp, err := b.SaveFilePrivateFromPath(ctx, core.SaveFilePrivateFromPathRequest{SourcePath: "/tmp/in/notes.md"})
		require.NoError(t, err)
		assert.Equal(t, "notes.md", resp.FileName)
		assert.Equal(t, "# notes", readFile(t, storage, filepath.Join(dataRoot, "private", "notes.md")))
	})

	t.Run("public with explicit name", func(t *testing.T) {
		resp, err := b.SaveFilePublicFromPath(ctx, core.SaveFilePublicFromPathRequest{
			SourcePath: "/tmp/in/notes.md",
			FileName:   core.String("renamed.md"),
		})
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(publicRoot, "renamed.md"), core.Deref(resp.Path))
		assert.Equal(t, "# notes", readFile(t, storage, core.Deref(resp.Path)))
	})
}

func TestSaveFromPath_MissingSource(t *testing.T) {
	b, storage, source := newTestBackend(t, nil)
	ctx := context.Background()
	require.NoError(t, source.MkdirAll("/tmp/dir", 0o755))

	tests := []struct {
		name string
		path string
	}{
		{"missing", "/tmp/missing.txt"},
		{"empty", ""},
		{"directory", "/tmp/dir"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := b.SaveFilePrivateFromPath(ctx, core.SaveFilePrivateFromPathRequest{SourcePath: tt.path})
			assert.True(t, errors.Is(err, core.ErrNotFound), "got %v", err)

			_, err = b.SaveFilePublicFromPath(ctx, core.SaveFilePublicFromPathRequest{SourcePath: tt.path})
			assert.True(t, errors.Is(err, core.ErrNotFound), "got %v", err)
		})
	}

	for _, dir := range []string{filepath.Join(dataRoot, "private"), publicRoot} {
		exists, _ := afero.DirExists(storage, dir)
		assert.False(t, exists, "%s must not be created", dir)
	}
}

func TestCopyFilePath(t *testing.T) {
	b, _, source := newTestBackend(t, nil)
	ctx := context.Background()
	require.NoError(t, afero.WriteFile(source, "/src/a.txt", []byte("payload"), 0o644))

	dest := "/out/nested/deeper/a-copy.txt"
	got, err := b.CopyFilePath(ctx, "/src/a.txt", dest)
	require.NoError(t, err)
	assert.Equal(t, dest, got)
	assert.Equal(t, "payload", readFile(t, source, dest))

	// Existing destinations are replaced.
	require.NoError(t, afero.WriteFile(source, "/src/a.txt", []byte("v2"), 0o644))
	_, err = b.CopyFilePath(ctx, "/src/a.txt", dest)
	require.NoError(t, err)
	assert.Equal(t, "v2", readFile(t, source, dest))
}

func TestCopyFilePath_Errors(t *testing.T) {
	b, _, source := newTestBackend(t, nil)
	ctx := context.Background()

	_, err := b.CopyFilePath(ctx, "/nope.txt", "/out/x.txt")
	assert.True(t, errors.Is(err, core.ErrNotFound))
	exists, _ := afero.DirExists(source, "/out")
	assert.False(t, exists)

	require.NoError(t, afero.WriteFile(source, "/src/a.txt", []byte("x"), 0o644))
	_, err = b.CopyFilePath(ctx, "/src/a.txt", "")
	assert.True(t, errors.Is(err, core.ErrIO))
}

func TestCopyFilePath_OntoDirectory(t *testing.T) {
	dir := t.TempDir()
	osFs := afero.NewOsFs()
	b, err := New(Options{Storage: osFs, Source: osFs, DataRoot: filepath.Join(dir, "data"), PublicRoot: filepath.Join(dir, "public")})
	require.NoError(t, err)

	src := filepath.Join(dir, "src.txt")
	require.NoError(t, os.WriteFile(src, []byte("payload"), 0o644))
	dest := filepath.Join(dir, "target")
	require.NoError(t, os.Mkdir(dest, 0o755))

	_, err = b.CopyFilePath(context.Background(), src, dest)
	assert.True(t, errors.Is(err, core.ErrIO), "got %v", err)

	info, err := os.Stat(dest)
	require.NoError(t, err)
	assert.True(t, info.IsDir(), "existing directory must be left in place")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "no temp file may be left behind")
}

func TestSave_NameTakenByDirectory(t *testing.T) {
	b, storage, _ := newTestBackend(t, nil)
	taken := filepath.Join(dataRoot, "private", "taken")
	require.NoError(t, storage.MkdirAll(taken, 0o755))

	_, err := b.SaveFilePrivateFromBuffer(context.Background(), core.SaveFilePrivateFromBufferRequest{
		Data:     core.Bytes("x"),
		FileName: "taken",
	})
	assert.True(t, errors.Is(err, core.ErrIO), "got %v", err)

	isDir, _ := afero.IsDir(storage, taken)
	assert.True(t, isDir)
}

func TestRename_KeepsDirectoryTarget(t *testing.T) {
	dir := t.TempDir()
	osFs := afero.NewOsFs()
	from := filepath.Join(dir, "from.tmp")
	to := filepath.Join(dir, "to")
	require.NoError(t, os.WriteFile(from, []byte("x"), 0o644))
	require.NoError(t, os.Mkdir(to, 0o755))

	assert.Error(t, rename(osFs, from, to))

	info, err := os.Stat(to)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestDownload_WithoutFetcher(t *testing.T) {
	b, _, _ := newTestBackend(t, nil)
	ctx := context.Background()

	_, err := b.DownloadPrivate(ctx, core.DownloadPrivateRequest{URL: "https://example.com/a.txt"})
	assert.True(t, errors.Is(err, core.ErrUnsupported))

	_, err = b.DownloadPublic(ctx, core.DownloadPublicRequest{URL: "https://example.com/a.txt"})
	assert.True(t, errors.Is(err, core.ErrUnsupported))
	assert.False(t, errors.Is(err, core.ErrIO))
}

func TestDownload_WithFetcher(t *testing.T) {
	ctx := context.Background()

	t.Run("name from url", func(t *testing.T) {
		fetcher := &stubFetcher{body: "pdf-bytes"}
		b, storage, _ := newTestBackend(t, func(o *Options) { o.Fetcher = fetcher })

		resp, err := b.DownloadPrivate(ctx, core.DownloadPrivateRequest{URL: "https://example.com/docs/manual.pdf?v=2"})
		require.NoError(t, err)
		assert.Equal(t, "manual.pdf", resp.FileName)
		assert.Equal(t, "pdf-bytes", readFile(t, storage, filepath.Join(dataRoot, "private", "manual.pdf")))
	})

	t.Run("server suggested name", func(t *testing.T) {
		fetcher := &stubFetcher{body: "x", suggested: "export.csv"}
		b, _, _ := newTestBackend(t, func(o *Options) { o.Fetcher = fetcher })

		resp, err := b.DownloadPublic(ctx, core.DownloadPublicRequest{URL: "https://example.com/api/export"})
		require.NoError(t, err)
		assert.Equal(t, "export.csv", resp.FileName)
		assert.Equal(t, filepath.Join(publicRoot, "export.csv"), core.Deref(resp.Path))
	})

	t.Run("fallback name", func(t *testing.T) {
		fetcher := &stubFetcher{body: "x"}
		b, _, _ := newTestBackend(t, func(o *Options) { o.Fetcher = fetcher })

		resp, err := b.DownloadPrivate(ctx, core.DownloadPrivateRequest{URL: "https://example.com/"})
		require.NoError(t, err)
		assert.Equal(t, core.DefaultFileName, resp.FileName)
	})

	t.Run("invalid name rejected before fetching", func(t *testing.T) {
		fetcher := &stubFetcher{body: "x"}
		b, _, _ := newTestBackend(t, func(o *Options) { o.Fetcher = fetcher })

		_, err := b.DownloadPrivate(ctx, core.DownloadPrivateRequest{
			URL:      "https://example.com/a",
			FileName: core.String("../../etc/passwd"),
		})
		assert.True(t, errors.Is(err, core.ErrInvalidFileName))
		assert.Zero(t, fetcher.calls)
	})

	t.Run("fetch error", func(t *testing.T) {
		fetcher := &stubFetcher{err: errors.New("connection refused")}
		b, _, _ := newTestBackend(t, func(o *Options) { o.Fetcher = fetcher })

		_, err := b.DownloadPrivate(ctx, core.DownloadPrivateRequest{URL: "https://example.com/a"})
		assert.True(t, errors.Is(err, core.ErrIO))
	})
}

func TestPublicRules(t *testing.T) {
	images, err := core.CompileCondition(`MimeType startsWith "image/"`)
	require.NoError(t, err)
	videos, err := core.CompileCondition(`Ext in ["mp4", "mov"]`)
	require.NoError(t, err)

	fetcher := &stubFetcher{body: "img", contentType: "image/png"}
	b, storage, _ := newTestBackend(t, func(o *Options) {
		o.Fetcher = fetcher
		o.Rules = []Rule{{When: images, Subdir: "Pictures"}, {When: videos, Subdir: "Movies"}}
	})
	ctx := context.Background()

	resp, err := b.DownloadPublic(ctx, core.DownloadPublicRequest{URL: "https://example.com/raw"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(publicRoot, "Pictures", "raw"), core.Deref(resp.Path))

	resp, err = b.SaveFilePublicFromBuffer(ctx, core.SaveFilePublicFromBufferRequest{Data: core.Bytes("v"), FileName: "clip.MOV"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(publicRoot, "Movies", "clip.MOV"), core.Deref(resp.Path))

	resp, err = b.SaveFilePublicFromBuffer(ctx, core.SaveFilePublicFromBufferRequest{Data: core.Bytes("d"), FileName: "notes.txt"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(publicRoot, "notes.txt"), core.Deref(resp.Path))

	// Private storage ignores public rules.
	resp, err = b.SaveFilePrivateFromBuffer(ctx, core.SaveFilePrivateFromBufferRequest{Data: core.Bytes("p"), FileName: "pic.png"})
	require.NoError(t, err)
	assert.Equal(t, "p", readFile(t, storage, filepath.Join(dataRoot, "private", "pic.png")))
}

func TestSave_Concurrent(t *testing.T) {
	b, storage, _ := newTestBackend(t, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := b.SaveFilePrivateFromBuffer(ctx, core.SaveFilePrivateFromBufferRequest{
				Data:     core.Bytes(strings.Repeat(fmt.Sprint(i%10), 64)),
				FileName: "shared.bin",
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	content := readFile(t, storage, filepath.Join(dataRoot, "private", "shared.bin"))
	require.Len(t, content, 64)
	assert.Equal(t, strings.Repeat(content[:1], 64), content, "content must come from exactly one writer")
}
