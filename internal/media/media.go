package media

import (
	"bufio"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "golang.org/x/image/webp"
)

var ErrTooLarge = errors.New("upload too large")

// Manager handles filesystem operations for asset content. Files are copied
// into the root under generated names and treated as append-only thereafter.
type Manager struct {
	root string
}

func NewManager(root string) *Manager {
	return &Manager{root: root}
}

func (m *Manager) Root() string {
	return m.root
}

// IngestResult describes a file after it has been copied into managed storage.
type IngestResult struct {
	Filename string
	Filepath string
	Filetype string
	Filesize int64
	Checksum string
}

// StoredName derives a collision-resistant stored filename from the ingest
// time and a hash of the logical filename, preserving the extension. Two
// uploads of identically named files in the same second still separate by
// their content path only through this time component; acceptable at this
// scale.
func StoredName(filename string, now time.Time) string {
	sum := md5.Sum([]byte(filename))
	return fmt.Sprintf("%d_%s%s", now.Unix(), hex.EncodeToString(sum[:]), strings.ToLower(filepath.Ext(filename)))
}

// Ingest copies sourcePath into managed storage. Size, type and checksum are
// computed from the source content while it streams to the destination.
func (m *Manager) Ingest(sourcePath, filename string) (*IngestResult, error) {
	if filename == "" {
		filename = filepath.Base(sourcePath)
	}
	src, err := os.Open(sourcePath)
	if err != nil {
		return nil, fmt.Errorf("open source: %w", err)
	}
	defer src.Close()
	return m.SaveUpload(src, filename, 0)
}

// SaveUpload streams r into managed storage under a generated name. A
// maxBytes of zero means unlimited.
func (m *Manager) SaveUpload(r io.Reader, filename string, maxBytes int64) (*IngestResult, error) {
	if err := os.MkdirAll(m.root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}

	var lim *io.LimitedReader
	if maxBytes > 0 {
		lim = &io.LimitedReader{R: r, N: maxBytes + 1}
		r = lim
	}
	br := bufio.NewReader(r)
	peek, _ := br.Peek(512)
	filetype := detectType(peek, filename)

	tmp, err := os.CreateTemp(m.root, "ingest-*")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}()

	hash := md5.New()
	written, err := io.Copy(io.MultiWriter(tmp, hash), br)
	if err != nil {
		return nil, fmt.Errorf("copy upload: %w", err)
	}
	if lim != nil && lim.N <= 0 {
		return nil, ErrTooLarge
	}
	if err := tmp.Close(); err != nil {
		return nil, err
	}

	dest := filepath.Join(m.root, StoredName(filename, time.Now()))
	if err := os.Rename(tmp.Name(), dest); err != nil {
		if err := copyFile(tmp.Name(), dest); err != nil {
			return nil, fmt.Errorf("move into storage: %w", err)
		}
	}

	return &IngestResult{
		Filename: filename,
		Filepath: dest,
		Filetype: filetype,
		Filesize: written,
		Checksum: hex.EncodeToString(hash.Sum(nil)),
	}, nil
}

// detectType sniffs content first and falls back to the filename extension.
func detectType(head []byte, filename string) string {
	t := http.DetectContentType(head)
	if t == "application/octet-stream" {
		if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(filename))); byExt != "" {
			return byExt
		}
	}
	if i := strings.Index(t, ";"); i >= 0 {
		t = t[:i]
	}
	return t
}

// Checksum recomputes the MD5 of the file at path.
func Checksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	hash := md5.New()
	if _, err := io.Copy(hash, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}

// Verify reports whether the file at path matches the expected checksum.
// A missing file is a false result, not an error.
func Verify(path, expected string) (bool, error) {
	sum, err := Checksum(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return sum == expected, nil
}

func (m *Manager) Remove(path string) error {
	return os.Remove(path)
}

// Dimensions decodes just enough of an image file to report its pixel size.
// Non-image files return an error; webp, png, jpeg and gif are recognized.
func Dimensions(path string) (int, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, fmt.Errorf("decode image config: %w", err)
	}
	return cfg.Width, cfg.Height, nil
}

func (m *Manager) IsWritable() error {
	testPath := filepath.Join(m.root, ".writetest")
	if err := os.MkdirAll(m.root, 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(testPath, []byte("ok"), 0o644); err != nil {
		return err
	}
	return os.Remove(testPath)
}

func copyFile(src, dst string) error {
	r, err := os.Open(src)
	if err != nil {
		return err
	}
	defer r.Close()
	w, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer w.Close()
	_, err = io.Copy(w, r)
	return err
}
