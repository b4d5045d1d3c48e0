package archive

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog/log"
)

// Format identifies how a downloaded asset is unpacked.
type Format int

const (
	Raw Format = iota
	Zip
	TarGz
	TarZst
	Tar
)

func (f Format) String() string {
	switch f {
	case Zip:
		return "zip"
	case TarGz:
		return "tar.gz"
	case TarZst:
		return "tar.zst"
	case Tar:
		return "tar"
	default:
		return "raw"
	}
}

// ErrUnsafePath is returned when an archive entry would be written outside the destination.
var ErrUnsafePath = errors.New("archive entry escapes destination")

// DetectFormat picks the format from the asset's file name.
func DetectFormat(name string) Format {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".zip"):
		return Zip
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		return TarGz
	case strings.HasSuffix(lower, ".tar.zst"), strings.HasSuffix(lower, ".tzst"):
		return TarZst
	case strings.HasSuffix(lower, ".tar"):
		return Tar
	default:
		return Raw
	}
}

// Extract unpacks src into dest according to the format of name. Files that are not
// archives are copied into dest under name and marked executable. When the result holds
// a single top-level directory, its contents are moved up into dest.
func Extract(src, name, dest string) error {
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return fmt.Errorf("create destination: %w", err)
	}

	format := DetectFormat(name)
	log.Debug().Str("file", name).Str("format", format.String()).Str("dest", dest).Msg("Extracting asset")

	var err error
	switch format {
	case Zip:
		err = extractZip(src, dest)
	case TarGz, TarZst, Tar:
		err = extractTarFile(src, format, dest)
	default:
		err = copyRaw(src, filepath.Join(dest, filepath.Base(name)))
	}
	if err != nil {
		return err
	}
	if format == Raw {
		return nil
	}
	return StripSingleTopLevel(dest)
}

// SafeJoin joins an archive entry name onto dest, refusing names that escape it.
func SafeJoin(dest, name string) (string, error) {
	cleaned := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(cleaned) || cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(os.PathSeparator)) {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, name)
	}
	target := filepath.Join(dest, cleaned)
	rel, err := filepath.Rel(dest, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, name)
	}
	return target, nil
}

func extractZip(src, dest string) error {
	r, err := zip.OpenReader(src)
	if err != nil {
		return fmt.Errorf("open zip: %w", err)
	}
	defer r.Close()

	for _, f := range r.File {
		target, err := SafeJoin(dest, f.Name)
		if err != nil {
			return err
		}
		mode := f.Mode()
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}
		if mode&os.ModeSymlink != 0 {
			log.Warn().Str("entry", f.Name).Msg("Skipping symlink in zip archive")
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("open zip entry %s: %w", f.Name, err)
		}
		err = writeFile(target, rc, mode.Perm())
		rc.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

func extractTarFile(src string, format Format, dest string) error {
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()

	var r io.Reader = f
	switch format {
	case TarGz:
		gz, err := gzip.NewReader(f)
		if err != nil {
			return fmt.Errorf("open gzip stream: %w", err)
		}
		defer gz.Close()
		r = gz
	case TarZst:
		zr, err := zstd.NewReader(f)
		if err != nil {
			return fmt.Errorf("open zstd stream: %w", err)
		}
		defer zr.Close()
		r = zr
	}
	return extractTar(r, dest)
}

func extractTar(r io.Reader, dest string) error {
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read tar entry: %w", err)
		}

		target, err := SafeJoin(dest, hdr.Name)
		if err != nil {
			return err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := writeFile(target, tr, os.FileMode(hdr.Mode).Perm()); err != nil {
				return err
			}
		case tar.TypeSymlink:
			linkTarget := filepath.Join(filepath.Dir(target), filepath.FromSlash(hdr.Linkname))
			if filepath.IsAbs(hdr.Linkname) || !within(dest, linkTarget) {
				return fmt.Errorf("%w: link %s -> %s", ErrUnsafePath, hdr.Name, hdr.Linkname)
			}
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			if err := os.Symlink(hdr.Linkname, target); err != nil {
				return err
			}
		default:
			log.Debug().Str("entry", hdr.Name).Int("type", int(hdr.Typeflag)).Msg("Skipping unsupported tar entry")
		}
	}
}

func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(os.PathSeparator))
}

func writeFile(target string, r io.Reader, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	if perm == 0 {
		perm = 0o644
	}
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm|0o600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return fmt.Errorf("write %s: %w", target, err)
	}
	return out.Close()
}

func copyRaw(src, target string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	return writeFile(target, in, 0o755)
}

// StripSingleTopLevel moves the contents of dir's only child directory up into dir.
// It does nothing when dir holds files or more than one entry.
func StripSingleTopLevel(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	if len(entries) != 1 || !entries[0].IsDir() || strings.HasSuffix(strings.ToLower(entries[0].Name()), ".app") {
		return nil
	}

	inner := filepath.Join(dir, entries[0].Name())
	// Rename the wrapper first so a child with the same name does not collide with it.
	tmp := filepath.Join(dir, ".strip-"+entries[0].Name())
	if err := os.Rename(inner, tmp); err != nil {
		return err
	}
	children, err := os.ReadDir(tmp)
	if err != nil {
		return err
	}
	for _, c := range children {
		if err := os.Rename(filepath.Join(tmp, c.Name()), filepath.Join(dir, c.Name())); err != nil {
			return fmt.Errorf("move %s: %w", c.Name(), err)
		}
	}
	return os.Remove(tmp)
}
