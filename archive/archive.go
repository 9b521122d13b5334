// Package archive safely unpacks zip and tar archives and reconstructs the
// LaTeX source trees they contain. Hostile archives (path traversal,
// symlink smuggling, absolute paths) fail with a security-violation error
// before anything is written.
package archive

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/hazyhaar/docread/document"
)

// Exts lists the archive extensions the extractor accepts.
var Exts = []string{".tar", ".tar.gz", ".tgz", ".zip"}

// IsArchiveExt reports whether ext is a supported archive extension.
func IsArchiveExt(ext string) bool {
	for _, e := range Exts {
		if ext == e {
			return true
		}
	}
	return false
}

// ExtractZip unpacks a zip archive into dest. Validation is two-phase:
// every member is checked before any byte is written, so a hostile archive
// never leaves a partial tree behind.
func ExtractZip(src, dest string) error {
	r, err := zip.OpenReader(src)
	if err != nil {
		return document.ErrExtractFailed("archive", fmt.Sprintf("open zip: %v", err))
	}
	defer r.Close()

	destAbs, err := filepath.Abs(dest)
	if err != nil {
		return document.ErrExtractUnexpected(err)
	}

	// Phase one: validate everything.
	var files []*zip.File
	for _, f := range r.File {
		if strings.HasSuffix(f.Name, "/") || f.FileInfo().IsDir() {
			continue
		}
		if f.Mode()&fs.ModeSymlink != 0 {
			return document.ErrSecurityViolation("ZIP", "unsafe content detected")
		}
		if !memberPathSafe(destAbs, f.Name) {
			return document.ErrSecurityViolation("ZIP", "unsafe content detected")
		}
		files = append(files, f)
	}

	// Phase two: extract the validated members.
	for _, f := range files {
		if err := writeZipMember(f, destAbs); err != nil {
			return err
		}
	}
	return nil
}

func writeZipMember(f *zip.File, destAbs string) error {
	target := filepath.Join(destAbs, filepath.FromSlash(f.Name))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return document.ErrExtractUnexpected(err)
	}
	rc, err := f.Open()
	if err != nil {
		return document.ErrExtractFailed("archive", fmt.Sprintf("read zip member %s: %v", f.Name, err))
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return document.ErrExtractUnexpected(err)
	}
	defer out.Close()
	if _, err := io.Copy(out, rc); err != nil {
		return document.ErrExtractFailed("archive", fmt.Sprintf("write zip member %s: %v", f.Name, err))
	}
	return nil
}

// ExtractTar unpacks a tar (optionally gzip-compressed) archive into dest.
// Members are filtered as they stream by: absolute paths, traversal, and
// links pointing outside the destination all abort the extraction.
func ExtractTar(src, dest string, gzipped bool) error {
	f, err := os.Open(src)
	if err != nil {
		return document.ErrExtractFailed("archive", fmt.Sprintf("open tar: %v", err))
	}
	defer f.Close()

	var reader io.Reader = f
	if gzipped {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return document.ErrExtractFailed("archive", fmt.Sprintf("open tar.gz: %v", err))
		}
		defer gz.Close()
		reader = gz
	}

	destAbs, err := filepath.Abs(dest)
	if err != nil {
		return document.ErrExtractUnexpected(err)
	}

	tr := tar.NewReader(reader)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return document.ErrExtractFailed("archive", fmt.Sprintf("read tar: %v", err))
		}
		if err := writeTarMember(tr, hdr, destAbs); err != nil {
			return err
		}
	}
}

func writeTarMember(tr *tar.Reader, hdr *tar.Header, destAbs string) error {
	// GNU tar archives carry a "./" entry for the root itself.
	if path.Clean(hdr.Name) == "." {
		return nil
	}
	if !memberPathSafe(destAbs, hdr.Name) {
		return document.ErrSecurityViolation("TAR", "unsafe content detected")
	}
	target := filepath.Join(destAbs, filepath.FromSlash(hdr.Name))

	switch hdr.Typeflag {
	case tar.TypeDir:
		if err := os.MkdirAll(target, 0o755); err != nil {
			return document.ErrExtractUnexpected(err)
		}
	case tar.TypeReg:
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return document.ErrExtractUnexpected(err)
		}
		out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
		if err != nil {
			return document.ErrExtractUnexpected(err)
		}
		if _, err := io.Copy(out, tr); err != nil {
			out.Close()
			return document.ErrExtractFailed("archive", fmt.Sprintf("write tar member %s: %v", hdr.Name, err))
		}
		if err := out.Close(); err != nil {
			return document.ErrExtractUnexpected(err)
		}
	case tar.TypeSymlink:
		// Symlinks are allowed only when the target stays inside dest.
		if !linkTargetSafe(destAbs, hdr.Name, hdr.Linkname) {
			return document.ErrSecurityViolation("TAR", "unsafe content detected")
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return document.ErrExtractUnexpected(err)
		}
		if err := os.Symlink(hdr.Linkname, target); err != nil {
			return document.ErrExtractUnexpected(err)
		}
	case tar.TypeLink:
		// Hard link targets are archive-relative.
		if !memberPathSafe(destAbs, hdr.Linkname) {
			return document.ErrSecurityViolation("TAR", "unsafe content detected")
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return document.ErrExtractUnexpected(err)
		}
		if err := os.Link(filepath.Join(destAbs, filepath.FromSlash(hdr.Linkname)), target); err != nil {
			return document.ErrExtractUnexpected(err)
		}
	default:
		// Devices, FIFOs, and other specials have no business in a
		// document archive.
		return document.ErrSecurityViolation("TAR", "unsafe content detected")
	}
	return nil
}

// memberPathSafe reports whether a member name resolves to a path strictly
// inside destAbs.
func memberPathSafe(destAbs, name string) bool {
	normalized := path.Clean(name)
	if strings.HasPrefix(normalized, "..") || strings.HasPrefix(normalized, "/") {
		return false
	}
	// Windows drive-letter smuggling ("C:...") also escapes.
	if len(normalized) > 1 && normalized[1] == ':' {
		return false
	}
	resolved := filepath.Join(destAbs, filepath.FromSlash(normalized))
	return strings.HasPrefix(resolved, destAbs+string(os.PathSeparator))
}

// linkTargetSafe reports whether a tar link member's target stays inside
// destAbs once the link itself is placed at name.
func linkTargetSafe(destAbs, name, linkname string) bool {
	if linkname == "" || path.IsAbs(linkname) {
		return false
	}
	resolved := filepath.Join(destAbs, filepath.Dir(filepath.FromSlash(name)), filepath.FromSlash(linkname))
	return strings.HasPrefix(resolved, destAbs+string(os.PathSeparator))
}
