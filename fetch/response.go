package fetch

import (
	"io"
	"mime"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/hazyhaar/docread/document"
)

// resolveMeta derives the MIME type, filename, and temp-file extension for
// a response. Priority: forced type, then the declared content type unless
// it is a useless placeholder, then a guess from the filename. The size cap
// rejects oversized payloads before download, except audio and video,
// which the transcript engine processes in chunks.
func resolveMeta(rawurl string, header http.Header, contentType string, contentLength int64, forceMime string, maxFileSize int64) (mimeType, filename, ext string, err error) {
	if forceMime != "" {
		mimeType = forceMime
	} else if contentType != "" && !document.UselessMime(contentType) {
		mimeType = contentType
	}

	filename = document.FilenameFromHeaders(header)
	if filename == "" {
		filename = document.GuessFilename(rawurl, mimeType)
	}
	if mimeType == "" && filename != "" {
		mimeType = document.GuessMime(filename, true)
	}

	isMedia := strings.HasPrefix(mimeType, "audio/") || strings.HasPrefix(mimeType, "video/")
	if contentLength > maxFileSize && !isMedia {
		return "", "", "", document.ErrBadResponse(http.StatusRequestEntityTooLarge, "web")
	}

	ext = document.ExtensionForMime(mimeType)
	if ext == "" {
		ext = document.FileExt(filename)
	}
	return mimeType, filename, ext, nil
}

// handleResponse streams an HTTP body to a temp file, capturing the first
// chunk for magic-byte sniffing when nothing else identified the payload.
func handleResponse(rawurl string, resp *http.Response, forceMime string, maxFileSize int64) (*document.Artifact, error) {
	contentType, charset := splitContentType(resp.Header.Get("Content-Type"))
	contentLength := int64(0)
	if cl := resp.Header.Get("Content-Length"); cl != "" {
		contentLength, _ = strconv.ParseInt(cl, 10, 64)
	}

	mimeType, filename, ext, err := resolveMeta(rawurl, resp.Header, contentType, contentLength, forceMime, maxFileSize)
	if err != nil {
		return nil, err
	}

	path, firstChunk, err := streamToTemp(resp.Body, ext)
	if err != nil {
		return nil, document.ErrDownloadUnexpected(err)
	}
	if mimeType == "" {
		mimeType = document.SniffMime(firstChunk)
	}

	return &document.Artifact{
		URL:      rawurl,
		Filename: filename,
		Mime:     mimeType,
		Charset:  charset,
		Headers:  cloneHeaders(resp.Header),
		Path:     path,
	}, nil
}

// handleRenderedPage materializes a rendering-service result the same way.
// The render proxy's Content-Disposition is untrustworthy and dropped.
func handleRenderedPage(rawurl string, page *RenderedPage, forceMime string, maxFileSize int64) (*document.Artifact, error) {
	header := cloneHeaders(page.Header)
	header.Del("Content-Disposition")
	contentType, charset := splitContentType(header.Get("Content-Type"))

	mimeType, filename, ext, err := resolveMeta(rawurl, header, contentType, 0, forceMime, maxFileSize)
	if err != nil {
		return nil, err
	}

	f, err := os.CreateTemp("", "fetch-*"+ext)
	if err != nil {
		return nil, document.ErrDownloadUnexpected(err)
	}
	if _, err := f.Write(page.Body); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, document.ErrDownloadUnexpected(err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return nil, document.ErrDownloadUnexpected(err)
	}

	if mimeType == "" {
		mimeType = document.SniffMime(page.Body)
	}
	return &document.Artifact{
		URL:      rawurl,
		Filename: filename,
		Mime:     mimeType,
		Charset:  charset,
		Headers:  header,
		Path:     f.Name(),
	}, nil
}

func streamToTemp(body io.Reader, ext string) (string, []byte, error) {
	f, err := os.CreateTemp("", "fetch-*"+ext)
	if err != nil {
		return "", nil, err
	}

	var firstChunk []byte
	buf := make([]byte, 1024)
	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			if firstChunk == nil {
				firstChunk = append([]byte(nil), buf[:n]...)
			}
			if _, err := f.Write(buf[:n]); err != nil {
				f.Close()
				os.Remove(f.Name())
				return "", nil, err
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			f.Close()
			os.Remove(f.Name())
			return "", nil, readErr
		}
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", nil, err
	}
	return f.Name(), firstChunk, nil
}

func splitContentType(value string) (contentType, charset string) {
	if value == "" {
		return "", ""
	}
	mt, params, err := mime.ParseMediaType(value)
	if err != nil {
		return strings.TrimSpace(strings.Split(value, ";")[0]), ""
	}
	return mt, params["charset"]
}

func cloneHeaders(h http.Header) http.Header {
	out := http.Header{}
	for k, vs := range h {
		out[k] = append([]string(nil), vs...)
	}
	return out
}
