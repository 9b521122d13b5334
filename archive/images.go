package archive

import (
	"fmt"
	"io"
	"os"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/hazyhaar/docread/document"
)

// imageDataURI reads an image file into a data URI. The magic bytes win
// over the extension guess when they disagree.
func imageDataURI(path, mime string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("archive: read image %s: %w", path, err)
	}
	if sniffed := document.SniffMime(data); sniffed != "" {
		mime = sniffed
	}
	return document.DataURI(mime, data), nil
}

// pdfFigureDataURI decodes the raster image embedded in the first page of a
// PDF figure. Pure vector figures have no embedded image and yield an
// error; the caller just skips those.
func pdfFigureDataURI(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("archive: open pdf figure %s: %w", path, err)
	}
	defer f.Close()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	pages, err := api.ExtractImagesRaw(f, []string{"1"}, conf)
	if err != nil {
		return "", fmt.Errorf("archive: extract pdf figure %s: %w", path, err)
	}
	for _, page := range pages {
		for _, img := range page {
			data, err := io.ReadAll(img)
			if err != nil {
				return "", fmt.Errorf("archive: read pdf figure %s: %w", path, err)
			}
			mime := document.SniffMime(data)
			if mime == "" {
				mime = "image/" + img.FileType
			}
			return document.DataURI(mime, data), nil
		}
	}
	return "", fmt.Errorf("archive: no raster image in pdf figure %s", path)
}
