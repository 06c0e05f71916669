package evidence

import (
	"bufio"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"

	"github.com/vigil-cam/vigil/internal/errors"
)

// writeJPEG encodes img to path through a temporary file so a partially
// written key frame never appears under its final name.
func writeJPEG(path string, img image.Image, quality int) error {
	if img == nil {
		return errors.Newf("no image data for key frame").
			Component("evidence").
			Category(errors.CategoryEvidenceIO).
			Context("operation", "encode_key_frame").
			Build()
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".keyframe-*.tmp")
	if err != nil {
		return errors.New(err).
			Component("evidence").
			Category(errors.CategoryEvidenceIO).
			Context("operation", "create_key_frame").
			Build()
	}
	tmpName := tmp.Name()

	w := bufio.NewWriter(tmp)
	encErr := jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
	if encErr == nil {
		encErr = w.Flush()
	}
	closeErr := tmp.Close()

	if encErr != nil || closeErr != nil {
		_ = os.Remove(tmpName)
		return errors.New(errors.Join(encErr, closeErr)).
			Component("evidence").
			Category(errors.CategoryEvidenceIO).
			Context("operation", "encode_key_frame").
			Build()
	}

	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return errors.New(err).
			Component("evidence").
			Category(errors.CategoryEvidenceIO).
			Context("operation", "rename_key_frame").
			Build()
	}
	return nil
}
