package pipeline

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Source represents a discovered image file.
type Source struct {
	// AbsPath is the absolute path to the file on disk.
	AbsPath string
	// RelPath is the path relative to the input directory.
	RelPath string
	// Key is the relpath without extension, using forward slashes.
	Key string
	// Format is the source format guessed from the extension.
	Format string
	// Size is the file size in bytes.
	Size int64
}

// imageExtensions lists recognized image file extensions.
var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".webp": true,
	".gif":  true,
	".bmp":  true,
	".tiff": true,
	".tif":  true,
}

// ScanImages walks the input directory and returns all image sources,
// sorted by relative path.
func ScanImages(inputDir string) ([]Source, error) {
	var sources []Source

	err := filepath.Walk(inputDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			// Skip hidden directories.
			if path != inputDir && strings.HasPrefix(info.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		ext := strings.ToLower(filepath.Ext(path))
		if !imageExtensions[ext] {
			return nil
		}

		relPath, err := filepath.Rel(inputDir, path)
		if err != nil {
			return err
		}

		key := strings.TrimSuffix(relPath, filepath.Ext(relPath))
		key = filepath.ToSlash(key)

		// Normalize format name.
		format := strings.TrimPrefix(ext, ".")
		if format == "jpg" {
			format = "jpeg"
		}
		if format == "tif" {
			format = "tiff"
		}

		sources = append(sources, Source{
			AbsPath: path,
			RelPath: filepath.ToSlash(relPath),
			Key:     key,
			Format:  format,
			Size:    info.Size(),
		})

		return nil
	})

	sort.Slice(sources, func(i, j int) bool { return sources[i].RelPath < sources[j].RelPath })
	return sources, err
}
