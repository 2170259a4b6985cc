// Package snapshot archives a project directory as tar.zst and restores it.
package snapshot

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
	goarchive "github.com/moby/go-archive"
)

const Extension = ".tar.zst"

// Create writes srcDir to outPath and returns the archive size. The archive
// appears at outPath only once complete.
func Create(srcDir, outPath string) (int64, error) {
	if _, err := os.Stat(srcDir); err != nil {
		return 0, fmt.Errorf("snapshot source: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return 0, fmt.Errorf("create snapshot dir: %w", err)
	}

	tr, err := goarchive.TarWithOptions(srcDir, &goarchive.TarOptions{
		Compression: goarchive.Uncompressed,
	})
	if err != nil {
		return 0, fmt.Errorf("tar %s: %w", srcDir, err)
	}
	defer tr.Close()

	tmp := outPath + ".partial"
	f, err := os.Create(tmp)
	if err != nil {
		return 0, fmt.Errorf("create output file: %w", err)
	}
	defer os.Remove(tmp)
	defer f.Close()

	zw, err := zstd.NewWriter(f)
	if err != nil {
		return 0, fmt.Errorf("create zstd writer: %w", err)
	}
	if _, err := io.Copy(zw, tr); err != nil {
		zw.Close()
		return 0, fmt.Errorf("write archive: %w", err)
	}

	// Close everything explicitly to catch write errors
	if err := zw.Close(); err != nil {
		return 0, fmt.Errorf("close zstd: %w", err)
	}
	if err := f.Close(); err != nil {
		return 0, fmt.Errorf("close file: %w", err)
	}
	if err := os.Rename(tmp, outPath); err != nil {
		return 0, fmt.Errorf("commit archive: %w", err)
	}

	info, err := os.Stat(outPath)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// Restore unpacks the archive at inPath into destDir, replacing files with
// the same names.
func Restore(inPath, destDir string) error {
	f, err := os.Open(inPath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	zr, err := zstd.NewReader(f)
	if err != nil {
		return fmt.Errorf("create zstd reader: %w", err)
	}
	defer zr.Close()

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return fmt.Errorf("create restore dir: %w", err)
	}
	if err := goarchive.Untar(zr, destDir, &goarchive.TarOptions{NoLchown: true}); err != nil {
		return fmt.Errorf("untar into %s: %w", destDir, err)
	}
	return nil
}

func FormatSize(bytes int64) string {
	const (
		kb = 1024
		mb = kb * 1024
		gb = mb * 1024
	)
	switch {
	case bytes >= gb:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(gb))
	case bytes >= mb:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(mb))
	case bytes >= kb:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(kb))
	default:
		return fmt.Sprintf("%d bytes", bytes)
	}
}
