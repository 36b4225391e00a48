package proxy

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// OpenUI returns the static UI file tree. dir is either a directory or a
// release zip, which is unpacked in memory.
func OpenUI(dir string) (afero.Fs, error) {
	if strings.HasSuffix(dir, ".zip") {
		data, err := os.ReadFile(dir)
		if err != nil {
			return nil, fmt.Errorf("failed to read UI archive: %w", err)
		}
		memFS := afero.NewMemMapFs()
		if err := unzipToMemFS(memFS, data); err != nil {
			return nil, fmt.Errorf("failed to unzip UI: %w", err)
		}
		if ok, _ := afero.DirExists(memFS, "/dist"); ok {
			return afero.NewBasePathFs(memFS, "/dist"), nil
		}
		return memFS, nil
	}
	if ok, err := afero.DirExists(afero.NewOsFs(), dir); err != nil || !ok {
		return nil, fmt.Errorf("UI directory %s not found", dir)
	}
	return afero.NewBasePathFs(afero.NewOsFs(), dir), nil
}

func unzipToMemFS(memFS afero.Fs, zipData []byte) error {
	zipReader, err := zip.NewReader(bytes.NewReader(zipData), int64(len(zipData)))
	if err != nil {
		return err
	}

	for _, zipFile := range zipReader.File {
		absPath := filepath.Join("/", filepath.Clean("/"+zipFile.Name))
		if zipFile.FileInfo().IsDir() {
			if err := memFS.MkdirAll(absPath, 0o755); err != nil {
				return err
			}
			continue
		}
		if err := unzipFileToMemFS(memFS, zipFile, absPath); err != nil {
			return err
		}
	}
	return nil
}

func unzipFileToMemFS(memFS afero.Fs, zipFile *zip.File, absPath string) error {
	rc, err := zipFile.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	if err := memFS.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return err
	}
	file, err := memFS.Create(absPath)
	if err != nil {
		return err
	}
	defer file.Close()

	_, err = io.Copy(file, rc)
	return err
}
