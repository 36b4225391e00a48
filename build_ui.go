//go:build ignore
// +build ignore

package main

import (
	"archive/zip"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

const defaultUIReleaseURL = "https://github.com/gigapi/gigapi-ui/releases/download/v1.0.0/release.zip"

// Fetches the UI release. By default it is unpacked under ui/ so the
// explorer finds ui/dist. With UI_KEEP_ZIP set the archive is kept as is
// and UI_DIR can point at it directly.
func main() {
	url := getenv("UI_RELEASE_URL", defaultUIReleaseURL)
	target := getenv("UI_TARGET", "ui")
	archive := filepath.Join(target, "ui.zip")

	if err := os.MkdirAll(target, 0755); err != nil {
		exitf("Error creating %s: %v", target, err)
	}
	fmt.Println("Downloading UI release from:", url)
	if err := download(url, archive); err != nil {
		exitf("Error downloading UI: %v", err)
	}
	if os.Getenv("UI_KEEP_ZIP") != "" {
		fmt.Println("UI archive saved to", archive)
		return
	}

	if err := unpack(archive, target); err != nil {
		exitf("Error extracting UI: %v", err)
	}
	os.Remove(archive)
	fmt.Println("UI extracted to", filepath.Join(target, "dist"))
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func exitf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}

func download(url, path string) error {
	resp, err := http.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("bad status: %s", resp.Status)
	}
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, resp.Body)
	return err
}

func unpack(archive, dest string) error {
	r, err := zip.OpenReader(archive)
	if err != nil {
		return err
	}
	defer r.Close()
	root := filepath.Clean(dest) + string(os.PathSeparator)
	for _, f := range r.File {
		path := filepath.Join(dest, f.Name)
		if !strings.HasPrefix(path, root) {
			return fmt.Errorf("entry %q escapes %s", f.Name, dest)
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(path, 0755); err != nil {
				return err
			}
			continue
		}
		if err := writeEntry(f, path); err != nil {
			return err
		}
	}
	return nil
}

func writeEntry(f *zip.File, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()
	out, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, f.Mode())
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, rc)
	return err
}
