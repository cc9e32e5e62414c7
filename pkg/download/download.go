package download

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Dir saves downloads into a local directory.
//
// A blob download goes through a pending temporary file inside Root (the equivalent of a
// browser object URL) which is renamed to its final name and otherwise removed, so no
// temporary file outlives the call. A link download writes an Internet Shortcut that
// points at the URL; nothing is fetched.
type Dir struct {
	Root string
}

// NewDir returns a Dir rooted at root.
func NewDir(root string) (*Dir, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, errors.New("download directory is empty")
	}
	return &Dir{Root: root}, nil
}

// SaveBlob writes data to Root under the base name of fileName and returns the final path.
func (d *Dir) SaveBlob(ctx context.Context, data []byte, fileName string) (string, error) {
	name, err := cleanName(fileName)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(d.Root, 0o755); err != nil {
		return "", fmt.Errorf("create download directory: %w", err)
	}

	p, err := newPending(d.Root, data)
	if err != nil {
		return "", err
	}
	defer p.revoke()

	dest := filepath.Join(d.Root, name)
	if err := p.click(dest); err != nil {
		return "", err
	}
	return dest, nil
}

// SaveLink writes "<name>.url" pointing at href and returns its path.
func (d *Dir) SaveLink(ctx context.Context, href, fileName string) (string, error) {
	name, err := cleanName(fileName)
	if err != nil {
		return "", err
	}
	href = strings.TrimSpace(href)
	if href == "" {
		return "", errors.New("link href is empty")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(d.Root, 0o755); err != nil {
		return "", fmt.Errorf("create download directory: %w", err)
	}

	p, err := newPending(d.Root, []byte(shortcut(href)))
	if err != nil {
		return "", err
	}
	defer p.revoke()

	dest := filepath.Join(d.Root, name+".url")
	if err := p.click(dest); err != nil {
		return "", err
	}
	return dest, nil
}

func shortcut(href string) string {
	return "[InternetShortcut]\r\nURL=" + href + "\r\n"
}

// cleanName reduces a suggested file name to a safe base name.
func cleanName(fileName string) (string, error) {
	name := strings.TrimSpace(fileName)
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(name)
	if name == "" || name == "." || name == ".." || name == "/" {
		return "", fmt.Errorf("invalid download file name %q", fileName)
	}
	return name, nil
}
