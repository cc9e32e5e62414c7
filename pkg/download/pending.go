package download

import (
	"fmt"
	"os"
)

// pending is a download that exists only for the duration of one call.
type pending struct {
	path    string
	clicked bool
}

func newPending(dir string, data []byte) (*pending, error) {
	f, err := os.CreateTemp(dir, ".pending-*")
	if err != nil {
		return nil, fmt.Errorf("create pending download: %w", err)
	}
	p := &pending{path: f.Name()}

	if _, err := f.Write(data); err != nil {
		f.Close()
		p.revoke()
		return nil, fmt.Errorf("write pending download: %w", err)
	}
	if err := f.Close(); err != nil {
		p.revoke()
		return nil, fmt.Errorf("close pending download: %w", err)
	}
	return p, nil
}

// click moves the pending file to dest.
func (p *pending) click(dest string) error {
	if err := os.Chmod(p.path, 0o644); err != nil {
		return fmt.Errorf("chmod pending download: %w", err)
	}
	if err := os.Rename(p.path, dest); err != nil {
		return fmt.Errorf("finalize download %s: %w", dest, err)
	}
	p.clicked = true
	return nil
}

// revoke removes the temporary file unless it was moved into place.
func (p *pending) revoke() {
	if p == nil || p.clicked {
		return
	}
	_ = os.Remove(p.path)
}
