package output

import (
	"os"
)

// IsWritable reports whether a file can be created in dir. It probes by
// creating and removing a temporary file, which also covers read-only mounts
// and ACLs that permission bits do not show.
func IsWritable(dir string) bool {
	if dir == "" {
		dir = "."
	}

	f, err := os.CreateTemp(dir, ".wcheck-*")
	if err != nil {
		return false
	}

	name := f.Name()
	_ = f.Close()
	_ = os.Remove(name)

	return true
}

// Disk is the local file system: writability probes and atomic file sinks.
type Disk struct {
	opts []FileOption
}

// NewDisk creates a Disk whose sinks are configured with opts.
func NewDisk(opts ...FileOption) *Disk {
	return &Disk{opts: opts}
}

// IsWritable reports whether a file can be created in dir.
func (d *Disk) IsWritable(dir string) bool {
	return IsWritable(dir)
}

// Create opens an atomic sink for path.
func (d *Disk) Create(path string) (Sink, error) {
	f, err := CreateAtomic(path, d.opts...)
	if err != nil {
		return nil, err
	}

	return f, nil
}
