package fileutil

import (
	"io"
	"os"

	"github.com/skovgaard/tunectl/internal/errors"
)

// ReadFileWithLimit reads a file, enforcing a maximum size to guard against
// accidentally slurping huge files into memory.
func ReadFileWithLimit(path string, maxSize int64) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening file")
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, errors.Wrap(err, "statting file")
	}

	if info.Size() > maxSize {
		return nil, errors.Newf("file %s exceeds size limit (%d > %d bytes)", path, info.Size(), maxSize)
	}

	data, err := io.ReadAll(io.LimitReader(f, maxSize))
	if err != nil {
		return nil, errors.Wrap(err, "reading file")
	}

	return data, nil
}
