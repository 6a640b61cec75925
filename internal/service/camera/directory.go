package camera

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Directory is a camera stand-in that replays the image files of a
// directory as frames, in name order. Each subdirectory is a device; when
// there are none the directory itself is the only device.
type Directory struct {
	Root string
}

var frameExts = map[string]bool{".png": true, ".jpg": true, ".jpeg": true}

func (d Directory) Devices(context.Context) ([]Device, error) {
	entries, err := os.ReadDir(d.Root)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", d.Root, err)
	}

	var devs []Device
	hasFrames := false
	for _, e := range entries {
		switch {
		case e.IsDir():
			devs = append(devs, Device{ID: filepath.Join(d.Root, e.Name()), Label: e.Name()})
		case frameExts[strings.ToLower(filepath.Ext(e.Name()))]:
			hasFrames = true
		}
	}
	if len(devs) == 0 && hasFrames {
		devs = append(devs, Device{ID: d.Root, Label: filepath.Base(d.Root)})
	}
	return devs, nil
}

func (d Directory) Open(_ context.Context, dev Device) (Stream, error) {
	entries, err := os.ReadDir(dev.ID)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", dev.ID, err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && frameExts[strings.ToLower(filepath.Ext(e.Name()))] {
			files = append(files, filepath.Join(dev.ID, e.Name()))
		}
	}
	sort.Strings(files)
	return &fileStream{files: files}, nil
}

type fileStream struct {
	files  []string
	next   int
	closed bool
}

func (s *fileStream) Next(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.closed || s.next >= len(s.files) {
		return nil, io.EOF
	}
	path := s.files[s.next]
	s.next++

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open frame: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode frame %s: %w", filepath.Base(path), err)
	}
	return img, nil
}

func (s *fileStream) Close() error {
	s.closed = true
	return nil
}
