// Package camera abstracts the video device the QR scanner reads frames from.
// Device discovery is a capability query, device choice is a swappable
// Policy, and an open stream holds an exclusive lease that Close releases.
package camera

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"
	"sync"

	"github.com/iliamunaev/Payment-Flow-Orchestration/internal/apperr"
	"github.com/iliamunaev/Payment-Flow-Orchestration/internal/service/pool"
)

// Device is one video input.
type Device struct {
	ID    string
	Label string
}

// Enumerator lists the available video inputs.
type Enumerator interface {
	Devices(ctx context.Context) ([]Device, error)
}

// Stream yields decoded frames until it is closed or exhausted.
type Stream interface {
	Next(ctx context.Context) (image.Image, error)
	Close() error
}

// Opener opens a frame stream on a device.
type Opener interface {
	Open(ctx context.Context, d Device) (Stream, error)
}

// Policy orders candidate devices, best first.
type Policy func([]Device) []Device

// PreferBack moves devices whose label mentions "back" to the front and
// keeps the original order otherwise.
func PreferBack(devs []Device) []Device {
	out := make([]Device, 0, len(devs))
	var rest []Device
	for _, d := range devs {
		if strings.Contains(strings.ToLower(d.Label), "back") {
			out = append(out, d)
		} else {
			rest = append(rest, d)
		}
	}
	return append(out, rest...)
}

// Camera hands out at most one open stream at a time.
type Camera struct {
	enum   Enumerator
	opener Opener
	policy Policy
	lease  *pool.Pool
}

// New returns a Camera. A nil policy means PreferBack; a nil lease means a
// private pool of one.
func New(enum Enumerator, opener Opener, policy Policy, lease *pool.Pool) *Camera {
	if enum == nil {
		panic("camera.New: nil enumerator")
	}
	if opener == nil {
		panic("camera.New: nil opener")
	}
	if policy == nil {
		policy = PreferBack
	}
	if lease == nil {
		lease = pool.New(1)
	}
	return &Camera{enum: enum, opener: opener, policy: policy, lease: lease}
}

// Open selects a device and opens it. The returned stream must be closed;
// closing it releases the lease. Errors are ErrNoCamera or ErrCameraAccess.
func (c *Camera) Open(ctx context.Context) (Stream, Device, error) {
	if !c.lease.TryAcquire() {
		return nil, Device{}, apperr.New(apperr.ErrCameraAccess, "Camera is already in use")
	}
	release := true
	defer func() {
		if release {
			c.lease.Release()
		}
	}()

	devs, err := c.enum.Devices(ctx)
	if err != nil {
		return nil, Device{}, fmt.Errorf("camera: enumerate: %w: %w", apperr.ErrCameraAccess, err)
	}
	ranked := c.policy(devs)
	if len(ranked) == 0 {
		return nil, Device{}, apperr.New(apperr.ErrNoCamera, "")
	}

	dev := ranked[0]
	s, err := c.opener.Open(ctx, dev)
	if err != nil {
		if errors.Is(err, apperr.ErrNoCamera) {
			return nil, Device{}, err
		}
		return nil, Device{}, fmt.Errorf("camera: open %q: %w: %w", dev.Label, apperr.ErrCameraAccess, err)
	}

	release = false
	return &leased{Stream: s, release: c.lease.Release}, dev, nil
}

// InUse reports whether a stream is currently open.
func (c *Camera) InUse() bool { return c.lease.InUse() > 0 }

type leased struct {
	Stream
	once    sync.Once
	release func()
}

func (l *leased) Close() error {
	var err error
	l.once.Do(func() {
		err = l.Stream.Close()
		l.release()
	})
	return err
}
