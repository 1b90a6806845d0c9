// Package v4l2 discovers infrared cameras through sysfs and arbitrates access
// to their device nodes with advisory locks.
package v4l2

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"

	"github.com/bryanchriswhite/FlexiView/internal/infrared"
	"github.com/bryanchriswhite/FlexiView/internal/logger"
	"github.com/bryanchriswhite/FlexiView/internal/source"
)

const (
	DefaultSysRoot = "/sys/class/video4linux"
	DefaultDevRoot = "/dev"

	// readBackoff is the pause after a failed capture read.
	readBackoff = 10 * time.Millisecond
)

// stopTimeout bounds how long Stop waits for the capture goroutine.
var stopTimeout = 2 * time.Second

// OpenFunc opens the capture stream for a /dev/videoN index.
type OpenFunc func(index int) (source.Capturer, error)

// Provider implements infrared.Provider for V4L2 devices.
type Provider struct {
	SysRoot string
	DevRoot string
	// Keywords matched case-insensitively against the device name.
	Keywords []string
	open     OpenFunc
}

func NewProvider(open OpenFunc) *Provider {
	return &Provider{
		SysRoot:  DefaultSysRoot,
		DevRoot:  DefaultDevRoot,
		Keywords: []string{"ir camera", "infrared", " ir "},
		open:     open,
	}
}

// Devices lists video nodes whose sysfs name looks infrared.
func (p *Provider) Devices(ctx context.Context) ([]infrared.DeviceInfo, error) {
	entries, err := os.ReadDir(p.SysRoot)
	if err != nil {
		return nil, errors.Wrap(err, "read video4linux class")
	}

	type node struct {
		num  int
		id   string
		name string
	}
	var nodes []node
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		num, ok := videoNumber(e.Name())
		if !ok {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(p.SysRoot, e.Name(), "name"))
		if err != nil {
			continue
		}
		name := strings.TrimSpace(string(raw))
		if !p.matches(name) {
			continue
		}
		nodes = append(nodes, node{num: num, id: e.Name(), name: name})
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].num < nodes[j].num })

	out := make([]infrared.DeviceInfo, len(nodes))
	for i, n := range nodes {
		out[i] = infrared.DeviceInfo{
			Index: i,
			ID:    n.id,
			Name:  n.name,
			Path:  filepath.Join(p.DevRoot, n.id),
		}
	}
	return out, nil
}

func (p *Provider) matches(name string) bool {
	padded := " " + strings.ToLower(name) + " "
	for _, k := range p.Keywords {
		if strings.Contains(padded, strings.ToLower(k)) {
			return true
		}
	}
	return false
}

func videoNumber(name string) (int, bool) {
	if !strings.HasPrefix(name, "video") {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimPrefix(name, "video"))
	return n, err == nil
}

// Open locks the device node and opens its stream. Exclusive access takes
// LOCK_EX and fails with infrared.ErrDeviceContention if anyone holds a lock.
func (p *Provider) Open(_ context.Context, info infrared.DeviceInfo, access infrared.Access) (infrared.Device, error) {
	num, ok := videoNumber(info.ID)
	if !ok {
		return nil, fmt.Errorf("not a video node: %s", info.ID)
	}

	f, err := os.Open(info.Path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", info.Path)
	}
	how := unix.LOCK_SH
	if access == infrared.AccessExclusive {
		how = unix.LOCK_EX
	}
	if err := unix.Flock(int(f.Fd()), how|unix.LOCK_NB); err != nil {
		f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, infrared.ErrDeviceContention
		}
		return nil, errors.Wrapf(err, "lock %s", info.Path)
	}

	return &device{
		info:   info,
		num:    num,
		lock:   f,
		access: access,
		open:   p.open,
		log:    logger.WithComponent("infrared").With().Str("device", info.Name).Logger(),
	}, nil
}

type device struct {
	info   infrared.DeviceInfo
	num    int
	lock   *os.File
	access infrared.Access
	open   OpenFunc
	log    zerolog.Logger

	mu       sync.Mutex
	cap      source.Capturer
	stopChan chan struct{}
	done     chan struct{}
}

func (d *device) Info() infrared.DeviceInfo { return d.info }

func (d *device) Start(handler func(infrared.RawFrame)) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopChan != nil {
		return errors.New("device already started")
	}
	c, err := d.open(d.num)
	if err != nil {
		return err
	}
	d.cap = c
	d.stopChan = make(chan struct{})
	d.done = make(chan struct{})
	go d.run(handler, d.stopChan, d.done)

	d.log.Info().Stringer("access", d.access).Msg("Infrared stream started")
	return nil
}

func (d *device) run(handler func(infrared.RawFrame), stop, done chan struct{}) {
	defer close(done)
	var tagger Illumination
	for {
		select {
		case <-stop:
			return
		default:
		}
		img, ok := d.cap.Read()
		if !ok {
			select {
			case <-stop:
				return
			case <-time.After(readBackoff):
			}
			continue
		}
		handler(infrared.RawFrame{Image: img, Illuminated: tagger.Tag(img)})
	}
}

func (d *device) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var errs []error
	if d.stopChan != nil {
		close(d.stopChan)
		select {
		case <-d.done:
			if err := d.cap.Close(); err != nil {
				errs = append(errs, err)
			}
		case <-time.After(stopTimeout):
			// The reader still owns the capturer, so it stays open.
			d.log.Warn().Dur("timeout", stopTimeout).Msg("Capture reader did not exit, abandoning it")
		}
		d.stopChan = nil
	}
	if d.lock != nil {
		_ = unix.Flock(int(d.lock.Fd()), unix.LOCK_UN)
		if err := d.lock.Close(); err != nil {
			errs = append(errs, err)
		}
		d.lock = nil
	}
	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}
