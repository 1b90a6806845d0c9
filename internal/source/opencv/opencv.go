// Package opencv adapts gocv capture devices and video files to the source
// interfaces. It is the only package that links against OpenCV.
package opencv

import (
	"fmt"
	"image"
	"path/filepath"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"github.com/bryanchriswhite/FlexiView/internal/frame"
	"github.com/bryanchriswhite/FlexiView/internal/logger"
	"github.com/bryanchriswhite/FlexiView/internal/source"
)

// capture wraps a gocv.VideoCapture and a reusable Mat.
type capture struct {
	vc  *gocv.VideoCapture
	mat gocv.Mat
}

func newCapture(vc *gocv.VideoCapture) *capture {
	return &capture{vc: vc, mat: gocv.NewMat()}
}

func (c *capture) Read() (*image.RGBA, bool) {
	if ok := c.vc.Read(&c.mat); !ok || c.mat.Empty() {
		return nil, false
	}
	img, err := c.mat.ToImage()
	if err != nil {
		logger.WithComponent("source").Debug().Err(err).Msg("Mat conversion failed")
		return nil, false
	}
	return frame.ToRGBA(img), true
}

func (c *capture) SetPosition(index int) error {
	c.vc.Set(gocv.VideoCapturePosFrames, float64(index))
	return nil
}

func (c *capture) Position() int {
	return int(c.vc.Get(gocv.VideoCapturePosFrames))
}

func (c *capture) FrameCount() int {
	return int(c.vc.Get(gocv.VideoCaptureFrameCount))
}

func (c *capture) FPS() float64 {
	return c.vc.Get(gocv.VideoCaptureFPS)
}

func (c *capture) Close() error {
	if err := c.mat.Close(); err != nil {
		return errors.Wrap(err, "close mat")
	}
	return errors.Wrap(c.vc.Close(), "close capture")
}

// OpenVideoFile opens a video file for seekable playback.
func OpenVideoFile(path string) (*source.Video, error) {
	vc, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, errors.Wrapf(source.ErrOpen, "video %s: %v", path, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, errors.Wrapf(source.ErrOpen, "video %s: not opened", path)
	}
	return source.NewVideo(newCapture(vc), filepath.Base(path)), nil
}

// OpenCamera opens a capture device by index.
func OpenCamera(id int) (*source.Camera, error) {
	vc, err := gocv.OpenVideoCapture(id)
	if err != nil {
		return nil, errors.Wrapf(source.ErrOpen, "camera %d: %v", id, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, errors.Wrapf(source.ErrOpen, "camera %d: not opened", id)
	}
	return source.NewCamera(newCapture(vc), fmt.Sprintf("Camera %d", id)), nil
}

// OpenDevice opens a raw capture device for providers that run their own
// read loop, such as the infrared provider.
func OpenDevice(id int) (source.Capturer, error) {
	vc, err := gocv.OpenVideoCapture(id)
	if err != nil {
		return nil, errors.Wrapf(source.ErrOpen, "device %d: %v", id, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, errors.Wrapf(source.ErrOpen, "device %d: not opened", id)
	}
	return newCapture(vc), nil
}

// ProbeCameras returns the indices in [0, limit) that open successfully.
func ProbeCameras(limit int) []int {
	var found []int
	for i := 0; i < limit; i++ {
		vc, err := gocv.OpenVideoCapture(i)
		if err != nil {
			continue
		}
		if vc.IsOpened() {
			found = append(found, i)
		}
		vc.Close()
	}
	return found
}
