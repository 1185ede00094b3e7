//go:build tflite

package vision

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"math"

	"github.com/mattn/go-tflite"

	"github.com/open-uav/precision-lander/internal/landingmodel"
)

// FrameSource supplies raw JPEG-encoded camera frames to the TFLite
// detector. The camera/encoder pipeline itself is hardware-specific and
// out of scope here; newHardwareFrameSource (framesource_tflite.go) wires
// up whatever capture backend a given board uses.
type FrameSource interface {
	// NextFrame returns the freshest JPEG frame, or nil if none is ready.
	NextFrame() ([]byte, error)
	// NextVideoChunk returns any buffered raw H.265 bytes awaiting flush.
	NextVideoChunk() ([]byte, error)
	Close() error
}

// tfliteDetector runs a YOLO-family model on-device via TFLite, decoding
// the anchor/grid outputs the detection_model.blob was trained to
// produce: three output scales (side52/side26/side13), 7 pad classes.
type tfliteDetector struct {
	model       *tflite.Model
	interpreter *tflite.Interpreter
	cfg         ModelConfig
	source      FrameSource
	tape        *VideoTape
}

func newDetector(ctx context.Context, cfg ModelConfig, videoTapePath string) (Detector, error) {
	model := tflite.NewModelFromFile(cfg.ModelPath)
	if model == nil {
		return nil, fmt.Errorf("failed to load tflite model: %s", cfg.ModelPath)
	}
	opts := tflite.NewInterpreterOptions()
	opts.SetNumThread(cfg.NumThreads)
	interpreter := tflite.NewInterpreter(model, opts)
	if interpreter == nil {
		model.Delete()
		return nil, fmt.Errorf("failed to create tflite interpreter")
	}
	if status := interpreter.AllocateTensors(); status != tflite.OK {
		interpreter.Delete()
		model.Delete()
		return nil, fmt.Errorf("failed to allocate tensors")
	}

	tape, err := NewVideoTape(videoTapePath)
	if err != nil {
		interpreter.Delete()
		model.Delete()
		return nil, err
	}

	return &tfliteDetector{
		model:       model,
		interpreter: interpreter,
		cfg:         cfg,
		source:      newHardwareFrameSource(cfg),
		tape:        tape,
	}, nil
}

func (d *tfliteDetector) Tick() ([]landingmodel.PixelDetection, error) {
	frame, err := d.source.NextFrame()
	if err != nil {
		return nil, fmt.Errorf("grabbing frame: %w", err)
	}
	if frame == nil {
		return nil, nil
	}

	img, err := jpeg.Decode(bytes.NewReader(frame))
	if err != nil {
		return nil, fmt.Errorf("jpeg decode failed: %w", err)
	}
	resized := resizeNearest(img, d.cfg.InputWidth, d.cfg.InputHeight)

	inputTensor := d.interpreter.GetInputTensor(0)
	if inputTensor == nil {
		return nil, fmt.Errorf("input tensor unavailable")
	}
	switch inputTensor.Type() {
	case tflite.UInt8:
		input := make([]uint8, d.cfg.InputWidth*d.cfg.InputHeight*3)
		fillUint8Input(resized, input)
		if status := inputTensor.CopyFromBuffer(&input[0]); status != tflite.OK {
			return nil, fmt.Errorf("failed to copy uint8 input")
		}
	case tflite.Float32:
		input := make([]float32, d.cfg.InputWidth*d.cfg.InputHeight*3)
		fillFloatInput(resized, input)
		if status := inputTensor.CopyFromBuffer(&input[0]); status != tflite.OK {
			return nil, fmt.Errorf("failed to copy float input")
		}
	default:
		return nil, fmt.Errorf("unsupported input tensor type: %v", inputTensor.Type())
	}

	if status := d.interpreter.Invoke(); status != tflite.OK {
		return nil, fmt.Errorf("tflite invoke failed")
	}

	return d.parseYOLOOutputs()
}

// parseYOLOOutputs decodes the three grid-scale output tensors
// (side52/side26/side13) into normalized-coordinate pad detections,
// applying the configured confidence threshold. Overlapping boxes across
// scales are not NMS-suppressed here: the Conductor's blobbing already
// absorbs near-duplicate detections downstream, so a second suppression
// pass would be redundant.
func (d *tfliteDetector) parseYOLOOutputs() ([]landingmodel.PixelDetection, error) {
	numOutputs := d.interpreter.GetOutputTensorCount()
	var results []landingmodel.PixelDetection

	for o := 0; o < numOutputs; o++ {
		tensor := d.interpreter.GetOutputTensor(o)
		if tensor == nil {
			continue
		}
		values, err := readFloatTensor(tensor)
		if err != nil {
			return nil, err
		}

		// Each grid cell's prediction is [x, y, w, h, objectness, classes...].
		stride := 5 + d.cfg.NumClasses
		for i := 0; i+stride <= len(values); i += stride {
			objectness := float64(values[i+4])
			if objectness < d.cfg.ConfidenceThreshold {
				continue
			}
			bestClass := 0
			bestScore := float64(values[i+5])
			for c := 1; c < d.cfg.NumClasses; c++ {
				score := float64(values[i+5+c])
				if score > bestScore {
					bestScore = score
					bestClass = c
				}
			}
			confidence := objectness * bestScore
			if confidence < d.cfg.ConfidenceThreshold {
				continue
			}
			padType, ok := landingmodel.PadTypeFromLabel(bestClass)
			if !ok {
				continue
			}

			x := math.Min(1.0, math.Max(0.0, float64(values[i])))
			y := math.Min(1.0, math.Max(0.0, float64(values[i+1])))

			results = append(results, landingmodel.PixelDetection{
				PadType:          padType,
				NormalizedCoords: landingmodel.PixelCoords{X: x, Y: y},
				Confidence:       confidence,
			})
		}
	}

	return results, nil
}

func (d *tfliteDetector) UpdateVideoTape() error {
	chunk, err := d.source.NextVideoChunk()
	if err != nil {
		return fmt.Errorf("reading video chunk: %w", err)
	}
	if chunk == nil {
		return nil
	}
	return d.tape.Write(chunk)
}

func (d *tfliteDetector) Close() error {
	if d.interpreter != nil {
		d.interpreter.Delete()
	}
	if d.model != nil {
		d.model.Delete()
	}
	if d.source != nil {
		d.source.Close()
	}
	return d.tape.Close()
}

func readFloatTensor(tensor *tflite.Tensor) ([]float32, error) {
	switch tensor.Type() {
	case tflite.Float32:
		buf := make([]float32, tensor.ByteSize()/4)
		if status := tensor.CopyToBuffer(&buf[0]); status != tflite.OK {
			return nil, fmt.Errorf("failed to read float tensor")
		}
		return buf, nil
	case tflite.UInt8:
		buf := make([]uint8, tensor.ByteSize())
		if status := tensor.CopyToBuffer(&buf[0]); status != tflite.OK {
			return nil, fmt.Errorf("failed to read uint8 tensor")
		}
		q := tensor.QuantizationParams()
		out := make([]float32, len(buf))
		for i, v := range buf {
			out[i] = float32(q.Scale) * float32(int(v)-q.ZeroPoint)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported tensor type: %v", tensor.Type())
	}
}

func resizeNearest(img image.Image, width, height int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	srcBounds := img.Bounds()
	srcW := srcBounds.Dx()
	srcH := srcBounds.Dy()

	for y := 0; y < height; y++ {
		srcY := srcBounds.Min.Y + y*srcH/height
		for x := 0; x < width; x++ {
			srcX := srcBounds.Min.X + x*srcW/width
			dst.Set(x, y, img.At(srcX, srcY))
		}
	}
	return dst
}

func fillUint8Input(img *image.RGBA, buffer []uint8) {
	width := img.Bounds().Dx()
	height := img.Bounds().Dy()
	idx := 0
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			buffer[idx] = uint8(r >> 8)
			buffer[idx+1] = uint8(g >> 8)
			buffer[idx+2] = uint8(b >> 8)
			idx += 3
		}
	}
}

func fillFloatInput(img *image.RGBA, buffer []float32) {
	width := img.Bounds().Dx()
	height := img.Bounds().Dy()
	idx := 0
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			buffer[idx] = float32(r>>8) / 255.0
			buffer[idx+1] = float32(g>>8) / 255.0
			buffer[idx+2] = float32(b>>8) / 255.0
			idx += 3
		}
	}
}
