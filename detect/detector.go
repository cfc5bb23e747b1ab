// Package detect runs YOLOv8 object-detection inference through ONNX
// Runtime. A Detector is an explicitly passed capability: callers construct
// one and hand it to each pipeline invocation instead of sharing module
// state.
package detect

import (
	"os"
	"runtime"
	"sync"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
	"gocv.io/x/gocv"

	"github.com/visionhub/odh/detection"
)

// Detector is the inference capability consumed by the analysis pipelines.
// Predict filters by the caller-supplied confidence threshold and returns
// detections in the image's pixel space. Implementations must be safe for
// concurrent use.
type Detector interface {
	Predict(img gocv.Mat, conf float32) ([]detection.Detection, error)
	Close() error
}

// Config configures a YOLO detector session.
type Config struct {
	// ModelPath points to the YOLOv8 ONNX export.
	ModelPath string
	// LibraryPath overrides the ONNX Runtime shared library location.
	LibraryPath string
	// IntraOpThreads and InterOpThreads bound graph parallelism;
	// zero keeps the runtime defaults.
	IntraOpThreads int
	InterOpThreads int
}

// YOLODetector is an ONNX Runtime backed Detector. The session owns fixed
// input/output tensors, so inference calls serialize on an internal mutex;
// concurrent pipeline invocations share one detector safely.
type YOLODetector struct {
	mu      sync.Mutex
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
}

var ortInit sync.Once

// SharedLibraryPath returns the platform default location of the ONNX
// Runtime shared library.
func SharedLibraryPath() string {
	switch runtime.GOOS {
	case "windows":
		return "third_party/onnxruntime.dll"
	case "darwin":
		return "third_party/libonnxruntime.dylib"
	default:
		if runtime.GOARCH == "arm64" {
			return "third_party/onnxruntime_arm64.so"
		}
		return "third_party/onnxruntime.so"
	}
}

// NewYOLODetector loads the model and builds a reusable inference session.
func NewYOLODetector(cfg Config) (*YOLODetector, error) {
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, errors.Wrapf(err, "model file %s", cfg.ModelPath)
	}

	libPath := cfg.LibraryPath
	if libPath == "" {
		libPath = SharedLibraryPath()
	}
	if _, err := os.Stat(libPath); err != nil {
		return nil, errors.Wrapf(err, "ONNX Runtime library %s", libPath)
	}

	var initErr error
	ortInit.Do(func() {
		ort.SetSharedLibraryPath(libPath)
		initErr = ort.InitializeEnvironment()
	})
	if initErr != nil {
		return nil, errors.Wrap(initErr, "initializing ORT environment")
	}

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 3, inputSize, inputSize))
	if err != nil {
		return nil, errors.Wrap(err, "creating input tensor")
	}
	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 4+NumClasses, numCandidates))
	if err != nil {
		inputTensor.Destroy()
		return nil, errors.Wrap(err, "creating output tensor")
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, errors.Wrap(err, "creating session options")
	}
	defer options.Destroy()

	if cfg.IntraOpThreads > 0 {
		options.SetIntraOpNumThreads(cfg.IntraOpThreads)
	}
	if cfg.InterOpThreads > 0 {
		options.SetInterOpNumThreads(cfg.InterOpThreads)
	}
	options.SetGraphOptimizationLevel(ort.GraphOptimizationLevelEnableExtended)

	session, err := ort.NewAdvancedSession(
		cfg.ModelPath,
		[]string{"images"},
		[]string{"output0"},
		[]ort.ArbitraryTensor{inputTensor},
		[]ort.ArbitraryTensor{outputTensor},
		options,
	)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, errors.Wrapf(err, "creating session for %s", cfg.ModelPath)
	}

	return &YOLODetector{
		session: session,
		input:   inputTensor,
		output:  outputTensor,
	}, nil
}

// Predict runs one inference pass over a BGR frame.
func (d *YOLODetector) Predict(img gocv.Mat, conf float32) ([]detection.Detection, error) {
	if img.Empty() {
		return []detection.Detection{}, nil
	}

	goImg, err := img.ToImage()
	if err != nil {
		return nil, errors.Wrap(err, "converting frame")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.session == nil {
		return nil, errors.New("detector is closed")
	}
	if err := prepareInput(goImg, d.input); err != nil {
		return nil, err
	}
	if err := d.session.Run(); err != nil {
		return nil, errors.Wrap(err, "running inference")
	}

	size := img.Size()
	return decodeOutput(d.output.GetData(), conf, size[1], size[0]), nil
}

// Close releases the session and its tensors. Further Predict calls fail.
func (d *YOLODetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.input != nil {
		d.input.Destroy()
		d.input = nil
	}
	if d.output != nil {
		d.output.Destroy()
		d.output = nil
	}
	if d.session != nil {
		d.session.Destroy()
		d.session = nil
	}
	return nil
}
