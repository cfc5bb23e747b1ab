package detect

import (
	"image"

	"github.com/nfnt/resize"
	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

// inputSize is the square input edge the YOLOv8 export expects.
const inputSize = 640

// prepareInput fills the destination tensor with the image in CHW float32
// layout, resized to the model input size. Values are scaled to [0,1].
func prepareInput(img image.Image, dst *ort.Tensor[float32]) error {
	data := dst.GetData()
	channelSize := inputSize * inputSize
	if len(data) < channelSize*3 {
		return errors.Errorf("input tensor holds %d floats, need %d",
			len(data), channelSize*3)
	}
	red := data[0:channelSize]
	green := data[channelSize : channelSize*2]
	blue := data[channelSize*2 : channelSize*3]

	img = resize.Resize(inputSize, inputSize, img, resize.Lanczos3)

	i := 0
	for y := 0; y < inputSize; y++ {
		for x := 0; x < inputSize; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			red[i] = float32(r>>8) / 255.0
			green[i] = float32(g>>8) / 255.0
			blue[i] = float32(b>>8) / 255.0
			i++
		}
	}
	return nil
}
