package model

import (
	"fmt"
	"math/rand"

	"github.com/samcharles93/ocrstack/internal/nn"
	"github.com/samcharles93/ocrstack/internal/tensor"
)

// basicBlock is the two-convolution residual block of ResNet-18/34.
type basicBlock struct {
	conv1 *nn.Conv2d
	bn1   *nn.BatchNorm2d
	conv2 *nn.Conv2d
	bn2   *nn.BatchNorm2d
	// downsample matches the identity path when stride or width changes.
	downConv *nn.Conv2d
	downBN   *nn.BatchNorm2d
}

func newBasicBlock(name string, in, out, stride int, rng *rand.Rand) *basicBlock {
	b := &basicBlock{
		conv1: nn.NewConv2d(name+".conv1", in, out, 3, stride, 1, false, rng),
		bn1:   nn.NewBatchNorm2d(name+".bn1", out),
		conv2: nn.NewConv2d(name+".conv2", out, out, 3, 1, 1, false, rng),
		bn2:   nn.NewBatchNorm2d(name+".bn2", out),
	}
	if stride != 1 || in != out {
		b.downConv = nn.NewConv2d(name+".downsample.0", in, out, 1, stride, 0, false, rng)
		b.downBN = nn.NewBatchNorm2d(name+".downsample.1", out)
	}
	return b
}

func (b *basicBlock) modules() []nn.Module {
	ms := []nn.Module{b.conv1, b.bn1, b.conv2, b.bn2}
	if b.downConv != nil {
		ms = append(ms, b.downConv, b.downBN)
	}
	return ms
}

func (b *basicBlock) forward(x *tensor.Tensor) *tensor.Tensor {
	out := b.bn1.Forward(b.conv1.Forward(x))
	tensor.ReLU(out.Data)
	out = b.bn2.Forward(b.conv2.Forward(out))
	identity := x
	if b.downConv != nil {
		identity = b.downBN.Forward(b.downConv.Forward(x))
	}
	tensor.Add(out.Data, identity.Data)
	tensor.ReLU(out.Data)
	return out
}

// ResNet is the ResNet-18 feature extractor: the stem and four residual
// stages, without the pooling and classification head. Parameter names
// follow the torchvision layout so pretrained weights load directly.
type ResNet struct {
	conv1  *nn.Conv2d
	bn1    *nn.BatchNorm2d
	pool   nn.MaxPool2d
	stages [4][]*basicBlock
	inC    int
	outC   int
}

var resnet18Widths = [4]int{64, 128, 256, 512}

func newResNet18(inChannels int, rng *rand.Rand) *ResNet {
	r := &ResNet{
		conv1: nn.NewConv2d("conv1", inChannels, 64, 7, 2, 3, false, rng),
		bn1:   nn.NewBatchNorm2d("bn1", 64),
		pool:  nn.MaxPool2d{Kernel: 3, Stride: 2, Padding: 1},
		inC:   inChannels,
		outC:  resnet18Widths[3],
	}
	in := 64
	for s, width := range resnet18Widths {
		stride := 2
		if s == 0 {
			stride = 1
		}
		name := fmt.Sprintf("layer%d", s+1)
		r.stages[s] = []*basicBlock{
			newBasicBlock(name+".0", in, width, stride, rng),
			newBasicBlock(name+".1", width, width, 1, rng),
		}
		in = width
	}
	return r
}

func (r *ResNet) modules() []nn.Module {
	ms := []nn.Module{r.conv1, r.bn1}
	for _, stage := range r.stages {
		for _, b := range stage {
			ms = append(ms, b.modules()...)
		}
	}
	return ms
}

func (r *ResNet) Parameters() []*nn.Parameter { return nn.CollectParameters(r.modules()...) }

func (r *ResNet) Buffers() []*nn.Buffer { return nn.CollectBuffers(r.modules()...) }

func (r *ResNet) OutChannels() int { return r.outC }

// Forward downsamples by 32 in each spatial axis.
func (r *ResNet) Forward(images *tensor.Tensor) (*tensor.Tensor, error) {
	if images.Dims() != 4 || images.Shape[1] != r.inC {
		return nil, fmt.Errorf("resnet18: expected (N, %d, H, W) images, got %v", r.inC, images.Shape)
	}
	if images.Shape[2] < 32 || images.Shape[3] < 32 {
		return nil, fmt.Errorf("resnet18: images must be at least 32x32, got %dx%d", images.Shape[2], images.Shape[3])
	}
	x := r.bn1.Forward(r.conv1.Forward(images))
	tensor.ReLU(x.Data)
	x = r.pool.Forward(x)
	for _, stage := range r.stages {
		for _, b := range stage {
			x = b.forward(x)
		}
	}
	return x, nil
}
