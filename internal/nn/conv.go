package nn

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/samcharles93/ocrstack/internal/tensor"
)

// Conv2d is a square-kernel 2-D convolution over (N, C, H, W) inputs.
type Conv2d struct {
	InC, OutC int
	Kernel    int
	Stride    int
	Padding   int
	Weight    *Parameter // [OutC, InC, K, K]
	Bias      *Parameter // nil when built without bias
}

// NewConv2d uses Kaiming-uniform initialisation with fan-in InC*K*K.
func NewConv2d(name string, inC, outC, kernel, stride, padding int, bias bool, rng *rand.Rand) *Conv2d {
	fanIn := inC * kernel * kernel
	bound := float32(math.Sqrt(6 / float64(fanIn)))
	w := tensor.New(outC, inC, kernel, kernel)
	tensor.Uniform(w, rng, bound)
	c := &Conv2d{
		InC:     inC,
		OutC:    outC,
		Kernel:  kernel,
		Stride:  stride,
		Padding: padding,
		Weight:  NewParameter(join(name, "weight"), w),
	}
	if bias {
		b := tensor.New(outC)
		tensor.Uniform(b, rng, float32(1/math.Sqrt(float64(fanIn))))
		c.Bias = NewParameter(join(name, "bias"), b)
	}
	return c
}

func (c *Conv2d) Parameters() []*Parameter {
	if c.Bias == nil {
		return []*Parameter{c.Weight}
	}
	return []*Parameter{c.Weight, c.Bias}
}

func (c *Conv2d) Buffers() []*Buffer { return nil }

// OutSize returns the spatial output extent for an input extent.
func (c *Conv2d) OutSize(in int) int {
	return (in+2*c.Padding-c.Kernel)/c.Stride + 1
}

func (c *Conv2d) Forward(x *tensor.Tensor) *tensor.Tensor {
	if x.Dims() != 4 || x.Shape[1] != c.InC {
		panic(fmt.Sprintf("nn: conv2d expects (N, %d, H, W), got %v", c.InC, x.Shape))
	}
	n, h, w := x.Shape[0], x.Shape[2], x.Shape[3]
	oh, ow := c.OutSize(h), c.OutSize(w)
	out := tensor.New(n, c.OutC, oh, ow)
	k := c.Kernel
	wd := c.Weight.Value.Data

	for b := 0; b < n; b++ {
		in := x.Data[b*c.InC*h*w : (b+1)*c.InC*h*w]
		dst := out.Data[b*c.OutC*oh*ow : (b+1)*c.OutC*oh*ow]
		for oc := 0; oc < c.OutC; oc++ {
			plane := dst[oc*oh*ow : (oc+1)*oh*ow]
			if c.Bias != nil {
				for i := range plane {
					plane[i] = c.Bias.Value.Data[oc]
				}
			}
			for ic := 0; ic < c.InC; ic++ {
				src := in[ic*h*w : (ic+1)*h*w]
				kern := wd[(oc*c.InC+ic)*k*k : (oc*c.InC+ic+1)*k*k]
				for ky := 0; ky < k; ky++ {
					for kx := 0; kx < k; kx++ {
						kv := kern[ky*k+kx]
						if kv == 0 {
							continue
						}
						for oy := 0; oy < oh; oy++ {
							iy := oy*c.Stride - c.Padding + ky
							if iy < 0 || iy >= h {
								continue
							}
							row := src[iy*w : (iy+1)*w]
							drow := plane[oy*ow : (oy+1)*ow]
							for ox := 0; ox < ow; ox++ {
								ix := ox*c.Stride - c.Padding + kx
								if ix < 0 || ix >= w {
									continue
								}
								drow[ox] += kv * row[ix]
							}
						}
					}
				}
			}
		}
	}
	return out
}

// BatchNorm2d normalises each channel with its running statistics.
// There is no autograd, so batch statistics are never needed.
type BatchNorm2d struct {
	C           int
	Eps         float32
	Weight      *Parameter
	Bias        *Parameter
	RunningMean *Buffer
	RunningVar  *Buffer
}

func NewBatchNorm2d(name string, c int) *BatchNorm2d {
	w := tensor.New(c)
	tensor.Fill(w, 1)
	rv := tensor.New(c)
	tensor.Fill(rv, 1)
	return &BatchNorm2d{
		C:           c,
		Eps:         1e-5,
		Weight:      NewParameter(join(name, "weight"), w),
		Bias:        NewParameter(join(name, "bias"), tensor.New(c)),
		RunningMean: &Buffer{Name: join(name, "running_mean"), Value: tensor.New(c)},
		RunningVar:  &Buffer{Name: join(name, "running_var"), Value: rv},
	}
}

func (bn *BatchNorm2d) Parameters() []*Parameter { return []*Parameter{bn.Weight, bn.Bias} }

func (bn *BatchNorm2d) Buffers() []*Buffer { return []*Buffer{bn.RunningMean, bn.RunningVar} }

// Forward normalises x in place and returns it.
func (bn *BatchNorm2d) Forward(x *tensor.Tensor) *tensor.Tensor {
	if x.Dims() != 4 || x.Shape[1] != bn.C {
		panic(fmt.Sprintf("nn: batchnorm expects (N, %d, H, W), got %v", bn.C, x.Shape))
	}
	n, hw := x.Shape[0], x.Shape[2]*x.Shape[3]
	for ch := 0; ch < bn.C; ch++ {
		inv := float32(1 / math.Sqrt(float64(bn.RunningVar.Value.Data[ch]+bn.Eps)))
		scale := bn.Weight.Value.Data[ch] * inv
		shift := bn.Bias.Value.Data[ch] - bn.RunningMean.Value.Data[ch]*scale
		for b := 0; b < n; b++ {
			plane := x.Data[(b*bn.C+ch)*hw : (b*bn.C+ch+1)*hw]
			for i, v := range plane {
				plane[i] = v*scale + shift
			}
		}
	}
	return x
}

// MaxPool2d takes the maximum over square windows; padding counts as -inf.
type MaxPool2d struct {
	Kernel, Stride, Padding int
}

func (p MaxPool2d) Forward(x *tensor.Tensor) *tensor.Tensor {
	n, ch, h, w := x.Shape[0], x.Shape[1], x.Shape[2], x.Shape[3]
	oh := (h+2*p.Padding-p.Kernel)/p.Stride + 1
	ow := (w+2*p.Padding-p.Kernel)/p.Stride + 1
	out := tensor.New(n, ch, oh, ow)
	for plane := 0; plane < n*ch; plane++ {
		src := x.Data[plane*h*w : (plane+1)*h*w]
		dst := out.Data[plane*oh*ow : (plane+1)*oh*ow]
		for oy := 0; oy < oh; oy++ {
			for ox := 0; ox < ow; ox++ {
				best := float32(math.Inf(-1))
				for ky := 0; ky < p.Kernel; ky++ {
					iy := oy*p.Stride - p.Padding + ky
					if iy < 0 || iy >= h {
						continue
					}
					for kx := 0; kx < p.Kernel; kx++ {
						ix := ox*p.Stride - p.Padding + kx
						if ix < 0 || ix >= w {
							continue
						}
						if v := src[iy*w+ix]; v > best {
							best = v
						}
					}
				}
				dst[oy*ow+ox] = best
			}
		}
	}
	return out
}
