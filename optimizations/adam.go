// Package optimizations holds the gradient update step. The optimizer owns
// its moment state explicitly; nothing is attached to the model.
package optimizations

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Adam carries first/second moment estimates for a fixed set of parameter
// tensors, registered once and updated in place every step.
type Adam struct {
	LR    float64
	Beta1 float64
	Beta2 float64
	Eps   float64

	step int
	m    map[*mat.Dense]*mat.Dense
	v    map[*mat.Dense]*mat.Dense
}

func NewAdam(lr, beta1, beta2, eps float64) *Adam {
	return &Adam{
		LR:    lr,
		Beta1: beta1,
		Beta2: beta2,
		Eps:   eps,
		m:     make(map[*mat.Dense]*mat.Dense),
		v:     make(map[*mat.Dense]*mat.Dense),
	}
}

// Step advances the shared bias-correction counter. Call once per batch,
// before the parameter updates of that batch.
func (a *Adam) Step() { a.step++ }

// Update applies one Adam update to p given grad g. Moment buffers are
// allocated lazily on first sight of p.
func (a *Adam) Update(p, g *mat.Dense) {
	m, ok := a.m[p]
	if !ok {
		m = zerosLike(p)
		a.m[p] = m
	}
	v, ok := a.v[p]
	if !ok {
		v = zerosLike(p)
		a.v[p] = v
	}
	AdamUpdateInPlace(p, g, m, v, a.step, a.LR, a.Beta1, a.Beta2, a.Eps)
}

// AdamUpdateInPlace: p -= lr * mhat / (sqrt(vhat)+eps) with bias correction.
func AdamUpdateInPlace(
	p, g, m, v *mat.Dense,
	t int,
	lr, beta1, beta2, eps float64,
) {
	pr, pc := p.Dims()
	if gr, gc := g.Dims(); gr != pr || gc != pc {
		panic("AdamUpdateInPlace: grad shape mismatch")
	}
	if mr, mc := m.Dims(); mr != pr || mc != pc {
		panic("AdamUpdateInPlace: m shape mismatch")
	}
	if vr, vc := v.Dims(); vr != pr || vc != pc {
		panic("AdamUpdateInPlace: v shape mismatch")
	}
	b1t := math.Pow(beta1, float64(t))
	b2t := math.Pow(beta2, float64(t))
	c1 := 1.0 / (1.0 - b1t)
	c2 := 1.0 / (1.0 - b2t)
	for i := 0; i < pr; i++ {
		for j := 0; j < pc; j++ {
			gij := g.At(i, j)
			mij := beta1*m.At(i, j) + (1.0-beta1)*gij
			vij := beta2*v.At(i, j) + (1.0-beta2)*gij*gij
			mhat := mij * c1
			vhat := vij * c2
			pij := p.At(i, j) - lr*mhat/(math.Sqrt(vhat)+eps)
			m.Set(i, j, mij)
			v.Set(i, j, vij)
			p.Set(i, j, pij)
		}
	}
}

func zerosLike(a *mat.Dense) *mat.Dense {
	r, c := a.Dims()
	return mat.NewDense(r, c, nil)
}
