package engine

import (
	"math"

	"github.com/janelia-flyem/cardiowave/domain"
)

// State is the per-cell state of the minimal ventricular model: transmembrane voltage U
// and the gating variables V, W and D.  All four stay within [0, 1].
type State struct {
	U, V, W, D float64
}

// RestingState is the state every cell starts in.
var RestingState = State{U: 0, V: 1, W: 1, D: 0.03}

func heaviside(u, threshold float64) float64 {
	if u > threshold {
		return 1
	}
	return 0
}

func clamp(x float64) float64 {
	switch {
	case x < 0:
		return 0
	case x > 1:
		return 1
	case x != x:
		return 0
	}
	return x
}

// Currents returns the fast inward, slow outward and slow inward currents for a state.
func (p *Params) Currents(s State) (fi, so, si float64) {
	hna := heaviside(s.U, p.Una)
	hc := heaviside(s.U, p.Uc)

	fi = -s.V * (s.U - p.Una) * (p.Um - s.U) * hna / p.Td
	tso := p.Tsoa + 0.5*(p.Tsob-p.Tsoa)*(1+math.Tanh((s.U-p.Uso)*p.Xtso))
	so = (s.U-p.U0)*(1-hc)/p.To + hc/tso
	si = -s.W * s.D / p.Tsi
	return
}

// update returns the next state of cell i.  invDx2 is 1/dx^2.  The laplacian sums
// differences to each neighbor so a boundary slot pointing back at the cell adds nothing.
func (p *Params) update(cur []State, nbrs *domain.Neighbors, i int, invDx2 float64) State {
	s := cur[i]
	hna := heaviside(s.U, p.Una)
	hv := heaviside(s.U, p.Uv)
	hw := heaviside(s.U, p.Uw)
	hd := heaviside(s.U, p.Ud)

	fi, so, si := p.Currents(s)
	sum := fi + so + si

	dv := (1-hna)*(1-s.V)/((1-hv)*p.Tvm+hv*p.Tvmm) - hna*s.V/p.Tvp
	dw := (1-hw)*(1-s.W)/p.Twm - hw*s.W/p.Twp
	dinf := 0.5 * (1 + math.Tanh(p.Xk*(s.U-p.Ucsi)))
	dd := ((1-hd)/p.Tsm + hd/p.Tsp) * (dinf - s.D)

	var lap float64
	for _, j := range nbrs {
		lap += cur[j].U - s.U
	}
	lap *= invDx2

	return State{
		U: clamp(s.U + p.Dt*(lap*p.Diffusion-sum/p.Cm)),
		V: clamp(s.V + p.Dt*dv),
		W: clamp(s.W + p.Dt*dw),
		D: clamp(s.D + p.Dt*dd),
	}
}
