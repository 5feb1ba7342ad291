package engine

import (
	"fmt"
	"math"
)

// Params holds the integration settings and the Bueno-Orovio ionic constants.  They are
// read-only while an engine runs.
type Params struct {
	Dt             float64 `toml:"dt" json:"dt"`
	Diffusion      float64 `toml:"diffusion" json:"diffusion"`
	DomainLength   float64 `toml:"domain_length" json:"domain_length"`
	GridResolution float64 `toml:"grid_resolution" json:"grid_resolution"`
	Cm             float64 `toml:"cm" json:"cm"`

	U0   float64 `toml:"u_0" json:"u_0"`
	Um   float64 `toml:"u_m" json:"u_m"`
	Una  float64 `toml:"u_na" json:"u_na"`
	Uv   float64 `toml:"u_v" json:"u_v"`
	Uw   float64 `toml:"u_w" json:"u_w"`
	Ud   float64 `toml:"u_d" json:"u_d"`
	Uc   float64 `toml:"u_c" json:"u_c"`
	Uso  float64 `toml:"u_so" json:"u_so"`
	Ucsi float64 `toml:"u_csi" json:"u_csi"`
	Xk   float64 `toml:"x_k" json:"x_k"`
	Xtso float64 `toml:"x_tso" json:"x_tso"`

	Td   float64 `toml:"t_d" json:"t_d"`
	To   float64 `toml:"t_o" json:"t_o"`
	Tsoa float64 `toml:"t_soa" json:"t_soa"`
	Tsob float64 `toml:"t_sob" json:"t_sob"`
	Tsi  float64 `toml:"t_si" json:"t_si"`
	Tvp  float64 `toml:"t_vp" json:"t_vp"`
	Tvm  float64 `toml:"t_vm" json:"t_vm"`
	Tvmm float64 `toml:"t_vmm" json:"t_vmm"`
	Twm  float64 `toml:"t_wm" json:"t_wm"`
	Twp  float64 `toml:"t_wp" json:"t_wp"`
	Tsm  float64 `toml:"t_sm" json:"t_sm"`
	Tsp  float64 `toml:"t_sp" json:"t_sp"`
}

// DefaultParams returns a parameter set with a stable resting state and a propagating
// action potential on a unit grid spacing of domain length / grid resolution.
func DefaultParams() Params {
	return Params{
		Dt:             0.1,
		Diffusion:      0.001171,
		DomainLength:   8.0,
		GridResolution: 256,
		Cm:             1.0,

		U0:   0,
		Um:   1.55,
		Una:  0.3,
		Uv:   0.006,
		Uw:   0.13,
		Ud:   0.13,
		Uc:   0.13,
		Uso:  0.65,
		Ucsi: 0.85,
		Xk:   10.0,
		Xtso: 2.0458,

		Td:   0.11,
		To:   6.0,
		Tsoa: 30.0181,
		Tsob: 0.9957,
		Tsi:  1.8875,
		Tvp:  1.4506,
		Tvm:  60,
		Tvmm: 1150,
		Twm:  60,
		Twp:  200,
		Tsm:  2.7342,
		Tsp:  16,
	}
}

// Dx returns the grid spacing.
func (p Params) Dx() float64 {
	return p.DomainLength / p.GridResolution
}

// Check returns an error if a parameter would make the update undefined.
func (p Params) Check() error {
	positive := []struct {
		name string
		val  float64
	}{
		{"dt", p.Dt}, {"domain_length", p.DomainLength}, {"grid_resolution", p.GridResolution},
		{"cm", p.Cm}, {"t_d", p.Td}, {"t_o", p.To}, {"t_si", p.Tsi}, {"t_vp", p.Tvp},
		{"t_vm", p.Tvm}, {"t_vmm", p.Tvmm}, {"t_wm", p.Twm}, {"t_wp", p.Twp},
		{"t_sm", p.Tsm}, {"t_sp", p.Tsp},
	}
	for _, param := range positive {
		if !(param.val > 0) || math.IsInf(param.val, 1) {
			return fmt.Errorf("simulation parameter %s must be positive and finite, got %g", param.name, param.val)
		}
	}
	if !(p.Diffusion >= 0) {
		return fmt.Errorf("simulation parameter diffusion must not be negative, got %g", p.Diffusion)
	}
	if p.Tsoa <= 0 || p.Tsob <= 0 {
		return fmt.Errorf("simulation parameters t_soa and t_sob must be positive, got %g and %g", p.Tsoa, p.Tsob)
	}
	return nil
}
