package pvwatts

const (
	// NominalEfficiency is the default inverter efficiency at rated power.
	NominalEfficiency = 0.96
	// ReferenceEfficiency of the CEC inverter the part-load curve was fit to.
	ReferenceEfficiency = 0.9637
)

// Inverter converts DC to AC power with the PVWatts part-load curve.
type Inverter struct {
	ACRating float64 // W
}

// NewInverter returns an inverter rated acRating watts AC.
func NewInverter(acRating float64) Inverter {
	return Inverter{ACRating: acRating}
}

// NameplateDCRating is the DC input at which the inverter reaches its AC rating.
func (i Inverter) NameplateDCRating() float64 {
	return i.ACRating / NominalEfficiency
}

// ACPower returns the AC output for dcPower watts of DC input. Output
// saturates at the AC rating and no input gives no output. Below roughly 0.6%
// load the curve dips under zero and the inverter draws power.
func (i Inverter) ACPower(dcPower float64) float64 {
	if dcPower <= 0 {
		return 0
	}
	pdc0 := i.NameplateDCRating()
	if dcPower >= pdc0 {
		return i.ACRating
	}

	zeta := dcPower / pdc0
	eff := NominalEfficiency / ReferenceEfficiency * (-0.0162*zeta - 0.0059/zeta + 0.9858)
	return dcPower * eff
}
