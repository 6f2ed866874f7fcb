// Package physics holds the plasma constants and unit conversions applied to
// discontinuity candidates. All inputs use the catalog's units: densities in
// cm⁻³, magnetic field in nT, speeds in km/s.
package physics

import (
	"math"

	"github.com/KI7MT/ids-finder/internal/frame"
)

// CODATA 2018 values, SI units.
const (
	SpeedOfLight     = 299792458.0       // m/s
	Mu0              = 1.25663706212e-6  // N/A²
	Epsilon0         = 8.8541878128e-12  // F/m
	ElementaryCharge = 1.602176634e-19   // C
	ProtonMass       = 1.67262192369e-27 // kg
)

// JFactor converts (nT/s) / (km/s) / μ0 into A/m².
const JFactor = 1e-9 / Mu0 / 1e3

const (
	perCubicCm = 1e6 // cm⁻³ -> m⁻³
	metresToKm = 1e-3
	nanoTesla  = 1e-9
)

// IonInertialLength returns the proton inertial length c/ω_pi in km for a
// number density n in cm⁻³. Non-positive or NaN densities give NaN.
func IonInertialLength(n float64) float64 {
	if !(n > 0) {
		return math.NaN()
	}
	ni := n * perCubicCm
	omegaPi := math.Sqrt(ni * ElementaryCharge * ElementaryCharge / (Epsilon0 * ProtonMass))
	return SpeedOfLight / omegaPi * metresToKm
}

// NormalizeCurrentDensity converts a raw d_star/v_mn ratio to A/m².
func NormalizeCurrentDensity(j float64) float64 {
	return j * JFactor
}

// AlfvenSpeed returns B/sqrt(μ0 n m_p) in km/s for B in nT and n in cm⁻³.
func AlfvenSpeed(bnT, n float64) float64 {
	if !(bnT > 0) || !(n > 0) {
		return math.NaN()
	}
	rho := n * perCubicCm * ProtonMass
	return bnT * nanoTesla / math.Sqrt(Mu0*rho) * metresToKm
}

// AlfvenCurrentDensity returns e n v_A in A/m², the reference current used to
// normalize j0.
func AlfvenCurrentDensity(bnT, n float64) float64 {
	va := AlfvenSpeed(bnT, n)
	if math.IsNaN(va) {
		return va
	}
	return ElementaryCharge * n * perCubicCm * va / metresToKm
}

// IonInertialLengthSeries applies IonInertialLength row-wise. Null densities
// stay null.
func IonInertialLengthSeries(name string, density *frame.Series) (*frame.Series, error) {
	return frame.Map(name, density, IonInertialLength)
}
