package peakfit

import (
	"fmt"
	"math"

	"github.com/hb2btools/hidractl/pkg/hidra"
	"github.com/hb2btools/hidractl/pkg/peaks"
)

// converts a collection's native parameters to the profile-independent
// effective set (Center, Height, FWHM, Intensity, Mixing, A0, A1), with
// uncertainties propagated. the result carries the same sub runs and costs.
func EffectiveParameters(col *peaks.Collection) (*peaks.Collection, error) {
	convert, err := converterFor(col.Profile)
	if err != nil {
		return nil, err
	}

	nativeNames := col.ParamNames

	values := make([][]float64, len(col.SubRuns))
	errors := make([][]float64, len(col.SubRuns))
	for row := range col.SubRuns {
		native := map[string]float64{}
		nativeErrors := map[string]float64{}
		for i, name := range nativeNames {
			native[name] = col.Values[row][i]
			nativeErrors[name] = col.Errors[row][i]
		}

		values[row], errors[row] = convert(native, nativeErrors)
	}

	return &peaks.Collection{
		Tag:              col.Tag,
		Profile:          col.Profile,
		Background:       col.Background,
		SubRuns:          append(hidra.SubRuns{}, col.SubRuns...),
		ParamNames:       append([]string{}, hidra.EffectivePeakParams...),
		Values:           values,
		Errors:           errors,
		Costs:            append([]float64{}, col.Costs...),
		DReference:       append([]float64{}, col.DReference...),
		DReferenceErrors: append([]float64{}, col.DReferenceErrors...),
	}, nil
}

type effectiveConverter func(native map[string]float64, nativeErrors map[string]float64) ([]float64, []float64)

func converterFor(profile hidra.PeakProfile) (effectiveConverter, error) {
	switch profile {
	case hidra.ProfileGaussian:
		return gaussianEffective, nil
	case hidra.ProfilePseudoVoigt:
		return pseudoVoigtEffective, nil
	default:
		return nil, fmt.Errorf("no effective parameter converter for profile %s", profile)
	}
}

func gaussianEffective(native map[string]float64, nativeErrors map[string]float64) ([]float64, []float64) {
	height, center, sigma := native["Height"], native["PeakCentre"], native["Sigma"]
	heightErr, centerErr, sigmaErr := nativeErrors["Height"], nativeErrors["PeakCentre"], nativeErrors["Sigma"]

	fwhmFactor := 2 * math.Sqrt(2*math.Ln2)
	intensity := height * sigma * math.Sqrt(2*math.Pi)
	intensityErr := math.Sqrt(2*math.Pi) * math.Hypot(sigma*heightErr, height*sigmaErr)

	// mixing 0 = pure Gaussian in the mixed-profile convention
	return []float64{center, height, fwhmFactor * sigma, intensity, 0, native["A0"], native["A1"]},
		[]float64{centerErr, heightErr, fwhmFactor * sigmaErr, intensityErr, 0, nativeErrors["A0"], nativeErrors["A1"]}
}

func pseudoVoigtEffective(native map[string]float64, nativeErrors map[string]float64) ([]float64, []float64) {
	mixing, intensity, center, fwhm := native["Mixing"], native["Intensity"], native["PeakCentre"], native["FWHM"]
	mixingErr, intensityErr, centerErr, fwhmErr := nativeErrors["Mixing"], nativeErrors["Intensity"], nativeErrors["PeakCentre"], nativeErrors["FWHM"]

	// peak height at the center of the two unit-area components
	lorPeak := 2 / (math.Pi * fwhm)
	gauPeak := 2 * math.Sqrt(math.Ln2/math.Pi) / fwhm
	perUnitArea := mixing*lorPeak + (1-mixing)*gauPeak
	height := intensity * perUnitArea

	dHeightDMixing := intensity * (lorPeak - gauPeak)
	dHeightDIntensity := perUnitArea
	dHeightDFwhm := -height / fwhm

	heightErr := math.Sqrt(
		square(dHeightDMixing*mixingErr) +
			square(dHeightDIntensity*intensityErr) +
			square(dHeightDFwhm*fwhmErr))

	return []float64{center, height, fwhm, intensity, mixing, native["A0"], native["A1"]},
		[]float64{centerErr, heightErr, fwhmErr, intensityErr, mixingErr, nativeErrors["A0"], nativeErrors["A1"]}
}

func square(v float64) float64 {
	return v * v
}
