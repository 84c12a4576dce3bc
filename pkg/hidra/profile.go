package hidra

import (
	"fmt"
)

type PeakProfile string

const (
	ProfileGaussian    PeakProfile = "Gaussian"
	ProfilePseudoVoigt PeakProfile = "PseudoVoigt"
)

type BackgroundFunction string

const (
	BackgroundLinear BackgroundFunction = "Linear"
)

// native parameter names, in fit order. background parameters are appended
// after these by the fit engine.
var nativePeakParams = map[PeakProfile][]string{
	ProfileGaussian:    {"Height", "PeakCentre", "Sigma"},
	ProfilePseudoVoigt: {"Mixing", "Intensity", "PeakCentre", "FWHM"},
}

var nativeBackgroundParams = map[BackgroundFunction][]string{
	BackgroundLinear: {"A0", "A1"},
}

// effective parameters are profile-independent, so downstream analysis
// (strain/stress, texture) doesn't need to care which profile was fitted
var EffectivePeakParams = []string{"Center", "Height", "FWHM", "Intensity", "Mixing", "A0", "A1"}

func ParsePeakProfile(s string) (PeakProfile, error) {
	switch PeakProfile(s) {
	case ProfileGaussian:
		return ProfileGaussian, nil
	case ProfilePseudoVoigt:
		return ProfilePseudoVoigt, nil
	default:
		return "", fmt.Errorf("unknown peak profile: %s (supported: %s, %s)", s, ProfileGaussian, ProfilePseudoVoigt)
	}
}

func ParseBackgroundFunction(s string) (BackgroundFunction, error) {
	switch BackgroundFunction(s) {
	case BackgroundLinear:
		return BackgroundLinear, nil
	default:
		return "", fmt.Errorf("unknown background function: %s (supported: %s)", s, BackgroundLinear)
	}
}

func (p PeakProfile) NativeParams() []string {
	params, found := nativePeakParams[p]
	if !found {
		panic(fmt.Sprintf("profile %s has no native parameters", p))
	}

	return append([]string{}, params...)
}

func (b BackgroundFunction) NativeParams() []string {
	params, found := nativeBackgroundParams[b]
	if !found {
		panic(fmt.Sprintf("background %s has no native parameters", b))
	}

	return append([]string{}, params...)
}
