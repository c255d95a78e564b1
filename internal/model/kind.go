// Package model constructs knowledge tracing models and their matching
// loss-batch functions. Architectures are fixed random recurrent encoders
// with a trainable sigmoid readout per skill: real trainable function
// objects with exact gradients, small enough to keep the orchestration core
// free of any autodiff backend.
package model

import (
	"errors"
	"fmt"
)

// ErrUnsupportedModel is returned for an unknown model identifier. Fatal
// for the experiment that names it.
var ErrUnsupportedModel = errors.New("unsupported model name")

// #region kind

// Kind is the tagged variant of supported model architectures.
type Kind int

const (
	KindEncDec Kind = iota
	KindBaseRNN
	KindBaseLSTM
	KindSeq2Seq
)

// String returns the model identifier used in config files and artifact
// filenames.
func (k Kind) String() string {
	switch k {
	case KindEncDec:
		return "encdec"
	case KindBaseRNN:
		return "basernn"
	case KindBaseLSTM:
		return "baselstm"
	case KindSeq2Seq:
		return "seq2seq"
	}
	return "unknown"
}

// ParseKind maps a model_name option to its Kind.
func ParseKind(name string) (Kind, error) {
	switch name {
	case "encdec":
		return KindEncDec, nil
	case "basernn":
		return KindBaseRNN, nil
	case "baselstm":
		return KindBaseLSTM, nil
	case "seq2seq":
		return KindSeq2Seq, nil
	}
	return 0, fmt.Errorf("model_name %q: %w", name, ErrUnsupportedModel)
}

// #endregion kind

// #region device

// Device is the compute placement for a model. Only the CPU backend is
// built in; a cuda request falls back with a logged warning at the call
// site.
type Device string

// DeviceCPU is the in-process gonum backend.
const DeviceCPU Device = "cpu"

// PickDevice resolves the cuda config flag to an available device.
func PickDevice(cuda bool) Device {
	return DeviceCPU
}

// #endregion device
