package wire

import (
	"errors"
	"fmt"
)

// FrameTransform selects how the task frame is transformed while force
// mode is active. Values match the control script's force_mode builtin.
type FrameTransform int32

const (
	// TransformPoint keeps the force frame aligned towards a point.
	TransformPoint FrameTransform = 1

	// TransformFixed does not transform the force frame at all.
	TransformFixed FrameTransform = 2

	// TransformMotion transforms the force frame along the TCP motion.
	TransformMotion FrameTransform = 3
)

// IsValid reports whether the transform value is one the script accepts.
func (t FrameTransform) IsValid() bool {
	return t >= TransformPoint && t <= TransformMotion
}

// Force-mode validation errors.
var (
	ErrDampingOutOfRange = errors.New("damping factor out of range [0, 1]")
	ErrGainOutOfRange    = errors.New("gain scaling out of range [0, 2]")
)

// ForceModeParams are the version-independent force-mode parameters.
type ForceModeParams struct {
	// TaskFrame is the pose defining the force frame, relative to base.
	TaskFrame Vector6D

	// Compliance selects the compliant axes of the task frame.
	Compliance Selection

	// Wrench is the target force/torque applied along compliant axes.
	// Non-compliant axes interpret it as a trajectory deviation bound.
	Wrench Vector6D

	// Type selects how the task frame follows the robot motion.
	Type FrameTransform

	// Limits are per-axis speed limits (compliant axes) or deviation
	// limits (non-compliant axes).
	Limits Vector6D

	// Damping slows compliant motion, 0 (none) to 1 (full).
	Damping float64
}

// Validate checks the parameters against the script's accepted ranges.
func (p ForceModeParams) Validate() error {
	if !p.Type.IsValid() {
		return fmt.Errorf("invalid frame transform type %d", p.Type)
	}
	if p.Damping < 0 || p.Damping > 1 {
		return fmt.Errorf("%w: %v", ErrDampingOutOfRange, p.Damping)
	}
	return nil
}

// ForceModeCommand is a force-mode start command in one of its two
// version-dependent shapes.
type ForceModeCommand interface {
	Command

	// Groups returns the parameter groups in wire order, unscaled.
	// Scalar parameters appear as single-element groups.
	Groups() [][]float64
}

// ForceModeCommandV3 is the force-mode start shape accepted by firmware
// before major version 5. It carries no gain-scaling word; older
// firmware rejects frames with unexpected trailing words.
type ForceModeCommandV3 struct {
	Params ForceModeParams
}

// Type returns MessageForceModeStart.
func (ForceModeCommandV3) Type() MessageType { return MessageForceModeStart }

// Groups returns the six parameter groups.
func (c ForceModeCommandV3) Groups() [][]float64 {
	return [][]float64{
		c.Params.TaskFrame.Floats(),
		c.Params.Compliance.Floats(),
		c.Params.Wrench.Floats(),
		{float64(c.Params.Type)},
		c.Params.Limits.Floats(),
		{c.Params.Damping},
	}
}

// Words returns the frame payload.
func (c ForceModeCommandV3) Words() []int32 {
	return appendForceModeWords(nil, c.Params)
}

// Validate checks the command parameters.
func (c ForceModeCommandV3) Validate() error {
	return c.Params.Validate()
}

// ForceModeCommandV5 is the force-mode start shape for firmware with
// major version 5 or newer, which additionally takes a gain-scaling
// factor for the force controller.
type ForceModeCommandV5 struct {
	Params ForceModeParams

	// GainScaling scales the force-controller gain, 0 to 2. Values
	// above 1 can make the controller unstable.
	GainScaling float64
}

// Type returns MessageForceModeStart.
func (ForceModeCommandV5) Type() MessageType { return MessageForceModeStart }

// Groups returns the seven parameter groups.
func (c ForceModeCommandV5) Groups() [][]float64 {
	return append(ForceModeCommandV3{Params: c.Params}.Groups(), []float64{c.GainScaling})
}

// Words returns the frame payload.
func (c ForceModeCommandV5) Words() []int32 {
	return append(appendForceModeWords(nil, c.Params), scaleWord(c.GainScaling))
}

// Validate checks the command parameters.
func (c ForceModeCommandV5) Validate() error {
	if err := c.Params.Validate(); err != nil {
		return err
	}
	if c.GainScaling < 0 || c.GainScaling > 2 {
		return fmt.Errorf("%w: %v", ErrGainOutOfRange, c.GainScaling)
	}
	return nil
}

// appendForceModeWords appends the shared force-mode words: type word,
// task frame, compliance, wrench, transform, limits, damping.
func appendForceModeWords(words []int32, p ForceModeParams) []int32 {
	words = append(words, int32(MessageForceModeStart))
	frame := p.TaskFrame.Words()
	words = append(words, frame[:]...)
	sel := p.Compliance.Words()
	words = append(words, sel[:]...)
	wrench := p.Wrench.Words()
	words = append(words, wrench[:]...)
	words = append(words, int32(p.Type))
	limits := p.Limits.Words()
	words = append(words, limits[:]...)
	words = append(words, scaleWord(p.Damping))
	return words
}

// Payload word counts for the two force-mode shapes, including the
// leading message-type word.
const (
	forceModeWordsV3 = 1 + 6 + 6 + 6 + 1 + 6 + 1
	forceModeWordsV5 = forceModeWordsV3 + 1
)

// DecodeForceModeStart decodes a force-mode start frame payload into
// the shape implied by its length.
func DecodeForceModeStart(words []int32) (ForceModeCommand, error) {
	if len(words) == 0 || MessageType(words[0]) != MessageForceModeStart {
		return nil, fmt.Errorf("not a force-mode start frame")
	}
	if len(words) != forceModeWordsV3 && len(words) != forceModeWordsV5 {
		return nil, fmt.Errorf("force-mode start frame has %d words", len(words))
	}

	taskFrame, err := vectorFromWords(words[1:7])
	if err != nil {
		return nil, err
	}
	compliance, err := selectionFromWords(words[7:13])
	if err != nil {
		return nil, err
	}
	wrench, err := vectorFromWords(words[13:19])
	if err != nil {
		return nil, err
	}
	limits, err := vectorFromWords(words[20:26])
	if err != nil {
		return nil, err
	}

	params := ForceModeParams{
		TaskFrame:  taskFrame,
		Compliance: compliance,
		Wrench:     wrench,
		Type:       FrameTransform(words[19]),
		Limits:     limits,
		Damping:    unscaleWord(words[26]),
	}

	if len(words) == forceModeWordsV3 {
		return ForceModeCommandV3{Params: params}, nil
	}
	return ForceModeCommandV5{Params: params, GainScaling: unscaleWord(words[27])}, nil
}
