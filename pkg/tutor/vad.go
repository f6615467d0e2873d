package tutor

import "math"

// VadState is the per-frame classification result.
type VadState struct {
	IsSpeaking bool
	LevelDB    float64
}

// EnergyVAD classifies speaking vs. silence from the smoothed mean magnitude
// of each capture frame, compared against a fixed dBFS threshold. The
// smoothing time constant is the only debouncing; that tradeoff is deliberate.
type EnergyVAD struct {
	thresholdDB float64
	smoothing   float64

	smoothed    float64
	isSpeaking  bool
	wasSpeaking bool
}

const silenceFloorDB = -96.0

func NewEnergyVAD(thresholdDB, smoothing float64) *EnergyVAD {
	if smoothing < 0 || smoothing >= 1 {
		smoothing = 0.8
	}
	return &EnergyVAD{
		thresholdDB: thresholdDB,
		smoothing:   smoothing,
	}
}

// SetThreshold updates the classification threshold in dBFS.
func (v *EnergyVAD) SetThreshold(db float64) {
	v.thresholdDB = db
}

// Threshold returns the current threshold in dBFS.
func (v *EnergyVAD) Threshold() float64 {
	return v.thresholdDB
}

// Process consumes one capture frame and reclassifies.
func (v *EnergyVAD) Process(frame []float32) VadState {
	var sum float64
	for _, s := range frame {
		sum += math.Abs(float64(s))
	}
	mag := 0.0
	if len(frame) > 0 {
		mag = sum / float64(len(frame))
	}

	v.smoothed = v.smoothing*v.smoothed + (1-v.smoothing)*mag

	level := silenceFloorDB
	if v.smoothed > 0 {
		level = 20 * math.Log10(v.smoothed)
		if level < silenceFloorDB {
			level = silenceFloorDB
		}
	}

	v.wasSpeaking = v.isSpeaking
	v.isSpeaking = level > v.thresholdDB

	return VadState{IsSpeaking: v.isSpeaking, LevelDB: level}
}

// Onset reports a silence-to-speech edge on the most recent frame, as opposed
// to sustained speech.
func (v *EnergyVAD) Onset() bool {
	return v.isSpeaking && !v.wasSpeaking
}

// Offset reports a speech-to-silence edge on the most recent frame.
func (v *EnergyVAD) Offset() bool {
	return !v.isSpeaking && v.wasSpeaking
}

// IsSpeaking returns the current classification.
func (v *EnergyVAD) IsSpeaking() bool {
	return v.isSpeaking
}

// Reset clears all state so a new session starts from silence.
func (v *EnergyVAD) Reset() {
	v.smoothed = 0
	v.isSpeaking = false
	v.wasSpeaking = false
}
