package model

// EngineStage identifies which pipeline stage an engine serves.
type EngineStage string

const (
	EngineStageSTT       EngineStage = "stt"
	EngineStageTranslate EngineStage = "translate"
	EngineStageTTS       EngineStage = "tts"
	EngineStageEvaluate  EngineStage = "evaluate"
)

// Locality distinguishes engines that run in-process/on-host from
// engines reached over the network.
type Locality string

const (
	LocalityLocal  Locality = "local"
	LocalityRemote Locality = "remote"
)

// Capability flags what an engine can do, used by the Dispatcher to
// filter candidates (e.g. only cloning-capable TTS engines when
// clone_voice is on).
type Capability string

const (
	CapabilityCloneVoice Capability = "clone_voice"
	CapabilityAutoDetect Capability = "auto_detect_lang"
)

// EngineSpec is a read-only-after-construction description of one
// concrete engine the Dispatcher can hand back in a fallback chain.
type EngineSpec struct {
	Stage               EngineStage
	ID                  string
	Capabilities        []Capability
	CredentialsRequired string
	Locality            Locality
}

// HasCapability reports whether the spec advertises a capability.
func (e EngineSpec) HasCapability(c Capability) bool {
	for _, have := range e.Capabilities {
		if have == c {
			return true
		}
	}
	return false
}
