// Package dispatcher resolves which concrete engine handles a pipeline
// stage for a given job, and in what fallback order. It never performs
// the call itself -- it hands back an ordered list of model.EngineSpec
// for the caller to walk.
package dispatcher

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/redubline/api/internal/model"
	"github.com/redubline/api/internal/resource"
)

//go:embed rules.yaml
var defaultRulesYAML []byte

// rules is the static, yaml-backed selection table (grounded on
// AsmirZukic-go_encoder's yaml-driven config pattern).
type rules struct {
	STT struct {
		RemoteFastPath []string `yaml:"remoteFastPath"`
		LocalPreferred []string `yaml:"localPreferred"`
	} `yaml:"stt"`
	Translation struct {
		Chain []string `yaml:"chain"`
	} `yaml:"translation"`
	TTS struct {
		NonCloning     map[string]string `yaml:"nonCloning"`
		CloningCapable []string          `yaml:"cloningCapable"`
		TopTierRemote  string            `yaml:"topTierRemote"`
	} `yaml:"tts"`
}

// CredentialSet reports, by credential name (an EngineSpec's
// CredentialsRequired), whether that credential is configured.
// Presence only -- never values.
type CredentialSet map[string]bool

// Dispatcher resolves engine chains from the static rules table.
type Dispatcher struct {
	r        rules
	registry map[string]model.EngineSpec
}

// New loads the embedded default rules table plus a fixed engine
// registry describing each engine's locality and capabilities.
func New() (*Dispatcher, error) {
	var r rules
	if err := yaml.Unmarshal(defaultRulesYAML, &r); err != nil {
		return nil, fmt.Errorf("dispatcher: parse rules: %w", err)
	}
	return &Dispatcher{r: r, registry: buildRegistry()}, nil
}

func buildRegistry() map[string]model.EngineSpec {
	specs := []model.EngineSpec{
		{Stage: model.EngineStageSTT, ID: "groq_stt", Locality: model.LocalityRemote, CredentialsRequired: "GROQ_API_KEY", Capabilities: []model.Capability{model.CapabilityAutoDetect}},
		{Stage: model.EngineStageSTT, ID: "local_whisper", Locality: model.LocalityLocal, Capabilities: []model.Capability{model.CapabilityAutoDetect}},
		{Stage: model.EngineStageSTT, ID: "openai_stt", Locality: model.LocalityRemote, CredentialsRequired: "OPENAI_API_KEY", Capabilities: []model.Capability{model.CapabilityAutoDetect}},

		{Stage: model.EngineStageTranslate, ID: "groq_translate", Locality: model.LocalityRemote, CredentialsRequired: "GROQ_API_KEY"},
		{Stage: model.EngineStageTranslate, ID: "gemini_translate", Locality: model.LocalityRemote, CredentialsRequired: "GEMINI_API_KEY"},
		{Stage: model.EngineStageTranslate, ID: "local_llm", Locality: model.LocalityLocal},

		{Stage: model.EngineStageEvaluate, ID: "groq_translate", Locality: model.LocalityRemote, CredentialsRequired: "GROQ_API_KEY"},
		{Stage: model.EngineStageEvaluate, ID: "gemini_translate", Locality: model.LocalityRemote, CredentialsRequired: "GEMINI_API_KEY"},

		{Stage: model.EngineStageTTS, ID: "elevenlabs_tts", Locality: model.LocalityRemote, CredentialsRequired: "ELEVENLABS_API_KEY", Capabilities: []model.Capability{model.CapabilityCloneVoice}},
		{Stage: model.EngineStageTTS, ID: "naver_clova_tts", Locality: model.LocalityRemote, CredentialsRequired: "NAVER_CLOVA_KEY"},
		{Stage: model.EngineStageTTS, ID: "yandex_tts", Locality: model.LocalityRemote, CredentialsRequired: "YANDEX_TTS_KEY"},
		{Stage: model.EngineStageTTS, ID: "local_tts", Locality: model.LocalityLocal},
		{Stage: model.EngineStageTTS, ID: "local_tts_clone", Locality: model.LocalityLocal, Capabilities: []model.Capability{model.CapabilityCloneVoice}},
	}
	out := make(map[string]model.EngineSpec, len(specs))
	for _, s := range specs {
		out[string(s.Stage)+"/"+s.ID] = s
	}
	return out
}

func (d *Dispatcher) spec(stage model.EngineStage, id string) (model.EngineSpec, bool) {
	s, ok := d.registry[string(stage)+"/"+id]
	return s, ok
}

func (d *Dispatcher) configured(creds CredentialSet, spec model.EngineSpec) bool {
	if spec.Locality == model.LocalityLocal {
		return true
	}
	if spec.CredentialsRequired == "" {
		return true
	}
	return creds[spec.CredentialsRequired]
}

// Resolve returns an ordered fallback chain of EngineSpecs for a
// stage. Explicit non-auto choices in Settings pin a single engine
// (still validated against credentials); "auto" runs the stage's
// selection rule.
func (d *Dispatcher) Resolve(stage model.EngineStage, settings model.Settings, creds CredentialSet) ([]model.EngineSpec, error) {
	pinned := pinnedChoice(stage, settings)
	if pinned != "" && pinned != string(model.EngineAuto) {
		spec, ok := d.spec(stage, pinned)
		if !ok {
			return nil, fmt.Errorf("dispatcher: unknown pinned engine %q for stage %s", pinned, stage)
		}
		return []model.EngineSpec{spec}, nil
	}

	switch stage {
	case model.EngineStageSTT:
		return d.resolveSTT(settings, creds), nil
	case model.EngineStageTranslate, model.EngineStageEvaluate:
		return d.resolveChain(d.r.Translation.Chain, stage, creds), nil
	case model.EngineStageTTS:
		return d.resolveTTS(settings, creds), nil
	default:
		return nil, fmt.Errorf("dispatcher: unknown stage %s", stage)
	}
}

func pinnedChoice(stage model.EngineStage, s model.Settings) string {
	switch stage {
	case model.EngineStageSTT:
		return string(s.STTEngine)
	case model.EngineStageTranslate, model.EngineStageEvaluate:
		return string(s.TranslationEngine)
	case model.EngineStageTTS:
		return string(s.TTSEngine)
	default:
		return ""
	}
}

func (d *Dispatcher) resolveSTT(settings model.Settings, creds CredentialSet) []model.EngineSpec {
	remoteFast := contains(d.r.STT.RemoteFastPath, settings.SourceLang)
	localPreferred := contains(d.r.STT.LocalPreferred, settings.SourceLang) || settings.SourceLang == ""

	var order []string
	switch {
	case localPreferred && resource.LocalEngineViable():
		order = []string{"local_whisper", "groq_stt", "openai_stt"}
	case remoteFast:
		order = []string{"groq_stt", "openai_stt", "local_whisper"}
	default:
		order = []string{"groq_stt", "openai_stt", "local_whisper"}
	}
	return d.resolveChain(order, model.EngineStageSTT, creds)
}

func (d *Dispatcher) resolveTTS(settings model.Settings, creds CredentialSet) []model.EngineSpec {
	if settings.CloneVoice {
		return d.resolveChain(d.r.TTS.CloningCapable, model.EngineStageTTS, creds)
	}

	if d.configuredByID(creds, model.EngineStageTTS, d.r.TTS.TopTierRemote) {
		order := []string{d.r.TTS.TopTierRemote}
		order = append(order, d.langOrder(settings.TargetLang)...)
		return d.resolveChain(dedupe(order), model.EngineStageTTS, creds)
	}
	return d.resolveChain(d.langOrder(settings.TargetLang), model.EngineStageTTS, creds)
}

func (d *Dispatcher) langOrder(lang string) []string {
	order := []string{}
	if id, ok := d.r.TTS.NonCloning[lang]; ok {
		order = append(order, id)
	}
	if id, ok := d.r.TTS.NonCloning["any"]; ok {
		order = append(order, id)
	}
	return order
}

func (d *Dispatcher) configuredByID(creds CredentialSet, stage model.EngineStage, id string) bool {
	spec, ok := d.spec(stage, id)
	if !ok {
		return false
	}
	return d.configured(creds, spec)
}

// resolveChain filters ids down to specs that exist and are
// configured, preserving requested order, then appends any remaining
// configured engine for the stage as a last-resort fallback.
func (d *Dispatcher) resolveChain(ids []string, stage model.EngineStage, creds CredentialSet) []model.EngineSpec {
	seen := map[string]bool{}
	var out []model.EngineSpec
	for _, id := range ids {
		spec, ok := d.spec(stage, id)
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		if d.configured(creds, spec) {
			out = append(out, spec)
		}
	}
	if len(out) > 0 {
		return out
	}
	// Nothing in the preferred order is configured: fall back to any
	// configured engine for the stage at all, so a partially-configured
	// deployment still has something to try.
	for _, spec := range d.registry {
		if spec.Stage != stage || seen[spec.ID] {
			continue
		}
		if d.configured(creds, spec) {
			seen[spec.ID] = true
			out = append(out, spec)
		}
	}
	return out
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

func dedupe(list []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, v := range list {
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
