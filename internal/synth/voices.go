package synth

import (
	"bufio"
	"bytes"
	"context"
	"sort"
	"strings"
)

// Voice is one installed voice.
type Voice struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Language string `json:"language"`
	Default  bool   `json:"default"`
}

// VoiceLister is implemented by engines that can enumerate voices.
type VoiceLister interface {
	Voices(ctx context.Context) ([]Voice, error)
}

// VoiceGroup is the voices sharing one language tag.
type VoiceGroup struct {
	Language string  `json:"language"`
	Voices   []Voice `json:"voices"`
}

// ParseEspeakVoices parses the `espeak-ng --voices` table:
//
//	Pty Language       Age/Gender VoiceName          File          Other Languages
//	 5  en-us           --/M      English_(America)  gmw/en-US     (en 10)
func ParseEspeakVoices(out []byte) []Voice {
	var voices []Voice
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 5 || fields[0] == "Pty" {
			continue
		}
		voices = append(voices, Voice{
			ID:       fields[1],
			Name:     strings.ReplaceAll(fields[3], "_", " "),
			Language: fields[1],
		})
	}
	return voices
}

// MarkDefault flags the voice whose ID matches id.
func MarkDefault(voices []Voice, id string) {
	for i := range voices {
		voices[i].Default = voices[i].ID == id
	}
}

// GroupByLanguage groups voices by language, sorted by language and then by
// name. Voices without a language go under "Other".
func GroupByLanguage(voices []Voice) []VoiceGroup {
	byLang := make(map[string][]Voice)
	for _, v := range voices {
		lang := v.Language
		if lang == "" {
			lang = "Other"
		}
		byLang[lang] = append(byLang[lang], v)
	}

	groups := make([]VoiceGroup, 0, len(byLang))
	for lang, list := range byLang {
		sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
		groups = append(groups, VoiceGroup{Language: lang, Voices: list})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Language < groups[j].Language })
	return groups
}
