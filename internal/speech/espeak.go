package speech

import (
	"os/exec"
	"strconv"
	"strings"
)

var espeakCommand = commandSpec{
	name:        "espeak",
	executables: []string{"espeak-ng", "espeak"},
	args:        espeakArgs,
	voices:      espeakVoices,
}

func espeakArgs(c Config, u Utterance) []string {
	args := []string{"--stdin"}

	// Set voice, falling back to the utterance language
	voice := u.Options.Voice
	if voice == "" && c.Voice != "" && c.Voice != "default" {
		voice = c.Voice
	}
	if voice == "" && u.Options.VoiceLocale != "" {
		voice = strings.ToLower(u.Options.VoiceLocale)
	}
	if voice != "" {
		args = append(args, "-v", voice)
	}

	// Words per minute, default is 175
	rate := orDefault(u.Options.Rate, orDefault(c.Rate, 1))
	args = append(args, "-s", strconv.Itoa(int(175*rate)))

	// Pitch 0-99, default is 50
	pitch := orDefault(u.Options.Pitch, orDefault(c.Pitch, 1))
	p := int(50 * pitch)
	if p > 99 {
		p = 99
	}
	args = append(args, "-p", strconv.Itoa(p))

	// Amplitude 0-200, default is 100
	volume := orDefault(u.Options.Volume, orDefault(c.Volume, 1))
	args = append(args, "-a", strconv.Itoa(int(100*volume)))

	return args
}

func espeakVoices(path string) ([]Voice, error) {
	output, err := exec.Command(path, "--voices").Output()
	if err != nil {
		return nil, err
	}
	return parseESpeakVoices(string(output)), nil
}

func parseESpeakVoices(output string) []Voice {
	lines := strings.Split(output, "\n")
	voices := make([]Voice, 0)

	for i, line := range lines {
		// Skip header line
		if i == 0 || strings.TrimSpace(line) == "" {
			continue
		}

		// Pty Language Age/Gender VoiceName File Other Languages
		fields := strings.Fields(line)
		if len(fields) < 4 {
			continue
		}
		v := Voice{Name: fields[3], LanguageCode: NormalizeLocale(fields[1], fields[1])}
		if g := strings.TrimPrefix(fields[2], "--/"); g == "M" {
			v.Gender = "male"
		} else if g == "F" {
			v.Gender = "female"
		}
		voices = append(voices, v)
	}

	return voices
}
