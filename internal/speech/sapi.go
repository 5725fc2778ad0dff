package speech

import (
	"fmt"
	"os/exec"
	"strings"
)

// sapiCommand drives System.Speech through PowerShell.
var sapiCommand = commandSpec{
	name:        "sapi",
	executables: []string{"powershell", "pwsh"},
	args:        sapiArgs,
	voices:      sapiVoices,
}

func sapiArgs(c Config, u Utterance) []string {
	rate := orDefault(u.Options.Rate, orDefault(c.Rate, 1))
	volume := orDefault(u.Options.Volume, orDefault(c.Volume, 1))

	// Convert to SAPI ranges (-10 to 10, 0 to 100)
	sapiRate := int(rate*10) - 10
	if sapiRate > 10 {
		sapiRate = 10
	}
	sapiVolume := int(volume * 100)
	if sapiVolume > 100 {
		sapiVolume = 100
	}

	var script strings.Builder
	script.WriteString("Add-Type -AssemblyName System.Speech; ")
	script.WriteString("$synth = New-Object System.Speech.Synthesis.SpeechSynthesizer; ")
	fmt.Fprintf(&script, "$synth.Rate = %d; $synth.Volume = %d; ", sapiRate, sapiVolume)

	voice := u.Options.Voice
	if voice == "" && c.Voice != "" && c.Voice != "default" {
		voice = c.Voice
	}
	switch {
	case voice != "":
		fmt.Fprintf(&script, "try { $synth.SelectVoice('%s') } catch {} ; ", psQuote(voice))
	case u.Options.VoiceLocale != "":
		fmt.Fprintf(&script,
			"try { $synth.SelectVoiceByHints('NotSet', 'NotSet', 0, [System.Globalization.CultureInfo]'%s') } catch {} ; ",
			psQuote(u.Options.VoiceLocale))
	}
	script.WriteString("$synth.Speak([Console]::In.ReadToEnd())")

	return []string{"-NoProfile", "-NonInteractive", "-Command", script.String()}
}

func sapiVoices(path string) ([]Voice, error) {
	script := "Add-Type -AssemblyName System.Speech; " +
		"(New-Object System.Speech.Synthesis.SpeechSynthesizer).GetInstalledVoices() | " +
		"ForEach-Object { $_.VoiceInfo.Name + '|' + $_.VoiceInfo.Culture.Name + '|' + $_.VoiceInfo.Gender }"
	output, err := exec.Command(path, "-NoProfile", "-NonInteractive", "-Command", script).Output()
	if err != nil {
		return nil, err
	}

	voices := make([]Voice, 0)
	for _, line := range strings.Split(string(output), "\n") {
		parts := strings.Split(strings.TrimSpace(line), "|")
		if len(parts) != 3 {
			continue
		}
		voices = append(voices, Voice{
			Name:         parts[0],
			LanguageCode: NormalizeLocale(parts[1], parts[1]),
			Gender:       strings.ToLower(parts[2]),
		})
	}
	return voices, nil
}

func psQuote(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}
