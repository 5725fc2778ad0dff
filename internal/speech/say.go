package speech

import (
	"os/exec"
	"strconv"
	"strings"
)

// sayCommand drives the macOS say utility.
var sayCommand = commandSpec{
	name:        "say",
	executables: []string{"say"},
	args:        sayArgs,
	voices:      sayVoices,
}

func sayArgs(c Config, u Utterance) []string {
	args := []string{"-f", "-"}

	voice := u.Options.Voice
	if voice == "" && c.Voice != "" && c.Voice != "default" {
		voice = c.Voice
	}
	if voice != "" {
		args = append(args, "-v", voice)
	}

	rate := orDefault(u.Options.Rate, orDefault(c.Rate, 1))
	args = append(args, "-r", strconv.Itoa(int(175*rate)))
	return args
}

func sayVoices(path string) ([]Voice, error) {
	output, err := exec.Command(path, "-v", "?").Output()
	if err != nil {
		return nil, err
	}
	return parseSayVoices(string(output)), nil
}

// parseSayVoices reads lines like "Alex    en_US    # Most people recognize me by my voice."
func parseSayVoices(output string) []Voice {
	voices := make([]Voice, 0)
	for _, line := range strings.Split(output, "\n") {
		head, desc, _ := strings.Cut(line, "#")
		fields := strings.Fields(head)
		if len(fields) < 2 {
			continue
		}
		locale := fields[len(fields)-1]
		name := strings.Join(fields[:len(fields)-1], " ")
		voices = append(voices, Voice{
			Name:         name,
			LanguageCode: NormalizeLocale(locale, locale),
			Description:  strings.TrimSpace(desc),
		})
	}
	return voices
}
