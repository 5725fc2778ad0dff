package speech

import (
	"fmt"
	"os"
	"runtime"

	"github.com/sirupsen/logrus"
)

type EngineType string

const (
	EngineTypeMock          EngineType = "mock"
	EngineTypeESpeak        EngineType = "espeak"
	EngineTypeSay           EngineType = "say"  // macOS only
	EngineTypeSAPI          EngineType = "sapi" // Windows only
	EngineTypeGoogleClassic EngineType = "googleclassic"
	EngineTypeAuto          EngineType = "auto" // Automatically choose best for platform
)

func (e EngineType) String() string {
	return string(e)
}

// NewEngine creates a new speech engine based on the provided config.
func NewEngine(config Config, log logrus.FieldLogger) (Engine, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}

	if config.Type == "" || config.Type == EngineTypeAuto.String() {
		config.Type = getBestEngineForPlatform().String()
		log.WithField("engine", config.Type).Debug("Selected speech engine")
	}

	switch config.Type {
	case EngineTypeMock.String():
		return NewMockEngine(config, log), nil

	case EngineTypeGoogleClassic.String():
		return newGoogleClassicEngine(config, log)

	case EngineTypeESpeak.String():
		return newCommandEngine(espeakCommand, config, log)

	case EngineTypeSay.String():
		if runtime.GOOS != "darwin" {
			return nil, fmt.Errorf("say engine only supports macOS")
		}
		return newCommandEngine(sayCommand, config, log)

	case EngineTypeSAPI.String():
		if runtime.GOOS != "windows" {
			return nil, fmt.Errorf("SAPI engine only supports Windows")
		}
		return newCommandEngine(sapiCommand, config, log)

	default:
		return nil, fmt.Errorf("unsupported speech engine type: %s", config.Type)
	}
}

// getBestEngineForPlatform returns the recommended engine for the current platform
func getBestEngineForPlatform() EngineType {

	if hasGoogleCredentials() {
		return EngineTypeGoogleClassic
	}

	switch runtime.GOOS {
	case "windows":
		return EngineTypeSAPI
	case "darwin":
		return EngineTypeSay
	default:
		return EngineTypeESpeak
	}
}

// GetAvailableEngines returns engines available on the current platform
func GetAvailableEngines() []EngineType {
	engines := []EngineType{EngineTypeMock, EngineTypeESpeak}

	if hasGoogleCredentials() {
		engines = append(engines, EngineTypeGoogleClassic)
	}

	switch runtime.GOOS {
	case "windows":
		engines = append(engines, EngineTypeSAPI)
	case "darwin":
		engines = append(engines, EngineTypeSay)
	}

	return engines
}

// hasGoogleCredentials checks if Google Cloud credentials are available
func hasGoogleCredentials() bool {
	_, ok := os.LookupEnv("GOOGLE_APPLICATION_CREDENTIALS")
	return ok
}
