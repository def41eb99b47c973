package main

import (
	"io"
	"strings"

	"github.com/GiGurra/boa/pkg/boa"

	"github.com/tejashwikalptaru/gotune-queue/internal/app"
	"github.com/tejashwikalptaru/gotune-queue/internal/domain"
)

func defaultParamEnricher() boa.ParamEnricher {
	return boa.ParamEnricherCombine(
		boa.ParamEnricherBool,
		boa.ParamEnricherName,
		boa.ParamEnricherShort,
	)
}

// storeConfig builds an application config from the shared store flags.
// Empty or zero flags keep the environment defaults.
func storeConfig(dataDir, storage string, profile int64, logOutput io.Writer) app.Config {
	cfg := app.DefaultConfig()
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if storage != "" {
		cfg.Storage = strings.ToLower(storage)
	}
	if profile > 0 {
		cfg.ProfileID = domain.ProfileID(profile)
	}
	cfg.LogOutput = logOutput
	return cfg
}
